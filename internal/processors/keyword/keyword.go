// Package keyword implements a heuristic Processor: a dependency-free
// fallback that is always available, used as the baseline member of the
// processor ensemble (spec.md §4.4). Grounded on the teacher's pattern of
// keeping a default provider-independent capability around (the
// teacher's own mock.go/testhelper.go fakes play a similar "always
// works" role in tests); here it is a real production fallback rather
// than a test double, since description extraction has no equivalent of
// "the API key is absent" failure mode for a keyword matcher.
package keyword

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/fancai/orchestrator/internal/model"
	"github.com/fancai/orchestrator/internal/processors"
)

// Config is this processor's construction-time tunables, read from the
// Weight/Threshold/PriorityRank fields of processors.Config.
type Config struct {
	Name         string
	Weight       float64
	Threshold    float64
	PriorityRank int
}

// Processor matches sentences against per-type keyword sets and scores
// confidence by keyword density. It never fails to load and is always
// available, making it the safe fallback when LLM-backed processors are
// unavailable (spec.md §4.4 "ProcessorUnavailable... strategy falls
// back").
type Processor struct {
	name         string
	weight       float64
	threshold    float64
	priorityRank int
}

// New constructs a keyword Processor.
func New(cfg Config) *Processor {
	name := cfg.Name
	if name == "" {
		name = "keyword"
	}
	return &Processor{name: name, weight: cfg.Weight, threshold: cfg.Threshold, priorityRank: cfg.PriorityRank}
}

// NewFromProcessorConfig adapts a processors.Config into a Processor,
// for use as a processors.Factory.
func NewFromProcessorConfig(name string, cfg processors.Config) (processors.Processor, error) {
	return New(Config{Name: name, Weight: cfg.Weight, Threshold: cfg.Threshold, PriorityRank: cfg.PriorityRank}), nil
}

func (p *Processor) Name() string                             { return p.name }
func (p *Processor) IsAvailable(ctx context.Context) bool      { return true }
func (p *Processor) Load(ctx context.Context) error            { return nil }
func (p *Processor) Weight() float64                           { return p.weight }
func (p *Processor) Threshold() float64                        { return p.threshold }
func (p *Processor) PriorityRank() int                         { return p.priorityRank }

var sentenceSplit = regexp.MustCompile(`[.!?]+\s+`)

// keywordSets maps each DescriptionType to the lexical cues that signal
// it; a sentence's confidence is keyword-hit-count / word-count, capped
// at 0.9 so the heuristic never outranks a confident model-backed
// processor (spec.md §4.4's ensemble representative-text tie-break
// prefers higher priority_rank, which operators configure accordingly).
var keywordSets = map[model.DescriptionType][]string{
	model.TypeLocation: {
		"room", "hall", "street", "forest", "castle", "village", "mountain",
		"river", "city", "valley", "garden", "house", "tower", "chamber",
		"field", "shore", "cave", "bridge", "courtyard", "plaza",
	},
	model.TypeCharacter: {
		"he was", "she was", "his face", "her face", "tall man", "young woman",
		"old woman", "his eyes", "her eyes", "wore a", "dressed in", "hair was",
		"his voice", "her voice", "stood before",
	},
	model.TypeAtmosphere: {
		"silence", "darkness", "gloom", "fog", "mist", "chill", "warmth",
		"tension", "dread", "stillness", "quiet", "shadows", "glow", "haze",
	},
	model.TypeObject: {
		"sword", "book", "letter", "ring", "amulet", "chest", "lantern",
		"key", "map", "cloak", "shield", "staff", "goblet", "mirror",
	},
	model.TypeAction: {
		"ran", "leapt", "struck", "fled", "drew his", "drew her", "charged",
		"collapsed", "grabbed", "hurled", "shouted", "whispered", "lunged",
	},
}

// Extract splits the chapter into sentences and scores each sentence
// against every type's keyword set, emitting one RawDescription per
// (sentence, type) pair that clears a minimal keyword-hit floor.
func (p *Processor) Extract(ctx context.Context, chapter *model.Chapter) ([]processors.RawDescription, error) {
	sentences := sentenceSplit.Split(chapter.Content, -1)

	var out []processors.RawDescription
	offset := 0
	for _, sentence := range sentences {
		trimmed := strings.TrimSpace(sentence)
		start := offset
		offset += len(sentence) + 1
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		wordCount := countWords(trimmed)
		if wordCount == 0 {
			continue
		}

		for typ, keywords := range keywordSets {
			hits := 0
			for _, kw := range keywords {
				if strings.Contains(lower, kw) {
					hits++
				}
			}
			if hits == 0 {
				continue
			}
			confidence := float64(hits) / float64(wordCount) * 4
			if confidence > 0.9 {
				confidence = 0.9
			}
			if confidence < 0.15 {
				continue
			}
			out = append(out, processors.RawDescription{
				Type:       typ,
				Content:    trimmed,
				CharStart:  start,
				CharEnd:    start + len(trimmed),
				Confidence: confidence,
			})
		}
	}
	return out, nil
}

func countWords(s string) int {
	count := 0
	inWord := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			count++
			inWord = true
		}
	}
	return count
}

var _ processors.Processor = (*Processor)(nil)
var _ processors.Weighted = (*Processor)(nil)
