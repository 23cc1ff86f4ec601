package pipeline

import (
	"strings"
	"unicode"

	"github.com/fancai/orchestrator/internal/model"
)

// typeWeights are the default per-type multipliers for priority scoring
// (spec.md §4.4 step 5).
var typeWeights = map[model.DescriptionType]float64{
	model.TypeLocation:   1.0,
	model.TypeCharacter:  0.95,
	model.TypeAtmosphere: 0.8,
	model.TypeObject:     0.7,
	model.TypeAction:     0.6,
}

const (
	literaryBoostThreshold  = 0.7
	literaryBoostMultiplier = 1.1
)

// qualityScore computes the five-factor [0,1] quality score (spec.md
// §4.4 step 2): clarity, detail richness, emotional tone, contextual
// coherence, literary quality. Each factor is an independent text-level
// heuristic; the overall score is their equal-weighted mean (spec.md's
// stated default "unless configured otherwise" — no override is wired
// in this implementation).
func qualityScore(content string) float64 {
	words := strings.Fields(content)
	if len(words) == 0 {
		return 0
	}

	clarity := clarityFactor(words)
	detail := detailFactor(content, words)
	tone := emotionalToneFactor(content)
	coherence := coherenceFactor(content)
	literary := literaryFactor(words)

	return clamp01((clarity + detail + tone + coherence + literary) / 5)
}

// clarityFactor rewards moderate sentence length: very short fragments
// and very long run-ons both read as less clear.
func clarityFactor(words []string) float64 {
	n := len(words)
	switch {
	case n < 8:
		return float64(n) / 8
	case n <= 40:
		return 1
	default:
		return clamp01(1 - float64(n-40)/80)
	}
}

// detailFactor rewards a higher ratio of descriptive modifiers
// (adjective/adverb-shaped words ending in common suffixes) and overall
// length relative to a saturating baseline.
func detailFactor(content string, words []string) float64 {
	descriptiveSuffixes := []string{"ly", "ous", "ful", "ive", "ish"}
	hits := 0
	for _, w := range words {
		lw := strings.ToLower(strings.Trim(w, ".,!?;:\"'"))
		for _, suf := range descriptiveSuffixes {
			if strings.HasSuffix(lw, suf) {
				hits++
				break
			}
		}
	}
	ratio := float64(hits) / float64(len(words))
	lengthScore := normalizeCount(len(content), 400)
	return clamp01((ratio*4 + lengthScore) / 2)
}

var toneWords = []string{
	"joy", "fear", "dread", "love", "hate", "sorrow", "grief", "hope",
	"anger", "rage", "despair", "longing", "tender", "terror", "delight",
}

func emotionalToneFactor(content string) float64 {
	lower := strings.ToLower(content)
	hits := 0
	for _, w := range toneWords {
		if strings.Contains(lower, w) {
			hits++
		}
	}
	return normalizeCount(hits, 3)
}

// coherenceFactor rewards the presence of connective/transition words
// that signal the passage reads as a coherent unit rather than a
// disconnected fragment.
func coherenceFactor(content string) float64 {
	connectives := []string{"because", "however", "therefore", "while", "as", "and", "but", "then"}
	lower := strings.ToLower(content)
	hits := 0
	for _, c := range connectives {
		if strings.Contains(lower, " "+c+" ") {
			hits++
		}
	}
	return normalizeCount(hits, 4)
}

// literaryFactor rewards capitalized proper nouns and varied
// punctuation as weak proxies for literary register.
func literaryFactor(words []string) float64 {
	capitalized := 0
	for _, w := range words {
		r := []rune(strings.TrimLeft(w, `"'`))
		if len(r) > 0 && unicode.IsUpper(r[0]) {
			capitalized++
		}
	}
	return normalizeCount(capitalized, len(words)/3+1)
}

// priorityScore implements spec.md §4.4 step 5:
// priority = base_confidence × type_weight × literary_boost.
func priorityScore(confidence float64, typ model.DescriptionType, quality float64) float64 {
	weight, ok := typeWeights[typ]
	if !ok {
		weight = 0.5
	}

	boost := 1.0
	if quality >= literaryBoostThreshold {
		boost = literaryBoostMultiplier
	}

	score := confidence * weight * boost
	return clamp01(score)
}
