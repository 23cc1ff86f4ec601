package pipeline

import (
	"context"
	"strings"
	"unicode"

	"github.com/fancai/orchestrator/internal/model"
	"github.com/fancai/orchestrator/internal/processors"
)

// adaptiveStrategy inspects the chapter text and delegates to single,
// parallel, or ensemble based on a computed complexity score (spec.md
// §4.4 "Adaptive").
type adaptiveStrategy struct {
	resolve func(ProcessingMode) (Strategy, error)
}

func (s *adaptiveStrategy) Mode() ProcessingMode { return ModeAdaptive }

func (s *adaptiveStrategy) Run(ctx context.Context, chapter *model.Chapter, procs []processors.Processor) ([]processors.RawDescription, error) {
	score := complexityScore(chapter.Content)

	var mode ProcessingMode
	switch {
	case score < 0.35:
		mode = ModeSingle
	case score <= 0.65:
		mode = ModeParallel
	default:
		mode = ModeEnsemble
	}

	delegate, err := s.resolve(mode)
	if err != nil {
		return nil, err
	}
	return delegate.Run(ctx, chapter, procs)
}

// complexityScore combines five independently-normalized text features
// into a [0,1] complexity estimate, equal-weighted (spec.md §4.4
// names the five features — word length, vocabulary diversity,
// capitalized-token presence, dialogue markers, sentence density — but
// leaves the combination formula unspecified; an equal-weighted mean of
// per-feature [0,1] normalizations is used here, mirroring the
// quality-scoring step's own "equal-weighted mean unless configured
// otherwise" default).
func complexityScore(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	avgWordLen := 0.0
	capitalized := 0
	for _, w := range words {
		avgWordLen += float64(len([]rune(w)))
		r := []rune(w)
		if len(r) > 0 && unicode.IsUpper(r[0]) {
			capitalized++
		}
	}
	avgWordLen /= float64(len(words))

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[strings.ToLower(strings.Trim(w, ".,!?;:\"'"))] = struct{}{}
	}
	diversity := float64(len(unique)) / float64(len(words))

	capRatio := float64(capitalized) / float64(len(words))

	dialogueMarkers := strings.Count(text, "\"") + strings.Count(text, "“") + strings.Count(text, "”")
	dialogueScore := normalizeCount(dialogueMarkers, 20)

	sentences := sentenceSplitter.Split(text, -1)
	nonEmptySentences := 0
	for _, sent := range sentences {
		if strings.TrimSpace(sent) != "" {
			nonEmptySentences++
		}
	}
	if nonEmptySentences == 0 {
		nonEmptySentences = 1
	}
	wordsPerSentence := float64(len(words)) / float64(nonEmptySentences)
	densityScore := normalizeCount(int(wordsPerSentence), 30)

	wordLenScore := normalizeCount(int(avgWordLen*10), 70) // ~7-char avg words saturate

	return clamp01((wordLenScore + diversity + capRatio + dialogueScore + densityScore) / 5)
}

func normalizeCount(n, saturateAt int) float64 {
	if saturateAt <= 0 {
		return 0
	}
	v := float64(n) / float64(saturateAt)
	return clamp01(v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
