package pipeline

import "strings"

// dedupeThreshold is spec.md §4.4 step 4's trigram-Jaccard cluster
// threshold.
const dedupeThreshold = 0.8

// scored is the pipeline-internal candidate shape carried between the
// post-strategy steps; it is distinct from model.Description (the
// persisted shape) because dedup/priority need to compare candidates
// before a final PositionInChapter/WordCount are computed.
type scored struct {
	typ        string
	content    string
	context    string
	charStart  int
	charEnd    int
	confidence float64
	quality    float64
	priority   float64
}

// dedupe clusters candidates by normalized-content trigram Jaccard
// similarity and keeps the highest-weighted-score member of each
// cluster; on exact ties, the earliest position wins (spec.md §4.4 step
// 4). "Weighted score" here is each candidate's priority score, since
// that already folds in confidence, type weight, and literary boost.
func dedupe(candidates []scored) []scored {
	assigned := make([]bool, len(candidates))
	var out []scored

	for i := range candidates {
		if assigned[i] {
			continue
		}
		best := i
		assigned[i] = true
		for j := i + 1; j < len(candidates); j++ {
			if assigned[j] {
				continue
			}
			if dedupeNormalize(candidates[i].content) == dedupeNormalize(candidates[j].content) ||
				dedupeTrigramJaccard(candidates[i].content, candidates[j].content) >= dedupeThreshold {
				assigned[j] = true
				if isBetterCandidate(candidates[j], candidates[best]) {
					best = j
				}
			}
		}
		out = append(out, candidates[best])
	}
	return out
}

func isBetterCandidate(a, b scored) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	// Exact tie: earliest position wins.
	return a.charStart < b.charStart
}

func dedupeNormalize(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}

func dedupeTrigramJaccard(a, b string) float64 {
	ta := dedupeTrigrams(dedupeNormalize(a))
	tb := dedupeTrigrams(dedupeNormalize(b))
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	intersection := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func dedupeTrigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	runes := []rune(s)
	if len(runes) < 3 {
		if len(runes) > 0 {
			set[string(runes)] = struct{}{}
		}
		return set
	}
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}
