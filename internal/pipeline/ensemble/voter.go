// Package ensemble implements the weighted consensus voter of spec.md
// §4.5: cluster each processor's raw descriptions by near-identity,
// score agreement by summed processor weight, and keep only clusters
// that clear a consensus threshold. No direct teacher analogue (the
// teacher never merged multiple providers' opinions about the same
// span); grounded on the general "merge multiple variant results into
// one" shape of internal/jobs/common/blend.go, which blends OCR
// passages from multiple attempts into a single best text.
package ensemble

import (
	"strings"

	"github.com/fancai/orchestrator/internal/processors"
)

// defaultConsensusThreshold is spec.md §4.5's default: a cluster needs
// at least half the total processor weight behind it to be accepted.
const defaultConsensusThreshold = 0.5

// Source is one processor's contribution to an ensemble run: its
// voting weight, per-processor confidence threshold, tie-break rank,
// and the raw descriptions it extracted.
type Source struct {
	ProcessorName string
	Weight        float64
	PriorityRank  int
	Descriptions  []processors.RawDescription
}

// Voter clusters and scores descriptions across Sources.
type Voter struct {
	consensusThreshold float64
}

// New constructs a Voter. A non-positive threshold uses spec.md's
// default of 0.5.
func New(consensusThreshold float64) *Voter {
	if consensusThreshold <= 0 {
		consensusThreshold = defaultConsensusThreshold
	}
	return &Voter{consensusThreshold: consensusThreshold}
}

type item struct {
	source Source
	desc   processors.RawDescription
}

// Vote clusters descriptions across sources by near-identity, accepts
// clusters whose agreement clears the consensus threshold, and returns
// one merged RawDescription per accepted cluster (spec.md §4.5).
func (v *Voter) Vote(sources []Source) []processors.RawDescription {
	totalWeight := 0.0
	var items []item
	for _, src := range sources {
		totalWeight += src.Weight
		for _, d := range src.Descriptions {
			items = append(items, item{source: src, desc: d})
		}
	}
	if totalWeight <= 0 || len(items) == 0 {
		return nil
	}

	clusters := clusterItems(items)

	var out []processors.RawDescription
	for _, cluster := range clusters {
		voteSum := 0.0
		sourceNames := make(map[string]struct{}, len(cluster))
		for _, it := range cluster {
			voteSum += it.source.Weight * it.desc.Confidence
			sourceNames[it.source.ProcessorName] = struct{}{}
		}
		agreement := voteSum / totalWeight

		// Edge case: a single-source cluster is accepted only if that
		// source's own weight alone clears the threshold, independent
		// of confidence (spec.md §4.5 "Edge cases").
		if len(sourceNames) == 1 {
			soleWeight := cluster[0].source.Weight / totalWeight
			if soleWeight < v.consensusThreshold {
				continue
			}
		} else if agreement < v.consensusThreshold {
			continue
		}

		out = append(out, buildRepresentative(cluster, agreement, len(sourceNames)))
	}
	return out
}

// buildRepresentative picks the highest confidence*weight member as the
// representative text, enriches its context with unique snippets from
// the other cluster members, and stamps consensus-derived fields.
func buildRepresentative(cluster []item, agreement float64, nSources int) processors.RawDescription {
	best := cluster[0]
	bestScore := best.source.Weight * best.desc.Confidence
	for _, it := range cluster[1:] {
		score := it.source.Weight * it.desc.Confidence
		switch {
		case score > bestScore:
			best, bestScore = it, score
		case score == bestScore && it.source.PriorityRank < best.source.PriorityRank:
			// Tie on representative: prefer highest priority_rank
			// (lower integer = higher priority, spec.md's "1=high"
			// convention).
			best = it
		}
	}

	context := enrichContext(best, cluster)

	confidence := agreement
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	boost := 1 + 0.1*float64(nSources-1)

	rep := best.desc
	rep.Context = context
	rep.Confidence = confidence
	rep.ConsensusBoost = boost
	rep.SourceCount = nSources
	return rep
}

// enrichContext concatenates unique, non-representative snippets from
// the cluster (size-capped per spec.md §4.5 "enrich context... size
// capped") into the representative's context field.
func enrichContext(representative item, cluster []item) string {
	seen := map[string]struct{}{strings.TrimSpace(representative.desc.Content): {}}
	var parts []string
	if representative.desc.Context != "" {
		parts = append(parts, representative.desc.Context)
	}

	const maxContextLen = 500
	total := len(strings.Join(parts, " "))
	for _, it := range cluster {
		snippet := strings.TrimSpace(it.desc.Content)
		if snippet == "" {
			continue
		}
		if _, ok := seen[snippet]; ok {
			continue
		}
		seen[snippet] = struct{}{}
		if total+len(snippet)+1 > maxContextLen {
			break
		}
		parts = append(parts, snippet)
		total += len(snippet) + 1
	}
	return strings.Join(parts, " ")
}

// clusterItems groups items that identity-match per spec.md §4.5:
// trigram Jaccard >= 0.8 AND overlapping char range, OR identical
// normalized content.
func clusterItems(items []item) [][]item {
	assigned := make([]bool, len(items))
	var clusters [][]item

	for i := range items {
		if assigned[i] {
			continue
		}
		cluster := []item{items[i]}
		assigned[i] = true
		for j := i + 1; j < len(items); j++ {
			if assigned[j] {
				continue
			}
			if identityMatch(items[i].desc, items[j].desc) {
				cluster = append(cluster, items[j])
				assigned[j] = true
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

func identityMatch(a, b processors.RawDescription) bool {
	if normalize(a.Content) == normalize(b.Content) {
		return true
	}
	if trigramJaccard(a.Content, b.Content) >= 0.8 && rangesOverlap(a.CharStart, a.CharEnd, b.CharStart, b.CharEnd) {
		return true
	}
	return false
}

func rangesOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

func normalize(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}

// trigramJaccard computes Jaccard similarity over character trigrams of
// the normalized strings.
func trigramJaccard(a, b string) float64 {
	ta := trigrams(normalize(a))
	tb := trigrams(normalize(b))
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

func trigrams(s string) map[string]struct{} {
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
