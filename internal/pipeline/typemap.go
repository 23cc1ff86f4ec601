package pipeline

import (
	"strings"

	"github.com/fancai/orchestrator/internal/model"
)

// aliasTable maps common native processor entity labels (NER-style tags
// and the ad-hoc strings a provider might return) to the unified
// DescriptionType (spec.md §4.4 step 1 "Type mapping").
var aliasTable = map[string]model.DescriptionType{
	"loc":         model.TypeLocation,
	"location":    model.TypeLocation,
	"gpe":         model.TypeLocation,
	"fac":         model.TypeLocation,
	"place":       model.TypeLocation,
	"setting":     model.TypeLocation,
	"per":         model.TypeCharacter,
	"person":      model.TypeCharacter,
	"character":   model.TypeCharacter,
	"persona":     model.TypeCharacter,
	"atmosphere":  model.TypeAtmosphere,
	"mood":        model.TypeAtmosphere,
	"ambience":    model.TypeAtmosphere,
	"obj":         model.TypeObject,
	"object":      model.TypeObject,
	"item":        model.TypeObject,
	"artifact":    model.TypeObject,
	"action":      model.TypeAction,
	"event":       model.TypeAction,
	"activity":    model.TypeAction,
}

// normalizeType maps raw to a unified DescriptionType. If raw is
// already a known unified type (the common case for processors built
// directly against this contract, like keyword and llmproc) it passes
// through unchanged. Otherwise it consults aliasTable, then falls back
// to keyword-based inference over content, and finally to TypeOther if
// even that yields no hits (spec.md §4.4 "unknown labels fall back to
// keyword-based inference (OTHER last)") — a description is never
// dropped on account of an unrecognized label.
func normalizeType(raw model.DescriptionType, content string) model.DescriptionType {
	switch raw {
	case model.TypeLocation, model.TypeCharacter, model.TypeAtmosphere, model.TypeObject, model.TypeAction, model.TypeOther:
		return raw
	}

	if mapped, ok := aliasTable[strings.ToLower(strings.TrimSpace(string(raw)))]; ok {
		return mapped
	}

	if typ, ok := inferTypeFromKeywords(content); ok {
		return typ
	}
	return model.TypeOther
}

// keyword cues mirroring internal/processors/keyword's lexicon, used
// only as a last-resort inference when a processor's native label is
// unrecognized.
var inferenceKeywords = map[model.DescriptionType][]string{
	model.TypeLocation:   {"room", "hall", "street", "forest", "castle", "village", "mountain", "city", "garden", "house"},
	model.TypeCharacter:  {"he was", "she was", "his face", "her face", "his eyes", "her eyes", "wore a"},
	model.TypeAtmosphere: {"silence", "darkness", "gloom", "fog", "mist", "chill", "tension", "stillness"},
	model.TypeObject:     {"sword", "book", "letter", "ring", "amulet", "chest", "lantern", "key"},
	model.TypeAction:     {"ran", "leapt", "struck", "fled", "charged", "grabbed", "shouted"},
}

func inferTypeFromKeywords(content string) (model.DescriptionType, bool) {
	lower := strings.ToLower(content)
	bestType := model.DescriptionType("")
	bestHits := 0
	for typ, keywords := range inferenceKeywords {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			bestType = typ
		}
	}
	if bestHits == 0 {
		return "", false
	}
	return bestType, true
}
