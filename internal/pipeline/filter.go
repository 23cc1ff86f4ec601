package pipeline

import "strings"

// Filtering thresholds from spec.md §4.4 step 3.
const (
	minContentLength = 50
	maxContentLength = 1000
	minWordCount     = 10
	minConfidence    = 0.3
)

// passesFilter reports whether a description clears the minimum
// quality bar to continue through the pipeline.
func passesFilter(content string, confidence float64) bool {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < minContentLength || len(trimmed) > maxContentLength {
		return false
	}
	if len(strings.Fields(trimmed)) < minWordCount {
		return false
	}
	if confidence < minConfidence {
		return false
	}
	return true
}
