package analysis

import (
	"strings"

	"github.com/patric-chuzhbe/contentapi/internal/models"
)

// SummaryLimit is the number of characters kept by the heuristic summary.
const SummaryLimit = 200

const truncationMarker = "..."

var (
	positiveMarkers = []string{"good", "great", "excellent", "love", "happy"}
	negativeMarkers = []string{"bad", "terrible", "awful", "hate", "sad"}
)

// Heuristic is the provider-independent analysis. Positive markers win
// over negative ones when both occur.
func Heuristic(text string) Result {
	return Result{
		Summary:   summarize(text),
		Sentiment: classify(text),
	}
}

func classify(text string) models.Sentiment {
	lowered := strings.ToLower(text)

	switch {
	case containsAny(lowered, positiveMarkers):
		return models.SentimentPositive
	case containsAny(lowered, negativeMarkers):
		return models.SentimentNegative
	}

	return models.SentimentNeutral
}

func summarize(text string) string {
	runes := []rune(text)
	if len(runes) <= SummaryLimit {
		return text
	}

	return string(runes[:SummaryLimit]) + truncationMarker
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}

	return false
}
