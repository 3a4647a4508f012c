package classify

import (
	"context"
	"strings"

	"topicscanner/internal/domain"
	"topicscanner/internal/ports"
)

// Heuristic is a deterministic keyword classifier used when no external
// classification service is configured, or when auto-detection is disabled
// and a default is still needed. It never fails.
type Heuristic struct{}

var _ ports.Classifier = (*Heuristic)(nil)

// NewHeuristic builds the fallback classifier.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

var communityMarkers = []string{
	"reddit", "community", "discussion", "opinions", "recommend",
	"best", "versus", "vs", "favorite", "experiences", "advice",
}

var categoryMarkers = []struct {
	category string
	words    []string
}{
	{"cs.CL", []string{"language", "nlp", "translation", "text", "llm", "linguistic"}},
	{"cs.CV", []string{"vision", "image", "video", "segmentation", "detection"}},
	{"cs.LG", []string{"learning", "neural", "transformer", "training", "embedding"}},
	{"cs.CR", []string{"security", "privacy", "cryptography", "attack"}},
	{"cs.RO", []string{"robot", "robotics", "manipulation", "autonomous"}},
}

// Classify scores the query against community markers and picks an arXiv
// category for research queries.
func (h *Heuristic) Classify(_ context.Context, query string) (ports.ClassifyResult, error) {
	lowered := strings.ToLower(query)

	hits := 0
	for _, marker := range communityMarkers {
		if containsWord(lowered, marker) {
			hits++
		}
	}
	if hits > 0 {
		return ports.ClassifyResult{
			Source:            "reddit",
			SourceType:        domain.TypeCommunity,
			SuggestedCategory: "MachineLearning",
			Confidence:        0.5 + 0.1*float64(hits),
		}, nil
	}

	category := "cs.AI"
	for _, group := range categoryMarkers {
		matched := false
		for _, word := range group.words {
			if containsWord(lowered, word) {
				matched = true
				break
			}
		}
		if matched {
			category = group.category
			break
		}
	}

	return ports.ClassifyResult{
		Source:            "arxiv",
		SourceType:        domain.TypeResearch,
		SuggestedCategory: category,
		Confidence:        0.6,
	}, nil
}

func containsWord(text, word string) bool {
	for _, field := range strings.Fields(text) {
		if strings.Trim(field, ".,!?\"'()") == word {
			return true
		}
	}
	return false
}
