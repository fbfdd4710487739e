package classifier

import (
	"context"
)

// Risk categories scored for every content event.
const (
	CategoryToxicity      = "toxicity"
	CategoryHarassment    = "harassment"
	CategoryHateSpeech    = "hate-speech"
	CategorySexualContent = "sexual-content"
	CategoryThreat        = "threat"
	CategorySpam          = "spam"
)

// Per-category weights for the derived overall score.
var overallWeights = map[string]float64{
	CategoryToxicity:      0.20,
	CategoryHarassment:    0.20,
	CategoryHateSpeech:    0.25,
	CategorySexualContent: 0.15,
	CategoryThreat:        0.15,
	CategorySpam:          0.05,
}

// Score holds the six per-category risk scores for one content event, each
// in [0,1]. Immutable once produced.
type Score struct {
	Toxicity      float64 `json:"toxicity"`
	Harassment    float64 `json:"harassment"`
	HateSpeech    float64 `json:"hate_speech"`
	SexualContent float64 `json:"sexual_content"`
	Threat        float64 `json:"threat"`
	Spam          float64 `json:"spam"`
}

func (s *Score) byCategory() map[string]float64 {
	return map[string]float64{
		CategoryToxicity:      s.Toxicity,
		CategoryHarassment:    s.Harassment,
		CategoryHateSpeech:    s.HateSpeech,
		CategorySexualContent: s.SexualContent,
		CategoryThreat:        s.Threat,
		CategorySpam:          s.Spam,
	}
}

// Overall returns the weighted overall risk score.
func (s *Score) Overall() float64 {
	var out float64
	for cat, v := range s.byCategory() {
		out += overallWeights[cat] * v
	}
	return out
}

// TopCategory returns the category with the highest raw score. Ties break
// towards the more severe enforcement category ordering used elsewhere
// (hate-speech before harassment before toxicity).
func (s *Score) TopCategory() string {
	order := []string{
		CategoryHateSpeech,
		CategoryThreat,
		CategorySexualContent,
		CategoryHarassment,
		CategoryToxicity,
		CategorySpam,
	}
	by := s.byCategory()
	top := order[0]
	for _, cat := range order[1:] {
		if by[cat] > by[top] {
			top = cat
		}
	}
	return top
}

// Classifier scores raw text. Implementations must be deterministic for
// the same text (non-deterministic backends are expected to wrap caching
// or pinning so this holds for testing).
type Classifier interface {
	Classify(ctx context.Context, text string) (*Score, error)
}
