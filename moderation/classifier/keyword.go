package classifier

import (
	"context"

	"github.com/streamtide/guardian/moderation/keyword"
	"github.com/streamtide/guardian/moderation/setstore"
)

// Term-set names consulted by the keyword scorer, one per category.
var categoryTermSets = map[string]string{
	CategoryToxicity:      "toxicity-terms",
	CategoryHarassment:    "harassment-terms",
	CategoryHateSpeech:    "hate-speech-terms",
	CategorySexualContent: "sexual-content-terms",
	CategoryThreat:        "threat-terms",
}

// KeywordClassifier is the reference scoring backend: tokenizes text and
// scores each category by matching against configured term sets. It is a
// deliberately simple stand-in for an external scoring model, but it is
// deterministic, fast, and has no network dependency. Production
// deployments layer RemoteClassifier in front and keep this as the
// degraded-mode backend.
type KeywordClassifier struct {
	Sets setstore.SetStore
}

var _ Classifier = (*KeywordClassifier)(nil)

func NewKeywordClassifier(sets setstore.SetStore) *KeywordClassifier {
	return &KeywordClassifier{Sets: sets}
}

func (c *KeywordClassifier) Classify(ctx context.Context, text string) (*Score, error) {
	tokens := keyword.TokenizeText(text)
	// a second pass preserving censor-evasion chars, then slugified
	for _, tok := range keyword.TokenizeTextSkippingCensorChars(text) {
		if slug := keyword.Slugify(tok); slug != tok {
			tokens = append(tokens, slug)
		}
	}

	var score Score
	for _, tok := range tokens {
		for cat, setName := range categoryTermSets {
			hit, err := c.Sets.InSet(ctx, setName, tok)
			if err != nil {
				return nil, err
			}
			if !hit {
				continue
			}
			switch cat {
			case CategoryToxicity:
				score.Toxicity = bump(score.Toxicity)
			case CategoryHarassment:
				score.Harassment = bump(score.Harassment)
			case CategoryHateSpeech:
				score.HateSpeech = bump(score.HateSpeech)
			case CategorySexualContent:
				score.SexualContent = bump(score.SexualContent)
			case CategoryThreat:
				score.Threat = bump(score.Threat)
			}
		}
	}

	score.Spam = spamScore(tokens)
	return &score, nil
}

// first match scores high; repeats saturate towards 1.0
func bump(cur float64) float64 {
	if cur == 0 {
		return 0.75
	}
	return cur + (1.0-cur)/2
}

// crude repetition heuristic: a message which is mostly one repeated
// token scores as likely spam
func spamScore(tokens []string) float64 {
	if len(tokens) < 4 {
		return 0
	}
	counts := make(map[string]int, len(tokens))
	max := 0
	for _, tok := range tokens {
		counts[tok]++
		if counts[tok] > max {
			max = counts[tok]
		}
	}
	ratio := float64(max) / float64(len(tokens))
	if ratio < 0.5 {
		return 0
	}
	return ratio
}
