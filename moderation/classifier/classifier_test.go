package classifier

import (
	"context"
	"fmt"
	"testing"

	"github.com/streamtide/guardian/moderation/setstore"

	"github.com/stretchr/testify/assert"
)

func TestOverallWeights(t *testing.T) {
	assert := assert.New(t)

	s := Score{Toxicity: 1, Harassment: 1, HateSpeech: 1, SexualContent: 1, Threat: 1, Spam: 1}
	assert.InDelta(1.0, s.Overall(), 0.000001)

	zero := Score{}
	assert.Equal(0.0, zero.Overall())

	hate := Score{HateSpeech: 1}
	assert.InDelta(0.25, hate.Overall(), 0.000001)

	spam := Score{Spam: 1}
	assert.InDelta(0.05, spam.Overall(), 0.000001)
}

func TestTopCategory(t *testing.T) {
	assert := assert.New(t)

	s := Score{Harassment: 0.9, Toxicity: 0.3}
	assert.Equal(CategoryHarassment, s.TopCategory())

	// severity-ordered tie break
	tie := Score{HateSpeech: 0.8, Harassment: 0.8}
	assert.Equal(CategoryHateSpeech, tie.TopCategory())
}

func TestKeywordClassifier(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	sets := setstore.NewMemSetStore()
	sets.Add("hate-speech-terms", "slur")
	sets.Add("threat-terms", "kill")
	kc := NewKeywordClassifier(sets)

	score, err := kc.Classify(ctx, "totally fine message")
	assert.NoError(err)
	assert.Equal(0.0, score.Overall())

	score, err = kc.Classify(ctx, "you are a slur")
	assert.NoError(err)
	assert.Equal(0.75, score.HateSpeech)
	assert.Equal(0.0, score.Threat)

	// censor-evasion chars fold in to the same term
	score, err = kc.Classify(ctx, "you are a s_l_u_r today")
	assert.NoError(err)
	assert.Equal(0.75, score.HateSpeech)

	// determinism
	again, err := kc.Classify(ctx, "you are a slur")
	assert.NoError(err)
	assert.Equal(score.HateSpeech, again.HateSpeech)
}

func TestKeywordClassifierSpam(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	kc := NewKeywordClassifier(setstore.NewMemSetStore())

	score, err := kc.Classify(ctx, "buy buy buy buy buy buy")
	assert.NoError(err)
	assert.Equal(1.0, score.Spam)

	score, err = kc.Classify(ctx, "a perfectly normal varied sentence here")
	assert.NoError(err)
	assert.Equal(0.0, score.Spam)
}

type failingClassifier struct{}

func (f *failingClassifier) Classify(ctx context.Context, text string) (*Score, error) {
	return nil, fmt.Errorf("scoring backend down")
}

func TestFailOpen(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	fo := NewFailOpenClassifier(nil, &failingClassifier{})
	score, err := fo.Classify(ctx, "anything")
	assert.NoError(err)
	assert.NotNil(score)
	assert.Equal(0.0, score.Overall())
}
