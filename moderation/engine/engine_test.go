package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streamtide/guardian/moderation/classifier"
	"github.com/streamtide/guardian/moderation/policy"
	"github.com/streamtide/guardian/moderation/store"
)

func scoreClassifier(scores map[string]*classifier.Score) ClassifierFunc {
	return func(ctx context.Context, text string) (*classifier.Score, error) {
		if s, ok := scores[text]; ok {
			return s, nil
		}
		return &classifier.Score{}, nil
	}
}

func TestAllowWritesNothing(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	f := TestEngine(t, scoreClassifier(nil))

	res, err := f.Engine.ClassifyAndEnforce(ctx, "user-1", "hello everyone", StreamScope("stream-1"))
	assert.NoError(err)
	assert.True(res.Allowed)
	assert.Equal(policy.ActionAllow, res.Action)
	assert.Nil(res.Violation)
	assert.Equal(0, f.Inbox.MessageCount())

	var count int64
	assert.NoError(f.Store.DB.Model(&store.Violation{}).Count(&count).Error)
	assert.EqualValues(0, count)
}

func TestHideBand(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	f := TestEngine(t, scoreClassifier(map[string]*classifier.Score{
		"rude message": {Toxicity: 1.0, Harassment: 1.0, HateSpeech: 0.6},
	}))

	res, err := f.Engine.ClassifyAndEnforce(ctx, "user-1", "rude message", StreamScope("stream-1"))
	assert.NoError(err)
	assert.False(res.Allowed)
	assert.Equal(policy.ActionHide, res.Action)
	assert.InDelta(0.55, res.Overall, 0.001)
	assert.Nil(res.Strike)

	assert.NotNil(res.Violation)
	assert.True(res.Violation.HiddenFromOthers)
	assert.True(res.Violation.IssuedByAI)

	got, err := f.Store.GetViolation(ctx, res.Violation.ID)
	assert.NoError(err)
	assert.Equal("hide", got.Action)

	assert.Equal(1, f.Inbox.MessageCount())
	items, err := f.Queue.List(ctx, "")
	assert.NoError(err)
	assert.Empty(items)
}

func TestBlockBand(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	f := TestEngine(t, scoreClassifier(map[string]*classifier.Score{
		"vile message": {Toxicity: 0.95, Harassment: 0.95, HateSpeech: 0.95, SexualContent: 0.95, Threat: 0.95, Spam: 0.95},
	}))

	res, err := f.Engine.ClassifyAndEnforce(ctx, "user-1", "vile message", StreamScope("stream-1"))
	assert.NoError(err)
	assert.False(res.Allowed)
	assert.Equal(policy.ActionBlock, res.Action)

	var restriction store.ScopeRestriction
	assert.NoError(f.Store.DB.Where("user_id = ? AND scope_id = ? AND kind = ?", "user-1", "stream-1", store.RestrictionBlock).First(&restriction).Error)
	assert.True(restriction.Active)
	assert.Nil(restriction.ExpiresAt)

	// hate-speech tops the tie-break, so the block also strikes
	assert.NotNil(res.Strike)
	assert.Equal(1, res.Strike.Level)
	// one block notification plus the strike warning
	assert.Equal(2, f.Inbox.MessageCount())
}

func TestEscalateBandQueuesOnce(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	f := TestEngine(t, scoreClassifier(map[string]*classifier.Score{
		"borderline": {Toxicity: 1.0, Harassment: 1.0, HateSpeech: 1.0},
	}))

	res, err := f.Engine.ClassifyAndEnforce(ctx, "user-1", "borderline", StreamScope("stream-1"))
	assert.NoError(err)
	assert.Equal(policy.ActionEscalate, res.Action)
	assert.NotNil(res.ReviewItem)
	assert.Equal(store.ReviewPending, res.ReviewItem.Status)
	assert.Nil(res.Strike)

	items, err := f.Queue.List(ctx, store.ReviewPending)
	assert.NoError(err)
	assert.Len(items, 1)
}

func TestTimeoutBandStrikesRepeatOffenseCategory(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	f := TestEngine(t, scoreClassifier(map[string]*classifier.Score{
		"targeted abuse": {Harassment: 1.0, Toxicity: 1.0, HateSpeech: 0.9, Threat: 0.6},
		"gross content":  {SexualContent: 1.0, Toxicity: 1.0, Threat: 0.9, Harassment: 0.9, Spam: 1.0},
	}))

	res, err := f.Engine.ClassifyAndEnforce(ctx, "user-1", "targeted abuse", StreamScope("stream-1"))
	assert.NoError(err)
	assert.Equal(policy.ActionTimeout, res.Action)
	assert.NotNil(res.Strike)
	assert.Equal("harassment", res.Strike.Kind)

	// non-repeat-offense top category enforces without a strike
	res, err = f.Engine.ClassifyAndEnforce(ctx, "user-2", "gross content", StreamScope("stream-1"))
	assert.NoError(err)
	assert.Equal(policy.ActionTimeout, res.Action)
	assert.Equal("sexual-content", res.Category)
	assert.Nil(res.Strike)
}

func TestSpamTripsOnceAndResets(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	f := TestEngine(t, scoreClassifier(nil))
	scope := StreamScope("stream-1")

	for i := 0; i < SpamThreshold; i++ {
		res, err := f.Engine.ClassifyAndEnforce(ctx, "user-1", fmt.Sprintf("msg %d", i), scope)
		assert.NoError(err)
		assert.True(res.Allowed)
	}

	res, err := f.Engine.ClassifyAndEnforce(ctx, "user-1", "msg 11", scope)
	assert.NoError(err)
	assert.False(res.Allowed)
	assert.Equal(policy.ActionTimeout, res.Action)
	assert.Equal("spam", res.Category)
	assert.NotNil(res.Violation)

	var restriction store.ScopeRestriction
	assert.NoError(f.Store.DB.Where("user_id = ? AND kind = ?", "user-1", store.RestrictionTimeout).First(&restriction).Error)
	assert.NotNil(restriction.ExpiresAt)

	// the reset means the next message starts a fresh window
	res, err = f.Engine.ClassifyAndEnforce(ctx, "user-1", "msg 12", scope)
	assert.NoError(err)
	assert.True(res.Allowed)
}

func TestSpamTripConcurrentExactlyOnce(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	f := TestEngine(t, scoreClassifier(nil))
	scope := StreamScope("stream-1")

	// fill the window up to the threshold
	for i := 0; i < SpamThreshold; i++ {
		_, err := f.Counters.Increment(ctx, countChatMessage, "user-1", SpamWindow)
		assert.NoError(err)
	}

	// the crossing count is observed by exactly one of the racing events
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := f.Engine.ClassifyAndEnforce(ctx, "user-1", fmt.Sprintf("race %d", n), scope)
			assert.NoError(err)
		}(i)
	}
	wg.Wait()

	var violations int64
	assert.NoError(f.Store.DB.Model(&store.Violation{}).Where("user_id = ? AND category = ?", "user-1", "spam").Count(&violations).Error)
	assert.EqualValues(1, violations)

	var restrictions int64
	assert.NoError(f.Store.DB.Model(&store.ScopeRestriction{}).Where("user_id = ? AND kind = ?", "user-1", store.RestrictionTimeout).Count(&restrictions).Error)
	assert.EqualValues(1, restrictions)
}

func TestFlagDedupePerDay(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	f := TestEngine(t, scoreClassifier(map[string]*classifier.Score{
		"mildly rude": {Toxicity: 1.0, Harassment: 0.75},
	}))
	scope := StreamScope("stream-1")

	res, err := f.Engine.ClassifyAndEnforce(ctx, "user-1", "mildly rude", scope)
	assert.NoError(err)
	assert.Equal(policy.ActionFlag, res.Action)
	assert.True(res.Allowed)
	assert.NotNil(res.Violation)

	res, err = f.Engine.ClassifyAndEnforce(ctx, "user-1", "mildly rude", scope)
	assert.NoError(err)
	assert.Equal(policy.ActionFlag, res.Action)
	assert.Nil(res.Violation)

	var count int64
	assert.NoError(f.Store.DB.Model(&store.Violation{}).Count(&count).Error)
	assert.EqualValues(1, count)
}

func TestClassifierFailureFailsOpen(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	f := TestEngine(t, ClassifierFunc(func(ctx context.Context, text string) (*classifier.Score, error) {
		return nil, errors.New("scoring backend down")
	}))

	res, err := f.Engine.ClassifyAndEnforce(ctx, "user-1", "anything at all", StreamScope("stream-1"))
	assert.NoError(err)
	assert.True(res.Allowed)
	assert.Equal(policy.ActionAllow, res.Action)
}

func TestRecordUserReportOneShotTimeout(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	f := TestEngine(t, scoreClassifier(nil))

	for i := 0; i < HarassmentReportThreshold-1; i++ {
		assert.NoError(f.Engine.RecordUserReport(ctx, "target-1", "stream-1", "creator-1", fmt.Sprintf("reporter-%d", i)))
	}
	var count int64
	assert.NoError(f.Store.DB.Model(&store.ScopeRestriction{}).Where("user_id = ?", "target-1").Count(&count).Error)
	assert.EqualValues(0, count)

	// same reporter again does not move the distinct count
	assert.NoError(f.Engine.RecordUserReport(ctx, "target-1", "stream-1", "creator-1", "reporter-0"))
	assert.NoError(f.Store.DB.Model(&store.ScopeRestriction{}).Where("user_id = ?", "target-1").Count(&count).Error)
	assert.EqualValues(0, count)

	assert.NoError(f.Engine.RecordUserReport(ctx, "target-1", "stream-1", "creator-1", "reporter-final"))
	assert.NoError(f.Store.DB.Model(&store.ScopeRestriction{}).Where("user_id = ?", "target-1").Count(&count).Error)
	assert.EqualValues(1, count)

	// one-shot: further reports do not re-apply
	assert.NoError(f.Engine.RecordUserReport(ctx, "target-1", "stream-1", "creator-1", "reporter-extra"))
	assert.NoError(f.Store.DB.Model(&store.ScopeRestriction{}).Where("user_id = ?", "target-1").Count(&count).Error)
	assert.EqualValues(1, count)
}

func TestProtectedUserReportsEscalate(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	f := TestEngine(t, scoreClassifier(nil))
	f.Sets.Add(SetProtectedUsers, "streamer-1")

	for i := 0; i < HarassmentReportThreshold; i++ {
		assert.NoError(f.Engine.RecordUserReport(ctx, "streamer-1", "stream-1", "creator-1", fmt.Sprintf("reporter-%d", i)))
	}

	// no automatic timeout, a pending review item instead
	var count int64
	assert.NoError(f.Store.DB.Model(&store.ScopeRestriction{}).Where("user_id = ?", "streamer-1").Count(&count).Error)
	assert.EqualValues(0, count)

	items, err := f.Queue.List(ctx, store.ReviewPending)
	assert.NoError(err)
	if assert.Len(items, 1) {
		assert.Equal("streamer-1", items[0].UserID)
		assert.Equal("viewer_reports", items[0].Source)
	}

	// the escalation is one-shot too
	assert.NoError(f.Engine.RecordUserReport(ctx, "streamer-1", "stream-1", "creator-1", "reporter-extra"))
	items, err = f.Queue.List(ctx, store.ReviewPending)
	assert.NoError(err)
	assert.Len(items, 1)
}
