package queue

import (
	"context"
	"testing"
	"time"

	"github.com/streamtide/guardian/moderation/countstore"
	"github.com/streamtide/guardian/moderation/notify"
	"github.com/streamtide/guardian/moderation/setstore"
	"github.com/streamtide/guardian/moderation/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQueue(t *testing.T) (*Queue, *store.Store, *notify.MockSender) {
	t.Helper()
	s := store.TestStore(t)
	push := &notify.MockSender{}
	d := notify.NewDispatcher(nil, push, &notify.MockInbox{}, countstore.NewMemCountStore(), nil, s)
	return NewQueue(nil, s, d, DefaultEscalationPolicy), s, push
}

func seedViolation(t *testing.T, s *store.Store, userID, scopeID string) *store.Violation {
	t.Helper()
	v := &store.Violation{
		UserID:           userID,
		ScopeID:          scopeID,
		Overall:          0.65,
		Action:           "escalate",
		HiddenFromOthers: true,
	}
	require.NoError(t, s.CreateViolation(context.Background(), v))
	return v
}

func TestEscalateIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	q, s, _ := testQueue(t)
	v := seedViolation(t, s, "user1", "stream1")

	first, err := q.Escalate(ctx, &store.ReviewItem{
		ViolationID: v.ID, UserID: "user1", Source: "chat_message", Category: "harassment", RiskScore: 0.65,
	})
	require.NoError(t, err)

	second, err := q.Escalate(ctx, &store.ReviewItem{
		ViolationID: v.ID, UserID: "user1", Source: "chat_message", Category: "harassment", RiskScore: 0.65,
	})
	require.NoError(t, err)
	assert.Equal(first.ID, second.ID)

	pending, err := q.List(ctx, store.ReviewPending)
	assert.NoError(err)
	assert.Len(pending, 1)
}

func TestModeratorDecisions(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	q, s, push := testQueue(t)
	v := seedViolation(t, s, "user1", "stream1")

	item, err := q.Escalate(ctx, &store.ReviewItem{ViolationID: v.ID, UserID: "user1", Category: "toxicity"})
	require.NoError(t, err)

	require.NoError(t, q.Approve(ctx, item.ID, "mod1", "looks fine"))
	got, err := s.GetReviewItem(ctx, item.ID)
	assert.NoError(err)
	assert.Equal(store.ReviewApproved, got.Status)
	assert.NotNil(got.ResolvedAt)
	assert.Equal(1, push.SentCount())

	// approval restores the content record to match the notification
	restored, err := s.GetViolation(ctx, v.ID)
	assert.NoError(err)
	assert.True(restored.Resolved)
	assert.False(restored.HiddenFromOthers)

	// approved is terminal
	err = q.Reject(ctx, item.ID, "mod2", "changed my mind")
	assert.ErrorIs(err, store.ErrConflict)
}

func TestModeratorTimeout(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	q, s, _ := testQueue(t)
	v := seedViolation(t, s, "user1", "stream1")

	item, err := q.Escalate(ctx, &store.ReviewItem{ViolationID: v.ID, UserID: "user1", Category: "toxicity"})
	require.NoError(t, err)

	// out of range rejected up front
	assert.ErrorIs(q.TimeoutUser(ctx, item.ID, "mod1", 4, ""), ErrInvalidDuration)
	assert.ErrorIs(q.TimeoutUser(ctx, item.ID, "mod1", 61, ""), ErrInvalidDuration)

	require.NoError(t, q.TimeoutUser(ctx, item.ID, "mod1", 30, "cool off"))

	restricted, err := s.HasActiveRestriction(ctx, "user1", "stream1", store.RestrictionTimeout, time.Now())
	assert.NoError(err)
	assert.True(restricted)
}

func TestEscalateToAdmin(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	q, s, _ := testQueue(t)

	// toxicity does not qualify under the default policy
	v1 := seedViolation(t, s, "user1", "stream1")
	item1, err := q.Escalate(ctx, &store.ReviewItem{ViolationID: v1.ID, UserID: "user1", Category: "toxicity"})
	require.NoError(t, err)
	_, err = q.EscalateToAdmin(ctx, item1.ID, "mod1", "not sure")
	assert.ErrorIs(err, ErrNotEscalatable)

	// hate speech does
	v2 := seedViolation(t, s, "user2", "stream1")
	item2, err := q.Escalate(ctx, &store.ReviewItem{ViolationID: v2.ID, UserID: "user2", Category: "hate-speech"})
	require.NoError(t, err)
	penalty, err := q.EscalateToAdmin(ctx, item2.ID, "mod1", "severe")
	require.NoError(t, err)
	assert.Equal("user2", penalty.UserID)
	assert.False(penalty.Active)

	got, err := s.GetReviewItem(ctx, item2.ID)
	assert.NoError(err)
	assert.Equal(store.ReviewEscalated, got.Status)
}

func TestEscalationPolicyPriorRejections(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ok, err := DefaultEscalationPolicy(ctx, "toxicity", 2)
	assert.NoError(err)
	assert.True(ok)

	ok, err = DefaultEscalationPolicy(ctx, "toxicity", 1)
	assert.NoError(err)
	assert.False(ok)
}

func TestSetBackedEscalationPolicy(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	sets := setstore.NewMemSetStore()
	policy := SetBackedEscalationPolicy(sets, "admin-escalation-categories")

	// unconfigured set falls back to the default category list
	ok, err := policy(ctx, "hate-speech", 0)
	assert.NoError(err)
	assert.True(ok)

	sets.Add("admin-escalation-categories", "doxxing")
	ok, err = policy(ctx, "doxxing", 0)
	assert.NoError(err)
	assert.True(ok)

	// configured set replaces the default list entirely
	ok, err = policy(ctx, "hate-speech", 0)
	assert.NoError(err)
	assert.False(ok)

	ok, err = policy(ctx, "toxicity", 2)
	assert.NoError(err)
	assert.True(ok)
}
