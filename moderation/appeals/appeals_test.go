package appeals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamtide/guardian/moderation/cachestore"
	"github.com/streamtide/guardian/moderation/countstore"
	"github.com/streamtide/guardian/moderation/notify"
	"github.com/streamtide/guardian/moderation/setstore"
	"github.com/streamtide/guardian/moderation/store"
	"github.com/streamtide/guardian/moderation/strikes"
	"github.com/streamtide/guardian/moderation/util"
)

type fixture struct {
	store    *store.Store
	sets     *setstore.MemSetStore
	ledger   *strikes.Ledger
	resolver *Resolver
	push     *notify.MockSender
	inbox    *notify.MockInbox
}

func testResolver(t *testing.T) *fixture {
	t.Helper()
	st := store.TestStore(t)
	push := &notify.MockSender{}
	inbox := &notify.MockInbox{}
	dispatcher := notify.NewDispatcher(nil, push, inbox, countstore.NewMemCountStore(), cachestore.NewMemCacheStore(100, time.Minute), st)
	ledger := strikes.NewLedger(nil, st, dispatcher, util.NewKeyLock())
	sets := setstore.NewMemSetStore()
	sets.Add(NonAppealableSet, "sexual-minors", "terrorism")
	return &fixture{
		store:    st,
		sets:     sets,
		ledger:   ledger,
		resolver: NewResolver(nil, st, sets, ledger, dispatcher),
		push:     push,
		inbox:    inbox,
	}
}

func (f *fixture) penalty(t *testing.T, p *store.AdminPenalty) *store.AdminPenalty {
	t.Helper()
	require.NoError(t, f.store.CreateAdminPenalty(context.TODO(), p))
	return p
}

func TestSubmitValidation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	f := testResolver(t)

	p := f.penalty(t, &store.AdminPenalty{UserID: "user-1", Severity: store.PenaltyTemporary, Category: "harassment", Active: true})

	_, err := f.resolver.Submit(ctx, "user-1", p.ID, "unfair", "")
	assert.ErrorIs(err, ErrReasonTooShort)

	_, err = f.resolver.Submit(ctx, "user-2", p.ID, "this penalty was a mistake", "")
	assert.ErrorIs(err, ErrNotOwner)

	blocked := f.penalty(t, &store.AdminPenalty{UserID: "user-1", Severity: store.PenaltyPermanent, Category: "terrorism", Active: true})
	_, err = f.resolver.Submit(ctx, "user-1", blocked.ID, "this penalty was a mistake", "")
	assert.ErrorIs(err, ErrNotAppealable)

	appeal, err := f.resolver.Submit(ctx, "user-1", p.ID, "this penalty was a mistake", "chat log attached")
	assert.NoError(err)
	assert.Equal(store.AppealPending, appeal.Status)

	_, err = f.resolver.Submit(ctx, "user-1", p.ID, "filing again while the first is open", "")
	assert.ErrorIs(err, ErrDuplicateAppeal)
}

func TestResubmitAfterDenial(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	f := testResolver(t)

	p := f.penalty(t, &store.AdminPenalty{UserID: "user-1", Severity: store.PenaltyTemporary, Category: "spam", Active: true})

	first, err := f.resolver.Submit(ctx, "user-1", p.ID, "automated filter misfired", "")
	assert.NoError(err)
	assert.NoError(f.resolver.Deny(ctx, first.ID, "admin-1", "penalty stands"))

	denied, err := f.store.GetAppeal(ctx, first.ID)
	assert.NoError(err)
	assert.Equal(store.AppealDenied, denied.Status)
	assert.Equal("admin-1", denied.ReviewerID)

	second, err := f.resolver.Submit(ctx, "user-1", p.ID, "new evidence since last time", "")
	assert.NoError(err)
	assert.NotEqual(first.ID, second.ID)
}

func TestAcceptReversesBan(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	f := testResolver(t)

	for i := 0; i < 2; i++ {
		_, err := f.ledger.Apply(ctx, "user-1", "stream-1", "harassment", "repeat offense", true, nil)
		assert.NoError(err)
	}
	strike, err := f.ledger.Apply(ctx, "user-1", "stream-1", "harassment", "repeat offense", true, nil)
	assert.NoError(err)
	assert.Equal(3, strike.Level)

	banned, err := f.ledger.IsBanned(ctx, "user-1", "stream-1")
	assert.NoError(err)
	assert.True(banned)

	v := &store.Violation{UserID: "user-1", ScopeID: "stream-1", ScopeKind: store.ScopeKindStream, Category: "harassment"}
	assert.NoError(f.store.CreateViolation(ctx, v))
	p := f.penalty(t, &store.AdminPenalty{
		UserID:      "user-1",
		Severity:    store.PenaltyTemporary,
		Category:    "harassment",
		Active:      true,
		StrikeID:    &strike.ID,
		ViolationID: &v.ID,
	})

	appeal, err := f.resolver.Submit(ctx, "user-1", p.ID, "context shows this was banter between friends", "")
	assert.NoError(err)
	assert.NoError(f.resolver.Accept(ctx, appeal.ID, "admin-1", "reviewed the vod, agreed"))

	banned, err = f.ledger.IsBanned(ctx, "user-1", "stream-1")
	assert.NoError(err)
	assert.False(banned)

	got, err := f.store.GetAdminPenalty(ctx, p.ID)
	assert.NoError(err)
	assert.False(got.Active)

	gotStrike, err := f.store.GetStrike(ctx, strike.ID)
	assert.NoError(err)
	assert.False(gotStrike.Active)

	gotViolation, err := f.store.GetViolation(ctx, v.ID)
	assert.NoError(err)
	assert.True(gotViolation.Resolved)

	resolved, err := f.store.GetAppeal(ctx, appeal.ID)
	assert.NoError(err)
	assert.Equal(store.AppealApproved, resolved.Status)
	assert.NotNil(resolved.ResolvedAt)

	assert.Contains(lastInboxTitle(f.inbox), "approved")
}

func TestAcceptReversesEscalatedPenalty(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	f := testResolver(t)

	v := &store.Violation{UserID: "user-1", ScopeID: "stream-1", ScopeKind: store.ScopeKindStream, Category: "harassment"}
	require.NoError(t, f.store.CreateViolation(ctx, v))

	var strike *store.Strike
	for i := 0; i < 3; i++ {
		var err error
		strike, err = f.ledger.Apply(ctx, "user-1", "stream-1", "harassment", "repeat offense", true, &v.ID)
		require.NoError(t, err)
	}
	banned, err := f.ledger.IsBanned(ctx, "user-1", "stream-1")
	assert.NoError(err)
	assert.True(banned)

	// the shape a review-queue escalation opens: a violation link but no
	// strike id
	p := f.penalty(t, &store.AdminPenalty{
		UserID:      "user-1",
		Severity:    store.PenaltyTemporary,
		Category:    "harassment",
		IssuedBy:    "mod-1",
		Active:      false,
		ViolationID: &v.ID,
	})

	appeal, err := f.resolver.Submit(ctx, "user-1", p.ID, "the reported messages were taken out of context", "")
	assert.NoError(err)
	assert.NoError(f.resolver.Accept(ctx, appeal.ID, "admin-1", "agreed on review"))

	banned, err = f.ledger.IsBanned(ctx, "user-1", "stream-1")
	assert.NoError(err)
	assert.False(banned)

	gotStrike, err := f.store.GetStrike(ctx, strike.ID)
	assert.NoError(err)
	assert.False(gotStrike.Active)

	gotViolation, err := f.store.GetViolation(ctx, v.ID)
	assert.NoError(err)
	assert.True(gotViolation.Resolved)
}

func TestAcceptFailureLeavesAppealPending(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	f := testResolver(t)

	bogus := uint(9999)
	p := f.penalty(t, &store.AdminPenalty{
		UserID:   "user-1",
		Severity: store.PenaltyTemporary,
		Category: "harassment",
		Active:   true,
		StrikeID: &bogus,
	})

	appeal, err := f.resolver.Submit(ctx, "user-1", p.ID, "this penalty should not exist", "")
	assert.NoError(err)

	// a failing reversal step must not terminally approve the appeal
	assert.Error(f.resolver.Accept(ctx, appeal.ID, "admin-1", "approving"))
	got, err := f.store.GetAppeal(ctx, appeal.ID)
	assert.NoError(err)
	assert.Equal(store.AppealPending, got.Status)

	// once the bad reference is repaired the retry goes through
	require.NoError(t, f.store.DB.Model(&store.AdminPenalty{}).Where("id = ?", p.ID).Update("strike_id", nil).Error)
	assert.NoError(f.resolver.Accept(ctx, appeal.ID, "admin-1", "approving"))
	got, err = f.store.GetAppeal(ctx, appeal.ID)
	assert.NoError(err)
	assert.Equal(store.AppealApproved, got.Status)
}

func TestResolutionIsTerminal(t *testing.T) {
	assert := assert.New(t)
	ctx := context.TODO()
	f := testResolver(t)

	p := f.penalty(t, &store.AdminPenalty{UserID: "user-1", Severity: store.PenaltyTemporary, Category: "spam", Active: true})
	appeal, err := f.resolver.Submit(ctx, "user-1", p.ID, "this was clearly not spam", "")
	assert.NoError(err)

	assert.NoError(f.resolver.Deny(ctx, appeal.ID, "admin-1", "penalty stands"))
	assert.ErrorIs(f.resolver.Accept(ctx, appeal.ID, "admin-2", "changed my mind"), store.ErrConflict)

	got, err := f.store.GetAppeal(ctx, appeal.ID)
	assert.NoError(err)
	assert.Equal(store.AppealDenied, got.Status)
}

func lastInboxTitle(inbox *notify.MockInbox) string {
	if len(inbox.Messages) == 0 {
		return ""
	}
	return inbox.Messages[len(inbox.Messages)-1].Title
}
