package strikes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/streamtide/guardian/moderation/notify"
	"github.com/streamtide/guardian/moderation/store"
	"github.com/streamtide/guardian/moderation/util"
)

// Strike lifecycle constants. Level 4 never expires.
var (
	StrikeDecay       = 30 * 24 * time.Hour
	Level2Timeout     = 10 * time.Minute
	Level3BanDuration = 24 * time.Hour
	MaxLevel          = 4
)

// Ledger maintains per-(user, scope) strike history with 30-day decay.
// Strikes are scope-local: a strike in one creator's stream never
// restricts access to another creator's stream.
type Ledger struct {
	Logger   *slog.Logger
	Store    *store.Store
	Notifier *notify.Dispatcher

	// serializes strike reads-then-writes per (user, scope) pair, covering
	// both pipeline strikes and direct admin applyStrike calls
	Locks *util.KeyLock
}

func NewLedger(logger *slog.Logger, st *store.Store, notifier *notify.Dispatcher, locks *util.KeyLock) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	if locks == nil {
		locks = util.NewKeyLock()
	}
	return &Ledger{
		Logger:   logger,
		Store:    st,
		Notifier: notifier,
		Locks:    locks,
	}
}

func pairKey(userID, scopeID string) string {
	return userID + "/" + scopeID
}

// Apply issues a new strike for the pair. The new level is
// min(active-strike-count + 1, 4); side effects scale with the level:
// level 1 warns, level 2 applies a 10-minute scope timeout, level 3 a
// 24-hour scope ban, level 4 a permanent scope ban with no expiry.
func (l *Ledger) Apply(ctx context.Context, userID, scopeID, kind, reason string, issuedByAI bool, violationID *uint) (*store.Strike, error) {
	key := pairKey(userID, scopeID)
	l.Locks.Lock(key)
	defer l.Locks.Unlock(key)

	now := time.Now()
	count, err := l.Store.CountActiveStrikes(ctx, userID, scopeID, now)
	if err != nil {
		return nil, fmt.Errorf("counting active strikes: %w", err)
	}

	level := count + 1
	if level > MaxLevel {
		level = MaxLevel
	}

	strike := &store.Strike{
		UserID:      userID,
		ScopeID:     scopeID,
		Level:       level,
		Kind:        kind,
		Reason:      reason,
		IssuedByAI:  issuedByAI,
		Active:      true,
		ViolationID: violationID,
	}
	if level < MaxLevel {
		expires := now.Add(StrikeDecay)
		strike.ExpiresAt = &expires
	}
	if err := l.Store.CreateStrike(ctx, strike); err != nil {
		return nil, fmt.Errorf("persisting strike: %w", err)
	}

	if err := l.applySideEffects(ctx, strike, now); err != nil {
		// the strike row exists; surface the restriction failure loudly
		return strike, fmt.Errorf("applying strike side effects: %w", err)
	}

	l.Logger.Info("strike applied",
		"userID", userID, "scopeID", scopeID, "level", level, "kind", kind, "issuedByAI", issuedByAI)
	strikeAppliedCount.WithLabelValues(fmt.Sprint(level)).Inc()

	l.notifyStrike(ctx, strike)
	return strike, nil
}

func (l *Ledger) applySideEffects(ctx context.Context, strike *store.Strike, now time.Time) error {
	switch strike.Level {
	case 1:
		// warning only; the notification is the effect
		return nil
	case 2:
		expires := now.Add(Level2Timeout)
		return l.Store.CreateRestriction(ctx, &store.ScopeRestriction{
			UserID:    strike.UserID,
			ScopeID:   strike.ScopeID,
			Kind:      store.RestrictionTimeout,
			Reason:    strike.Reason,
			ExpiresAt: &expires,
			Active:    true,
			StrikeID:  &strike.ID,
		})
	case 3:
		expires := now.Add(Level3BanDuration)
		return l.Store.CreateRestriction(ctx, &store.ScopeRestriction{
			UserID:    strike.UserID,
			ScopeID:   strike.ScopeID,
			Kind:      store.RestrictionBan,
			Reason:    strike.Reason,
			ExpiresAt: &expires,
			Active:    true,
			StrikeID:  &strike.ID,
		})
	default:
		// permanent scope ban, no expiry
		return l.Store.CreateRestriction(ctx, &store.ScopeRestriction{
			UserID:   strike.UserID,
			ScopeID:  strike.ScopeID,
			Kind:     store.RestrictionBan,
			Reason:   strike.Reason,
			Active:   true,
			StrikeID: &strike.ID,
		})
	}
}

func (l *Ledger) notifyStrike(ctx context.Context, strike *store.Strike) {
	if l.Notifier == nil {
		return
	}
	var body string
	switch strike.Level {
	case 1:
		body = "You received a warning for violating community guidelines."
	case 2:
		body = "Second strike: you are timed out in this channel for 10 minutes."
	case 3:
		body = "Third strike: you are banned from this channel for 24 hours."
	default:
		body = "You are permanently banned from this channel."
	}
	l.Notifier.Dispatch(ctx, &notify.Intent{
		UserID:   strike.UserID,
		Type:     notify.TypeStrike,
		Title:    fmt.Sprintf("Community guidelines strike (level %d)", strike.Level),
		Body:     body,
		Payload:  map[string]string{"scopeID": strike.ScopeID, "reason": strike.Reason},
		Critical: strike.Level >= 3,
	})
}

// IsBanned reports whether the pair is currently banned: any level-4
// strike, or a level-3 strike whose expiry is still in the future.
func (l *Ledger) IsBanned(ctx context.Context, userID, scopeID string) (bool, error) {
	return l.Store.HasBanningStrike(ctx, userID, scopeID, time.Now())
}

// Deactivate removes a strike and lifts the restrictions it created.
// Only the appeal resolver and explicit admin actions call this.
func (l *Ledger) Deactivate(ctx context.Context, strikeID uint) error {
	strike, err := l.Store.GetStrike(ctx, strikeID)
	if err != nil {
		return err
	}
	key := pairKey(strike.UserID, strike.ScopeID)
	l.Locks.Lock(key)
	defer l.Locks.Unlock(key)

	if err := l.Store.DeactivateStrike(ctx, strikeID); err != nil {
		return err
	}
	if err := l.Store.LiftRestrictionsForStrike(ctx, strikeID); err != nil {
		return err
	}
	l.Logger.Info("strike deactivated", "strikeID", strikeID, "userID", strike.UserID, "scopeID", strike.ScopeID)
	return nil
}

// DeactivateForViolation removes every active strike issued for the
// violation. Penalties opened from the review queue carry only a
// violation reference, so appeal reversal resolves strikes through it.
func (l *Ledger) DeactivateForViolation(ctx context.Context, violationID uint) error {
	active, err := l.Store.ListActiveStrikesForViolation(ctx, violationID)
	if err != nil {
		return err
	}
	for _, strike := range active {
		if err := l.Deactivate(ctx, strike.ID); err != nil && !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("deactivating strike %d: %w", strike.ID, err)
		}
	}
	return nil
}
