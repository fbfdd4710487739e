package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/streamtide/guardian/moderation/notify"
	"github.com/streamtide/guardian/moderation/setstore"
	"github.com/streamtide/guardian/moderation/store"
)

var (
	// ErrInvalidDuration rejects moderator timeouts outside [5,60] minutes.
	ErrInvalidDuration = errors.New("timeout duration must be between 5 and 60 minutes")
	// ErrNotEscalatable indicates the item's category does not qualify for
	// admin escalation under the configured policy.
	ErrNotEscalatable = errors.New("item does not qualify for admin escalation")
)

// Moderator timeout bounds, in minutes.
const (
	MinTimeoutMinutes = 5
	MaxTimeoutMinutes = 60
)

// AdminEscalationPolicy decides whether a review item may be routed to an
// admin. Pluggable so trigger categories can change without touching the
// queue state machine.
type AdminEscalationPolicy func(ctx context.Context, category string, priorRejections int) (bool, error)

// Queue is the moderator escalation queue. Items are created exactly once
// per violation; pending items resolve to approved or rejected, or branch
// to an admin via the escalated state.
type Queue struct {
	Logger   *slog.Logger
	Store    *store.Store
	Notifier *notify.Dispatcher
	// nil policy allows all escalations (admin tooling restricted upstream)
	EscalationPolicy AdminEscalationPolicy
}

func NewQueue(logger *slog.Logger, st *store.Store, notifier *notify.Dispatcher, policy AdminEscalationPolicy) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		Logger:           logger,
		Store:            st,
		Notifier:         notifier,
		EscalationPolicy: policy,
	}
}

// Escalate adds a violation to the queue. Idempotent per violation id:
// re-escalating returns the existing item and creates nothing.
func (q *Queue) Escalate(ctx context.Context, item *store.ReviewItem) (*store.ReviewItem, error) {
	item.Status = store.ReviewPending
	out, created, err := q.Store.CreateReviewItemIdempotent(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("enqueueing review item: %w", err)
	}
	if created {
		q.Logger.Info("violation escalated for review",
			"violationID", item.ViolationID, "userID", item.UserID, "category", item.Category, "riskScore", item.RiskScore)
		queueEscalatedCount.Inc()
	}
	return out, nil
}

// List returns queue items filtered by status ("" for all).
func (q *Queue) List(ctx context.Context, status string) ([]store.ReviewItem, error) {
	return q.Store.ListReviewItems(ctx, status)
}

// Approve resolves an item in the user's favor: the flagged content was
// acceptable, so the violation is marked resolved and unhidden.
func (q *Queue) Approve(ctx context.Context, itemID uint, moderatorID, notes string) error {
	item, err := q.Store.GetReviewItem(ctx, itemID)
	if err != nil {
		return err
	}
	if err := q.Store.TransitionReviewItem(ctx, itemID, store.ReviewApproved, moderatorID, notes, time.Now()); err != nil {
		return err
	}
	if err := q.Store.RestoreViolation(ctx, item.ViolationID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("restoring violation: %w", err)
	}
	queueResolvedCount.WithLabelValues(store.ReviewApproved).Inc()
	q.notifyDecision(ctx, item, "Your content was reviewed and restored.", false)
	return nil
}

// Reject resolves an item against the user: the content stays hidden.
func (q *Queue) Reject(ctx context.Context, itemID uint, moderatorID, notes string) error {
	item, err := q.Store.GetReviewItem(ctx, itemID)
	if err != nil {
		return err
	}
	if err := q.Store.TransitionReviewItem(ctx, itemID, store.ReviewRejected, moderatorID, notes, time.Now()); err != nil {
		return err
	}
	queueResolvedCount.WithLabelValues(store.ReviewRejected).Inc()
	q.notifyDecision(ctx, item, "A moderator reviewed your content and found it violates community guidelines.", false)
	return nil
}

// TimeoutUser rejects the item and additionally times the user out in the
// violation's scope for the given number of minutes.
func (q *Queue) TimeoutUser(ctx context.Context, itemID uint, moderatorID string, minutes int, notes string) error {
	if minutes < MinTimeoutMinutes || minutes > MaxTimeoutMinutes {
		return ErrInvalidDuration
	}
	item, err := q.Store.GetReviewItem(ctx, itemID)
	if err != nil {
		return err
	}
	if err := q.Store.TransitionReviewItem(ctx, itemID, store.ReviewRejected, moderatorID, notes, time.Now()); err != nil {
		return err
	}

	violation, err := q.Store.GetViolation(ctx, item.ViolationID)
	if err != nil {
		return fmt.Errorf("looking up violation for timeout scope: %w", err)
	}
	expires := time.Now().Add(time.Duration(minutes) * time.Minute)
	if err := q.Store.CreateRestriction(ctx, &store.ScopeRestriction{
		UserID:      item.UserID,
		ScopeID:     violation.ScopeID,
		Kind:        store.RestrictionTimeout,
		Reason:      notes,
		ExpiresAt:   &expires,
		Active:      true,
		ViolationID: &item.ViolationID,
	}); err != nil {
		return fmt.Errorf("persisting moderator timeout: %w", err)
	}
	queueResolvedCount.WithLabelValues(store.ReviewRejected).Inc()
	q.notifyDecision(ctx, item, fmt.Sprintf("A moderator timed you out for %d minutes.", minutes), false)
	return nil
}

// EscalateToAdmin branches a pending item to an admin: the item leaves
// the moderator's queue (terminal for them) and an admin penalty record
// is opened for adjudication.
func (q *Queue) EscalateToAdmin(ctx context.Context, itemID uint, moderatorID, reason string) (*store.AdminPenalty, error) {
	item, err := q.Store.GetReviewItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if q.EscalationPolicy != nil {
		rejections, err := q.Store.CountRejectedReviews(ctx, item.UserID)
		if err != nil {
			return nil, fmt.Errorf("counting prior rejections: %w", err)
		}
		ok, err := q.EscalationPolicy(ctx, item.Category, rejections)
		if err != nil {
			return nil, fmt.Errorf("evaluating escalation policy: %w", err)
		}
		if !ok {
			return nil, ErrNotEscalatable
		}
	}

	if err := q.Store.TransitionReviewItem(ctx, itemID, store.ReviewEscalated, moderatorID, reason, time.Now()); err != nil {
		return nil, err
	}

	penalty := &store.AdminPenalty{
		UserID:      item.UserID,
		Severity:    store.PenaltyTemporary,
		Category:    item.Category,
		Reason:      reason,
		IssuedBy:    moderatorID,
		Active:      false, // inactive until an admin adjudicates
		ViolationID: &item.ViolationID,
	}
	if err := q.Store.CreateAdminPenalty(ctx, penalty); err != nil {
		return nil, fmt.Errorf("opening admin penalty: %w", err)
	}
	q.Logger.Info("review item escalated to admin", "itemID", itemID, "userID", item.UserID, "category", item.Category)
	queueResolvedCount.WithLabelValues(store.ReviewEscalated).Inc()
	return penalty, nil
}

func (q *Queue) notifyDecision(ctx context.Context, item *store.ReviewItem, body string, critical bool) {
	if q.Notifier == nil {
		return
	}
	q.Notifier.Dispatch(ctx, &notify.Intent{
		UserID:   item.UserID,
		Type:     notify.TypeReviewDecision,
		Title:    "Moderation review decision",
		Body:     body,
		Payload:  map[string]string{"violationID": fmt.Sprint(item.ViolationID)},
		Critical: critical,
	})
}

// DefaultEscalationPolicy routes the severe trigger categories, or users
// with repeated prior rejections, to admins.
func DefaultEscalationPolicy(ctx context.Context, category string, priorRejections int) (bool, error) {
	if priorRejections >= 2 {
		return true, nil
	}
	switch category {
	case "hate-speech", "threat", "sexual-minors", "impersonation", "racism":
		return true, nil
	}
	return false, nil
}

// SetBackedEscalationPolicy reads the trigger categories from the named
// config set, falling back to the default list when the set is not
// configured.
func SetBackedEscalationPolicy(sets setstore.SetStore, name string) AdminEscalationPolicy {
	return func(ctx context.Context, category string, priorRejections int) (bool, error) {
		if priorRejections >= 2 {
			return true, nil
		}
		vals, err := sets.GetSet(ctx, name)
		if err != nil {
			return false, err
		}
		if len(vals) == 0 {
			return DefaultEscalationPolicy(ctx, category, priorRejections)
		}
		return sets.InSet(ctx, name, category)
	}
}
