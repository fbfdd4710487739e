package appeals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/streamtide/guardian/moderation/notify"
	"github.com/streamtide/guardian/moderation/setstore"
	"github.com/streamtide/guardian/moderation/store"
	"github.com/streamtide/guardian/moderation/strikes"
)

var (
	// ErrReasonTooShort rejects appeals without a substantive reason.
	ErrReasonTooShort = errors.New("appeal reason must be at least 10 characters")
	// ErrNotAppealable marks penalties in a hard-denylisted category as
	// terminally non-appealable; this is a policy rejection, not a
	// transient failure.
	ErrNotAppealable = errors.New("this penalty is not appealable")
	// ErrDuplicateAppeal re-exports the store-level duplicate rejection.
	ErrDuplicateAppeal = store.ErrDuplicatePendingAppeal
	// ErrNotOwner rejects appeals filed against another user's penalty.
	ErrNotOwner = errors.New("penalty does not belong to this user")
)

const MinReasonLength = 10

// set consulted for hard-denylisted penalty categories
const NonAppealableSet = "non-appealable-categories"

// Resolver owns the appeal workflow and is the only writer permitted to
// reverse strike and penalty state.
type Resolver struct {
	Logger   *slog.Logger
	Store    *store.Store
	Sets     setstore.SetStore
	Strikes  *strikes.Ledger
	Notifier *notify.Dispatcher
}

func NewResolver(logger *slog.Logger, st *store.Store, sets setstore.SetStore, ledger *strikes.Ledger, notifier *notify.Dispatcher) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		Logger:   logger,
		Store:    st,
		Sets:     sets,
		Strikes:  ledger,
		Notifier: notifier,
	}
}

// Submit files an appeal against a penalty. Rejected synchronously when
// the reason is too short, the penalty's category is non-appealable, or
// a pending appeal already exists for the penalty.
func (r *Resolver) Submit(ctx context.Context, userID string, penaltyID uint, reason, evidence string) (*store.Appeal, error) {
	if utf8.RuneCountInString(reason) < MinReasonLength {
		return nil, ErrReasonTooShort
	}

	penalty, err := r.Store.GetAdminPenalty(ctx, penaltyID)
	if err != nil {
		return nil, err
	}
	if penalty.UserID != userID {
		return nil, ErrNotOwner
	}

	if r.Sets != nil && penalty.Category != "" {
		blocked, err := r.Sets.InSet(ctx, NonAppealableSet, penalty.Category)
		if err != nil {
			return nil, fmt.Errorf("checking appealability: %w", err)
		}
		if blocked {
			return nil, ErrNotAppealable
		}
	}

	appeal := &store.Appeal{
		UserID:    userID,
		PenaltyID: penaltyID,
		Reason:    reason,
		Evidence:  evidence,
		Status:    store.AppealPending,
	}
	if err := r.Store.CreateAppealIfNonePending(ctx, appeal); err != nil {
		return nil, err
	}
	r.Logger.Info("appeal submitted", "userID", userID, "penaltyID", penaltyID, "appealID", appeal.ID)
	appealSubmittedCount.Inc()
	return appeal, nil
}

// Accept approves a pending appeal and reverses the enforcement it
// covers: the penalty is deactivated, any linked strikes deactivated
// (and their restrictions lifted), and the linked violation marked
// resolved. The reversal runs before the terminal status transition so a
// reversal failure leaves the appeal pending and retriable; every
// reversal step is idempotent.
func (r *Resolver) Accept(ctx context.Context, appealID uint, adminID, message string) error {
	appeal, err := r.Store.GetAppeal(ctx, appealID)
	if err != nil {
		return err
	}
	if appeal.Status != store.AppealPending {
		return store.ErrConflict
	}

	penalty, err := r.Store.GetAdminPenalty(ctx, appeal.PenaltyID)
	if err != nil {
		return fmt.Errorf("loading penalty for reversal: %w", err)
	}
	if penalty.Active {
		if err := r.Store.DeactivatePenalty(ctx, penalty.ID); err != nil && !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("deactivating penalty: %w", err)
		}
	}
	if penalty.StrikeID != nil {
		if err := r.Strikes.Deactivate(ctx, *penalty.StrikeID); err != nil && !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("deactivating strike: %w", err)
		}
	}
	if penalty.ViolationID != nil {
		violation, err := r.Store.GetViolation(ctx, *penalty.ViolationID)
		if err == nil {
			// review-escalated penalties carry no strike id, so any
			// strikes issued for the violation are reversed through it
			if err := r.Strikes.DeactivateForViolation(ctx, violation.ID); err != nil {
				return fmt.Errorf("deactivating strikes for violation: %w", err)
			}
			if err := r.Store.MarkViolationResolved(ctx, violation.ID); err != nil {
				return fmt.Errorf("resolving violation: %w", err)
			}
			if err := r.Store.LiftRestrictions(ctx, violation.UserID, violation.ScopeID); err != nil {
				return fmt.Errorf("lifting restrictions: %w", err)
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}

	if err := r.Store.TransitionAppeal(ctx, appealID, store.AppealApproved, adminID, message, time.Now()); err != nil {
		return err
	}

	r.Logger.Info("appeal accepted", "appealID", appealID, "penaltyID", appeal.PenaltyID, "adminID", adminID)
	appealResolvedCount.WithLabelValues(store.AppealApproved).Inc()
	r.notifyResult(ctx, appeal.UserID, "Appeal approved", message)
	return nil
}

// Deny closes a pending appeal with no state change beyond the status
// and a resolution message to the user.
func (r *Resolver) Deny(ctx context.Context, appealID uint, adminID, message string) error {
	appeal, err := r.Store.GetAppeal(ctx, appealID)
	if err != nil {
		return err
	}
	if err := r.Store.TransitionAppeal(ctx, appealID, store.AppealDenied, adminID, message, time.Now()); err != nil {
		return err
	}
	r.Logger.Info("appeal denied", "appealID", appealID, "penaltyID", appeal.PenaltyID, "adminID", adminID)
	appealResolvedCount.WithLabelValues(store.AppealDenied).Inc()
	r.notifyResult(ctx, appeal.UserID, "Appeal denied", message)
	return nil
}

func (r *Resolver) notifyResult(ctx context.Context, userID, title, message string) {
	if r.Notifier == nil {
		return
	}
	r.Notifier.Dispatch(ctx, &notify.Intent{
		UserID: userID,
		Type:   notify.TypeAppealResult,
		Title:  title,
		Body:   message,
	})
}
