package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrDuplicatePendingAppeal indicates a pending appeal already exists for
// the penalty. Surfaced as a validation rejection, not a new row.
var ErrDuplicatePendingAppeal = errors.New("a pending appeal already exists for this penalty")

// CreateAppealIfNonePending inserts the appeal inside a transaction which
// first checks for an existing pending appeal on the same penalty. The
// transaction makes the check-then-insert atomic against a concurrent
// duplicate submission.
func (s *Store) CreateAppealIfNonePending(ctx context.Context, appeal *Appeal) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Appeal{}).
			Where("penalty_id = ? AND status = ?", appeal.PenaltyID, AppealPending).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicatePendingAppeal
		}
		return tx.Create(appeal).Error
	})
}

func (s *Store) GetAppeal(ctx context.Context, id uint) (*Appeal, error) {
	var a Appeal
	if err := s.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &a, nil
}

func (s *Store) ListAppeals(ctx context.Context, status string) ([]Appeal, error) {
	q := s.DB.WithContext(ctx).Order("created_at asc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []Appeal
	err := q.Find(&out).Error
	return out, err
}

// TransitionAppeal moves an appeal from pending to a terminal state. CAS
// on status: a concurrent resolution returns ErrConflict.
func (s *Store) TransitionAppeal(ctx context.Context, id uint, to, reviewerID, resolution string, now time.Time) error {
	res := s.DB.WithContext(ctx).Model(&Appeal{}).
		Where("id = ? AND status = ?", id, AppealPending).
		Updates(map[string]any{
			"status":      to,
			"reviewer_id": reviewerID,
			"resolution":  resolution,
			"resolved_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
