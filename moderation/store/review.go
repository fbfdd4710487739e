package store

import (
	"context"
	"time"

	"gorm.io/gorm/clause"
)

// CreateReviewItemIdempotent inserts a queue item for a violation, or
// returns the existing item if one was already created (unique index on
// violation_id plus on-conflict-do-nothing). Re-escalating the same
// violation never produces a duplicate pending entry.
func (s *Store) CreateReviewItemIdempotent(ctx context.Context, item *ReviewItem) (*ReviewItem, bool, error) {
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "violation_id"}},
			DoNothing: true,
		}).
		Create(item)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return item, true, nil
	}
	var existing ReviewItem
	if err := s.DB.WithContext(ctx).Where("violation_id = ?", item.ViolationID).First(&existing).Error; err != nil {
		return nil, false, translateErr(err)
	}
	return &existing, false, nil
}

func (s *Store) GetReviewItem(ctx context.Context, id uint) (*ReviewItem, error) {
	var item ReviewItem
	if err := s.DB.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &item, nil
}

// ListReviewItems returns queue items, optionally filtered by status,
// oldest first (moderators work the queue in arrival order).
func (s *Store) ListReviewItems(ctx context.Context, status string) ([]ReviewItem, error) {
	q := s.DB.WithContext(ctx).Order("created_at asc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []ReviewItem
	err := q.Find(&out).Error
	return out, err
}

// TransitionReviewItem moves an item from pending to a resolution state.
// The status predicate is the compare-and-swap: a concurrent moderator
// decision makes this return ErrConflict rather than double-resolving.
func (s *Store) TransitionReviewItem(ctx context.Context, id uint, to, moderatorID, notes string, now time.Time) error {
	res := s.DB.WithContext(ctx).Model(&ReviewItem{}).
		Where("id = ? AND status = ?", id, ReviewPending).
		Updates(map[string]any{
			"status":      to,
			"assigned_to": moderatorID,
			"notes":       notes,
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

// PruneResolvedReviews hard-deletes resolved queue items older than the
// cutoff. The linked Violation rows are the durable audit record, so
// old queue entries can go.
func (s *Store) PruneResolvedReviews(ctx context.Context, before time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("status != ? AND resolved_at IS NOT NULL AND resolved_at < ?", ReviewPending, before).
		Delete(&ReviewItem{})
	return res.RowsAffected, res.Error
}

// CountRejectedReviews counts prior rejected items for a user, used by
// the admin-escalation predicate.
func (s *Store) CountRejectedReviews(ctx context.Context, userID string) (int, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&ReviewItem{}).
		Where("user_id = ? AND status = ?", userID, ReviewRejected).
		Count(&count).Error
	return int(count), err
}
