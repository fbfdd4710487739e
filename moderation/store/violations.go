package store

import (
	"context"
	"time"
)

func (s *Store) CreateViolation(ctx context.Context, v *Violation) error {
	return s.DB.WithContext(ctx).Create(v).Error
}

func (s *Store) GetViolation(ctx context.Context, id uint) (*Violation, error) {
	var v Violation
	if err := s.DB.WithContext(ctx).First(&v, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &v, nil
}

// ListViolationsSince returns violations for a user created at or after
// the given time, newest first.
func (s *Store) ListViolationsSince(ctx context.Context, userID string, since time.Time) ([]Violation, error) {
	var out []Violation
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// MarkViolationResolved is only called on appeal approval.
func (s *Store) MarkViolationResolved(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Model(&Violation{}).
		Where("id = ?", id).
		Update("resolved", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RestoreViolation resolves the violation and clears the hidden marker;
// called when a moderator rules the content acceptable.
func (s *Store) RestoreViolation(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Model(&Violation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"resolved":           true,
			"hidden_from_others": false,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteViolation is an admin-only operation; the row is retained
// with a deletion marker for audit.
func (s *Store) SoftDeleteViolation(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&Violation{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
