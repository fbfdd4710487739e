package store

import (
	"context"
	"time"
)

func (s *Store) CreateAdminPenalty(ctx context.Context, p *AdminPenalty) error {
	return s.DB.WithContext(ctx).Create(p).Error
}

func (s *Store) GetAdminPenalty(ctx context.Context, id uint) (*AdminPenalty, error) {
	var p AdminPenalty
	if err := s.DB.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &p, nil
}

// DeactivatePenalty is called by the expiry sweep and by appeal approval.
// CAS on the active flag so double-deactivation is detectable.
func (s *Store) DeactivatePenalty(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Model(&AdminPenalty{}).
		Where("id = ? AND active = ?", id, true).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// ExpirePenalties deactivates temporary penalties whose expiry has
// passed. Run by the periodic sweep.
func (s *Store) ExpirePenalties(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&AdminPenalty{}).
		Where("active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		Update("active", false)
	return res.RowsAffected, res.Error
}
