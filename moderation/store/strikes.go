package store

import (
	"context"
	"time"
)

func (s *Store) CreateStrike(ctx context.Context, strike *Strike) error {
	return s.DB.WithContext(ctx).Create(strike).Error
}

func (s *Store) GetStrike(ctx context.Context, id uint) (*Strike, error) {
	var strike Strike
	if err := s.DB.WithContext(ctx).First(&strike, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &strike, nil
}

// CountActiveStrikes counts non-expired, non-deactivated strikes for the
// (user, scope) pair. A null expires_at means permanent.
func (s *Store) CountActiveStrikes(ctx context.Context, userID, scopeID string, now time.Time) (int, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&Strike{}).
		Where("user_id = ? AND scope_id = ? AND active = ?", userID, scopeID, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Count(&count).Error
	return int(count), err
}

// HasBanningStrike reports whether the pair has a level-4 strike, or a
// level-3 strike whose expiry is still in the future. Strikes are
// scope-local: no other (user, scope) pair is consulted.
func (s *Store) HasBanningStrike(ctx context.Context, userID, scopeID string, now time.Time) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&Strike{}).
		Where("user_id = ? AND scope_id = ? AND active = ?", userID, scopeID, true).
		Where("level = 4 OR (level = 3 AND expires_at > ?)", now).
		Count(&count).Error
	return count > 0, err
}

// ListActiveStrikesForViolation returns active strikes issued for the
// given violation. Used by appeal reversal, which receives a violation
// reference rather than a strike id on moderator-escalated penalties.
func (s *Store) ListActiveStrikesForViolation(ctx context.Context, violationID uint) ([]Strike, error) {
	var out []Strike
	err := s.DB.WithContext(ctx).
		Where("violation_id = ? AND active = ?", violationID, true).
		Find(&out).Error
	return out, err
}

// DeactivateStrike removes a strike from consideration; only reachable
// via an explicit admin or appeal action.
func (s *Store) DeactivateStrike(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Model(&Strike{}).
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
