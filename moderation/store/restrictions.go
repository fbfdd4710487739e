package store

import (
	"context"
	"time"
)

func (s *Store) CreateRestriction(ctx context.Context, r *ScopeRestriction) error {
	return s.DB.WithContext(ctx).Create(r).Error
}

// HasActiveRestriction reports whether any active, unexpired restriction
// of the given kind exists for the (user, scope) pair.
func (s *Store) HasActiveRestriction(ctx context.Context, userID, scopeID, kind string, now time.Time) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&ScopeRestriction{}).
		Where("user_id = ? AND scope_id = ? AND kind = ? AND active = ?", userID, scopeID, kind, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Count(&count).Error
	return count > 0, err
}

// LiftRestrictions deactivates all active restrictions for the pair;
// called on appeal approval.
func (s *Store) LiftRestrictions(ctx context.Context, userID, scopeID string) error {
	return s.DB.WithContext(ctx).Model(&ScopeRestriction{}).
		Where("user_id = ? AND scope_id = ? AND active = ?", userID, scopeID, true).
		Update("active", false).Error
}

// LiftRestrictionsForStrike deactivates restrictions created by one
// specific strike.
func (s *Store) LiftRestrictionsForStrike(ctx context.Context, strikeID uint) error {
	return s.DB.WithContext(ctx).Model(&ScopeRestriction{}).
		Where("strike_id = ? AND active = ?", strikeID, true).
		Update("active", false).Error
}

// ExpireRestrictions deactivates restrictions whose expiry has passed.
// Run by the periodic sweep.
func (s *Store) ExpireRestrictions(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&ScopeRestriction{}).
		Where("active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		Update("active", false)
	return res.RowsAffected, res.Error
}
