package store

import (
	"context"

	"gorm.io/gorm/clause"
)

// GetNotificationPref returns the user's preferences, or a zero-value
// pref (no quiet hours) if none are stored.
func (s *Store) GetNotificationPref(ctx context.Context, userID string) (*NotificationPref, error) {
	var p NotificationPref
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		if translateErr(err) == ErrNotFound {
			return &NotificationPref{UserID: userID}, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) SetNotificationPref(ctx context.Context, p *NotificationPref) error {
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(p).Error
}
