package store

import (
	"context"
	"time"
)

func (s *Store) CreateMassReportEvent(ctx context.Context, e *MassReportEvent) error {
	return s.DB.WithContext(ctx).Create(e).Error
}

func (s *Store) GetMassReportEvent(ctx context.Context, id uint) (*MassReportEvent, error) {
	var e MassReportEvent
	if err := s.DB.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &e, nil
}

// UnresolvedMassReport returns the stream's active lockdown event, or nil.
func (s *Store) UnresolvedMassReport(ctx context.Context, streamID string) (*MassReportEvent, error) {
	var e MassReportEvent
	err := s.DB.WithContext(ctx).
		Where("stream_id = ? AND resolved_at IS NULL", streamID).
		First(&e).Error
	if err != nil {
		if translateErr(err) == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// AcknowledgeMassReport resolves a lockdown; only the explicit creator
// acknowledgement path calls this. CAS on resolved_at being null.
func (s *Store) AcknowledgeMassReport(ctx context.Context, id uint, now time.Time) error {
	res := s.DB.WithContext(ctx).Model(&MassReportEvent{}).
		Where("id = ? AND resolved_at IS NULL", id).
		Updates(map[string]any{
			"acknowledged": true,
			"resolved_at":  now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// UpdateMassReportCount bumps the stored report count for an active event.
func (s *Store) UpdateMassReportCount(ctx context.Context, id uint, count int) error {
	return s.DB.WithContext(ctx).Model(&MassReportEvent{}).
		Where("id = ? AND resolved_at IS NULL", id).
		Update("report_count", count).Error
}
