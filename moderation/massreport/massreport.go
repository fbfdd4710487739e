package massreport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/streamtide/guardian/moderation/countstore"
	"github.com/streamtide/guardian/moderation/flagstore"
	"github.com/streamtide/guardian/moderation/notify"
	"github.com/streamtide/guardian/moderation/store"
	"github.com/streamtide/guardian/moderation/util"
)

const (
	// ReportThreshold is the number of unique reporters inside one window
	// which trips a lockdown.
	ReportThreshold = 15
	// ReportWindow is the sliding-bucket length for reporter counting.
	ReportWindow = 60 * time.Second

	// FlagChatHidden marks a stream whose chat is hidden pending creator
	// acknowledgement.
	FlagChatHidden = "chat-hidden"

	countReporters = "stream-reporters"
)

var ErrNotLockedDown = errors.New("stream has no active lockdown")

// Detector watches per-stream report volume and trips a one-shot chat
// lockdown when too many distinct reporters pile on within the window.
type Detector struct {
	Logger   *slog.Logger
	Store    *store.Store
	Counters countstore.CountStore
	Flags    flagstore.FlagStore
	Notifier *notify.Dispatcher

	// serializes lockdown creation per stream so the threshold crossing
	// produces exactly one event
	locks *util.KeyLock
}

func NewDetector(logger *slog.Logger, st *store.Store, counters countstore.CountStore, flags flagstore.FlagStore, notifier *notify.Dispatcher) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		Logger:   logger,
		Store:    st,
		Counters: counters,
		Flags:    flags,
		Notifier: notifier,
		locks:    util.NewKeyLock(),
	}
}

// RecordReport counts one report against a stream. Repeat reports from
// the same reporter within the window are counted once. Crossing the
// threshold locks the stream down; further reports against an already
// locked stream only bump the stored count.
func (d *Detector) RecordReport(ctx context.Context, streamID, creatorID, reporterID string) (*store.MassReportEvent, error) {
	count, err := d.Counters.IncrementDistinct(ctx, countReporters, streamID, reporterID, ReportWindow)
	if err != nil {
		return nil, fmt.Errorf("counting reporters: %w", err)
	}
	reportRecordedCount.Inc()
	if count < ReportThreshold {
		return nil, nil
	}

	d.locks.Lock(streamID)
	defer d.locks.Unlock(streamID)

	existing, err := d.Store.UnresolvedMassReport(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if count > existing.ReportCount {
			if err := d.Store.UpdateMassReportCount(ctx, existing.ID, count); err != nil {
				d.Logger.Warn("failed updating lockdown report count", "streamID", streamID, "err", err)
			}
		}
		return existing, nil
	}

	event := &store.MassReportEvent{
		StreamID:    streamID,
		CreatorID:   creatorID,
		ReportCount: count,
		TriggeredAt: time.Now(),
	}
	if err := d.Store.CreateMassReportEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("recording lockdown: %w", err)
	}
	if err := d.Flags.Add(ctx, streamKey(streamID), []string{FlagChatHidden}); err != nil {
		return nil, fmt.Errorf("hiding chat: %w", err)
	}

	d.Logger.Warn("mass-report lockdown triggered", "streamID", streamID, "creatorID", creatorID, "reporters", count)
	lockdownTriggeredCount.Inc()
	d.notifyCreator(ctx, event)
	return event, nil
}

// ChatHidden reports whether the stream's chat is currently hidden by a
// lockdown.
func (d *Detector) ChatHidden(ctx context.Context, streamID string) (bool, error) {
	return d.Flags.Has(ctx, streamKey(streamID), FlagChatHidden)
}

// Check returns the stream's active lockdown event, or nil.
func (d *Detector) Check(ctx context.Context, streamID string) (*store.MassReportEvent, error) {
	return d.Store.UnresolvedMassReport(ctx, streamID)
}

// Acknowledge resolves a lockdown on the creator's explicit action and
// un-hides the chat. Lockdowns never time out on their own.
func (d *Detector) Acknowledge(ctx context.Context, eventID uint) error {
	event, err := d.Store.GetMassReportEvent(ctx, eventID)
	if err != nil {
		return err
	}

	d.locks.Lock(event.StreamID)
	defer d.locks.Unlock(event.StreamID)

	if err := d.Store.AcknowledgeMassReport(ctx, eventID, time.Now()); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrNotLockedDown
		}
		return err
	}
	if err := d.Flags.Remove(ctx, streamKey(event.StreamID), []string{FlagChatHidden}); err != nil {
		return fmt.Errorf("unhiding chat: %w", err)
	}
	d.Logger.Info("mass-report lockdown acknowledged", "streamID", event.StreamID, "eventID", eventID)
	lockdownResolvedCount.Inc()
	return nil
}

func (d *Detector) notifyCreator(ctx context.Context, event *store.MassReportEvent) {
	if d.Notifier == nil {
		return
	}
	d.Notifier.Dispatch(ctx, &notify.Intent{
		UserID:   event.CreatorID,
		Type:     notify.TypeMassReport,
		Title:    "Your stream chat has been hidden",
		Body:     fmt.Sprintf("Your stream received %d reports in a short period. Chat is hidden until you review and acknowledge.", event.ReportCount),
		Payload:  map[string]string{"streamID": event.StreamID, "eventID": fmt.Sprint(event.ID)},
		Critical: true,
	})
}

func streamKey(streamID string) string {
	return "stream/" + streamID
}
