package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/streamtide/guardian/moderation/cachestore"
	"github.com/streamtide/guardian/moderation/countstore"
	"github.com/streamtide/guardian/moderation/store"
)

// Moderation push cap: at most this many moderation pushes per user per
// window; overflow is folded in to one summary push, never dropped from
// the inbox.
var (
	PushCapWindow = 30 * time.Minute
	PushCapCount  = 5
)

const prefCacheName = "notifyprefs"

// Dispatcher applies quiet hours and the moderation push cap once, then
// fans out to the push and inbox collaborators. Notification failures
// are logged and counted, never propagated: dropping an enforcement
// write over a push outage would be a safety regression, the reverse is
// only a UX one.
type Dispatcher struct {
	Logger   *slog.Logger
	Push     PushSender
	Inbox    InboxWriter
	Counters countstore.CountStore
	Cache    cachestore.CacheStore
	Prefs    *store.Store
}

func NewDispatcher(logger *slog.Logger, push PushSender, inbox InboxWriter, counters countstore.CountStore, cache cachestore.CacheStore, prefs *store.Store) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Logger:   logger,
		Push:     push,
		Inbox:    inbox,
		Counters: counters,
		Cache:    cache,
		Prefs:    prefs,
	}
}

// Dispatch delivers one intent. The inbox system message is always
// written; the push is subject to quiet hours and the rate cap.
func (d *Dispatcher) Dispatch(ctx context.Context, intent *Intent) {
	logger := d.Logger.With("userID", intent.UserID, "type", intent.Type)

	if err := d.Inbox.SendSystemMessage(ctx, intent.UserID, intent.Title, intent.Body, intent.Type); err != nil {
		logger.Error("inbox write failed", "err", err)
		notifyErrorCount.WithLabelValues("inbox").Inc()
	}

	if !intent.Critical {
		quiet, err := d.inQuietHours(ctx, intent.UserID, time.Now().UTC())
		if err != nil {
			logger.Warn("quiet hours lookup failed, delivering anyway", "err", err)
		} else if quiet {
			logger.Debug("suppressing push during quiet hours")
			notifySuppressedCount.WithLabelValues("quiet_hours").Inc()
			return
		}
	}

	count, err := d.Counters.Increment(ctx, "mod-push", intent.UserID, PushCapWindow)
	if err != nil {
		logger.Warn("push cap counter failed, delivering anyway", "err", err)
		count = 1
	}
	switch {
	case count <= PushCapCount:
		d.send(ctx, logger, intent)
	case count == PushCapCount+1:
		// first overflow in this window: one summary push stands in for
		// the rest
		summary := &Intent{
			UserID: intent.UserID,
			Type:   TypeSummary,
			Title:  "Moderation updates",
			Body:   "You have additional moderation notifications; check your inbox.",
		}
		d.send(ctx, logger, summary)
		notifySuppressedCount.WithLabelValues("rate_cap").Inc()
	default:
		notifySuppressedCount.WithLabelValues("rate_cap").Inc()
	}
}

func (d *Dispatcher) send(ctx context.Context, logger *slog.Logger, intent *Intent) {
	if err := d.Push.Send(ctx, intent.UserID, intent.Type, intent.Title, intent.Body, intent.Payload); err != nil {
		logger.Error("push send failed", "err", err)
		notifyErrorCount.WithLabelValues("push").Inc()
		return
	}
	notifySentCount.WithLabelValues(intent.Type).Inc()
}

// inQuietHours checks the user's quiet-hours preference, reading through
// the cache. Quiet hours are minutes-since-midnight UTC and may wrap
// past midnight (eg 22:00 to 07:00).
func (d *Dispatcher) inQuietHours(ctx context.Context, userID string, now time.Time) (bool, error) {
	pref, err := d.lookupPref(ctx, userID)
	if err != nil {
		return false, err
	}
	if !pref.QuietHoursSet {
		return false, nil
	}
	minute := now.Hour()*60 + now.Minute()
	start, end := pref.QuietHoursStart, pref.QuietHoursEnd
	if start <= end {
		return minute >= start && minute < end, nil
	}
	return minute >= start || minute < end, nil
}

func (d *Dispatcher) lookupPref(ctx context.Context, userID string) (*store.NotificationPref, error) {
	if d.Cache != nil {
		if raw, err := d.Cache.Get(ctx, prefCacheName, userID); err == nil && raw != "" {
			var pref store.NotificationPref
			if err := json.Unmarshal([]byte(raw), &pref); err == nil {
				return &pref, nil
			}
		}
	}
	if d.Prefs == nil {
		return &store.NotificationPref{UserID: userID}, nil
	}
	pref, err := d.Prefs.GetNotificationPref(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading notification prefs: %w", err)
	}
	if d.Cache != nil {
		if raw, err := json.Marshal(pref); err == nil {
			_ = d.Cache.Set(ctx, prefCacheName, userID, string(raw))
		}
	}
	return pref, nil
}
