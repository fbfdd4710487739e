package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/streamtide/guardian/moderation/engine"
)

// Event kinds on the chat event stream.
const (
	KindMessage = "message"
	KindReport  = "report"
)

// Event is one JSON frame from the platform's chat event stream.
type Event struct {
	Seq  int64  `json:"seq"`
	Kind string `json:"kind"`

	UserID    string `json:"user_id"`
	ScopeID   string `json:"scope_id"`
	ScopeKind string `json:"scope_kind"`
	Text      string `json:"text,omitempty"`

	// report events only
	CreatorID      string `json:"creator_id,omitempty"`
	ReporterID     string `json:"reporter_id,omitempty"`
	ReportedUserID string `json:"reported_user_id,omitempty"`
}

// Consumer subscribes to the chat event stream and feeds events through
// the enforcement engine. Per-(user, scope) ordering comes from the
// engine's keyed locks; the worker pool only bounds overall parallelism.
type Consumer struct {
	Logger      *slog.Logger
	Engine      *engine.Engine
	Host        string
	Parallelism int
	RateLimit   *rate.Limiter

	rdb     *redis.Client
	lastSeq int64
}

func NewConsumer(logger *slog.Logger, eng *engine.Engine, host string, parallelism int, rdb *redis.Client) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if parallelism <= 0 {
		parallelism = 8
	}
	return &Consumer{
		Logger:      logger,
		Engine:      eng,
		Host:        host,
		Parallelism: parallelism,
		RateLimit:   rate.NewLimiter(rate.Limit(2000), 2000),
		rdb:         rdb,
	}
}

// Run subscribes and processes events until the context is cancelled,
// reconnecting with capped exponential backoff on stream failure.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		err := c.runOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.Logger.Warn("event stream disconnected", "err", err, "backoff", backoff)
			reconnectCount.Inc()
		}
		// a healthy long-lived connection resets the backoff
		if time.Since(start) > time.Minute {
			backoff = time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (c *Consumer) runOnce(ctx context.Context) error {
	cur, err := c.ReadLastCursor(ctx)
	if err != nil {
		return err
	}

	u, err := url.Parse(c.Host)
	if err != nil {
		return fmt.Errorf("invalid event stream host: %w", err)
	}
	u.Path = "/events/subscribe"
	if cur != 0 {
		u.RawQuery = fmt.Sprintf("cursor=%d", cur)
	}
	c.Logger.Info("subscribing to chat event stream", "upstream", c.Host, "cursor", cur)
	con, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), http.Header{
		"User-Agent": []string{fmt.Sprintf("guardian/%s", versioninfo.Short())},
	})
	if err != nil {
		return fmt.Errorf("subscribing to event stream: %w", err)
	}
	defer con.Close()

	go func() {
		<-ctx.Done()
		con.Close()
	}()

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.Parallelism)
	for {
		_, data, err := con.ReadMessage()
		if err != nil {
			_ = eg.Wait()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading event frame: %w", err)
		}
		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			c.Logger.Error("malformed event frame, skipping", "err", err)
			eventErrorCount.Inc()
			continue
		}
		if err := c.RateLimit.Wait(ctx); err != nil {
			_ = eg.Wait()
			return err
		}
		eg.Go(func() error {
			c.processEvent(ctx, &evt)
			return nil
		})
	}
}

// processEvent handles one event. Processing failures are logged, never
// fatal to the stream: a poisoned event must not wedge the consumer.
func (c *Consumer) processEvent(ctx context.Context, evt *Event) {
	atomic.StoreInt64(&c.lastSeq, evt.Seq)
	eventReceivedCount.WithLabelValues(evt.Kind).Inc()

	switch evt.Kind {
	case KindMessage:
		scope := engine.Scope{ID: evt.ScopeID, Kind: evt.ScopeKind}
		if _, err := c.Engine.ClassifyAndEnforce(ctx, evt.UserID, evt.Text, scope); err != nil {
			c.Logger.Error("processing message event failed", "seq", evt.Seq, "userID", evt.UserID, "err", err)
			eventErrorCount.Inc()
		}
	case KindReport:
		if err := c.Engine.RecordUserReport(ctx, evt.ReportedUserID, evt.ScopeID, evt.CreatorID, evt.ReporterID); err != nil {
			c.Logger.Error("processing report event failed", "seq", evt.Seq, "streamID", evt.ScopeID, "err", err)
			eventErrorCount.Inc()
		}
	default:
		c.Logger.Warn("unknown event kind, skipping", "kind", evt.Kind, "seq", evt.Seq)
	}
}

var cursorKey = "guardian/seq"

func (c *Consumer) ReadLastCursor(ctx context.Context) (int64, error) {
	if c.rdb == nil {
		return 0, nil
	}
	val, err := c.rdb.Get(ctx, cursorKey).Int64()
	if err == redis.Nil {
		c.Logger.Info("no pre-existing cursor in redis")
		return 0, nil
	}
	return val, err
}

func (c *Consumer) PersistCursor(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	seq := atomic.LoadInt64(&c.lastSeq)
	if seq <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, cursorKey, seq, 14*24*time.Hour).Err()
}

// RunPersistCursor persists the cursor every few seconds, and once more
// on shutdown. Expects to run in its own goroutine alongside Run.
func (c *Consumer) RunPersistCursor(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := c.PersistCursor(context.Background()); err != nil {
				c.Logger.Error("failed persisting final cursor", "err", err)
			}
			return nil
		case <-ticker.C:
			if err := c.PersistCursor(ctx); err != nil {
				c.Logger.Error("failed persisting cursor", "err", err)
			}
		}
	}
}
