package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/streamtide/guardian/moderation/classifier"
	"github.com/streamtide/guardian/moderation/countstore"
	"github.com/streamtide/guardian/moderation/flagstore"
	"github.com/streamtide/guardian/moderation/massreport"
	"github.com/streamtide/guardian/moderation/notify"
	"github.com/streamtide/guardian/moderation/policy"
	"github.com/streamtide/guardian/moderation/queue"
	"github.com/streamtide/guardian/moderation/setstore"
	"github.com/streamtide/guardian/moderation/store"
	"github.com/streamtide/guardian/moderation/strikes"
	"github.com/streamtide/guardian/moderation/util"
)

const (
	// SpamWindow / SpamThreshold: more than 10 messages from the same user
	// inside a 10-second window trips the spam detector.
	SpamWindow    = 10 * time.Second
	SpamThreshold = 10
	// SpamTimeout is the scope timeout applied on a spam trip.
	SpamTimeout = time.Minute

	countChatMessage = "chat-msg"
	countAutoStrike  = "auto-strike"
	countAutoBlock   = "auto-block"
	countFlagDedupe  = "flag-dedupe"

	day = 24 * time.Hour
)

// Daily circuit breakers on automated penalties. A runaway scoring
// backend hits the breaker before it can mass-penalize; affected events
// still persist a Violation and land in the review queue.
const (
	QuotaAutoStrikesDay = 10000
	QuotaAutoBlocksDay  = 5000
)

// Scope identifies the boundary an enforcement applies within, typically
// one creator's stream.
type Scope struct {
	ID   string
	Kind string
}

func StreamScope(id string) Scope {
	return Scope{ID: id, Kind: store.ScopeKindStream}
}

// EnforcementResult is the outcome of one classified event.
type EnforcementResult struct {
	// Allowed is false when the content was hidden from other viewers.
	Allowed  bool
	Action   policy.Action
	Scores   *classifier.Score
	Overall  float64
	Category string

	Violation  *store.Violation
	Strike     *store.Strike
	ReviewItem *store.ReviewItem
}

// Engine runs the classify, decide, enforce pipeline for inbound content
// events and owns the automated side of the report trackers.
type Engine struct {
	Logger     *slog.Logger
	Classifier classifier.Classifier
	Store      *store.Store
	Strikes    *strikes.Ledger
	Queue      *queue.Queue
	Reports    *massreport.Detector
	Notifier   *notify.Dispatcher
	Counters   countstore.CountStore
	Flags      flagstore.FlagStore
	// Sets is optional config-set storage; when nil the protected-user
	// carve-out in report handling is disabled.
	Sets setstore.SetStore

	// serializes enforcement per (user, scope); distinct from the strike
	// ledger's own pair lock so a strike applied mid-pipeline does not
	// self-deadlock
	Locks *util.KeyLock
}

func NewEngine(logger *slog.Logger, cls classifier.Classifier, st *store.Store, ledger *strikes.Ledger, q *queue.Queue, reports *massreport.Detector, notifier *notify.Dispatcher, counters countstore.CountStore, flags flagstore.FlagStore) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Logger:     logger,
		Classifier: cls,
		Store:      st,
		Strikes:    ledger,
		Queue:      q,
		Reports:    reports,
		Notifier:   notifier,
		Counters:   counters,
		Flags:      flags,
		Locks:      util.NewKeyLock(),
	}
}

func enforceKey(userID, scopeID string) string {
	return "enforce/" + userID + "/" + scopeID
}

// ClassifyAndEnforce runs the full pipeline for one content event:
// spam pre-check, classification, policy decision, then persistence and
// side effects. Events for the same (user, scope) pair are serialized;
// everything else proceeds in parallel. A panic anywhere in the pipeline
// is recovered and surfaced as an error so one poisoned event cannot
// take down the consumer.
func (e *Engine) ClassifyAndEnforce(ctx context.Context, userID, text string, scope Scope) (res *EnforcementResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			enforcePanicCount.Inc()
			e.Logger.Error("enforcement pipeline panic", "userID", userID, "scopeID", scope.ID, "panic", rec)
			res = nil
			err = fmt.Errorf("enforcement pipeline panic: %v", rec)
		}
	}()
	start := time.Now()
	defer func() {
		enforceDuration.Observe(time.Since(start).Seconds())
	}()

	tripped, spamRes, err := e.spamPreCheck(ctx, userID, text, scope)
	if err != nil {
		return nil, err
	}
	if tripped {
		return spamRes, nil
	}

	score, err := e.Classifier.Classify(ctx, text)
	if err != nil {
		// the fail-open wrapper normally absorbs this; treat a surfaced
		// error the same way
		e.Logger.Warn("classifier error, allowing content", "userID", userID, "err", err)
		score = &classifier.Score{}
	}

	verdict := policy.Decide(score.Overall())
	actionDecidedCount.WithLabelValues(verdict.Action.String()).Inc()

	if verdict.Action == policy.ActionAllow {
		return &EnforcementResult{
			Allowed:  true,
			Action:   policy.ActionAllow,
			Scores:   score,
			Overall:  score.Overall(),
			Category: score.TopCategory(),
		}, nil
	}

	return e.enforce(ctx, userID, text, scope, score, verdict)
}

// spamPreCheck counts the user's message rate and, at the threshold
// crossing, times the user out for a minute and resets the window so the
// next message starts fresh. The trip condition matches the crossing
// count exactly: the post-increment count is atomic, so concurrent
// messages past the threshold see distinct counts and only one trips.
func (e *Engine) spamPreCheck(ctx context.Context, userID, text string, scope Scope) (bool, *EnforcementResult, error) {
	count, err := e.Counters.Increment(ctx, countChatMessage, userID, SpamWindow)
	if err != nil {
		return false, nil, fmt.Errorf("counting messages: %w", err)
	}
	if count != SpamThreshold+1 {
		return false, nil, nil
	}

	if err := e.Counters.Reset(ctx, countChatMessage, userID, SpamWindow); err != nil {
		e.Logger.Warn("failed resetting spam window", "userID", userID, "err", err)
	}
	spamTrippedCount.Inc()

	key := enforceKey(userID, scope.ID)
	e.Locks.Lock(key)
	defer e.Locks.Unlock(key)

	score := &classifier.Score{Spam: 1.0}
	violation := e.buildViolation(userID, text, scope, score, policy.ActionTimeout.String(), true)
	if err := e.persistViolation(ctx, violation); err != nil {
		return true, nil, err
	}

	expires := time.Now().Add(SpamTimeout)
	restriction := &store.ScopeRestriction{
		UserID:      userID,
		ScopeID:     scope.ID,
		Kind:        store.RestrictionTimeout,
		Reason:      "message rate limit exceeded",
		ExpiresAt:   &expires,
		Active:      true,
		ViolationID: &violation.ID,
	}
	if err := e.Store.CreateRestriction(ctx, restriction); err != nil {
		return true, nil, fmt.Errorf("persisting spam timeout: %w", err)
	}

	e.notifyAction(ctx, userID, policy.ActionTimeout, "You are sending messages too quickly. You have been timed out for 1 minute.")
	e.Logger.Info("spam timeout applied", "userID", userID, "scopeID", scope.ID, "count", count)

	return true, &EnforcementResult{
		Allowed:   false,
		Action:    policy.ActionTimeout,
		Scores:    score,
		Overall:   score.Overall(),
		Category:  classifier.CategorySpam,
		Violation: violation,
	}, nil
}

func (e *Engine) enforce(ctx context.Context, userID, text string, scope Scope, score *classifier.Score, verdict policy.Verdict) (*EnforcementResult, error) {
	category := score.TopCategory()

	key := enforceKey(userID, scope.ID)
	e.Locks.Lock(key)
	defer e.Locks.Unlock(key)

	// silent flags dedupe per (user, scope, category) per day; repeat
	// flag-band events add nothing to the audit trail
	if verdict.Action == policy.ActionFlag {
		seen, err := e.Counters.Increment(ctx, countFlagDedupe, userID+"/"+scope.ID+"/"+category, day)
		if err != nil {
			return nil, fmt.Errorf("flag dedupe: %w", err)
		}
		if seen > 1 {
			return &EnforcementResult{
				Allowed:  true,
				Action:   policy.ActionFlag,
				Scores:   score,
				Overall:  score.Overall(),
				Category: category,
			}, nil
		}
	}

	violation := e.buildViolation(userID, text, scope, score, verdict.Action.String(), verdict.HiddenFromOthers)
	if err := e.persistViolation(ctx, violation); err != nil {
		return nil, err
	}

	result := &EnforcementResult{
		Allowed:   !verdict.HiddenFromOthers,
		Action:    verdict.Action,
		Scores:    score,
		Overall:   score.Overall(),
		Category:  category,
		Violation: violation,
	}

	switch verdict.Action {
	case policy.ActionTimeout:
		expires := time.Now().Add(verdict.TimeoutDuration)
		restriction := &store.ScopeRestriction{
			UserID:      userID,
			ScopeID:     scope.ID,
			Kind:        store.RestrictionTimeout,
			Reason:      category,
			ExpiresAt:   &expires,
			Active:      true,
			ViolationID: &violation.ID,
		}
		if err := e.Store.CreateRestriction(ctx, restriction); err != nil {
			return nil, fmt.Errorf("persisting timeout: %w", err)
		}
	case policy.ActionBlock:
		if e.underQuota(ctx, countAutoBlock, QuotaAutoBlocksDay) {
			restriction := &store.ScopeRestriction{
				UserID:      userID,
				ScopeID:     scope.ID,
				Kind:        store.RestrictionBlock,
				Reason:      category,
				Active:      true,
				ViolationID: &violation.ID,
			}
			if err := e.Store.CreateRestriction(ctx, restriction); err != nil {
				return nil, fmt.Errorf("persisting block: %w", err)
			}
		} else {
			// breaker open: hold the block and put a human in the loop
			item, err := e.escalate(ctx, violation, "auto-block quota exceeded")
			if err != nil {
				return nil, err
			}
			result.ReviewItem = item
		}
	case policy.ActionEscalate:
		item, err := e.escalate(ctx, violation, "risk score in review band")
		if err != nil {
			return nil, err
		}
		result.ReviewItem = item
	}

	if verdict.Action >= policy.ActionTimeout && policy.IsRepeatOffenseCategory(category) {
		if e.underQuota(ctx, countAutoStrike, QuotaAutoStrikesDay) {
			strike, err := e.Strikes.Apply(ctx, userID, scope.ID, category, "automated enforcement", true, &violation.ID)
			if err != nil {
				return nil, fmt.Errorf("applying strike: %w", err)
			}
			result.Strike = strike
		} else {
			e.Logger.Error("auto-strike quota exceeded, strike withheld", "userID", userID, "scopeID", scope.ID)
		}
	}

	if verdict.NotifyUser {
		e.notifyAction(ctx, userID, verdict.Action, notifyBody(verdict, category))
	}

	e.Logger.Info("enforcement applied",
		"userID", userID, "scopeID", scope.ID, "action", verdict.Action.String(),
		"overall", score.Overall(), "category", category)
	return result, nil
}

func (e *Engine) buildViolation(userID, text string, scope Scope, score *classifier.Score, action string, hidden bool) *store.Violation {
	return &store.Violation{
		UserID:           userID,
		ScopeID:          scope.ID,
		ScopeKind:        scope.Kind,
		Snippet:          util.TruncateSnippet(text, 256),
		Toxicity:         score.Toxicity,
		Harassment:       score.Harassment,
		HateSpeech:       score.HateSpeech,
		SexualContent:    score.SexualContent,
		Threat:           score.Threat,
		Spam:             score.Spam,
		Overall:          score.Overall(),
		Category:         score.TopCategory(),
		Action:           action,
		HiddenFromOthers: hidden,
		IssuedByAI:       true,
	}
}

// persistViolation writes the violation with one synchronous retry.
// Silently dropping a violation is a safety regression, so a double
// failure is surfaced to the caller.
func (e *Engine) persistViolation(ctx context.Context, v *store.Violation) error {
	err := e.Store.CreateViolation(ctx, v)
	if err == nil {
		return nil
	}
	e.Logger.Warn("violation write failed, retrying", "userID", v.UserID, "err", err)
	if retryErr := e.Store.CreateViolation(ctx, v); retryErr != nil {
		violationWriteFailCount.Inc()
		return fmt.Errorf("persisting violation: %w", errors.Join(err, retryErr))
	}
	return nil
}

func (e *Engine) escalate(ctx context.Context, v *store.Violation, source string) (*store.ReviewItem, error) {
	item, err := e.Queue.Escalate(ctx, &store.ReviewItem{
		ViolationID: v.ID,
		UserID:      v.UserID,
		Source:      source,
		Preview:     v.Snippet,
		RiskScore:   v.Overall,
		Category:    v.Category,
	})
	if err != nil {
		return nil, fmt.Errorf("escalating for review: %w", err)
	}
	return item, nil
}

func (e *Engine) underQuota(ctx context.Context, name string, quota int) bool {
	count, err := e.Counters.Increment(ctx, name, "day", day)
	if err != nil {
		e.Logger.Warn("quota counter unavailable, proceeding", "name", name, "err", err)
		return true
	}
	if count > quota {
		quotaExceededCount.WithLabelValues(name).Inc()
		return false
	}
	return true
}

func (e *Engine) notifyAction(ctx context.Context, userID string, action policy.Action, body string) {
	if e.Notifier == nil {
		return
	}
	var notifType string
	var critical bool
	switch action {
	case policy.ActionHide, policy.ActionEscalate:
		notifType = notify.TypeContentHidden
	case policy.ActionTimeout:
		notifType = notify.TypeTimeout
	case policy.ActionBlock:
		notifType = notify.TypeBlocked
		critical = true
	default:
		return
	}
	e.Notifier.Dispatch(ctx, &notify.Intent{
		UserID:   userID,
		Type:     notifType,
		Title:    "Moderation action on your message",
		Body:     body,
		Critical: critical,
	})
}

func notifyBody(verdict policy.Verdict, category string) string {
	switch verdict.Action {
	case policy.ActionHide:
		return fmt.Sprintf("Your message was hidden from other viewers (%s).", category)
	case policy.ActionEscalate:
		return fmt.Sprintf("Your message was hidden pending moderator review (%s).", category)
	case policy.ActionTimeout:
		return fmt.Sprintf("Your message violated community guidelines (%s). You have been timed out for %d minutes.",
			category, int(verdict.TimeoutDuration.Minutes()))
	case policy.ActionBlock:
		return fmt.Sprintf("Your message severely violated community guidelines (%s). You have been blocked from this stream.", category)
	}
	return ""
}
