package notify

import (
	"context"
)

// Notification types used by the enforcement pipeline.
const (
	TypeContentHidden  = "content_hidden"
	TypeTimeout        = "timeout"
	TypeBlocked        = "blocked"
	TypeBanned         = "banned"
	TypeStrike         = "strike"
	TypeReviewDecision = "review_decision"
	TypeAppealResult   = "appeal_result"
	TypeMassReport     = "mass_report"
	TypeSummary        = "moderation_summary"
)

// Intent is a single notification-intent value: every call site builds
// one of these and hands it to the Dispatcher, which applies quiet-hours
// and rate-limit policy exactly once. Call sites never talk to the push
// or inbox collaborators directly.
type Intent struct {
	UserID  string
	Type    string
	Title   string
	Body    string
	Payload map[string]string
	// Critical intents (bans, lockdowns) bypass quiet hours.
	Critical bool
}

// PushSender is the push-notification collaborator. Fire-and-forget:
// delivery failures are its concern, the engine only needs the call to
// not block enforcement.
type PushSender interface {
	Send(ctx context.Context, userID, notifType, title, body string, payload map[string]string) error
}

// InboxWriter is the secondary, non-push channel. Always written, for
// auditability, even when the push is suppressed.
type InboxWriter interface {
	SendSystemMessage(ctx context.Context, userID, title, body, category string) error
}
