package store

import (
	"time"

	"gorm.io/gorm"
)

// Scope kinds a violation can be attached to.
const (
	ScopeKindStream  = "stream"
	ScopeKindPost    = "post"
	ScopeKindStory   = "story"
	ScopeKindMessage = "message"
)

// Violation is the immutable record of one classified event. Never
// mutated after creation, except the Resolved/HiddenFromOthers markers
// (appeal reversal, moderator approval) and admin soft-delete.
type Violation struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	UserID    string `gorm:"index:idx_violation_user_scope"`
	ScopeID   string `gorm:"index:idx_violation_user_scope"`
	ScopeKind string
	Snippet   string

	Toxicity      float64
	Harassment    float64
	HateSpeech    float64
	SexualContent float64
	Threat        float64
	Spam          float64
	Overall       float64
	Category      string

	Action           string
	HiddenFromOthers bool
	IssuedByAI       bool
	Resolved         bool
}

// Strike is one scoped escalating penalty record. Level 4 strikes never
// expire (ExpiresAt null). Deactivated only by an explicit admin or
// appeal action.
type Strike struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time

	UserID      string `gorm:"index:idx_strike_user_scope"`
	ScopeID     string `gorm:"index:idx_strike_user_scope"`
	Level       int
	Kind        string
	Reason      string
	IssuedByAI  bool
	ExpiresAt   *time.Time
	Active      bool `gorm:"default:true"`
	ViolationID *uint
}

// Restriction kinds.
const (
	RestrictionTimeout = "timeout"
	RestrictionBan     = "ban"
	RestrictionBlock   = "block"
)

// ScopeRestriction is an enforcement record gating a user within one
// scope: a timed-out chatter, a 24h scope ban, a block. A nil ExpiresAt
// means permanent.
type ScopeRestriction struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time

	UserID      string `gorm:"index:idx_restriction_user_scope"`
	ScopeID     string `gorm:"index:idx_restriction_user_scope"`
	Kind        string
	Reason      string
	ExpiresAt   *time.Time
	Active      bool `gorm:"default:true"`
	StrikeID    *uint
	ViolationID *uint
}

// Review item resolution states.
const (
	ReviewPending   = "pending"
	ReviewApproved  = "approved"
	ReviewRejected  = "rejected"
	ReviewEscalated = "escalated"
)

// ReviewItem is one entry in the moderator escalation queue. At most one
// item per violation (unique index); re-escalation is a no-op.
type ReviewItem struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time

	ViolationID uint   `gorm:"uniqueIndex"`
	UserID      string `gorm:"index"`
	Source      string
	Preview     string
	RiskScore   float64
	Category    string
	AssignedTo  *string
	Status      string `gorm:"index;default:pending"`
	ResolvedAt  *time.Time
	Notes       string
}

// Admin penalty severities.
const (
	PenaltyTemporary = "temporary"
	PenaltyPermanent = "permanent"
)

// AdminPenalty is created by an admin decision, directly or via moderator
// escalation. Deactivated by the expiry sweep or by an approved appeal.
type AdminPenalty struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time

	UserID      string `gorm:"index"`
	Severity    string
	Category    string
	Reason      string
	IssuedBy    string
	ExpiresAt   *time.Time
	Active      bool `gorm:"default:true"`
	StrikeID    *uint
	ViolationID *uint
}

// Appeal states.
const (
	AppealPending  = "pending"
	AppealApproved = "approved"
	AppealDenied   = "denied"
)

// Appeal links a user to a penalty under dispute. One pending appeal per
// penalty at a time; pending → approved|denied is terminal.
type Appeal struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time

	UserID     string `gorm:"index"`
	PenaltyID  uint   `gorm:"index"`
	Reason     string
	Evidence   string
	Status     string `gorm:"index;default:pending"`
	ReviewerID string
	Resolution string
	ResolvedAt *time.Time
}

// MassReportEvent records one mass-report lockdown of a stream. At most
// one unresolved event per stream; resolution is only via explicit
// creator acknowledgement.
type MassReportEvent struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time

	StreamID     string `gorm:"index"`
	CreatorID    string
	ReportCount  int
	TriggeredAt  time.Time
	ResolvedAt   *time.Time
	Acknowledged bool
}

// NotificationPref holds per-user delivery preferences. Quiet hours are
// minutes-since-midnight UTC; during quiet hours only critical
// notifications are pushed immediately.
type NotificationPref struct {
	UserID          string `gorm:"primarykey"`
	QuietHoursStart int
	QuietHoursEnd   int
	QuietHoursSet   bool
	UpdatedAt       time.Time
}
