package policy

import (
	"time"
)

// Action is the graduated enforcement action for one content event,
// ordered by severity. The ordering is load-bearing: Decide must be
// monotone in the overall score so a milder action can never fire at a
// higher score than a stricter one.
type Action int

const (
	ActionAllow Action = iota
	ActionFlag
	ActionHide
	ActionEscalate
	ActionTimeout
	ActionBlock
)

func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionFlag:
		return "flag"
	case ActionHide:
		return "hide"
	case ActionEscalate:
		return "escalate"
	case ActionTimeout:
		return "timeout"
	case ActionBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Score thresholds for the enforcement bands. The escalate band is
// [0.60,0.70) exclusive of the timeout band: at [0.70,0.85) the direct
// timeout action wins and the event is not additionally queued for
// review. This is a deliberate tie-break, not an accident of branch
// order.
const (
	FlagThreshold     = 0.30
	HideThreshold     = 0.50
	EscalateThreshold = 0.60
	TimeoutThreshold  = 0.70
	BlockThreshold    = 0.85
)

// AutoTimeoutDuration is the scope timeout applied in the timeout band.
const AutoTimeoutDuration = 2 * time.Minute

// Verdict is the decided enforcement for one event.
type Verdict struct {
	Action Action
	// HiddenFromOthers indicates the content is hidden from other viewers
	// (true for hide and above; flag is silent and visible).
	HiddenFromOthers bool
	// TimeoutDuration is non-zero only for ActionTimeout.
	TimeoutDuration time.Duration
	// NotifyUser indicates the affected user gets a notification (every
	// band except allow and flag).
	NotifyUser bool
}

// Decide maps an overall risk score to an enforcement verdict. Pure
// function; deterministic for the same score.
func Decide(overall float64) Verdict {
	switch {
	case overall >= BlockThreshold:
		return Verdict{Action: ActionBlock, HiddenFromOthers: true, NotifyUser: true}
	case overall >= TimeoutThreshold:
		return Verdict{Action: ActionTimeout, HiddenFromOthers: true, TimeoutDuration: AutoTimeoutDuration, NotifyUser: true}
	case overall >= EscalateThreshold:
		return Verdict{Action: ActionEscalate, HiddenFromOthers: true, NotifyUser: true}
	case overall >= HideThreshold:
		return Verdict{Action: ActionHide, HiddenFromOthers: true, NotifyUser: true}
	case overall >= FlagThreshold:
		return Verdict{Action: ActionFlag}
	default:
		return Verdict{Action: ActionAllow}
	}
}

// Repeat-offense categories accumulate strikes on enforcement.
func IsRepeatOffenseCategory(category string) bool {
	switch category {
	case "hate-speech", "harassment":
		return true
	}
	return false
}
