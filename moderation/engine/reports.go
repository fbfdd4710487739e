package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/streamtide/guardian/moderation/store"
)

const (
	// HarassmentReportThreshold unique reporters against the same user in
	// the same stream triggers a one-shot automatic timeout.
	HarassmentReportThreshold = 3
	// HarassmentTimeout is the scope timeout applied when the threshold
	// trips.
	HarassmentTimeout = 5 * time.Minute

	// FlagAutoTimeoutApplied gates the one-shot timeout per (reported
	// user, stream) pair.
	FlagAutoTimeoutApplied = "auto-timeout-applied"

	// SetProtectedUsers lists users whose report threshold routes to
	// human review instead of an automatic timeout. Report brigading
	// against high-profile streamers is common enough that automatic
	// enforcement is the wrong default for them.
	SetProtectedUsers = "protected-users"

	countUserReporters = "user-reporters"
)

func reportKey(reportedUserID, streamID string) string {
	return "report/" + reportedUserID + "/" + streamID
}

// RecordUserReport counts one viewer report against a user in a stream.
// Reporter counting is cumulative and distinct: the same reporter never
// counts twice, and there is no window. At the threshold the reported
// user receives a single automatic 5-minute timeout for that stream; the
// flag makes the trip one-shot regardless of further reports. Protected
// users are escalated for review instead of timed out. Every report also
// feeds the stream's mass-report detector.
func (e *Engine) RecordUserReport(ctx context.Context, reportedUserID, streamID, creatorID, reporterID string) error {
	if _, err := e.Reports.RecordReport(ctx, streamID, creatorID, reporterID); err != nil {
		return fmt.Errorf("recording stream report: %w", err)
	}

	count, err := e.Counters.IncrementDistinct(ctx, countUserReporters, reportedUserID+"/"+streamID, reporterID, 0)
	if err != nil {
		return fmt.Errorf("counting reporters: %w", err)
	}
	userReportCount.Inc()
	if count < HarassmentReportThreshold {
		return nil
	}

	key := enforceKey(reportedUserID, streamID)
	e.Locks.Lock(key)
	defer e.Locks.Unlock(key)

	flagKey := reportKey(reportedUserID, streamID)
	applied, err := e.Flags.Has(ctx, flagKey, FlagAutoTimeoutApplied)
	if err != nil {
		return fmt.Errorf("checking timeout flag: %w", err)
	}
	if applied {
		return nil
	}

	protected, err := e.isProtectedUser(ctx, reportedUserID)
	if err != nil {
		return fmt.Errorf("checking protected-user set: %w", err)
	}

	action := "timeout"
	if protected {
		action = "escalate"
	}
	violation := &store.Violation{
		UserID:           reportedUserID,
		ScopeID:          streamID,
		ScopeKind:        store.ScopeKindStream,
		Category:         "harassment",
		Action:           action,
		HiddenFromOthers: false,
		IssuedByAI:       true,
		Harassment:       1.0,
	}
	if err := e.persistViolation(ctx, violation); err != nil {
		return err
	}

	if protected {
		if _, err := e.Queue.Escalate(ctx, &store.ReviewItem{
			ViolationID: violation.ID,
			UserID:      reportedUserID,
			Source:      "viewer_reports",
			Preview:     fmt.Sprintf("%d viewers reported this user", count),
			RiskScore:   1.0,
			Category:    "harassment",
		}); err != nil {
			return fmt.Errorf("escalating protected-user report: %w", err)
		}
		if err := e.Flags.Add(ctx, flagKey, []string{FlagAutoTimeoutApplied}); err != nil {
			return fmt.Errorf("setting timeout flag: %w", err)
		}
		e.Logger.Info("report threshold on protected user, escalated for review",
			"reportedUserID", reportedUserID, "streamID", streamID, "reporters", count)
		return nil
	}

	expires := time.Now().Add(HarassmentTimeout)
	restriction := &store.ScopeRestriction{
		UserID:      reportedUserID,
		ScopeID:     streamID,
		Kind:        store.RestrictionTimeout,
		Reason:      "reported by multiple viewers",
		ExpiresAt:   &expires,
		Active:      true,
		ViolationID: &violation.ID,
	}
	if err := e.Store.CreateRestriction(ctx, restriction); err != nil {
		return fmt.Errorf("persisting report timeout: %w", err)
	}
	if err := e.Flags.Add(ctx, flagKey, []string{FlagAutoTimeoutApplied}); err != nil {
		return fmt.Errorf("setting timeout flag: %w", err)
	}

	reportTimeoutCount.Inc()
	e.Logger.Info("report-triggered timeout applied",
		"reportedUserID", reportedUserID, "streamID", streamID, "reporters", count)
	return nil
}

func (e *Engine) isProtectedUser(ctx context.Context, userID string) (bool, error) {
	if e.Sets == nil {
		return false, nil
	}
	return e.Sets.InSet(ctx, SetProtectedUsers, userID)
}
