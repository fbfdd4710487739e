package engine

import (
	"context"
	"time"
)

// SweepInterval is how often expired records are deactivated.
const SweepInterval = 5 * time.Minute

// ReviewRetention is how long resolved review-queue items are kept
// before the sweep prunes them.
const ReviewRetention = 90 * day

// RunExpirySweep periodically deactivates expired scope restrictions and
// temporary admin penalties. Expiry of strikes needs no sweep: every
// strike query filters on expires_at directly.
func (e *Engine) RunExpirySweep(ctx context.Context) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweepOnce(ctx)
		}
	}
}

func (e *Engine) sweepOnce(ctx context.Context) {
	now := time.Now()
	restrictions, err := e.Store.ExpireRestrictions(ctx, now)
	if err != nil {
		e.Logger.Error("restriction expiry sweep failed", "err", err)
	}
	penalties, err := e.Store.ExpirePenalties(ctx, now)
	if err != nil {
		e.Logger.Error("penalty expiry sweep failed", "err", err)
	}
	reviews, err := e.Store.PruneResolvedReviews(ctx, now.Add(-ReviewRetention))
	if err != nil {
		e.Logger.Error("review queue prune failed", "err", err)
	}
	if restrictions > 0 || penalties > 0 || reviews > 0 {
		e.Logger.Info("expiry sweep", "restrictions", restrictions, "penalties", penalties, "reviews", reviews)
		sweepExpiredCount.WithLabelValues("restriction").Add(float64(restrictions))
		sweepExpiredCount.WithLabelValues("penalty").Add(float64(penalties))
		sweepExpiredCount.WithLabelValues("review").Add(float64(reviews))
	}
}
