package countstore

import (
	"context"
	"fmt"
	"time"
)

// CountStore is the shared windowed-counter primitive behind the spam
// detector, the mass-report detector, and notification throttling.
//
// Windows are fixed-length and non-overlapping per subject: the bucket key
// is derived by truncating wall-clock time to the window length, so two
// concurrent increments for the same subject always land on the same
// bucket. Increment returns the post-increment count as a single atomic
// read-modify-write, which is what lets exactly one of N concurrent events
// observe a threshold crossing.
type CountStore interface {
	// Increment adds one to the subject's counter for the current window
	// and returns the new count.
	Increment(ctx context.Context, name, val string, window time.Duration) (int, error)
	// Get returns the subject's count for the current window without
	// incrementing.
	Get(ctx context.Context, name, val string, window time.Duration) (int, error)
	// Reset clears the subject's counter for the current window.
	Reset(ctx context.Context, name, val string, window time.Duration) error

	// IncrementDistinct records a distinct member for the subject's current
	// window and returns the number of distinct members. A zero window
	// means a single cumulative (never-expiring) bucket.
	IncrementDistinct(ctx context.Context, name, bucket, member string, window time.Duration) (int, error)
	// GetDistinct returns the number of distinct members recorded for the
	// subject's current window.
	GetDistinct(ctx context.Context, name, bucket string, window time.Duration) (int, error)
}

// Cumulative is the window length for counters that never roll over.
const Cumulative = time.Duration(0)

func windowBucket(name, val string, window time.Duration) string {
	if window <= 0 {
		return fmt.Sprintf("%s/%s", name, val)
	}
	start := time.Now().UTC().Truncate(window).Unix()
	return fmt.Sprintf("%s/%s/%d-%d", name, val, start, int(window.Seconds()))
}
