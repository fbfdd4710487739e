package setstore

import (
	"context"
)

// SetStore holds moderation configuration sets: per-category term lists
// for the keyword scorer, non-appealable penalty categories, categories
// which route to admin escalation, and protected-user lists.
type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
	GetSet(ctx context.Context, name string) ([]string, error)
}
