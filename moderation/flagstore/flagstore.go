package flagstore

import (
	"context"
)

// FlagStore records private moderation flags per subject key, eg
// "auto-timeout-applied" for a (reported user, stream) pair, or
// "chat-hidden" for a locked-down stream. Flags gate one-shot detector
// actions, so reads and writes must see each other across instances.
type FlagStore interface {
	Get(ctx context.Context, key string) ([]string, error)
	Has(ctx context.Context, key, flag string) (bool, error)
	Add(ctx context.Context, key string, flags []string) error
	Remove(ctx context.Context, key string, flags []string) error
}
