package engine

import (
	"context"
	"testing"
	"time"

	"github.com/streamtide/guardian/moderation/cachestore"
	"github.com/streamtide/guardian/moderation/classifier"
	"github.com/streamtide/guardian/moderation/countstore"
	"github.com/streamtide/guardian/moderation/flagstore"
	"github.com/streamtide/guardian/moderation/massreport"
	"github.com/streamtide/guardian/moderation/notify"
	"github.com/streamtide/guardian/moderation/queue"
	"github.com/streamtide/guardian/moderation/setstore"
	"github.com/streamtide/guardian/moderation/store"
	"github.com/streamtide/guardian/moderation/strikes"
	"github.com/streamtide/guardian/moderation/util"
)

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, text string) (*classifier.Score, error)

func (f ClassifierFunc) Classify(ctx context.Context, text string) (*classifier.Score, error) {
	return f(ctx, text)
}

// TestFixture is a fully in-memory engine stack for tests.
type TestFixture struct {
	Engine   *Engine
	Store    *store.Store
	Queue    *queue.Queue
	Strikes  *strikes.Ledger
	Reports  *massreport.Detector
	Counters *countstore.MemCountStore
	Flags    *flagstore.MemFlagStore
	Sets     *setstore.MemSetStore
	Push     *notify.MockSender
	Inbox    *notify.MockInbox
}

// TestEngine builds the full enforcement stack on in-memory stores, with
// the given classifier behind the usual fail-open wrapper.
func TestEngine(t *testing.T, cls classifier.Classifier) *TestFixture {
	t.Helper()
	st := store.TestStore(t)
	counters := countstore.NewMemCountStore()
	flags := flagstore.NewMemFlagStore()
	push := &notify.MockSender{}
	inbox := &notify.MockInbox{}
	dispatcher := notify.NewDispatcher(nil, push, inbox, countstore.NewMemCountStore(), cachestore.NewMemCacheStore(100, time.Minute), st)
	ledger := strikes.NewLedger(nil, st, dispatcher, util.NewKeyLock())
	q := queue.NewQueue(nil, st, dispatcher, queue.DefaultEscalationPolicy)
	reports := massreport.NewDetector(nil, st, counters, flags, dispatcher)
	sets := setstore.NewMemSetStore()
	eng := NewEngine(nil, classifier.NewFailOpenClassifier(nil, cls), st, ledger, q, reports, dispatcher, counters, flags)
	eng.Sets = sets
	return &TestFixture{
		Engine:   eng,
		Store:    st,
		Queue:    q,
		Strikes:  ledger,
		Reports:  reports,
		Counters: counters,
		Flags:    flags,
		Sets:     sets,
		Push:     push,
		Inbox:    inbox,
	}
}
