package consumer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamtide/guardian/moderation/classifier"
	"github.com/streamtide/guardian/moderation/engine"
	"github.com/streamtide/guardian/moderation/store"
)

func eventServer(t *testing.T, events []Event) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		con, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer con.Close()
		for _, evt := range events {
			data, err := json.Marshal(evt)
			require.NoError(t, err)
			require.NoError(t, con.WriteMessage(websocket.TextMessage, data))
		}
		// keep the connection open so the consumer drains the frames
		time.Sleep(2 * time.Second)
	}))
}

func TestConsumerProcessesEvents(t *testing.T) {
	assert := assert.New(t)
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()

	f := engine.TestEngine(t, engine.ClassifierFunc(func(ctx context.Context, text string) (*classifier.Score, error) {
		if strings.Contains(text, "abuse") {
			return &classifier.Score{Toxicity: 1.0, Harassment: 1.0, HateSpeech: 0.6}, nil
		}
		return &classifier.Score{}, nil
	}))

	srv := eventServer(t, []Event{
		{Seq: 1, Kind: KindMessage, UserID: "user-1", ScopeID: "stream-1", ScopeKind: store.ScopeKindStream, Text: "hello chat"},
		{Seq: 2, Kind: KindMessage, UserID: "user-2", ScopeID: "stream-1", ScopeKind: store.ScopeKindStream, Text: "some abuse here"},
		{Seq: 3, Kind: KindReport, ScopeID: "stream-1", CreatorID: "creator-1", ReporterID: "reporter-1", ReportedUserID: "user-2"},
	})
	defer srv.Close()

	c := NewConsumer(nil, f.Engine, "ws"+strings.TrimPrefix(srv.URL, "http"), 4, nil)
	go func() {
		_ = c.Run(ctx)
	}()

	assert.Eventually(func() bool {
		var count int64
		if err := f.Store.DB.Model(&store.Violation{}).Where("user_id = ?", "user-2").Count(&count).Error; err != nil {
			return false
		}
		return count == 1
	}, 5*time.Second, 20*time.Millisecond)

	var violation store.Violation
	assert.NoError(f.Store.DB.Where("user_id = ?", "user-2").First(&violation).Error)
	assert.Equal("hide", violation.Action)
	assert.True(violation.HiddenFromOthers)

	// the clean message from user-1 wrote nothing
	var count int64
	assert.NoError(f.Store.DB.Model(&store.Violation{}).Where("user_id = ?", "user-1").Count(&count).Error)
	assert.EqualValues(0, count)
}

func TestMalformedFrameIsSkipped(t *testing.T) {
	assert := assert.New(t)
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		con, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer con.Close()
		require.NoError(t, con.WriteMessage(websocket.TextMessage, []byte("{not json")))
		good := Event{Seq: 2, Kind: KindMessage, UserID: "user-1", ScopeID: "stream-1", ScopeKind: store.ScopeKindStream, Text: "bad words"}
		data, err := json.Marshal(good)
		require.NoError(t, err)
		require.NoError(t, con.WriteMessage(websocket.TextMessage, data))
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	f := engine.TestEngine(t, engine.ClassifierFunc(func(ctx context.Context, text string) (*classifier.Score, error) {
		return &classifier.Score{Toxicity: 1.0, Harassment: 1.0, HateSpeech: 0.6}, nil
	}))

	c := NewConsumer(nil, f.Engine, "ws"+strings.TrimPrefix(srv.URL, "http"), 2, nil)
	go func() {
		_ = c.Run(ctx)
	}()

	assert.Eventually(func() bool {
		var count int64
		if err := f.Store.DB.Model(&store.Violation{}).Count(&count).Error; err != nil {
			return false
		}
		return count == 1
	}, 5*time.Second, 20*time.Millisecond)
}
