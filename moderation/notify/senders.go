package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/hashicorp/go-retryablehttp"
)

// LogSender logs intents instead of delivering them. Default when no
// push transport is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, userID, notifType, title, body string, payload map[string]string) error {
	s.Logger.Info("push notification (no transport configured)",
		"userID", userID, "type", notifType, "title", title)
	return nil
}

// LogInbox logs system messages instead of writing them. Default when no
// inbox transport is configured.
type LogInbox struct {
	Logger *slog.Logger
}

func (s *LogInbox) SendSystemMessage(ctx context.Context, userID, title, body, category string) error {
	s.Logger.Info("inbox message (no transport configured)",
		"userID", userID, "category", category, "title", title)
	return nil
}

// WebhookSender delivers pushes and inbox messages to the platform's
// notification service over HTTP. Delivery details past the webhook
// (device tokens, OS delivery) belong to that service.
type WebhookSender struct {
	Host   string
	Token  string
	client *retryablehttp.Client
}

func NewWebhookSender(host, token string) *WebhookSender {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = 3 * time.Second
	client.Logger = nil
	return &WebhookSender{
		Host:   host,
		Token:  token,
		client: client,
	}
}

type webhookMessage struct {
	UserID   string            `json:"user_id"`
	Channel  string            `json:"channel"`
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Category string            `json:"category,omitempty"`
	Payload  map[string]string `json:"payload,omitempty"`
}

func (s *WebhookSender) post(ctx context.Context, msg *webhookMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", s.Host+"/v1/notifications", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "guardian/"+versioninfo.Short())
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("notification webhook status %d", resp.StatusCode)
	}
	return nil
}

func (s *WebhookSender) Send(ctx context.Context, userID, notifType, title, body string, payload map[string]string) error {
	return s.post(ctx, &webhookMessage{
		UserID:  userID,
		Channel: "push",
		Type:    notifType,
		Title:   title,
		Body:    body,
		Payload: payload,
	})
}

func (s *WebhookSender) SendSystemMessage(ctx context.Context, userID, title, body, category string) error {
	return s.post(ctx, &webhookMessage{
		UserID:   userID,
		Channel:  "inbox",
		Title:    title,
		Body:     body,
		Category: category,
	})
}
