package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/hashicorp/go-retryablehttp"
)

// RemoteClassifier calls an external text-scoring service over HTTP. The
// scoring model itself is a black box; this client only handles
// transport, auth, bounded retries, and response mapping. Callers are
// expected to wrap it with FailOpenClassifier.
type RemoteClassifier struct {
	Client   *http.Client
	Host     string
	APIToken string
}

var _ Classifier = (*RemoteClassifier)(nil)

func NewRemoteClassifier(host, token string) *RemoteClassifier {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 1 * time.Second
	retryClient.Logger = nil
	client := retryClient.StandardClient()
	// outage degrades to fail-open upstream, so keep the deadline short
	client.Timeout = 3 * time.Second
	return &RemoteClassifier{
		Client:   client,
		Host:     host,
		APIToken: token,
	}
}

type remoteScoreRequest struct {
	Text string `json:"text"`
}

type remoteScoreResponse struct {
	Scores Score `json:"scores"`
}

func (c *RemoteClassifier) Classify(ctx context.Context, text string) (*Score, error) {
	start := time.Now()
	defer func() {
		remoteClassifyDuration.Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(remoteScoreRequest{Text: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Host+"/v1/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "guardian/"+versioninfo.Short())
	if c.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		remoteClassifyErrorCount.Inc()
		return nil, fmt.Errorf("scoring request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		remoteClassifyErrorCount.Inc()
		return nil, fmt.Errorf("scoring request failed: status=%d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		remoteClassifyErrorCount.Inc()
		return nil, fmt.Errorf("reading scoring response: %w", err)
	}

	var out remoteScoreResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		remoteClassifyErrorCount.Inc()
		return nil, fmt.Errorf("parsing scoring response: %w", err)
	}
	return &out.Scores, nil
}
