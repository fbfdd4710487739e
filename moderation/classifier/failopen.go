package classifier

import (
	"context"
	"log/slog"
)

// FailOpenClassifier wraps a backend so classification can never block the
// pipeline: on any backend error it logs, counts the outage, and returns
// the zero score, which downstream policy maps to "allow". Blocking all
// chat traffic on a scoring outage is a worse failure than letting
// unscored messages through.
type FailOpenClassifier struct {
	Logger *slog.Logger
	Inner  Classifier
}

var _ Classifier = (*FailOpenClassifier)(nil)

func NewFailOpenClassifier(logger *slog.Logger, inner Classifier) *FailOpenClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailOpenClassifier{
		Logger: logger,
		Inner:  inner,
	}
}

func (c *FailOpenClassifier) Classify(ctx context.Context, text string) (*Score, error) {
	score, err := c.Inner.Classify(ctx, text)
	if err != nil {
		c.Logger.Error("classifier backend failed, failing open", "err", err)
		classifierFailOpenCount.Inc()
		return &Score{}, nil
	}
	if score == nil {
		score = &Score{}
	}
	return score, nil
}
