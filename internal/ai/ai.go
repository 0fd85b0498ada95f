package ai

import (
	"context"

	"github.com/glasswallet/router/internal/models"
)

// Result is the scoring output for one lead.
type Result struct {
	Score   models.AIScore
	Anomaly models.AnomalyDetection
}

// Adapter scores leads. Implementations return the call latency in
// milliseconds alongside the result.
type Adapter interface {
	ScoreLead(ctx context.Context, l models.Lead) (Result, int64, error)
}
