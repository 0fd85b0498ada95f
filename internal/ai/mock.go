package ai

import (
	"context"
	"hash/fnv"
	"strings"
	"time"

	"github.com/glasswallet/router/internal/models"
)

// MockAdapter derives a stable pseudo-score from the lead ID and features.
// Same lead, same result.
type MockAdapter struct {
	ModelVersion string
}

func (m MockAdapter) ScoreLead(ctx context.Context, l models.Lead) (Result, int64, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Result{}, 0, err
	}
	h := leadHash(l.ID)

	prob := 0.35 + float64(h%40)/100
	if l.CreditScore != nil {
		switch {
		case *l.CreditScore >= 750:
			prob += 0.15
		case *l.CreditScore < 600:
			prob -= 0.1
		}
	}
	if l.Income != nil && *l.Income >= 75000 {
		prob += 0.1
	}
	if l.PreviousApplications != nil && *l.PreviousApplications > 2 {
		prob -= 0.05
	}
	if prob < 0 {
		prob = 0
	}
	if prob > 0.99 {
		prob = 0.99
	}

	res := Result{
		Score: models.AIScore{
			ConversionProbability: prob,
			QualityScore:          float64(h%100) / 100,
			ModelVersion:          m.ModelVersion,
		},
		Anomaly: detectAnomalies(l),
	}
	return res, time.Since(start).Milliseconds(), nil
}

func detectAnomalies(l models.Lead) models.AnomalyDetection {
	var reasons []string
	if strings.TrimSpace(l.Email) == "" && strings.TrimSpace(l.Phone) == "" {
		reasons = append(reasons, "no contact details")
	}
	if l.CreditScore != nil && (*l.CreditScore < 300 || *l.CreditScore > 850) {
		reasons = append(reasons, "credit score out of range")
	}
	if l.Income != nil && *l.Income < 0 {
		reasons = append(reasons, "negative income")
	}
	return models.AnomalyDetection{Flagged: len(reasons) > 0, Reasons: reasons}
}

func leadHash(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}
