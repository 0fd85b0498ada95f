package service

import (
	"context"
	"strings"

	"github.com/glasswallet/router/internal/models"
)

// LeadSource is where leads come from and where routing outcomes go. The
// Postgres store backs production; the in-memory store backs demos and
// tests. The choice is made once at startup.
type LeadSource interface {
	Ping(ctx context.Context) error
	PendingLeads(ctx context.Context) ([]models.Lead, error)
	ListLeads(ctx context.Context, status string, limit, offset int) ([]models.Lead, error)
	GetLead(ctx context.Context, id string) (models.Lead, error)
	InsertLeads(ctx context.Context, leads []models.Lead) (int64, error)
	SaveAssignment(ctx context.Context, a models.Assignment) error
	GetAssignment(ctx context.Context, leadID string) (models.Assignment, error)
	CreateRun(ctx context.Context, status string) (string, error)
	FinishRun(ctx context.Context, id string, status string, summary []byte) error
	LatestRun(ctx context.Context) (models.Run, error)
}

// BuildRoutingContext turns a stored lead and its optional scoring output
// into routing input.
func BuildRoutingContext(l models.Lead, score *models.AIScore, anomaly *models.AnomalyDetection) models.RoutingContext {
	rc := models.RoutingContext{
		LeadID: l.ID,
		Features: models.LeadFeatures{
			CreditScore:          l.CreditScore,
			Income:               l.Income,
			DeviceType:           l.DeviceType,
			PreviousApplications: l.PreviousApplications,
		},
		AIScore:  score,
		Tags:     append([]string(nil), l.Tags...),
		Anomaly:  anomaly,
		Priority: l.Priority,
	}
	if l.Source != "" {
		rc.Features.Extra = map[string]any{"source": l.Source}
	}
	if ch := strings.TrimSpace(l.PreferredChannel); ch != "" {
		rc.ContactPreferences = &models.ContactPreferences{PreferredChannel: ch}
	}
	return rc
}
