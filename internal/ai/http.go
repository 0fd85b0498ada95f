package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/glasswallet/router/internal/models"
)

type HTTPAdapter struct {
	BaseURL string
	Client  *http.Client
}

type requestBody struct {
	LeadID               string   `json:"lead_id"`
	Source               string   `json:"source"`
	DeviceType           string   `json:"device_type"`
	CreditScore          *float64 `json:"credit_score,omitempty"`
	Income               *float64 `json:"income,omitempty"`
	PreviousApplications *int     `json:"previous_applications,omitempty"`
	Tags                 []string `json:"tags"`
}

type responseBody struct {
	LeadID                string   `json:"lead_id"`
	ConversionProbability float64  `json:"conversion_probability"`
	QualityScore          float64  `json:"quality_score"`
	Anomaly               struct {
		Flagged bool     `json:"flagged"`
		Reasons []string `json:"reasons"`
	} `json:"anomaly"`
	ModelVersion string `json:"model_version"`
}

func (h HTTPAdapter) ScoreLead(ctx context.Context, l models.Lead) (Result, int64, error) {
	if h.Client == nil {
		h.Client = &http.Client{Timeout: 15 * time.Second}
	}

	payload := requestBody{
		LeadID:               l.ID,
		Source:               l.Source,
		DeviceType:           l.DeviceType,
		CreditScore:          l.CreditScore,
		Income:               l.Income,
		PreviousApplications: l.PreviousApplications,
		Tags:                 l.Tags,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Result{}, 0, err
	}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/score", bytes.NewBuffer(b))
	if err != nil {
		return Result{}, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return Result{}, time.Since(start).Milliseconds(), err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, time.Since(start).Milliseconds(), fmt.Errorf("scoring service error: %s", resp.Status)
	}

	var r responseBody
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Result{}, time.Since(start).Milliseconds(), err
	}

	res := Result{
		Score: models.AIScore{
			ConversionProbability: r.ConversionProbability,
			QualityScore:          r.QualityScore,
			ModelVersion:          r.ModelVersion,
		},
		Anomaly: models.AnomalyDetection{
			Flagged: r.Anomaly.Flagged,
			Reasons: r.Anomaly.Reasons,
		},
	}
	return res, time.Since(start).Milliseconds(), nil
}
