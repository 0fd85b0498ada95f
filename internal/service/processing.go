package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/glasswallet/router/internal/ai"
	"github.com/glasswallet/router/internal/metrics"
	"github.com/glasswallet/router/internal/models"
)

const (
	RunRunning = "RUNNING"
	RunSuccess = "SUCCESS"
	RunFailed  = "FAILED"
)

// ErrRunInProgress is returned when a batch is started while another one
// is still routing.
var ErrRunInProgress = errors.New("lead processing already in progress")

type ProcessingService struct {
	Source LeadSource
	AI     ai.Adapter
	Router *Router
	Logger zerolog.Logger

	running sync.Mutex
}

type RunSummary struct {
	RunID   string           `json:"run_id,omitempty"`
	Events  []map[string]any `json:"events"`
	Counts  map[string]any   `json:"counts"`
	Samples []map[string]any `json:"samples,omitempty"`
}

// Run records a processing run around ProcessLeads. Only one batch runs at
// a time; a concurrent call gets ErrRunInProgress and no run is recorded.
func (s *ProcessingService) Run(ctx context.Context, debug bool) (RunSummary, error) {
	if !s.running.TryLock() {
		return RunSummary{}, ErrRunInProgress
	}
	defer s.running.Unlock()

	runID, err := s.Source.CreateRun(ctx, RunRunning)
	if err != nil {
		return RunSummary{}, err
	}

	summary, err := s.processLeads(ctx, debug)
	summary.RunID = runID
	status := RunSuccess
	if err != nil {
		status = RunFailed
	}
	b, _ := json.Marshal(summary)
	if finishErr := s.Source.FinishRun(ctx, runID, status, b); finishErr != nil {
		s.Logger.Error().Err(finishErr).Str("run_id", runID).Msg("failed to finish run")
	}
	return summary, err
}

// ProcessLeads scores and routes every pending lead, persisting one
// assignment per lead. A scoring failure does not stop the lead from being
// routed; it is routed without an AI score.
func (s *ProcessingService) ProcessLeads(ctx context.Context, debug bool) (RunSummary, error) {
	if !s.running.TryLock() {
		return RunSummary{}, ErrRunInProgress
	}
	defer s.running.Unlock()
	return s.processLeads(ctx, debug)
}

func (s *ProcessingService) processLeads(ctx context.Context, debug bool) (RunSummary, error) {
	leads, err := s.Source.PendingLeads(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{Counts: map[string]any{}}
	start := time.Now()
	summary.Events = append(summary.Events, map[string]any{
		"type":    "load",
		"message": "Leads ready for routing",
		"count":   len(leads),
		"time":    time.Now().UTC(),
	})

	var (
		scoredCount     int
		latencyTotal    int64
		aiErrors        int
		anomalies       int
		assignedCount   int
		unassignedCount int
		writeErrors     int
		byUrgency       = map[string]int{}
		failureReasons  = map[string]int{}
	)

	for _, l := range leads {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		var (
			score   *models.AIScore
			anomaly *models.AnomalyDetection
		)
		res, latencyMs, err := s.AI.ScoreLead(ctx, l)
		if err != nil {
			aiErrors++
			metrics.ObserveAIError()
			s.Logger.Warn().Err(err).Str("lead_id", l.ID).Msg("lead scoring failed, routing without score")
		} else {
			scoredCount++
			latencyTotal += latencyMs
			score = &res.Score
			anomaly = &res.Anomaly
			if res.Anomaly.Flagged {
				anomalies++
			}
		}

		rc := BuildRoutingContext(l, score, anomaly)
		decision, err := s.Router.RouteLead(ctx, rc)
		if err != nil {
			code, text := RoutingFailure(err)
			unassignedCount++
			failureReasons[code]++
			if werr := s.writeAssignment(ctx, l.ID, nil, models.AssignmentUnassigned, code, text, map[string]any{"error": err.Error()}); werr != nil {
				writeErrors++
				s.Logger.Error().Err(werr).Str("lead_id", l.ID).Msg("assignment write failed")
			}
			if debug && len(summary.Samples) < 5 {
				summary.Samples = append(summary.Samples, map[string]any{
					"lead_id":     l.ID,
					"reason_code": code,
					"reason_text": text,
				})
			}
			continue
		}

		if err := s.writeAssignment(ctx, l.ID, &decision, models.AssignmentAssigned, "ASSIGNED", "Routed by scoring", nil); err != nil {
			writeErrors++
			s.Logger.Error().Err(err).Str("lead_id", l.ID).Msg("assignment write failed")
			continue
		}
		s.Router.Registry().AssignLead(decision.RecommendedAgent.ID)
		assignedCount++
		byUrgency[string(decision.UrgencyLevel)]++
		if debug && len(summary.Samples) < 5 {
			summary.Samples = append(summary.Samples, map[string]any{
				"lead_id":    l.ID,
				"agent_id":   decision.RecommendedAgent.ID,
				"confidence": decision.Confidence,
				"reasoning":  decision.Reasoning,
			})
		}
	}

	summary.Events = append(summary.Events, map[string]any{
		"type":           "ai_scoring",
		"message":        "Lead scoring complete",
		"count":          scoredCount,
		"avg_latency_ms": avgLatency(latencyTotal, scoredCount),
		"errors":         aiErrors,
		"anomalies":      anomalies,
		"time":           time.Now().UTC(),
	})
	summary.Events = append(summary.Events, map[string]any{
		"type":       "routing",
		"assigned":   assignedCount,
		"unassigned": unassignedCount,
		"by_urgency": byUrgency,
		"time":       time.Now().UTC(),
	})
	summary.Events = append(summary.Events, map[string]any{
		"type":         "save",
		"message":      "Assignments saved",
		"write_errors": writeErrors,
		"elapsed_ms":   time.Since(start).Milliseconds(),
		"time":         time.Now().UTC(),
	})

	summary.Counts["leads_processed"] = len(leads)
	summary.Counts["assigned"] = assignedCount
	summary.Counts["unassigned"] = unassignedCount
	summary.Counts["ai_errors"] = aiErrors
	summary.Counts["anomalies"] = anomalies
	summary.Counts["write_errors"] = writeErrors
	summary.Counts["failure_reasons"] = failureReasons

	s.Logger.Info().
		Int("leads", len(leads)).
		Int("assigned", assignedCount).
		Int("unassigned", unassignedCount).
		Int("ai_errors", aiErrors).
		Msg("lead processing finished")
	return summary, nil
}

func (s *ProcessingService) writeAssignment(ctx context.Context, leadID string, decision *models.RoutingDecision, status, reasonCode, reasonText string, details map[string]any) error {
	a := models.Assignment{
		ID:         uuid.NewString(),
		LeadID:     leadID,
		Status:     status,
		ReasonCode: reasonCode,
		ReasonText: reasonText,
		AssignedAt: time.Now().UTC(),
	}
	var payload any = details
	if decision != nil {
		agentID := decision.RecommendedAgent.ID
		a.AgentID = &agentID
		a.Urgency = decision.UrgencyLevel
		a.Confidence = decision.Confidence
		payload = decision
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	a.Decision = b
	return s.Source.SaveAssignment(ctx, a)
}

// RoutingFailure maps a routing error to a reason code and the generic
// message surfaced to callers.
func RoutingFailure(err error) (string, string) {
	switch {
	case errors.Is(err, ErrNoAgentsAvailable):
		return ReasonNoAgentsAvailable, "Failed to route lead intelligently: no agents available"
	case errors.Is(err, ErrNoSuitableAgent):
		return ReasonNoSuitableAgent, "Failed to route lead intelligently: no suitable agent"
	default:
		return "ROUTING_ERROR", "Failed to route lead intelligently"
	}
}

func avgLatency(total int64, count int) int64 {
	if count == 0 {
		return 0
	}
	return total / int64(count)
}
