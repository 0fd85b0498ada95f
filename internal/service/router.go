package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/glasswallet/router/internal/metrics"
	"github.com/glasswallet/router/internal/models"
)

var (
	ErrNoAgentsAvailable = errors.New("no agents available")
	ErrNoSuitableAgent   = errors.New("no suitable agent found")
)

const (
	ReasonNoAgentsAvailable = "NO_AGENTS_AVAILABLE"
	ReasonNoSuitableAgent   = "NO_SUITABLE_AGENT"

	maxAlternatives = 3
)

// Router picks an agent for a lead: available agents are narrowed by the
// rule pipeline, scored, and the best one is recommended.
type Router struct {
	registry *Registry
	rules    []RoutingRule
	now      Clock
	stats    *Stats
	logger   zerolog.Logger
}

type RouterOption func(*Router)

func WithRules(rules []RoutingRule) RouterOption {
	return func(r *Router) {
		r.rules = append([]RoutingRule(nil), rules...)
	}
}

func WithRouterClock(c Clock) RouterOption {
	return func(r *Router) {
		if c != nil {
			r.now = c
		}
	}
}

func NewRouter(registry *Registry, logger zerolog.Logger, opts ...RouterOption) *Router {
	r := &Router{
		registry: registry,
		rules:    DefaultRules(),
		now:      time.Now,
		stats:    NewStats(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Registry() *Registry { return r.registry }

func (r *Router) Stats() *Stats { return r.stats }

func (r *Router) Rules() []RoutingRule {
	return append([]RoutingRule(nil), r.rules...)
}

// Explanation is the full trace of one routing pass.
type Explanation struct {
	LeadID    string         `json:"lead_id"`
	Urgency   models.Urgency `json:"urgency"`
	Available []string       `json:"available"`
	Stages    []RuleStage    `json:"stages"`
	Ranked    []AgentScore   `json:"ranked"`
}

// Explain runs filtering and scoring without recording a decision.
func (r *Router) Explain(rc models.RoutingContext) (Explanation, error) {
	available := r.registry.GetAvailableAgents()
	in := RuleInput{Context: rc, Urgency: DetermineUrgency(rc, r.now())}
	exp := Explanation{
		LeadID:    rc.LeadID,
		Urgency:   in.Urgency,
		Available: agentIDs(available),
	}
	if len(available) == 0 {
		return exp, ErrNoAgentsAvailable
	}
	pipeline := ApplyRules(r.rules, available, in)
	exp.Stages = pipeline.Stages
	exp.Ranked = RankAgents(pipeline.Eligible, in)
	if len(exp.Ranked) == 0 {
		return exp, ErrNoSuitableAgent
	}
	return exp, nil
}

// RouteLead returns the recommended agent for the lead, or
// ErrNoAgentsAvailable / ErrNoSuitableAgent. Failed attempts are not retried.
func (r *Router) RouteLead(ctx context.Context, rc models.RoutingContext) (models.RoutingDecision, error) {
	if err := ctx.Err(); err != nil {
		return models.RoutingDecision{}, err
	}
	start := time.Now()
	now := r.now()

	available := r.registry.GetAvailableAgents()
	if len(available) == 0 {
		return models.RoutingDecision{}, r.fail(rc, ReasonNoAgentsAvailable, ErrNoAgentsAvailable)
	}

	in := RuleInput{Context: rc, Urgency: DetermineUrgency(rc, now)}
	pipeline := ApplyRules(r.rules, available, in)
	for _, stage := range pipeline.Stages {
		if stage.Applied {
			metrics.ObserveRuleApplied(stage.Rule)
		}
	}

	ranked := RankAgents(pipeline.Eligible, in)
	if len(ranked) == 0 {
		return models.RoutingDecision{}, r.fail(rc, ReasonNoSuitableAgent, ErrNoSuitableAgent)
	}

	decision := assembleDecision(rc, in.Urgency, ranked, now)
	r.stats.RecordDecision(decision)
	metrics.ObserveDecision(string(decision.UrgencyLevel), decision.Confidence, time.Since(start))

	r.logger.Info().
		Str("lead_id", rc.LeadID).
		Str("agent_id", decision.RecommendedAgent.ID).
		Str("urgency", string(decision.UrgencyLevel)).
		Float64("confidence", decision.Confidence).
		Int("candidates", len(ranked)).
		Msg("lead routed")
	return decision, nil
}

func (r *Router) fail(rc models.RoutingContext, reason string, err error) error {
	r.stats.RecordFailure(reason)
	metrics.ObserveFailure(reason)
	r.logger.Warn().Str("lead_id", rc.LeadID).Str("reason", reason).Msg("lead routing failed")
	return fmt.Errorf("route lead %s: %w", rc.LeadID, err)
}

func assembleDecision(rc models.RoutingContext, urgency models.Urgency, ranked []AgentScore, now time.Time) models.RoutingDecision {
	best := ranked[0]
	alternatives := make([]models.AlternativeOption, 0, maxAlternatives)
	for _, s := range ranked[1:] {
		if len(alternatives) == maxAlternatives {
			break
		}
		alternatives = append(alternatives, models.AlternativeOption{
			Agent:      s.Agent,
			Confidence: s.Score,
			Reasoning:  s.Reasoning,
		})
	}
	return models.RoutingDecision{
		ID:                    uuid.NewString(),
		LeadID:                rc.LeadID,
		RecommendedAgent:      best.Agent,
		Confidence:            best.Score,
		Reasoning:             best.Reasoning,
		AlternativeOptions:    alternatives,
		UrgencyLevel:          urgency,
		EstimatedResponseTime: EstimateResponseTime(best.Agent, urgency),
		FollowUpStrategy:      BuildFollowUpStrategy(rc, urgency),
		DecidedAt:             now.UTC(),
	}
}
