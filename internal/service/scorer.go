package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/glasswallet/router/internal/models"
)

// Term weights. The performance blend is scaled by performanceBlendWeight
// before performanceWeight is applied, so it is weighted twice. The values
// are provisional heuristics kept as-is.
const (
	performanceWeight      = 0.4
	performanceBlendWeight = 0.4
	leadMatchWeight        = 0.3
	aiScoreWeight          = 0.2
	availabilityWeight     = 0.1
)

const defaultReasoning = "Standard agent matching applied"

type AgentScore struct {
	Agent           models.Agent `json:"agent"`
	Score           float64      `json:"score"`
	Reasoning       string       `json:"reasoning"`
	ReasoningPoints []string     `json:"reasoning_points"`
}

// ScoreAgent rates one candidate for the lead in [0, 1]. The score ranks
// candidates; it is not a calibrated probability.
func ScoreAgent(a models.Agent, in RuleInput) AgentScore {
	var points []string

	perf, perfPoints := performanceScore(a)
	points = append(points, perfPoints...)

	match, matchPoints := leadMatchScore(a, in.Context)
	points = append(points, matchPoints...)

	ai, aiPoints := aiAlignmentScore(a, in.Context)
	points = append(points, aiPoints...)

	avail, availPoints := availabilityScore(a, in.Urgency)
	points = append(points, availPoints...)

	score := perf*performanceWeight +
		match*leadMatchWeight +
		ai*aiScoreWeight +
		avail*availabilityWeight

	reasoning := defaultReasoning
	if len(points) > 0 {
		reasoning = strings.Join(points, "; ")
	}
	return AgentScore{
		Agent:           a,
		Score:           clamp01(score),
		Reasoning:       reasoning,
		ReasoningPoints: points,
	}
}

// RankAgents scores every agent and orders them by score, highest first.
// Equal scores keep the incoming order.
func RankAgents(agents []models.Agent, in RuleInput) []AgentScore {
	scored := make([]AgentScore, 0, len(agents))
	for _, a := range agents {
		scored = append(scored, ScoreAgent(a, in))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

func performanceScore(a models.Agent) (float64, []string) {
	p := a.Performance
	blend := p.ConversionRate*0.4 +
		(5-p.AvgResponseTime/60)*0.1 +
		(p.AvgDealValue/10000)*0.2 +
		p.SatisfactionScore*0.1 +
		(1-p.LoadRatio())*0.2

	var points []string
	if p.ConversionRate >= 0.8 {
		points = append(points, fmt.Sprintf("Top performer with %.0f%% conversion rate", p.ConversionRate*100))
	}
	if p.SatisfactionScore >= 4.5 {
		points = append(points, fmt.Sprintf("High customer satisfaction (%.1f/5)", p.SatisfactionScore))
	}
	return blend * performanceBlendWeight, points
}

func leadMatchScore(a models.Agent, c models.RoutingContext) (float64, []string) {
	var (
		score  float64
		points []string
	)

	if cs := c.Features.CreditScore; cs != nil {
		switch {
		case *cs >= 750 && a.Skills.CreditSpecialist:
			score += 0.15
			points = append(points, fmt.Sprintf("Credit specialist for excellent credit (%.0f)", *cs))
		case *cs < 600 && a.Skills.DifficultCases:
			score += 0.12
			points = append(points, fmt.Sprintf("Handles challenging credit profiles (%.0f)", *cs))
		}
	}

	if c.Features.IncomeAtLeast(75000) && a.Skills.HighValueDeals {
		score += 0.1
		points = append(points, fmt.Sprintf("High-value deal specialist for income %.0f", *c.Features.Income))
	}

	for _, tag := range c.Tags {
		if lt, ok := matchLeadType(tag, a.Preferences.LeadTypes); ok {
			score += 0.05
			points = append(points, fmt.Sprintf("Prefers %s leads", lt))
		}
	}
	return score, points
}

func aiAlignmentScore(a models.Agent, c models.RoutingContext) (float64, []string) {
	var (
		score  float64
		points []string
	)
	if prob, ok := c.ConversionProbability(); ok && prob >= 0.8 && a.Skills.ClosingExpert {
		score += 0.15
		points = append(points, fmt.Sprintf("Closing expert for high-probability lead (%.0f%%)", prob*100))
	}
	if !c.Features.HasPreviousApplications() && a.Skills.NewLeadExpert {
		score += 0.1
		points = append(points, "New lead expert for first-time applicant")
	}
	return score, points
}

func availabilityScore(a models.Agent, urgency models.Urgency) (float64, []string) {
	var (
		score  float64
		points []string
	)
	p := a.Performance
	if urgency == models.UrgencyUrgent && p.AvgResponseTime <= 30 {
		score += 0.08
		points = append(points, fmt.Sprintf("Fast responder for urgent lead (%.0f min average)", p.AvgResponseTime))
	}
	if urgency == models.UrgencyUrgent || urgency == models.UrgencyHigh {
		spare := 1 - p.LoadRatio()
		score += spare * 0.05
		if spare > 0 {
			points = append(points, fmt.Sprintf("Has capacity (%d/%d active leads)", p.ActiveLeads, p.MaxLeads))
		}
	}
	return score, points
}

// matchLeadType reports the first lead type that the tag contains or that
// contains the tag, ignoring case.
func matchLeadType(tag string, leadTypes []string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(tag))
	if t == "" {
		return "", false
	}
	for _, lt := range leadTypes {
		l := strings.ToLower(strings.TrimSpace(lt))
		if l == "" {
			continue
		}
		if strings.Contains(t, l) || strings.Contains(l, t) {
			return lt, true
		}
	}
	return "", false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
