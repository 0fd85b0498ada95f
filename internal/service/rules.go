package service

import (
	"sort"

	"github.com/glasswallet/router/internal/models"
)

const (
	RuleHighPriorityTopPerformers = "high-priority-to-top-performers"
	RuleHighValueSpecialists      = "high-value-specialists"
	RuleCreditSpecialists         = "credit-specialists"
	RuleNewLeadExperts            = "new-lead-experts"
	RuleWorkloadBalancing         = "workload-balancing"
)

// RuleInput is what a rule sees: the lead context plus the urgency derived
// from it before filtering starts.
type RuleInput struct {
	Context models.RoutingContext
	Urgency models.Urgency
}

// RoutingRule narrows or reorders the candidate list. A selector result
// only replaces the working set when it is non-empty.
type RoutingRule struct {
	Name          string
	Description   string
	Priority      int
	Condition     func(in RuleInput) bool
	AgentSelector func(agents []models.Agent, in RuleInput) []models.Agent
}

type RuleStage struct {
	Rule       string   `json:"rule"`
	Priority   int      `json:"priority"`
	Matched    bool     `json:"matched"`
	Applied    bool     `json:"applied"`
	Candidates []string `json:"candidates"`
}

type PipelineResult struct {
	Eligible []models.Agent
	Stages   []RuleStage
}

func DefaultRules() []RoutingRule {
	return []RoutingRule{
		{
			Name:        RuleHighPriorityTopPerformers,
			Description: "Urgent and high priority leads go to agents converting at 80% or better",
			Priority:    95,
			Condition: func(in RuleInput) bool {
				return in.Urgency == models.UrgencyUrgent || in.Urgency == models.UrgencyHigh
			},
			AgentSelector: func(agents []models.Agent, _ RuleInput) []models.Agent {
				out := filterAgents(agents, func(a models.Agent) bool {
					return a.Performance.ConversionRate >= 0.8
				})
				sort.SliceStable(out, func(i, j int) bool {
					return out[i].Performance.ConversionRate > out[j].Performance.ConversionRate
				})
				return out
			},
		},
		{
			Name:        RuleHighValueSpecialists,
			Description: "Leads with income of 75000 or more go to high-value deal specialists",
			Priority:    85,
			Condition: func(in RuleInput) bool {
				return in.Context.Features.IncomeAtLeast(75000)
			},
			AgentSelector: func(agents []models.Agent, _ RuleInput) []models.Agent {
				return filterAgents(agents, func(a models.Agent) bool {
					return a.Skills.HighValueDeals
				})
			},
		},
		{
			Name:        RuleCreditSpecialists,
			Description: "Leads with a credit score go to credit specialists",
			Priority:    80,
			Condition: func(in RuleInput) bool {
				return in.Context.Features.CreditScore != nil
			},
			AgentSelector: func(agents []models.Agent, _ RuleInput) []models.Agent {
				return filterAgents(agents, func(a models.Agent) bool {
					return a.Skills.CreditSpecialist
				})
			},
		},
		{
			Name:        RuleNewLeadExperts,
			Description: "First-time applicants go to new lead experts",
			Priority:    75,
			Condition: func(in RuleInput) bool {
				return !in.Context.Features.HasPreviousApplications()
			},
			AgentSelector: func(agents []models.Agent, _ RuleInput) []models.Agent {
				return filterAgents(agents, func(a models.Agent) bool {
					return a.Skills.NewLeadExpert
				})
			},
		},
		{
			Name:        RuleWorkloadBalancing,
			Description: "Order remaining agents by current workload, lightest first",
			Priority:    50,
			Condition:   func(RuleInput) bool { return true },
			AgentSelector: func(agents []models.Agent, _ RuleInput) []models.Agent {
				out := append([]models.Agent(nil), agents...)
				sort.SliceStable(out, func(i, j int) bool {
					return out[i].Performance.LoadRatio() < out[j].Performance.LoadRatio()
				})
				return out
			},
		},
	}
}

// ApplyRules runs rules from highest to lowest priority. Ties keep their
// registration order. Each matching rule may re-filter or re-order the
// working set; an empty selector result is discarded and the previous set
// carries on to the next rule.
func ApplyRules(rules []RoutingRule, agents []models.Agent, in RuleInput) PipelineResult {
	ordered := append([]RoutingRule(nil), rules...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	current := append([]models.Agent(nil), agents...)
	result := PipelineResult{}
	for _, rule := range ordered {
		stage := RuleStage{Rule: rule.Name, Priority: rule.Priority}
		if rule.Condition != nil && rule.Condition(in) {
			stage.Matched = true
			if rule.AgentSelector != nil {
				selected := rule.AgentSelector(current, in)
				if len(selected) > 0 {
					current = selected
					stage.Applied = true
				}
			}
		}
		stage.Candidates = agentIDs(current)
		result.Stages = append(result.Stages, stage)
	}
	result.Eligible = current
	return result
}

func filterAgents(agents []models.Agent, keep func(models.Agent) bool) []models.Agent {
	out := make([]models.Agent, 0, len(agents))
	for _, a := range agents {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func agentIDs(agents []models.Agent) []string {
	ids := make([]string, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	return ids
}
