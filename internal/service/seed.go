package service

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/glasswallet/router/internal/models"
)

var weekdayShift = map[string]models.Shift{
	"monday":    {Start: "09:00", End: "17:00"},
	"tuesday":   {Start: "09:00", End: "17:00"},
	"wednesday": {Start: "09:00", End: "17:00"},
	"thursday":  {Start: "09:00", End: "17:00"},
	"friday":    {Start: "09:00", End: "17:00"},
}

// DefaultAgents is the demo pool used when no agents file is configured.
func DefaultAgents() []models.Agent {
	return []models.Agent{
		{
			ID:    "agent-1",
			Name:  "Sarah Johnson",
			Email: "sarah.johnson@glasswallet.io",
			Performance: models.AgentPerformance{
				ConversionRate:    0.85,
				AvgResponseTime:   12,
				AvgDealValue:      8500,
				SatisfactionScore: 4.8,
				ActiveLeads:       8,
				MaxLeads:          15,
			},
			Availability: models.AgentAvailability{
				Status:   models.StatusAvailable,
				Schedule: cloneSchedule(weekdayShift),
				Timezone: "America/New_York",
			},
			Preferences: models.AgentPreferences{
				LeadTypes:             []string{"premium", "high_value", "refinance"},
				CommunicationChannels: []string{ChannelPhone, ChannelEmail},
				WorkloadLevel:         "high",
			},
			Skills: models.AgentSkills{
				CreditSpecialist: true,
				HighValueDeals:   true,
				ClosingExpert:    true,
			},
		},
		{
			ID:    "agent-2",
			Name:  "Michael Chen",
			Email: "michael.chen@glasswallet.io",
			Performance: models.AgentPerformance{
				ConversionRate:    0.72,
				AvgResponseTime:   25,
				AvgDealValue:      5200,
				SatisfactionScore: 4.5,
				ActiveLeads:       5,
				MaxLeads:          20,
			},
			Availability: models.AgentAvailability{
				Status:   models.StatusAvailable,
				Schedule: cloneSchedule(weekdayShift),
				Timezone: "America/Chicago",
			},
			Preferences: models.AgentPreferences{
				LeadTypes:             []string{"new", "first_time", "standard"},
				CommunicationChannels: []string{ChannelPhone, ChannelSMS, ChannelEmail},
				WorkloadLevel:         "medium",
			},
			Skills: models.AgentSkills{
				NewLeadExpert: true,
			},
		},
		{
			ID:    "agent-3",
			Name:  "Jennifer Martinez",
			Email: "jennifer.martinez@glasswallet.io",
			Performance: models.AgentPerformance{
				ConversionRate:    0.68,
				AvgResponseTime:   45,
				AvgDealValue:      4100,
				SatisfactionScore: 4.6,
				ActiveLeads:       10,
				MaxLeads:          18,
			},
			Availability: models.AgentAvailability{
				Status:   models.StatusAvailable,
				Schedule: cloneSchedule(weekdayShift),
				Timezone: "America/Los_Angeles",
			},
			Preferences: models.AgentPreferences{
				LeadTypes:             []string{"credit_repair", "subprime", "difficult"},
				CommunicationChannels: []string{ChannelPhone, ChannelEmail},
				WorkloadLevel:         "medium",
			},
			Skills: models.AgentSkills{
				CreditSpecialist: true,
				DifficultCases:   true,
			},
		},
	}
}

type agentsFile struct {
	Agents []models.Agent `yaml:"agents"`
}

// LoadAgentsFile reads a YAML agent pool. Each agent is validated; a missing
// status defaults to available.
func LoadAgentsFile(path string) ([]models.Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f agentsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse agents file %s: %w", path, err)
	}
	v := validator.New()
	for i := range f.Agents {
		a := &f.Agents[i]
		a.ID = strings.TrimSpace(a.ID)
		if a.Availability.Status == "" {
			a.Availability.Status = models.StatusAvailable
		}
		if !a.Availability.Status.Valid() {
			return nil, fmt.Errorf("agent %q: unknown status %q", a.ID, a.Availability.Status)
		}
		if err := v.Struct(a); err != nil {
			return nil, fmt.Errorf("agent %q: %w", a.ID, err)
		}
	}
	return f.Agents, nil
}

// SeedRegistry loads the agents file when path is set, otherwise the
// built-in pool.
func SeedRegistry(r *Registry, path string) (int, error) {
	agents := DefaultAgents()
	if strings.TrimSpace(path) != "" {
		loaded, err := LoadAgentsFile(path)
		if err != nil {
			return 0, err
		}
		agents = loaded
	}
	for _, a := range agents {
		r.AddAgent(a)
	}
	return len(agents), nil
}

func cloneSchedule(in map[string]models.Shift) map[string]models.Shift {
	out := make(map[string]models.Shift, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
