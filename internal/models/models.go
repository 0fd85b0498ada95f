package models

import (
	"encoding/json"
	"time"
)

type AgentStatus string

const (
	StatusAvailable AgentStatus = "available"
	StatusBusy      AgentStatus = "busy"
	StatusOffline   AgentStatus = "offline"
	StatusBreak     AgentStatus = "break"
)

func (s AgentStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusBusy, StatusOffline, StatusBreak:
		return true
	}
	return false
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

// Rank orders urgency tiers; unknown values rank below low.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyLow:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyHigh:
		return 3
	case UrgencyUrgent:
		return 4
	}
	return 0
}

func (u Urgency) Valid() bool {
	return u.Rank() > 0
}

type Agent struct {
	ID           string            `json:"id" yaml:"id" validate:"required"`
	Name         string            `json:"name" yaml:"name" validate:"required"`
	Email        string            `json:"email" yaml:"email" validate:"omitempty,email"`
	Performance  AgentPerformance  `json:"performance" yaml:"performance"`
	Availability AgentAvailability `json:"availability" yaml:"availability"`
	Preferences  AgentPreferences  `json:"preferences" yaml:"preferences"`
	Skills       AgentSkills       `json:"skills" yaml:"skills"`
}

type AgentPerformance struct {
	ConversionRate    float64 `json:"conversion_rate" yaml:"conversion_rate" validate:"gte=0,lte=1"`
	AvgResponseTime   float64 `json:"avg_response_time" yaml:"avg_response_time" validate:"gte=0"`
	AvgDealValue      float64 `json:"avg_deal_value" yaml:"avg_deal_value" validate:"gte=0"`
	SatisfactionScore float64 `json:"satisfaction_score" yaml:"satisfaction_score" validate:"gte=0,lte=5"`
	ActiveLeads       int     `json:"active_leads" yaml:"active_leads" validate:"gte=0"`
	MaxLeads          int     `json:"max_leads" yaml:"max_leads" validate:"gte=0"`
}

// LoadRatio is ActiveLeads/MaxLeads; an agent without capacity counts as full.
func (p AgentPerformance) LoadRatio() float64 {
	if p.MaxLeads <= 0 {
		return 1
	}
	return float64(p.ActiveLeads) / float64(p.MaxLeads)
}

func (p AgentPerformance) HasCapacity() bool {
	return p.ActiveLeads < p.MaxLeads
}

type AgentAvailability struct {
	Status     AgentStatus      `json:"status" yaml:"status"`
	Schedule   map[string]Shift `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Timezone   string           `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	LastActive time.Time        `json:"last_active" yaml:"last_active,omitempty"`
}

// Shift is a working window for one weekday, "HH:MM" in the agent's timezone.
type Shift struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

type AgentPreferences struct {
	LeadTypes             []string `json:"lead_types" yaml:"lead_types"`
	CommunicationChannels []string `json:"communication_channels" yaml:"communication_channels"`
	WorkloadLevel         string   `json:"workload_level" yaml:"workload_level"`
}

type AgentSkills struct {
	CreditSpecialist bool `json:"credit_specialist" yaml:"credit_specialist"`
	HighValueDeals   bool `json:"high_value_deals" yaml:"high_value_deals"`
	DifficultCases   bool `json:"difficult_cases" yaml:"difficult_cases"`
	NewLeadExpert    bool `json:"new_lead_expert" yaml:"new_lead_expert"`
	ClosingExpert    bool `json:"closing_expert" yaml:"closing_expert"`
}

type LeadFeatures struct {
	CreditScore          *float64       `json:"credit_score,omitempty"`
	Income               *float64       `json:"income,omitempty"`
	DeviceType           string         `json:"device_type,omitempty"`
	PreviousApplications *int           `json:"previous_applications,omitempty"`
	Extra                map[string]any `json:"extra,omitempty"`
}

// HasPreviousApplications treats a missing or zero count as a new lead.
func (f LeadFeatures) HasPreviousApplications() bool {
	return f.PreviousApplications != nil && *f.PreviousApplications > 0
}

func (f LeadFeatures) IncomeAtLeast(v float64) bool {
	return f.Income != nil && *f.Income >= v
}

type AIScore struct {
	ConversionProbability float64 `json:"conversion_probability"`
	QualityScore          float64 `json:"quality_score,omitempty"`
	ModelVersion          string  `json:"model_version,omitempty"`
}

type AnomalyDetection struct {
	Flagged bool     `json:"flagged"`
	Reasons []string `json:"reasons,omitempty"`
}

type ContactPreferences struct {
	PreferredChannel string `json:"preferred_channel,omitempty"`
	BestTimeToCall   string `json:"best_time_to_call,omitempty"`
}

type TimeConstraints struct {
	Deadline *time.Time `json:"deadline,omitempty"`
}

type RoutingContext struct {
	LeadID             string              `json:"lead_id" validate:"required"`
	Features           LeadFeatures        `json:"features"`
	AIScore            *AIScore            `json:"ai_score,omitempty"`
	Tags               []string            `json:"tags,omitempty"`
	Anomaly            *AnomalyDetection   `json:"anomaly_detection,omitempty"`
	Priority           Urgency             `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	ContactPreferences *ContactPreferences `json:"contact_preferences,omitempty"`
	TimeConstraints    *TimeConstraints    `json:"time_constraints,omitempty"`
}

func (c RoutingContext) ConversionProbability() (float64, bool) {
	if c.AIScore == nil {
		return 0, false
	}
	return c.AIScore.ConversionProbability, true
}

func (c RoutingContext) AnomalyFlagged() bool {
	return c.Anomaly != nil && c.Anomaly.Flagged
}

type AlternativeOption struct {
	Agent      Agent   `json:"agent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type FollowUpStrategy struct {
	PrimaryChannel   string   `json:"primary_channel"`
	SecondaryChannel string   `json:"secondary_channel"`
	Timing           string   `json:"timing"`
	FallbackActions  []string `json:"fallback_actions"`
}

type RoutingDecision struct {
	ID                    string              `json:"id"`
	LeadID                string              `json:"lead_id"`
	RecommendedAgent      Agent               `json:"recommended_agent"`
	Confidence            float64             `json:"confidence"`
	Reasoning             string              `json:"reasoning"`
	AlternativeOptions    []AlternativeOption `json:"alternative_options"`
	UrgencyLevel          Urgency             `json:"urgency_level"`
	EstimatedResponseTime int                 `json:"estimated_response_time"`
	FollowUpStrategy      FollowUpStrategy    `json:"follow_up_strategy"`
	DecidedAt             time.Time           `json:"decided_at"`
}

const (
	LeadStatusNew        = "new"
	LeadStatusAssigned   = "assigned"
	LeadStatusUnassigned = "unassigned"
	LeadStatusError      = "error"
)

type Lead struct {
	ID                   string    `json:"id"`
	CreatedAt            time.Time `json:"created_at"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	Phone                string    `json:"phone"`
	Source               string    `json:"source"`
	DeviceType           string    `json:"device_type"`
	CreditScore          *float64  `json:"credit_score"`
	Income               *float64  `json:"income"`
	PreviousApplications *int      `json:"previous_applications"`
	Tags                 []string  `json:"tags"`
	PreferredChannel     string    `json:"preferred_channel,omitempty"`
	Priority             Urgency   `json:"priority,omitempty"`
	Status               string    `json:"status"`
}

const (
	AssignmentAssigned   = "ASSIGNED"
	AssignmentUnassigned = "UNASSIGNED"
	AssignmentError      = "ERROR"
)

// LeadStatusFor maps an assignment status onto the lead lifecycle.
func LeadStatusFor(assignmentStatus string) string {
	switch assignmentStatus {
	case AssignmentAssigned:
		return LeadStatusAssigned
	case AssignmentUnassigned:
		return LeadStatusUnassigned
	default:
		return LeadStatusError
	}
}

type Assignment struct {
	ID         string          `json:"id"`
	LeadID     string          `json:"lead_id"`
	AgentID    *string         `json:"agent_id"`
	Status     string          `json:"status"`
	Urgency    Urgency         `json:"urgency"`
	Confidence float64         `json:"confidence"`
	ReasonCode string          `json:"reason_code"`
	ReasonText string          `json:"reason_text"`
	Decision   json.RawMessage `json:"decision"`
	AssignedAt time.Time       `json:"assigned_at"`
}

type Run struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Status     string          `json:"status"`
	Summary    json.RawMessage `json:"summary"`
}
