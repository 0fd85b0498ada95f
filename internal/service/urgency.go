package service

import (
	"math"
	"strings"
	"time"

	"github.com/glasswallet/router/internal/models"
)

const (
	ChannelPhone = "phone"
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// DetermineUrgency derives the tier for a lead. An explicit priority is
// returned unchanged. Otherwise the first matching signal sets the tier,
// and a close deadline can only raise it.
func DetermineUrgency(c models.RoutingContext, now time.Time) models.Urgency {
	if c.Priority.Valid() {
		return c.Priority
	}

	prob, hasAI := c.ConversionProbability()
	tags := lowerSet(c.Tags)

	var u models.Urgency
	switch {
	case (hasAI && prob >= 0.9) || c.AnomalyFlagged():
		u = models.UrgencyUrgent
	case (hasAI && prob >= 0.8) ||
		c.Features.IncomeAtLeast(100000) ||
		(c.Features.CreditScore != nil && *c.Features.CreditScore >= 800):
		u = models.UrgencyHigh
	case tags["high_quality"] || tags["excellent_credit"]:
		u = models.UrgencyMedium
	default:
		u = models.UrgencyLow
	}

	if c.TimeConstraints != nil && c.TimeConstraints.Deadline != nil {
		remaining := c.TimeConstraints.Deadline.Sub(now)
		switch {
		case remaining <= 2*time.Hour:
			u = raise(u, models.UrgencyUrgent)
		case remaining <= 6*time.Hour:
			u = raise(u, models.UrgencyHigh)
		}
	}
	return u
}

// EstimateResponseTime caps the agent's average response time by tier and
// inflates it by current workload. Result is in minutes.
func EstimateResponseTime(a models.Agent, u models.Urgency) int {
	base := a.Performance.AvgResponseTime
	switch u {
	case models.UrgencyUrgent:
		base = math.Min(base, 15)
	case models.UrgencyHigh:
		base = math.Min(base, 60)
	case models.UrgencyMedium:
		base = math.Min(base, 120)
	}
	return int(math.Round(base * (1 + a.Performance.LoadRatio())))
}

func BuildFollowUpStrategy(c models.RoutingContext, u models.Urgency) models.FollowUpStrategy {
	s := models.FollowUpStrategy{
		PrimaryChannel: primaryChannel(c),
	}
	s.SecondaryChannel = ChannelEmail
	if s.PrimaryChannel == ChannelEmail {
		s.SecondaryChannel = ChannelPhone
	}

	switch u {
	case models.UrgencyUrgent:
		s.Timing = "Immediate contact within 15 minutes"
		s.FallbackActions = []string{
			"Send SMS if call is not answered",
			"Retry call after 30 minutes",
			"Escalate to team lead after 2 hours",
		}
	case models.UrgencyHigh:
		s.Timing = "Contact within 1 hour"
		s.FallbackActions = []string{
			"Send follow-up email",
			"Retry call after 2 hours",
			"Schedule callback for next business day",
		}
	case models.UrgencyMedium:
		s.Timing = "Contact within 4 hours"
		s.FallbackActions = []string{
			"Send personalized email",
			"Retry contact next business day",
		}
	default:
		s.Timing = "Contact within 24 hours"
		s.FallbackActions = []string{
			"Add to nurture email sequence",
			"Retry contact in 3 days",
		}
	}

	if c.AnomalyFlagged() {
		s.FallbackActions = append([]string{"Verify lead information before outreach"}, s.FallbackActions...)
	}
	return s
}

func primaryChannel(c models.RoutingContext) string {
	if c.ContactPreferences != nil {
		if ch := strings.ToLower(strings.TrimSpace(c.ContactPreferences.PreferredChannel)); ch != "" {
			return ch
		}
	}
	if strings.EqualFold(strings.TrimSpace(c.Features.DeviceType), "mobile") {
		return ChannelSMS
	}
	// High-probability leads and the default both get a call.
	return ChannelPhone
}

func raise(current, floor models.Urgency) models.Urgency {
	if current.Rank() < floor.Rank() {
		return floor
	}
	return current
}

func lowerSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[strings.ToLower(strings.TrimSpace(v))] = true
	}
	return out
}
