package service

import (
	"sync"

	"github.com/glasswallet/router/internal/models"
)

// Stats accumulates routing outcomes for the lifetime of the process.
type Stats struct {
	mu              sync.Mutex
	routed          int
	failed          int
	confidenceTotal float64
	byAgent         map[string]int
	byUrgency       map[models.Urgency]int
	failures        map[string]int
}

type StatsSnapshot struct {
	Routed            int                    `json:"routed"`
	Failed            int                    `json:"failed"`
	AverageConfidence float64                `json:"average_confidence"`
	ByAgent           map[string]int         `json:"by_agent"`
	ByUrgency         map[models.Urgency]int `json:"by_urgency"`
	Failures          map[string]int         `json:"failures"`
}

func NewStats() *Stats {
	return &Stats{
		byAgent:   map[string]int{},
		byUrgency: map[models.Urgency]int{},
		failures:  map[string]int{},
	}
}

func (s *Stats) RecordDecision(d models.RoutingDecision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routed++
	s.confidenceTotal += d.Confidence
	s.byAgent[d.RecommendedAgent.ID]++
	s.byUrgency[d.UrgencyLevel]++
}

func (s *Stats) RecordFailure(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
	s.failures[reason]++
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := StatsSnapshot{
		Routed:    s.routed,
		Failed:    s.failed,
		ByAgent:   make(map[string]int, len(s.byAgent)),
		ByUrgency: make(map[models.Urgency]int, len(s.byUrgency)),
		Failures:  make(map[string]int, len(s.failures)),
	}
	if s.routed > 0 {
		out.AverageConfidence = s.confidenceTotal / float64(s.routed)
	}
	for k, v := range s.byAgent {
		out.ByAgent[k] = v
	}
	for k, v := range s.byUrgency {
		out.ByUrgency[k] = v
	}
	for k, v := range s.failures {
		out.Failures[k] = v
	}
	return out
}
