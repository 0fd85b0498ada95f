package service

import (
	"sort"
	"sync"
	"time"

	"github.com/glasswallet/router/internal/models"
)

// Clock returns the current time. Injected so working-hours checks and
// deadlines are testable.
type Clock func() time.Time

// Registry holds the agent pool in process memory. Entries are lost on
// restart. All accessors hand out copies, so callers never share state
// with the registry.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]models.Agent
	hours  WorkingHours
	now    Clock
}

type RegistryOption func(*Registry)

func WithClock(c Clock) RegistryOption {
	return func(r *Registry) {
		if c != nil {
			r.now = c
		}
	}
}

func WithWorkingHours(w WorkingHours) RegistryOption {
	return func(r *Registry) {
		if w != nil {
			r.hours = w
		}
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		agents: map[string]models.Agent{},
		hours:  DefaultWorkingHours(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddAgent inserts or replaces the agent with the same ID.
func (r *Registry) AddAgent(a models.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID] = cloneAgent(a)
}

func (r *Registry) RemoveAgent(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[id]; !ok {
		return false
	}
	delete(r.agents, id)
	return true
}

// UpdateAgentAvailability sets the status and stamps LastActive.
func (r *Registry) UpdateAgentAvailability(id string, status models.AgentStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return false
	}
	a.Availability.Status = status
	a.Availability.LastActive = r.now()
	r.agents[id] = a
	return true
}

// AssignLead bumps the agent's active lead count. The registry does not
// refuse assignments past MaxLeads; capacity is checked at selection time.
func (r *Registry) AssignLead(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return false
	}
	a.Performance.ActiveLeads++
	r.agents[id] = a
	return true
}

func (r *Registry) GetAgent(id string) (models.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return models.Agent{}, false
	}
	return cloneAgent(a), true
}

func (r *Registry) GetAllAgents() []models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(func(models.Agent) bool { return true })
}

// GetAvailableAgents returns agents that are available, below capacity and
// inside their working hours at the registry clock's current time.
func (r *Registry) GetAvailableAgents() []models.Agent {
	now := r.now()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(func(a models.Agent) bool {
		return a.Availability.Status == models.StatusAvailable &&
			a.Performance.HasCapacity() &&
			r.hours.Within(a, now)
	})
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// snapshot must be called with r.mu held. Results are ordered by ID so that
// ties downstream resolve the same way on every call.
func (r *Registry) snapshot(keep func(models.Agent) bool) []models.Agent {
	out := make([]models.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		if keep(a) {
			out = append(out, cloneAgent(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneAgent(a models.Agent) models.Agent {
	if a.Availability.Schedule != nil {
		schedule := make(map[string]models.Shift, len(a.Availability.Schedule))
		for day, shift := range a.Availability.Schedule {
			schedule[day] = shift
		}
		a.Availability.Schedule = schedule
	}
	if a.Preferences.LeadTypes != nil {
		a.Preferences.LeadTypes = append([]string(nil), a.Preferences.LeadTypes...)
	}
	if a.Preferences.CommunicationChannels != nil {
		a.Preferences.CommunicationChannels = append([]string(nil), a.Preferences.CommunicationChannels...)
	}
	return a
}
