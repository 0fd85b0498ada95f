package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasswallet/router/internal/models"
)

// Wednesday, inside the default 9-17 window.
var testNow = time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func ptrFloat(v float64) *float64 { return &v }

func ptrInt(v int) *int { return &v }

func newTestRegistry(agents ...models.Agent) *Registry {
	r := NewRegistry(WithClock(fixedClock(testNow)))
	for _, a := range agents {
		r.AddAgent(a)
	}
	return r
}

func testAgent(id string, conversion float64, active, max int) models.Agent {
	return models.Agent{
		ID:   id,
		Name: "Agent " + id,
		Performance: models.AgentPerformance{
			ConversionRate:    conversion,
			AvgResponseTime:   30,
			AvgDealValue:      5000,
			SatisfactionScore: 4,
			ActiveLeads:       active,
			MaxLeads:          max,
		},
		Availability: models.AgentAvailability{Status: models.StatusAvailable},
	}
}

func TestRegistryAddGetRoundTrip(t *testing.T) {
	agent := DefaultAgents()[0]
	r := newTestRegistry(agent)

	got, ok := r.GetAgent(agent.ID)
	require.True(t, ok)
	assert.Equal(t, agent, got)

	all := r.GetAllAgents()
	require.Len(t, all, 1)
	assert.Equal(t, agent, all[0])
}

func TestRegistryAddReplacesSameID(t *testing.T) {
	r := newTestRegistry(testAgent("a", 0.5, 0, 10))
	updated := testAgent("a", 0.9, 1, 10)
	r.AddAgent(updated)

	assert.Equal(t, 1, r.Len())
	got, _ := r.GetAgent("a")
	assert.Equal(t, 0.9, got.Performance.ConversionRate)
}

func TestRegistryRemoveAgent(t *testing.T) {
	r := newTestRegistry(testAgent("a", 0.5, 0, 10), testAgent("b", 0.5, 0, 10))

	assert.True(t, r.RemoveAgent("a"))
	assert.False(t, r.RemoveAgent("a"))
	all := r.GetAllAgents()
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].ID)
}

func TestRegistryUpdateAvailabilityStampsLastActive(t *testing.T) {
	r := newTestRegistry(testAgent("a", 0.5, 0, 10))

	require.True(t, r.UpdateAgentAvailability("a", models.StatusOffline))
	got, _ := r.GetAgent("a")
	assert.Equal(t, models.StatusOffline, got.Availability.Status)
	assert.Equal(t, testNow, got.Availability.LastActive)

	assert.False(t, r.UpdateAgentAvailability("missing", models.StatusBusy))
}

func TestRegistryAssignLead(t *testing.T) {
	r := newTestRegistry(testAgent("a", 0.5, 2, 3))

	require.True(t, r.AssignLead("a"))
	got, _ := r.GetAgent("a")
	assert.Equal(t, 3, got.Performance.ActiveLeads)
	assert.Empty(t, r.GetAvailableAgents(), "agent at capacity is not available")
	assert.False(t, r.AssignLead("missing"))
}

func TestRegistryAvailableAgentsFilters(t *testing.T) {
	offline := testAgent("offline", 0.5, 0, 10)
	offline.Availability.Status = models.StatusOffline
	busy := testAgent("busy", 0.5, 0, 10)
	busy.Availability.Status = models.StatusBusy
	full := testAgent("full", 0.5, 10, 10)
	noCapacity := testAgent("zero", 0.5, 0, 0)
	ok := testAgent("ok", 0.5, 3, 10)

	r := newTestRegistry(offline, busy, full, noCapacity, ok)

	available := r.GetAvailableAgents()
	require.Len(t, available, 1)
	assert.Equal(t, "ok", available[0].ID)
	assert.Len(t, r.GetAllAgents(), 5)
}

func TestRegistryAvailableAgentsOutsideWorkingHours(t *testing.T) {
	evening := time.Date(2026, time.October, 14, 17, 0, 0, 0, time.UTC)
	r := NewRegistry(WithClock(fixedClock(evening)))
	r.AddAgent(testAgent("a", 0.5, 0, 10))

	assert.Empty(t, r.GetAvailableAgents())
}

func TestRegistryReturnsCopies(t *testing.T) {
	agent := DefaultAgents()[0]
	r := newTestRegistry(agent)

	got, _ := r.GetAgent(agent.ID)
	got.Preferences.LeadTypes[0] = "mutated"
	got.Availability.Schedule["monday"] = models.Shift{Start: "00:00", End: "01:00"}
	got.Performance.ActiveLeads = 99

	again, _ := r.GetAgent(agent.ID)
	assert.Equal(t, agent, again)
}

func TestRegistrySnapshotSortedByID(t *testing.T) {
	r := newTestRegistry(testAgent("c", 0.5, 0, 10), testAgent("a", 0.5, 0, 10), testAgent("b", 0.5, 0, 10))

	ids := agentIDs(r.GetAllAgents())
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := newTestRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("agent-%02d", i)
			r.AddAgent(testAgent(id, 0.5, 0, 10))
			r.AssignLead(id)
			_ = r.GetAvailableAgents()
			r.UpdateAgentAvailability(id, models.StatusBusy)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, r.Len())
	assert.Empty(t, r.GetAvailableAgents())
}
