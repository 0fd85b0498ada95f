package db

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glasswallet/router/internal/models"
)

var ErrNotFound = errors.New("not found")

// MemoryStore keeps leads, assignments and runs in process memory. It is
// used when no database is configured.
type MemoryStore struct {
	mu          sync.RWMutex
	leads       map[string]models.Lead
	assignments map[string]models.Assignment
	runs        []models.Run
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leads:       map[string]models.Lead{},
		assignments: map[string]models.Assignment{},
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// InsertLeads stores new leads and skips any whose ID is already known,
// returning how many were added.
func (m *MemoryStore) InsertLeads(_ context.Context, leads []models.Lead) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, l := range leads {
		if _, ok := m.leads[l.ID]; ok {
			continue
		}
		if l.Status == "" {
			l.Status = models.LeadStatusNew
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = time.Now().UTC()
		}
		l.Tags = append([]string(nil), l.Tags...)
		m.leads[l.ID] = l
		n++
	}
	return n, nil
}

func (m *MemoryStore) PendingLeads(context.Context) ([]models.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Lead
	for _, l := range m.leads {
		if l.Status == models.LeadStatusNew {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) ListLeads(_ context.Context, status string, limit, offset int) ([]models.Lead, error) {
	limit, offset = clampPage(limit, offset)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []models.Lead
	for _, l := range m.leads {
		if status == "" || l.Status == status {
			all = append(all, l)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return []models.Lead{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *MemoryStore) GetLead(_ context.Context, id string) (models.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leads[id]
	if !ok {
		return models.Lead{}, ErrNotFound
	}
	return l, nil
}

func (m *MemoryStore) SaveAssignment(_ context.Context, a models.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[a.LeadID]
	if !ok {
		return ErrNotFound
	}
	l.Status = models.LeadStatusFor(a.Status)
	m.leads[a.LeadID] = l
	m.assignments[a.LeadID] = a
	return nil
}

func (m *MemoryStore) GetAssignment(_ context.Context, leadID string) (models.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assignments[leadID]
	if !ok {
		return models.Assignment{}, ErrNotFound
	}
	return a, nil
}

func (m *MemoryStore) CreateRun(_ context.Context, status string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.runs = append(m.runs, models.Run{ID: id, StartedAt: time.Now().UTC(), Status: status})
	return id, nil
}

func (m *MemoryStore) FinishRun(_ context.Context, id string, status string, summary []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == id {
			m.runs[i].FinishedAt = time.Now().UTC()
			m.runs[i].Status = status
			m.runs[i].Summary = summary
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) LatestRun(context.Context) (models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.runs) == 0 {
		return models.Run{}, ErrNotFound
	}
	return m.runs[len(m.runs)-1], nil
}
