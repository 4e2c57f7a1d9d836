package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mr1hm/go-emergency-dispatch/internal/models"
)

type MemoryDB struct {
	mu        sync.RWMutex
	seq       int64
	alerts    map[string]*models.Alert
	campaigns map[string]*models.CampaignLog
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		alerts:    make(map[string]*models.Alert),
		campaigns: make(map[string]*models.CampaignLog),
	}
}

func (m *MemoryDB) AddAlert(ctx context.Context, a *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.alerts[a.ID]; exists {
		return fmt.Errorf("alert %s already exists", a.ID)
	}
	m.seq++
	a.Seq = m.seq
	cp := cloneAlert(a)
	m.alerts[a.ID] = &cp
	return nil
}

func (m *MemoryDB) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
	}
	cp := cloneAlert(a)
	return &cp, nil
}

func (m *MemoryDB) UpdateAlert(ctx context.Context, a *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.alerts[a.ID]
	if !ok {
		return fmt.Errorf("alert %s: %w", a.ID, models.ErrNotFound)
	}
	existing.Status = a.Status
	existing.UpdatedAt = a.UpdatedAt
	return nil
}

func (m *MemoryDB) ListAlerts(ctx context.Context, opts AlertFilter) ([]models.Alert, error) {
	m.mu.RLock()
	results := make([]models.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if opts.InstitutionID != "" && a.Institution.ID != opts.InstitutionID {
			continue
		}
		if opts.OpenOnly && !a.Status.Open() {
			continue
		}
		results = append(results, cloneAlert(a))
	}
	m.mu.RUnlock()

	sortAlerts(results)
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func (m *MemoryDB) AddCampaign(ctx context.Context, l *models.CampaignLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.campaigns[l.ID]; exists {
		return fmt.Errorf("campaign %s already exists", l.ID)
	}
	m.seq++
	l.Seq = m.seq
	cp := *l
	m.campaigns[l.ID] = &cp
	return nil
}

func (m *MemoryDB) GetCampaign(ctx context.Context, id string) (*models.CampaignLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %s: %w", id, models.ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

func (m *MemoryDB) UpdateCampaignStatus(ctx context.Context, id string, status models.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.campaigns[id]
	if !ok {
		return fmt.Errorf("campaign %s: %w", id, models.ErrNotFound)
	}
	l.Status = status
	return nil
}

func (m *MemoryDB) ListCampaigns(ctx context.Context, opts CampaignFilter) ([]models.CampaignLog, error) {
	query := strings.ToLower(strings.TrimSpace(opts.Query))

	m.mu.RLock()
	results := make([]models.CampaignLog, 0, len(m.campaigns))
	for _, l := range m.campaigns {
		if !matchCampaign(l, opts, query) {
			continue
		}
		results = append(results, *l)
	}
	m.mu.RUnlock()

	sortCampaigns(results)
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func matchCampaign(l *models.CampaignLog, opts CampaignFilter, query string) bool {
	if opts.InstitutionID != "" && l.Institution.ID != opts.InstitutionID {
		return false
	}
	if opts.AlertID != "" && l.AlertID != opts.AlertID {
		return false
	}
	if opts.Channel != nil && l.Channel != *opts.Channel {
		return false
	}
	if opts.Status != nil && l.Status != *opts.Status {
		return false
	}
	if query != "" {
		if !strings.Contains(searchText(l), query) {
			return false
		}
	}
	return true
}

// cloneAlert copies a so the stored record shares no pointers with callers.
func cloneAlert(a *models.Alert) models.Alert {
	cp := *a
	if a.Coordinates != nil {
		c := *a.Coordinates
		cp.Coordinates = &c
	}
	return cp
}

func (m *MemoryDB) Close() error {
	return nil
}
