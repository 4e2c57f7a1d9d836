package repository

import (
	"context"
	"sort"
	"strings"

	"github.com/mr1hm/go-emergency-dispatch/internal/models"
)

type AlertFilter struct {
	InstitutionID string
	OpenOnly      bool // pending or active
	Limit         int
}

type CampaignFilter struct {
	InstitutionID string
	AlertID       string
	Channel       *models.Channel
	Status        *models.CampaignStatus
	Query         string // case-insensitive match over title, body and institution name
	Limit         int
}

// AlertRepository lists alerts most recent first, ties broken by later insertion first.
type AlertRepository interface {
	AddAlert(ctx context.Context, a *models.Alert) error
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	UpdateAlert(ctx context.Context, a *models.Alert) error
	ListAlerts(ctx context.Context, opts AlertFilter) ([]models.Alert, error)
}

// CampaignRepository lists campaign logs most recent first.
type CampaignRepository interface {
	AddCampaign(ctx context.Context, l *models.CampaignLog) error
	GetCampaign(ctx context.Context, id string) (*models.CampaignLog, error)
	UpdateCampaignStatus(ctx context.Context, id string, status models.CampaignStatus) error
	ListCampaigns(ctx context.Context, opts CampaignFilter) ([]models.CampaignLog, error)
}

type Store interface {
	AlertRepository
	CampaignRepository
	Close() error
}

// searchText is what CampaignFilter.Query is matched against. Both backends
// fold case here in Go so non-ASCII names match the same way everywhere.
func searchText(l *models.CampaignLog) string {
	return strings.ToLower(l.Title + "\n" + l.Body + "\n" + l.Institution.Name)
}

func sortAlerts(alerts []models.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if !alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
		}
		return alerts[i].Seq > alerts[j].Seq
	})
}

func sortCampaigns(logs []models.CampaignLog) {
	sort.SliceStable(logs, func(i, j int) bool {
		if !logs[i].CreatedAt.Equal(logs[j].CreatedAt) {
			return logs[i].CreatedAt.After(logs[j].CreatedAt)
		}
		return logs[i].Seq > logs[j].Seq
	})
}
