package campaignlog

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/mr1hm/go-emergency-dispatch/internal/models"
	"github.com/mr1hm/go-emergency-dispatch/internal/repository"
)

type Store struct {
	repo repository.CampaignRepository
	mu   sync.Mutex
}

func NewStore(repo repository.CampaignRepository) *Store {
	return &Store{repo: repo}
}

// Append stores a new log, assigning an id when the caller left it empty.
// Logs whose delivery counts do not partition Sent are rejected.
func (s *Store) Append(ctx context.Context, l *models.CampaignLog) error {
	if err := checkCounts(l); err != nil {
		return err
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if !l.Status.Valid() {
		return fmt.Errorf("invalid campaign status %q", l.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.AddCampaign(ctx, l); err != nil {
		return fmt.Errorf("error storing campaign log: %w", err)
	}
	return nil
}

func checkCounts(l *models.CampaignLog) error {
	d, r := l.Delivery, l.Responses
	if d.Sent != l.Recipients.Total {
		return fmt.Errorf("campaign log sent %d does not match %d recipients", d.Sent, l.Recipients.Total)
	}
	if d.Delivered < 0 || d.Failed < 0 || d.Pending < 0 || d.Delivered+d.Failed+d.Pending != d.Sent {
		return fmt.Errorf("campaign log delivery counts %+v do not partition sent", d)
	}
	for _, n := range []int{r.Acknowledged, r.Callbacks, r.Unsubscribed} {
		if n < 0 || n > d.Sent {
			return fmt.Errorf("campaign log response counts %+v out of range", r)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.CampaignLog, error) {
	return s.repo.GetCampaign(ctx, id)
}

func (s *Store) List(ctx context.Context, filter repository.CampaignFilter) ([]models.CampaignLog, error) {
	return s.repo.ListCampaigns(ctx, filter)
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status models.CampaignStatus) (*models.CampaignLog, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: campaign status %q", models.ErrInvalidRequest, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.UpdateCampaignStatus(ctx, id, status); err != nil {
		return nil, err
	}

	slog.Info("campaign status updated", "campaign_id", id, "status", status)
	return s.repo.GetCampaign(ctx, id)
}

// AggregateStats summarizes the logs matching filter. AverageDeliveryRate is
// the mean of Delivered/Sent over logs that sent anything.
func (s *Store) AggregateStats(ctx context.Context, filter repository.CampaignFilter) (models.CampaignStats, error) {
	logs, err := s.repo.ListCampaigns(ctx, filter)
	if err != nil {
		return models.CampaignStats{}, err
	}
	return Aggregate(logs), nil
}

func Aggregate(logs []models.CampaignLog) models.CampaignStats {
	var (
		stats    models.CampaignStats
		rateSum  float64
		rateLogs int
	)
	for i := range logs {
		l := &logs[i]
		stats.Campaigns++
		stats.TotalSent += l.Delivery.Sent
		stats.TotalDelivered += l.Delivery.Delivered
		stats.TotalFailed += l.Delivery.Failed
		stats.TotalCost += l.Cost
		if rate, ok := l.DeliveryRate(); ok {
			rateSum += rate
			rateLogs++
		}
	}
	stats.TotalCost = math.Round(stats.TotalCost*100) / 100
	if rateLogs > 0 {
		stats.AverageDeliveryRate = rateSum / float64(rateLogs)
	}
	return stats
}
