// Package alerts owns Alert records and the rules for moving them through
// pending, active and resolved.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mr1hm/go-emergency-dispatch/internal/models"
	"github.com/mr1hm/go-emergency-dispatch/internal/repository"
)

type Store struct {
	repo     repository.AlertRepository
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
	mu       sync.Mutex // serializes writes; UpdateStatus is read-modify-write
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

func NewStore(repo repository.AlertRepository, opts ...Option) *Store {
	s := &Store{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
		newID:    newAlertID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newAlertID returns a time-ordered UUIDv7, falling back to v4.
func newAlertID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Create validates the draft and stores a new Alert. An empty draft status
// defaults to active.
func (s *Store) Create(ctx context.Context, draft models.AlertDraft) (*models.Alert, error) {
	draft = trimDraft(draft)
	if err := s.check(draft); err != nil {
		return nil, err
	}

	status := draft.Status
	if status == "" {
		status = models.AlertStatusActive
	}

	now := s.now()
	a := &models.Alert{
		ID:           s.newID(),
		Institution:  draft.Institution,
		ReporterName: draft.ReporterName,
		Category:     draft.Category,
		Status:       status,
		Severity:     draft.Severity,
		Location:     draft.Location,
		Description:  draft.Description,
		Coordinates:  draft.Coordinates,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.mu.Lock()
	err := s.repo.AddAlert(ctx, a)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("error storing alert: %w", err)
	}

	openAlerts.Inc()
	slog.Info("alert created",
		"alert_id", a.ID,
		"institution_id", a.Institution.ID,
		"category", a.Category,
		"severity", a.Severity,
		"status", a.Status,
	)
	return a, nil
}

// Validate reports whether Create would accept draft.
func (s *Store) Validate(draft models.AlertDraft) error {
	return s.check(trimDraft(draft))
}

func (s *Store) check(draft models.AlertDraft) error {
	if err := s.validate.Struct(draft); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidAlertDraft, err)
	}
	return nil
}

func trimDraft(draft models.AlertDraft) models.AlertDraft {
	draft.ReporterName = strings.TrimSpace(draft.ReporterName)
	draft.Location = strings.TrimSpace(draft.Location)
	draft.Description = strings.TrimSpace(draft.Description)
	draft.Institution.ID = strings.TrimSpace(draft.Institution.ID)
	return draft
}

func (s *Store) Get(ctx context.Context, id string) (*models.Alert, error) {
	return s.repo.GetAlert(ctx, id)
}

// UpdateStatus moves an alert forward. Backward moves, no-op moves and any
// move out of resolved fail with ErrInvalidTransition.
func (s *Store) UpdateStatus(ctx context.Context, id string, next models.AlertStatus) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.repo.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}

	if !a.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, a.Status, next)
	}

	prev := a.Status
	a.Status = next
	a.UpdatedAt = s.now()
	if err := s.repo.UpdateAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("error updating alert: %w", err)
	}

	if prev.Open() && !next.Open() {
		openAlerts.Dec()
	}
	slog.Info("alert status updated", "alert_id", a.ID, "from", prev, "to", next)
	return a, nil
}

// ListActiveOrPending returns open alerts, most recent first. An empty
// institutionID lists every institution.
func (s *Store) ListActiveOrPending(ctx context.Context, institutionID string) ([]models.Alert, error) {
	return s.repo.ListAlerts(ctx, repository.AlertFilter{
		InstitutionID: institutionID,
		OpenOnly:      true,
	})
}

func (s *Store) ListByInstitution(ctx context.Context, institutionID string) ([]models.Alert, error) {
	return s.repo.ListAlerts(ctx, repository.AlertFilter{InstitutionID: institutionID})
}

func (s *Store) CountOpen(ctx context.Context, institutionID string) (int, error) {
	open, err := s.ListActiveOrPending(ctx, institutionID)
	if err != nil {
		return 0, err
	}
	return len(open), nil
}
