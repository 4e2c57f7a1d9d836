// Package dispatch fans a notification out to an institution's contacts,
// simulates per-channel delivery and records the outcome as a CampaignLog.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mr1hm/go-emergency-dispatch/internal/alerts"
	"github.com/mr1hm/go-emergency-dispatch/internal/campaignlog"
	"github.com/mr1hm/go-emergency-dispatch/internal/config"
	"github.com/mr1hm/go-emergency-dispatch/internal/directory"
	"github.com/mr1hm/go-emergency-dispatch/internal/events"
	"github.com/mr1hm/go-emergency-dispatch/internal/models"
)

// Kind selects which outcome rates a dispatch is simulated with.
type Kind string

const (
	KindEmergency Kind = "emergency"
	KindBulk      Kind = "bulk"
)

type Request struct {
	InstitutionID string                    `json:"institution_id"`
	Channel       models.Channel            `json:"channel"`
	Category      models.AlertCategory      `json:"category"`
	Title         string                    `json:"title"`
	Body          string                    `json:"body"`
	Language      string                    `json:"language"`
	Priority      models.Priority           `json:"priority"`
	Selection     models.RecipientSelection `json:"selection"`
	AlertID       string                    `json:"alert_id,omitempty"`
	Kind          Kind                      `json:"kind"`
	// AllowEmpty records a zero-recipient log instead of failing with
	// ErrEmptyRecipientSet.
	AllowEmpty bool `json:"allow_empty"`
}

type BulkRequest struct {
	InstitutionIDs []string `json:"institution_ids"`
	Request
}

// Result is the outcome for one institution of a bulk dispatch.
type Result struct {
	InstitutionID string              `json:"institution_id"`
	Log           *models.CampaignLog `json:"log,omitempty"`
	Err           error               `json:"-"`
}

type Dispatcher struct {
	dir       directory.Directory
	logs      *campaignlog.Store
	cfg       config.DispatchConfig
	publisher events.Publisher
	now       func() time.Time
}

type Option func(*Dispatcher)

func WithPublisher(p events.Publisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func New(dir directory.Directory, logs *campaignlog.Store, cfg config.DispatchConfig, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		dir:       dir,
		logs:      logs,
		cfg:       cfg,
		publisher: events.Nop,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) normalize(req *Request) error {
	if req.Channel == "" {
		req.Channel = models.ChannelSMS
	}
	if !req.Channel.Valid() {
		return fmt.Errorf("%w: channel %q", models.ErrInvalidRequest, req.Channel)
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !req.Priority.Valid() {
		return fmt.Errorf("%w: priority %q", models.ErrInvalidRequest, req.Priority)
	}
	if req.Category == "" {
		req.Category = models.AlertCategoryGeneral
	}
	if !req.Category.Valid() {
		return fmt.Errorf("%w: category %q", models.ErrInvalidRequest, req.Category)
	}
	if req.Language == "" {
		req.Language = d.cfg.Language
	}
	if req.Kind == "" {
		req.Kind = KindBulk
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Body) == "" {
		return fmt.Errorf("%w: notification needs a title or body", models.ErrInvalidRequest)
	}
	return nil
}

func (d *Dispatcher) rates(kind Kind) config.OutcomeRates {
	if kind == KindEmergency {
		return d.cfg.Emergency
	}
	return d.cfg.Bulk
}

// Dispatch notifies one institution and appends exactly one CampaignLog.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*models.CampaignLog, error) {
	if err := d.normalize(&req); err != nil {
		return nil, err
	}

	entry, err := d.dir.Resolve(ctx, req.InstitutionID)
	if err != nil {
		if !errors.Is(err, models.ErrUnknownInstitution) {
			err = fmt.Errorf("%w: %v", models.ErrUnknownInstitution, err)
		}
		d.fail(req, "unknown_institution", err)
		return nil, err
	}

	counts := req.Selection.Mask(entry.Counts)
	total := counts.Total()
	if total == 0 && !req.AllowEmpty {
		err := fmt.Errorf("institution %s: %w", req.InstitutionID, models.ErrEmptyRecipientSet)
		d.fail(req, "empty_recipient_set", err)
		return nil, err
	}

	l := d.buildLog(entry.Institution, req, counts, total)
	if err := d.logs.Append(ctx, l); err != nil {
		d.fail(req, "store", err)
		return nil, err
	}

	d.record(l, req.Kind)
	return l, nil
}

// DispatchAlert notifies the alert's institution using the category policy.
// The alert itself is only read.
func (d *Dispatcher) DispatchAlert(ctx context.Context, a *models.Alert) (*models.CampaignLog, error) {
	policy := alerts.PolicyFor(a.Category)
	return d.Dispatch(ctx, Request{
		InstitutionID: a.Institution.ID,
		Channel:       policy.Channel,
		Category:      a.Category,
		Title:         alerts.Title(a),
		Body:          alerts.Body(a),
		Language:      d.cfg.Language,
		Priority:      policy.Priority,
		Selection:     policy.Selection,
		AlertID:       a.ID,
		Kind:          KindEmergency,
	})
}

// DispatchBulk sends one notification per institution. Duplicate ids are sent
// once. A failure for one institution is reported in its Result and does not
// affect the others.
func (d *Dispatcher) DispatchBulk(ctx context.Context, req BulkRequest) []Result {
	seen := make(map[string]bool, len(req.InstitutionIDs))
	results := make([]Result, 0, len(req.InstitutionIDs))

	for _, id := range req.InstitutionIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		single := req.Request
		single.InstitutionID = id
		l, err := d.Dispatch(ctx, single)
		results = append(results, Result{InstitutionID: id, Log: l, Err: err})
	}

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	slog.Info("bulk dispatch complete", "institutions", len(results), "failed", failed)
	return results
}

// ResendFailed records a new campaign aimed at the failed recipients of a
// prior one. The prior log is left as it was.
func (d *Dispatcher) ResendFailed(ctx context.Context, logID string) (*models.CampaignLog, error) {
	prior, err := d.logs.Get(ctx, logID)
	if err != nil {
		return nil, err
	}
	if prior.Delivery.Failed == 0 {
		return nil, fmt.Errorf("campaign %s has no failed recipients: %w", logID, models.ErrEmptyRecipientSet)
	}

	req := Request{
		InstitutionID: prior.Institution.ID,
		Channel:       prior.Channel,
		Category:      prior.Category,
		Title:         prior.Title,
		Body:          prior.Body,
		Language:      prior.Language,
		Priority:      prior.Priority,
		AlertID:       prior.AlertID,
		Kind:          KindBulk,
	}
	l := d.buildLog(prior.Institution, req, models.RecipientCounts{}, prior.Delivery.Failed)
	l.ResendOf = prior.ID
	if err := d.logs.Append(ctx, l); err != nil {
		d.fail(req, "store", err)
		return nil, err
	}

	d.record(l, KindBulk)
	return l, nil
}

func (d *Dispatcher) buildLog(inst models.Institution, req Request, counts models.RecipientCounts, total int) *models.CampaignLog {
	delivery := Split(total, d.rates(req.Kind))
	return &models.CampaignLog{
		AlertID:     req.AlertID,
		Institution: inst,
		Channel:     req.Channel,
		Category:    req.Category,
		Title:       req.Title,
		Body:        req.Body,
		Language:    req.Language,
		Priority:    req.Priority,
		Recipients:  models.Recipients{RecipientCounts: counts, Total: total},
		Delivery:    delivery,
		Responses:   Respond(delivery, req.Channel, d.cfg.Responses),
		Cost:        Cost(total, req.Channel, d.cfg),
		Status:      models.CampaignStatusSent,
		CreatedAt:   d.now(),
	}
}

func (d *Dispatcher) record(l *models.CampaignLog, kind Kind) {
	campaignsDispatched.WithLabelValues(string(l.Channel), string(kind)).Inc()
	recipientsTargeted.WithLabelValues("delivered").Add(float64(l.Delivery.Delivered))
	recipientsTargeted.WithLabelValues("failed").Add(float64(l.Delivery.Failed))
	recipientsTargeted.WithLabelValues("pending").Add(float64(l.Delivery.Pending))
	dispatchCost.Add(l.Cost)

	slog.Info("campaign dispatched",
		"campaign_id", l.ID,
		"alert_id", l.AlertID,
		"institution_id", l.Institution.ID,
		"channel", l.Channel,
		"sent", l.Delivery.Sent,
		"delivered", l.Delivery.Delivered,
		"failed", l.Delivery.Failed,
		"cost", l.Cost,
	)

	cp := *l
	d.publisher.Publish(events.Event{
		Type:          events.TypeCampaignSent,
		InstitutionID: l.Institution.ID,
		Campaign:      &cp,
		At:            d.now(),
	})
}

func (d *Dispatcher) fail(req Request, reason string, err error) {
	dispatchFailures.WithLabelValues(reason).Inc()
	slog.Warn("dispatch failed", "institution_id", req.InstitutionID, "alert_id", req.AlertID, "reason", reason, "error", err)

	d.publisher.Publish(events.Event{
		Type:          events.TypeDispatchFailed,
		InstitutionID: req.InstitutionID,
		Error:         err.Error(),
		At:            d.now(),
	})
}
