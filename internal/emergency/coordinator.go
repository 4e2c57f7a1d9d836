// Package emergency ties the trigger points of the application to the
// confirmation countdown. When a countdown fires, the armed draft becomes an
// Alert and the alert's institution is notified.
package emergency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mr1hm/go-emergency-dispatch/internal/alerts"
	"github.com/mr1hm/go-emergency-dispatch/internal/countdown"
	"github.com/mr1hm/go-emergency-dispatch/internal/dispatch"
	"github.com/mr1hm/go-emergency-dispatch/internal/events"
	"github.com/mr1hm/go-emergency-dispatch/internal/models"
)

var ErrUnknownPoint = errors.New("unknown trigger point")

// Point names a place in the UI that can raise an emergency.
type Point string

const (
	PointDashboard    Point = "dashboard"
	PointNavbar       Point = "navbar"
	PointIncidentForm Point = "incident-form"
)

var Points = []Point{PointDashboard, PointNavbar, PointIncidentForm}

// status is the status a fired draft is created with. SOS buttons raise
// active alerts, the incident form files a report for review.
func (p Point) status() models.AlertStatus {
	if p == PointIncidentForm {
		return models.AlertStatusPending
	}
	return models.AlertStatusActive
}

// Outcome is what the last fired countdown at a point produced.
type Outcome struct {
	Alert    *models.Alert       `json:"alert,omitempty"`
	Campaign *models.CampaignLog `json:"campaign,omitempty"`
	Error    string              `json:"error,omitempty"`
	At       time.Time           `json:"at"`
}

type Status struct {
	Point Point `json:"point"`
	countdown.Snapshot
	Last *Outcome `json:"last,omitempty"`
}

type session struct {
	point Point
	cd    *countdown.Countdown

	mu    sync.Mutex
	draft *models.AlertDraft
	last  *Outcome
}

func (s *session) institutionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return ""
	}
	return s.draft.Institution.ID
}

type Coordinator struct {
	alerts      *alerts.Store
	dispatcher  *dispatch.Dispatcher
	publisher   events.Publisher
	now         func() time.Time
	fireTimeout time.Duration
	cdOpts      []countdown.Option

	sessions map[Point]*session
}

type Option func(*Coordinator)

func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

func WithClock(clock countdown.Clock, now func() time.Time) Option {
	return func(c *Coordinator) {
		c.cdOpts = append(c.cdOpts, countdown.WithClock(clock))
		c.now = now
	}
}

func WithTicks(n int, interval time.Duration) Option {
	return func(c *Coordinator) {
		c.cdOpts = append(c.cdOpts, countdown.WithTicks(n, interval))
	}
}

// New builds one independent countdown per trigger point.
func New(store *alerts.Store, dispatcher *dispatch.Dispatcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		alerts:      store,
		dispatcher:  dispatcher,
		publisher:   events.Nop,
		now:         time.Now,
		fireTimeout: 30 * time.Second,
		sessions:    make(map[Point]*session, len(Points)),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, p := range Points {
		s := &session{point: p}
		cdOpts := append([]countdown.Option{
			countdown.WithTickObserver(func(remaining int) { c.publishTick(s, remaining) }),
		}, c.cdOpts...)
		s.cd = countdown.New(func() { c.fire(s) }, cdOpts...)
		c.sessions[p] = s
	}
	return c
}

func (c *Coordinator) session(p Point) (*session, error) {
	s, ok := c.sessions[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPoint, p)
	}
	return s, nil
}

// Arm opens the confirmation prompt at p for draft. The draft is validated
// now so a bad report is rejected before anyone confirms it.
func (c *Coordinator) Arm(p Point, draft models.AlertDraft) (Status, error) {
	s, err := c.session(p)
	if err != nil {
		return Status{}, err
	}

	draft.Status = p.status()
	if err := c.alerts.Validate(draft); err != nil {
		return Status{}, err
	}

	s.mu.Lock()
	if err := s.cd.Arm(); err != nil {
		s.mu.Unlock()
		return Status{}, fmt.Errorf("%w at %s: %v", models.ErrCountdownBusy, p, err)
	}
	s.draft = &draft
	s.mu.Unlock()

	slog.Info("trigger armed", "point", p, "institution_id", draft.Institution.ID, "category", draft.Category)
	return c.status(s), nil
}

func (c *Coordinator) Confirm(p Point) (Status, error) {
	s, err := c.session(p)
	if err != nil {
		return Status{}, err
	}
	if err := s.cd.Confirm(); err != nil {
		return Status{}, err
	}

	st := c.status(s)
	c.publishTick(s, st.Remaining)
	return st, nil
}

func (c *Coordinator) Cancel(p Point) (Status, error) {
	s, err := c.session(p)
	if err != nil {
		return Status{}, err
	}

	s.mu.Lock()
	var institutionID string
	if s.draft != nil {
		institutionID = s.draft.Institution.ID
	}
	if err := s.cd.Cancel(); err != nil {
		s.mu.Unlock()
		return Status{}, err
	}
	s.draft = nil
	s.mu.Unlock()

	slog.Info("trigger canceled", "point", p, "institution_id", institutionID)
	c.publisher.Publish(events.Event{
		Type:          events.TypeCountdownCanceled,
		InstitutionID: institutionID,
		TriggerPoint:  string(p),
		At:            c.now(),
	})
	return c.status(s), nil
}

// FireNow skips the rest of the countdown. The alert and campaign are
// created before it returns.
func (c *Coordinator) FireNow(p Point) (Status, error) {
	s, err := c.session(p)
	if err != nil {
		return Status{}, err
	}
	if err := s.cd.FireNow(); err != nil {
		return Status{}, err
	}
	return c.status(s), nil
}

func (c *Coordinator) Status(p Point) (Status, error) {
	s, err := c.session(p)
	if err != nil {
		return Status{}, err
	}
	return c.status(s), nil
}

// Shutdown cancels every countdown still in flight.
func (c *Coordinator) Shutdown() {
	for _, p := range Points {
		if _, err := c.Cancel(p); err == nil {
			slog.Warn("countdown canceled by shutdown", "point", p)
		}
	}
}

func (c *Coordinator) status(s *session) Status {
	st := Status{Point: s.point, Snapshot: s.cd.Snapshot()}
	s.mu.Lock()
	if s.last != nil {
		last := *s.last
		st.Last = &last
	}
	s.mu.Unlock()
	return st
}

func (c *Coordinator) publishTick(s *session, remaining int) {
	c.publisher.Publish(events.Event{
		Type:          events.TypeCountdownTick,
		InstitutionID: s.institutionID(),
		TriggerPoint:  string(s.point),
		Remaining:     remaining,
		At:            c.now(),
	})
}

// fire runs on the countdown's action path, at most once per cycle.
func (c *Coordinator) fire(s *session) {
	s.mu.Lock()
	draft := s.draft
	s.draft = nil
	s.mu.Unlock()
	if draft == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.fireTimeout)
	defer cancel()

	out := &Outcome{At: c.now()}
	defer func() {
		s.mu.Lock()
		s.last = out
		s.mu.Unlock()
	}()

	a, err := c.alerts.Create(ctx, *draft)
	if err != nil {
		slog.Error("failed to create alert", "point", s.point, "institution_id", draft.Institution.ID, "error", err)
		out.Error = err.Error()
		return
	}
	out.Alert = a

	cp := *a
	c.publisher.Publish(events.Event{
		Type:          events.TypeAlertCreated,
		InstitutionID: a.Institution.ID,
		Alert:         &cp,
		TriggerPoint:  string(s.point),
		At:            c.now(),
	})

	l, err := c.dispatcher.DispatchAlert(ctx, a)
	if err != nil {
		slog.Error("failed to notify institution", "point", s.point, "alert_id", a.ID, "error", err)
		out.Error = err.Error()
		return
	}
	out.Campaign = l
}
