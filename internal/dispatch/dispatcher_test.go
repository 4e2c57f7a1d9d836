package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/go-emergency-dispatch/internal/campaignlog"
	"github.com/mr1hm/go-emergency-dispatch/internal/config"
	"github.com/mr1hm/go-emergency-dispatch/internal/directory"
	"github.com/mr1hm/go-emergency-dispatch/internal/events"
	"github.com/mr1hm/go-emergency-dispatch/internal/models"
	"github.com/mr1hm/go-emergency-dispatch/internal/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

type brokenDirectory struct{}

func (brokenDirectory) Resolve(ctx context.Context, id string) (*directory.Entry, error) {
	return nil, errors.New("connection refused")
}

var testInstitution = models.Institution{ID: "gs-001", Name: "Govt School Aundh", District: "Pune", State: "MH"}

func newTestDispatcher(t *testing.T) (*Dispatcher, *campaignlog.Store, *recordingPublisher) {
	t.Helper()
	dir := directory.NewStatic(
		directory.Entry{
			Institution: testInstitution,
			Counts:      models.RecipientCounts{Students: 50, Parents: 50, Staff: 5, Emergency: 2},
		},
		directory.Entry{
			Institution: models.Institution{ID: "gs-002", Name: "Model School"},
			Counts:      models.RecipientCounts{Students: 20, Parents: 18, Staff: 3},
		},
		directory.Entry{
			Institution: models.Institution{ID: "empty", Name: "New School"},
		},
	)
	logs := campaignlog.NewStore(repository.NewMemoryDB())
	pub := &recordingPublisher{}
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	d := New(dir, logs, config.Default().Dispatch,
		WithPublisher(pub),
		WithClock(func() time.Time { return clock }),
	)
	return d, logs, pub
}

func TestDispatchAlert_MedicalScenario(t *testing.T) {
	d, logs, pub := newTestDispatcher(t)
	ctx := context.Background()

	alert := &models.Alert{
		ID:           "alert-1",
		Institution:  testInstitution,
		ReporterName: "Asha",
		Category:     models.AlertCategoryMedical,
		Status:       models.AlertStatusActive,
		Severity:     models.SeverityHigh,
		Location:     "Playground",
		Description:  "Student collapsed.",
	}

	l, err := d.DispatchAlert(ctx, alert)
	require.NoError(t, err)

	assert.Equal(t, 107, l.Recipients.Total)
	assert.Equal(t, models.Delivery{Sent: 107, Delivered: 101, Failed: 3, Pending: 3}, l.Delivery)
	assert.Equal(t, models.Responses{Acknowledged: 70, Callbacks: 5, Unsubscribed: 1}, l.Responses)
	assert.Equal(t, models.ChannelBoth, l.Channel)
	assert.Equal(t, models.PriorityHigh, l.Priority)
	assert.InDelta(t, 187.25, l.Cost, 1e-9)
	assert.Equal(t, "alert-1", l.AlertID)
	assert.Equal(t, models.CampaignStatusSent, l.Status)
	assert.Equal(t, "Medical emergency at Govt School Aundh", l.Title)

	stored, err := logs.List(ctx, repository.CampaignFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, l.ID, stored[0].ID)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeCampaignSent, pub.events[0].Type)
	assert.Equal(t, "gs-001", pub.events[0].InstitutionID)
}

func TestDispatchAlert_GeneralExcludesEmergencyContacts(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	l, err := d.DispatchAlert(context.Background(), &models.Alert{
		ID:           "alert-2",
		Institution:  testInstitution,
		ReporterName: "Office",
		Category:     models.AlertCategoryGeneral,
		Location:     "Campus",
		Description:  "Early closure.",
	})
	require.NoError(t, err)

	assert.Equal(t, 105, l.Recipients.Total)
	assert.Zero(t, l.Recipients.Emergency)
	assert.Equal(t, models.ChannelSMS, l.Channel)
	assert.Zero(t, l.Responses.Callbacks, "callbacks only happen on voice calls")
	assert.InDelta(t, 26.25, l.Cost, 1e-9)
}

func TestDispatch_SelectionMasksCategories(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	l, err := d.Dispatch(context.Background(), Request{
		InstitutionID: "gs-001",
		Channel:       models.ChannelIVR,
		Title:         "Staff meeting",
		Selection:     models.RecipientSelection{Staff: true, Emergency: true},
	})
	require.NoError(t, err)

	assert.Equal(t, models.RecipientCounts{Staff: 5, Emergency: 2}, l.Recipients.RecipientCounts)
	assert.Equal(t, 7, l.Delivery.Sent)
	assert.InDelta(t, 10.5, l.Cost, 1e-9)
	assert.Equal(t, "en", l.Language)
	assert.Equal(t, models.PriorityMedium, l.Priority)
}

func TestDispatch_EmptySelection(t *testing.T) {
	d, logs, _ := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Dispatch(ctx, Request{InstitutionID: "gs-001", Title: "Nobody"})
	assert.ErrorIs(t, err, models.ErrEmptyRecipientSet)

	_, err = d.Dispatch(ctx, Request{InstitutionID: "empty", Title: "Nobody", Selection: models.SelectAll()})
	assert.ErrorIs(t, err, models.ErrEmptyRecipientSet)

	stored, _ := logs.List(ctx, repository.CampaignFilter{})
	assert.Empty(t, stored)
}

func TestDispatch_EmptySelectionAllowed(t *testing.T) {
	d, logs, _ := newTestDispatcher(t)
	ctx := context.Background()

	l, err := d.Dispatch(ctx, Request{InstitutionID: "gs-001", Title: "Nobody", AllowEmpty: true})
	require.NoError(t, err)
	assert.Equal(t, models.Delivery{}, l.Delivery)
	assert.Equal(t, models.Responses{}, l.Responses)
	assert.Zero(t, l.Cost)

	stats, err := logs.AggregateStats(ctx, repository.CampaignFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Campaigns)
	assert.Zero(t, stats.AverageDeliveryRate)
}

func TestDispatch_UnknownInstitution(t *testing.T) {
	d, _, pub := newTestDispatcher(t)

	_, err := d.Dispatch(context.Background(), Request{InstitutionID: "ghost", Title: "Hi", Selection: models.SelectAll()})
	assert.ErrorIs(t, err, models.ErrUnknownInstitution)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeDispatchFailed, pub.events[0].Type)
}

func TestDispatch_DirectoryErrorIsUnknownInstitution(t *testing.T) {
	logs := campaignlog.NewStore(repository.NewMemoryDB())
	d := New(brokenDirectory{}, logs, config.Default().Dispatch)

	_, err := d.Dispatch(context.Background(), Request{InstitutionID: "x", Title: "Hi", Selection: models.SelectAll()})
	assert.ErrorIs(t, err, models.ErrUnknownInstitution)
}

func TestDispatch_InvalidRequest(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Dispatch(ctx, Request{InstitutionID: "gs-001", Channel: "fax", Title: "x", Selection: models.SelectAll()})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	_, err = d.Dispatch(ctx, Request{InstitutionID: "gs-001", Selection: models.SelectAll()})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestDispatchBulk_IsolatesFailures(t *testing.T) {
	d, logs, _ := newTestDispatcher(t)
	ctx := context.Background()

	results := d.DispatchBulk(ctx, BulkRequest{
		InstitutionIDs: []string{"gs-001", "ghost", "gs-002", "gs-001"},
		Request: Request{
			Channel:   models.ChannelSMS,
			Title:     "Holiday",
			Body:      "School closed Friday",
			Selection: models.SelectRoutine(),
		},
	})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, models.ErrUnknownInstitution)
	assert.Nil(t, results[1].Log)
	assert.NoError(t, results[2].Err)

	// bulk rates: 96% delivered, 2% failed
	assert.Equal(t, models.Delivery{Sent: 105, Delivered: 100, Failed: 2, Pending: 3}, results[0].Log.Delivery)
	assert.Equal(t, models.Delivery{Sent: 41, Delivered: 39, Failed: 0, Pending: 2}, results[2].Log.Delivery)

	stored, _ := logs.List(ctx, repository.CampaignFilter{})
	assert.Len(t, stored, 2)
}

func TestResendFailed(t *testing.T) {
	d, logs, _ := newTestDispatcher(t)
	ctx := context.Background()

	prior, err := d.Dispatch(ctx, Request{
		InstitutionID: "gs-001",
		Channel:       models.ChannelBoth,
		Title:         "Evacuate",
		Selection:     models.SelectAll(),
		Kind:          KindEmergency,
		AlertID:       "alert-7",
	})
	require.NoError(t, err)
	require.Equal(t, 3, prior.Delivery.Failed)

	l, err := d.ResendFailed(ctx, prior.ID)
	require.NoError(t, err)
	assert.Equal(t, prior.ID, l.ResendOf)
	assert.Equal(t, "alert-7", l.AlertID)
	assert.Equal(t, 3, l.Recipients.Total)
	assert.Equal(t, 3, l.Delivery.Sent)
	assert.Equal(t, l.Delivery.Sent, l.Delivery.Delivered+l.Delivery.Failed+l.Delivery.Pending)
	assert.InDelta(t, 5.25, l.Cost, 1e-9)

	unchanged, err := logs.Get(ctx, prior.ID)
	require.NoError(t, err)
	assert.Equal(t, prior.Delivery, unchanged.Delivery)
	assert.Equal(t, models.CampaignStatusSent, unchanged.Status)

	_, err = d.ResendFailed(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestResendFailed_NothingFailed(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	prior, err := d.Dispatch(ctx, Request{InstitutionID: "gs-002", Title: "x", Selection: models.SelectAll()})
	require.NoError(t, err)
	require.Zero(t, prior.Delivery.Failed)

	_, err = d.ResendFailed(ctx, prior.ID)
	assert.ErrorIs(t, err, models.ErrEmptyRecipientSet)
}
