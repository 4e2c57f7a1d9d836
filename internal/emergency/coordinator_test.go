package emergency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mr1hm/go-emergency-dispatch/internal/alerts"
	"github.com/mr1hm/go-emergency-dispatch/internal/campaignlog"
	"github.com/mr1hm/go-emergency-dispatch/internal/config"
	"github.com/mr1hm/go-emergency-dispatch/internal/countdown"
	"github.com/mr1hm/go-emergency-dispatch/internal/directory"
	"github.com/mr1hm/go-emergency-dispatch/internal/dispatch"
	"github.com/mr1hm/go-emergency-dispatch/internal/events"
	"github.com/mr1hm/go-emergency-dispatch/internal/models"
	"github.com/mr1hm/go-emergency-dispatch/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stepClock struct {
	mu      sync.Mutex
	pending []*stepTimer
}

type stepTimer struct {
	f       func()
	stopped bool
}

func (t *stepTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *stepClock) AfterFunc(d time.Duration, f func()) countdown.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &stepTimer{f: f}
	c.pending = append(c.pending, t)
	return t
}

// step fires the oldest live timer and reports whether there was one.
func (c *stepClock) step() bool {
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.mu.Unlock()
			return false
		}
		t := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		if !t.stopped {
			t.f()
			return true
		}
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	coord *Coordinator
	clock *stepClock
	db    *repository.MemoryDB
	pub   *recordingPublisher
}

var school = models.Institution{ID: "gs-001", Name: "Govt School Aundh"}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := repository.NewMemoryDB()
	dir := directory.NewStatic(directory.Entry{
		Institution: school,
		Counts:      models.RecipientCounts{Students: 50, Parents: 50, Staff: 5, Emergency: 2},
	})
	pub := &recordingPublisher{}
	clock := &stepClock{}
	now := func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	store := alerts.NewStore(db, alerts.WithClock(now))
	d := dispatch.New(dir, campaignlog.NewStore(db), config.Default().Dispatch,
		dispatch.WithPublisher(pub), dispatch.WithClock(now))
	coord := New(store, d, WithPublisher(pub), WithClock(clock, now))
	return &fixture{coord: coord, clock: clock, db: db, pub: pub}
}

func sosDraft() models.AlertDraft {
	return models.AlertDraft{
		Institution:  school,
		ReporterName: "Asha",
		Category:     models.AlertCategoryMedical,
		Severity:     models.SeverityHigh,
		Location:     "Playground",
		Description:  "Student collapsed",
	}
}

func (f *fixture) counts(t *testing.T) (alertCount, campaignCount int) {
	t.Helper()
	ctx := context.Background()
	as, err := f.db.ListAlerts(ctx, repository.AlertFilter{})
	require.NoError(t, err)
	cs, err := f.db.ListCampaigns(ctx, repository.CampaignFilter{})
	require.NoError(t, err)
	return len(as), len(cs)
}

func TestCoordinator_FiresAfterCountdown(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Arm(PointDashboard, sosDraft())
	require.NoError(t, err)
	st, err := f.coord.Confirm(PointDashboard)
	require.NoError(t, err)
	assert.Equal(t, countdown.StateCountingDown, st.State)
	assert.Equal(t, countdown.DefaultTicks, st.Remaining)

	for i := 0; i < countdown.DefaultTicks-1; i++ {
		require.True(t, f.clock.step())
		a, c := f.counts(t)
		require.Zero(t, a+c, "nothing is sent before the last tick")
	}
	require.True(t, f.clock.step())

	a, c := f.counts(t)
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, c)

	st, err = f.coord.Status(PointDashboard)
	require.NoError(t, err)
	assert.Equal(t, countdown.StateIdle, st.State)
	assert.Equal(t, countdown.StateFired, st.LastOutcome)
	require.NotNil(t, st.Last)
	require.NotNil(t, st.Last.Alert)
	require.NotNil(t, st.Last.Campaign)
	assert.Empty(t, st.Last.Error)
	assert.Equal(t, models.AlertStatusActive, st.Last.Alert.Status)
	assert.Equal(t, st.Last.Alert.ID, st.Last.Campaign.AlertID)
	assert.Equal(t, 107, st.Last.Campaign.Delivery.Sent)

	assert.Equal(t, []events.Type{
		events.TypeCountdownTick, // confirm
		events.TypeCountdownTick,
		events.TypeCountdownTick,
		events.TypeCountdownTick,
		events.TypeCountdownTick,
		events.TypeAlertCreated,
		events.TypeCampaignSent,
	}, f.pub.types())
}

func TestCoordinator_CancelSendsNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Arm(PointNavbar, sosDraft())
	require.NoError(t, err)
	_, err = f.coord.Confirm(PointNavbar)
	require.NoError(t, err)
	require.True(t, f.clock.step())

	st, err := f.coord.Cancel(PointNavbar)
	require.NoError(t, err)
	assert.Equal(t, countdown.StateIdle, st.State)
	assert.Equal(t, countdown.StateCanceled, st.LastOutcome)

	for f.clock.step() {
	}
	a, c := f.counts(t)
	assert.Zero(t, a)
	assert.Zero(t, c)
	assert.Contains(t, f.pub.types(), events.TypeCountdownCanceled)
}

func TestCoordinator_FireNowIsSynchronousAndOnce(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Arm(PointDashboard, sosDraft())
	require.NoError(t, err)
	_, err = f.coord.Confirm(PointDashboard)
	require.NoError(t, err)

	st, err := f.coord.FireNow(PointDashboard)
	require.NoError(t, err)
	require.NotNil(t, st.Last)
	require.NotNil(t, st.Last.Campaign)

	_, err = f.coord.FireNow(PointDashboard)
	assert.ErrorIs(t, err, models.ErrCountdownState)

	// a pending tick from the fired cycle must not fire again
	for f.clock.step() {
	}
	a, c := f.counts(t)
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, c)
}

func TestCoordinator_IncidentFormCreatesPendingAlert(t *testing.T) {
	f := newFixture(t)

	draft := sosDraft()
	draft.Status = models.AlertStatusActive
	_, err := f.coord.Arm(PointIncidentForm, draft)
	require.NoError(t, err)
	_, err = f.coord.Confirm(PointIncidentForm)
	require.NoError(t, err)

	st, err := f.coord.FireNow(PointIncidentForm)
	require.NoError(t, err)
	require.NotNil(t, st.Last.Alert)
	assert.Equal(t, models.AlertStatusPending, st.Last.Alert.Status)
}

func TestCoordinator_PointsAreIndependent(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Arm(PointDashboard, sosDraft())
	require.NoError(t, err)
	_, err = f.coord.Arm(PointNavbar, sosDraft())
	require.NoError(t, err)

	_, err = f.coord.Cancel(PointDashboard)
	require.NoError(t, err)

	st, err := f.coord.Status(PointNavbar)
	require.NoError(t, err)
	assert.Equal(t, countdown.StateArmed, st.State)

	_, err = f.coord.Arm(PointNavbar, sosDraft())
	assert.ErrorIs(t, err, models.ErrCountdownBusy)

	f.coord.Shutdown()
	st, _ = f.coord.Status(PointNavbar)
	assert.Equal(t, countdown.StateIdle, st.State)
}

func TestCoordinator_ArmRejectsInvalidDraft(t *testing.T) {
	f := newFixture(t)

	draft := sosDraft()
	draft.Description = ""
	_, err := f.coord.Arm(PointDashboard, draft)
	assert.ErrorIs(t, err, models.ErrInvalidAlertDraft)

	st, _ := f.coord.Status(PointDashboard)
	assert.Equal(t, countdown.StateIdle, st.State)
}

func TestCoordinator_UnknownPoint(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Arm("footer", sosDraft())
	assert.ErrorIs(t, err, ErrUnknownPoint)
	_, err = f.coord.Status("footer")
	assert.ErrorIs(t, err, ErrUnknownPoint)
}

func TestCoordinator_DispatchFailureKeepsAlert(t *testing.T) {
	f := newFixture(t)

	draft := sosDraft()
	draft.Institution = models.Institution{ID: "ghost", Name: "Unlisted"}
	_, err := f.coord.Arm(PointDashboard, draft)
	require.NoError(t, err)
	_, err = f.coord.Confirm(PointDashboard)
	require.NoError(t, err)

	st, err := f.coord.FireNow(PointDashboard)
	require.NoError(t, err)
	require.NotNil(t, st.Last)
	assert.NotNil(t, st.Last.Alert)
	assert.Nil(t, st.Last.Campaign)
	assert.Contains(t, st.Last.Error, "unknown institution")

	a, c := f.counts(t)
	assert.Equal(t, 1, a)
	assert.Zero(t, c)
}
