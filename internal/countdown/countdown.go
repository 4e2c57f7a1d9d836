// Package countdown implements the arm / confirm / auto-fire gate placed in
// front of every emergency broadcast.
//
// A Countdown starts Idle. Arm moves it to Armed, Confirm starts a fixed
// number of ticks, and the bound action runs when the ticks run out or
// FireNow is called. Cancel from Armed or CountingDown discards the cycle.
// After either outcome the machine is Idle again and can be reused.
package countdown

import (
	"fmt"
	"sync"
	"time"

	"github.com/mr1hm/go-emergency-dispatch/internal/models"
)

type State int

const (
	StateIdle State = iota
	StateArmed
	StateCountingDown
	StateFired
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateCountingDown:
		return "counting_down"
	case StateFired:
		return "fired"
	case StateCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Timer interface {
	Stop() bool
}

// Clock schedules tick callbacks. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

const (
	DefaultTicks    = 5
	DefaultInterval = time.Second
)

type Snapshot struct {
	State       State `json:"state"`
	Remaining   int   `json:"remaining"`
	LastOutcome State `json:"last_outcome"`
	Fired       int   `json:"fired"`
}

type Countdown struct {
	mu       sync.Mutex
	clock    Clock
	ticks    int
	interval time.Duration
	action   func()
	onTick   func(remaining int)

	state       State
	remaining   int
	gen         uint64 // bumped on every exit from CountingDown; stale ticks compare unequal
	timer       Timer
	lastOutcome State
	fired       int
}

type Option func(*Countdown)

func WithClock(c Clock) Option {
	return func(cd *Countdown) { cd.clock = c }
}

func WithTicks(n int, interval time.Duration) Option {
	return func(cd *Countdown) {
		cd.ticks = n
		cd.interval = interval
	}
}

// WithTickObserver registers a callback receiving the remaining tick count
// after each tick that does not fire.
func WithTickObserver(fn func(remaining int)) Option {
	return func(cd *Countdown) { cd.onTick = fn }
}

// New returns an idle Countdown bound to action.
func New(action func(), opts ...Option) *Countdown {
	cd := &Countdown{
		clock:    realClock{},
		ticks:    DefaultTicks,
		interval: DefaultInterval,
		action:   action,
	}
	for _, opt := range opts {
		opt(cd)
	}
	if cd.ticks < 1 {
		cd.ticks = 1
	}
	return cd
}

func (cd *Countdown) Arm() error {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	if cd.state != StateIdle {
		return cd.stateErr("arm")
	}
	cd.state = StateArmed
	return nil
}

func (cd *Countdown) Confirm() error {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	if cd.state != StateArmed {
		return cd.stateErr("confirm")
	}
	cd.state = StateCountingDown
	cd.remaining = cd.ticks
	cd.gen++
	cd.schedule(cd.gen)
	return nil
}

func (cd *Countdown) Cancel() error {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	if cd.state != StateArmed && cd.state != StateCountingDown {
		return cd.stateErr("cancel")
	}
	cd.stopLocked()
	cd.lastOutcome = StateCanceled
	cd.remaining = 0
	cd.state = StateIdle
	return nil
}

func (cd *Countdown) FireNow() error {
	cd.mu.Lock()
	if cd.state != StateCountingDown {
		err := cd.stateErr("fire")
		cd.mu.Unlock()
		return err
	}
	cd.stopLocked()
	cd.state = StateFired
	cd.mu.Unlock()

	cd.fire()
	return nil
}

func (cd *Countdown) Snapshot() Snapshot {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return Snapshot{
		State:       cd.state,
		Remaining:   cd.remaining,
		LastOutcome: cd.lastOutcome,
		Fired:       cd.fired,
	}
}

// tick is delivered by the clock. A tick from an earlier generation is a no-op.
func (cd *Countdown) tick(gen uint64) {
	cd.mu.Lock()
	if cd.state != StateCountingDown || gen != cd.gen {
		cd.mu.Unlock()
		return
	}

	cd.remaining--
	if cd.remaining > 0 {
		remaining := cd.remaining
		cd.schedule(gen)
		onTick := cd.onTick
		cd.mu.Unlock()
		if onTick != nil {
			onTick(remaining)
		}
		return
	}

	cd.stopLocked()
	cd.state = StateFired
	cd.mu.Unlock()

	cd.fire()
}

// fire runs the action with the machine parked in StateFired so nothing can
// re-arm it mid-action, then returns it to Idle.
func (cd *Countdown) fire() {
	if cd.action != nil {
		cd.action()
	}

	cd.mu.Lock()
	cd.fired++
	cd.lastOutcome = StateFired
	cd.remaining = 0
	cd.state = StateIdle
	cd.mu.Unlock()
}

func (cd *Countdown) schedule(gen uint64) {
	cd.timer = cd.clock.AfterFunc(cd.interval, func() { cd.tick(gen) })
}

func (cd *Countdown) stopLocked() {
	cd.gen++
	if cd.timer != nil {
		cd.timer.Stop()
		cd.timer = nil
	}
}

func (cd *Countdown) stateErr(op string) error {
	return fmt.Errorf("%w: cannot %s while %s", models.ErrCountdownState, op, cd.state)
}
