package clock

import (
	"sync"
	"time"
)

// DefaultTickPeriod is how often a running clock is decremented
const DefaultTickPeriod = 100 * time.Millisecond

// Ticker is a live tick subscription
type Ticker interface {
	Stop()
}

// TickSource starts repeating callbacks. Start must not invoke fn
// synchronously.
type TickSource interface {
	Start(period time.Duration, fn func()) Ticker
}

// SystemTicks is a TickSource backed by time.Ticker
type SystemTicks struct{}

// Start runs fn every period on its own goroutine until Stop is called
func (SystemTicks) Start(period time.Duration, fn func()) Ticker {
	t := &systemTicker{
		ticker: time.NewTicker(period),
		done:   make(chan struct{}),
	}

	go t.run(fn)

	return t
}

type systemTicker struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *systemTicker) run(fn func()) {
	defer t.ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			select {
			case <-t.done:
				return
			default:
			}
			fn()
		}
	}
}

// Stop does not wait for an in-flight callback
func (t *systemTicker) Stop() {
	t.once.Do(func() { close(t.done) })
}

// ManualTicks is a TickSource driven by explicit Fire calls. It is meant for
// tests and for hosts that deliver ticks from their own loop.
type ManualTicks struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*manualTicker
}

// NewManualTicks creates an idle manual tick source
func NewManualTicks() *ManualTicks {
	return &ManualTicks{
		subs: make(map[int]*manualTicker),
	}
}

type manualTicker struct {
	id     int
	period time.Duration
	fn     func()
	source *ManualTicks
}

func (t *manualTicker) Stop() {
	t.source.mu.Lock()
	defer t.source.mu.Unlock()

	delete(t.source.subs, t.id)
}

// Start registers fn; it is called once per Fire while the subscription lives
func (m *ManualTicks) Start(period time.Duration, fn func()) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	t := &manualTicker{id: m.nextID, period: period, fn: fn, source: m}
	m.subs[t.id] = t

	return t
}

// Fire delivers one tick to every live subscription
func (m *ManualTicks) Fire() {
	m.mu.Lock()
	fns := make([]func(), 0, len(m.subs))
	for _, t := range m.subs {
		fns = append(fns, t.fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Advance fires n ticks
func (m *ManualTicks) Advance(n int) {
	for i := 0; i < n; i++ {
		m.Fire()
	}
}

// Active returns the number of live subscriptions
func (m *ManualTicks) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.subs)
}
