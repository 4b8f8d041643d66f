package watch

import (
	"sync"
	"time"

	"github.com/roach88/bouncer/internal/event"
)

// DefaultDebounceDelay is the quiet period used when the configuration
// does not set one.
const DefaultDebounceDelay = 2 * time.Second

// Debouncer coalesces bursts of events on the same path into a single
// event after a quiet period.
//
// Observe never blocks on the consumer: emission happens on the timer
// goroutine. Earlier events for a path are superseded by later ones, not
// queued: only the latest survives the quiet period. A path may
// re-debounce any number of times over the process lifetime.
type Debouncer struct {
	delay time.Duration
	out   chan event.DebouncedEvent

	mu      sync.Mutex
	pending map[string]*burst
	closed  bool
	wg      sync.WaitGroup
}

// burst tracks the in-flight event run for one path. Each burst owns its
// timer; emit compares identity so a stale firing can never deliver a
// newer burst early.
type burst struct {
	timer  *time.Timer
	latest event.ChangeEvent
	count  int
}

// NewDebouncer creates a debouncer emitting on an internal channel.
// A delay of 0 uses DefaultDebounceDelay.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	return &Debouncer{
		delay:   delay,
		out:     make(chan event.DebouncedEvent, 64),
		pending: make(map[string]*burst),
	}
}

// Events is the outbound stream of debounced events. Closed by Close
// after all pending timers have resolved.
func (d *Debouncer) Events() <-chan event.DebouncedEvent {
	return d.out
}

// Observe records a raw event. If a burst is already pending for the
// path, the new event supersedes the stored one and the quiet period
// restarts. Observe cannot fail.
func (d *Debouncer) Observe(ev event.ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	if b, ok := d.pending[ev.Path]; ok && b.timer.Stop() {
		// Quiet period re-armed before the timer fired.
		b.latest = ev
		b.count++
		b.timer.Reset(d.delay)
		return
	}
	// Either no burst is pending, or its timer already fired and the old
	// burst is emitting on its own goroutine. Start a fresh burst.
	b := &burst{latest: ev, count: 1}
	path := ev.Path
	d.wg.Add(1)
	b.timer = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.emit(path, b)
	})
	d.pending[path] = b
}

// emit delivers one burst once its quiet period passed.
func (d *Debouncer) emit(path string, b *burst) {
	d.mu.Lock()
	if d.pending[path] == b {
		delete(d.pending, path)
	}
	closed := d.closed
	d.mu.Unlock()

	if closed {
		return
	}
	d.out <- event.DebouncedEvent{
		ChangeEvent:    b.latest,
		CoalescedCount: b.count,
		EmittedAt:      time.Now(),
	}
}

// Close stops accepting events, cancels pending timers, and closes the
// outbound channel once no timer goroutine can still be emitting.
func (d *Debouncer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for path, b := range d.pending {
		if b.timer.Stop() {
			// Timer never fired; its AfterFunc goroutine won't run.
			d.wg.Done()
		}
		delete(d.pending, path)
	}
	d.mu.Unlock()

	d.wg.Wait()
	close(d.out)
}
