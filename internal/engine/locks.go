package engine

import (
	"context"
	"sync"
)

// lockTable serializes runs per path.
//
// Each path gets a width-1 lock with an explicit FIFO wait queue, so
// events for one path are processed in arrival order and never
// concurrently - an event arriving mid-run queues behind the in-flight
// run rather than being dropped. Entries are created lazily on first
// acquisition and removed once no holder or waiter remains; the table is
// a best-effort cache, the invariant is only "no two concurrent runs per
// path".
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	held    bool
	waiters []chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*pathLock)}
}

// ticket is one claimed position in a path's FIFO queue. Enqueue takes
// the position synchronously; Wait blocks until the lock is handed over.
// Splitting the two lets a caller pin arrival order before moving the
// rest of the work onto another goroutine.
type ticket struct {
	table *lockTable
	path  string
	ready chan struct{} // nil: granted at enqueue time
}

// Enqueue claims the next queue position for the path. It never blocks.
func (t *lockTable) Enqueue(path string) *ticket {
	t.mu.Lock()
	defer t.mu.Unlock()

	pl, ok := t.locks[path]
	if !ok {
		pl = &pathLock{}
		t.locks[path] = pl
	}

	if !pl.held {
		pl.held = true
		return &ticket{table: t, path: path}
	}

	// Queue behind the in-flight run. FIFO: the releaser hands the lock
	// to the oldest waiter directly.
	ready := make(chan struct{})
	pl.waiters = append(pl.waiters, ready)
	return &ticket{table: t, path: path, ready: ready}
}

// Wait blocks until the lock is handed to this ticket or the context is
// done. The returned release is idempotent - calling it more than once
// is safe.
func (tk *ticket) Wait(ctx context.Context) (release func(), err error) {
	if tk.ready == nil {
		return tk.table.releaseFunc(tk.path), nil
	}
	select {
	case <-tk.ready:
		return tk.table.releaseFunc(tk.path), nil
	case <-ctx.Done():
		tk.table.abandon(tk.path, tk.ready)
		return nil, ctx.Err()
	}
}

// Acquire blocks until the path lock is free or the context is done.
func (t *lockTable) Acquire(ctx context.Context, path string) (release func(), err error) {
	return t.Enqueue(path).Wait(ctx)
}

// releaseFunc builds the idempotent release closure for one acquisition.
func (t *lockTable) releaseFunc(path string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()

			pl := t.locks[path]
			if pl == nil {
				return
			}
			if len(pl.waiters) > 0 {
				// Hand off directly; the lock stays held.
				next := pl.waiters[0]
				pl.waiters = pl.waiters[1:]
				close(next)
				return
			}
			pl.held = false
			delete(t.locks, path)
		})
	}
}

// abandon removes a waiter whose context ended. If the lock was handed to
// the waiter in the race window, it is passed on immediately.
func (t *lockTable) abandon(path string, ready chan struct{}) {
	t.mu.Lock()
	pl := t.locks[path]
	if pl != nil {
		for i, w := range pl.waiters {
			if w == ready {
				pl.waiters = append(pl.waiters[:i], pl.waiters[i+1:]...)
				t.mu.Unlock()
				return
			}
		}
	}
	t.mu.Unlock()

	// Not in the queue: release already handed us the lock. Give it back.
	select {
	case <-ready:
		t.releaseFunc(path)()
	default:
	}
}
