package frame

import (
	"context"
	"sync"
	"time"
)

// ============================================================
// Frame Loop
// ============================================================

// ID identifies a requested frame callback.
type ID uint64

// Callback runs once for the frame it was requested for.
type Callback func(now time.Time)

// Scheduler is the animation-frame primitive the viewer core runs on.
type Scheduler interface {
	RequestFrame(cb Callback) ID
	CancelFrame(id ID)
}

// Dispatcher hands work to the loop thread. Post may be called from any goroutine.
type Dispatcher interface {
	Post(fn func())
}

// Loop is a single-threaded cooperative scheduler. Posted tasks and frame
// callbacks only ever run inside Step, so engine state needs no locking as
// long as it is touched from Step alone.
type Loop struct {
	mu        sync.Mutex
	nextID    ID
	pending   []request
	stepping  []request
	cancelled map[ID]bool
	tasks     []func()
	wake      chan struct{}
}

type request struct {
	id ID
	cb Callback
}

func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// RequestFrame schedules cb for the next Step.
func (l *Loop) RequestFrame(cb Callback) ID {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	l.pending = append(l.pending, request{id: l.nextID, cb: cb})
	return l.nextID
}

// CancelFrame drops a requested callback that has not run yet.
func (l *Loop) CancelFrame(id ID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, r := range l.pending {
		if r.id == id {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			return
		}
	}
	for _, r := range l.stepping {
		if r.id == id {
			l.cancelled[id] = true
			return
		}
	}
}

// Post queues fn to run at the start of the next Step.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Step runs queued tasks, then every frame callback requested before the step.
// Callbacks requested while stepping wait for the next step.
func (l *Loop) Step(now time.Time) {
	l.RunTasks()

	l.mu.Lock()
	frames := l.pending
	l.pending = nil
	l.stepping = frames
	l.cancelled = make(map[ID]bool)
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.stepping = nil
		l.cancelled = nil
		l.mu.Unlock()
	}()

	for _, r := range frames {
		l.mu.Lock()
		skip := l.cancelled[r.id]
		l.mu.Unlock()
		if skip {
			continue
		}
		r.cb(now)
	}
}

// RunTasks runs queued tasks without producing a frame.
func (l *Loop) RunTasks() {
	for {
		l.mu.Lock()
		tasks := l.tasks
		l.tasks = nil
		l.mu.Unlock()

		if len(tasks) == 0 {
			return
		}
		for _, fn := range tasks {
			fn()
		}
	}
}

// Pending reports how many frame callbacks are waiting.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Run steps the loop every interval until ctx is done. Posted tasks are also
// picked up between ticks so commands do not wait for the next frame.
func (l *Loop) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.RunTasks()
			return
		case now := <-ticker.C:
			l.Step(now)
		case <-l.wake:
			l.RunTasks()
		}
	}
}

// Do runs fn on the loop and waits for it. Only valid while Run is active.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
