// Package autosave debounces rubric writes. Each key holds only the latest
// pending save; the save runs once the key has been quiet for the configured
// delay, and every new edit restarts that wait.
package autosave

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"scriptportal-backend-go/internal/clock"
)

type SaveFunc func(ctx context.Context) error

type Queue struct {
	clock   clock.Clock
	delay   time.Duration
	onError func(key string, err error)

	mu      sync.Mutex
	pending map[string]*entry
	running map[string]*entry
	closed  bool
}

type entry struct {
	save  SaveFunc
	timer clock.Timer
	done  chan struct{}
	err   error
}

func New(c clock.Clock, delay time.Duration, onError func(key string, err error)) *Queue {
	if onError == nil {
		onError = func(string, error) {}
	}
	return &Queue{
		clock:   c,
		delay:   delay,
		onError: onError,
		pending: map[string]*entry{},
		running: map[string]*entry{},
	}
}

// Schedule replaces any pending save for key and restarts its timer. After
// Close, saves run immediately.
func (q *Queue) Schedule(key string, save SaveFunc) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		if err := save(context.Background()); err != nil {
			q.onError(key, err)
		}
		return
	}
	if previous, ok := q.pending[key]; ok {
		previous.timer.Stop()
	}
	e := &entry{save: save, done: make(chan struct{})}
	q.pending[key] = e
	e.timer = q.clock.AfterFunc(q.delay, func() { q.fire(key, e) })
	q.mu.Unlock()
}

func (q *Queue) fire(key string, e *entry) {
	q.mu.Lock()
	if q.pending[key] != e {
		q.mu.Unlock()
		return
	}
	delete(q.pending, key)
	q.running[key] = e
	q.mu.Unlock()

	q.run(context.Background(), key, e)
	if e.err != nil {
		q.onError(key, e.err)
	}
}

func (q *Queue) run(ctx context.Context, key string, e *entry) {
	e.err = e.save(ctx)
	q.mu.Lock()
	if q.running[key] == e {
		delete(q.running, key)
	}
	q.mu.Unlock()
	close(e.done)
}

// Flush runs the pending save for key now, or waits for one already running.
func (q *Queue) Flush(ctx context.Context, key string) error {
	q.mu.Lock()
	if e, ok := q.pending[key]; ok {
		e.timer.Stop()
		delete(q.pending, key)
		q.running[key] = e
		q.mu.Unlock()
		q.run(ctx, key, e)
		return e.err
	}
	e, ok := q.running[key]
	q.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FlushPrefix flushes every pending or running key that starts with prefix.
func (q *Queue) FlushPrefix(ctx context.Context, prefix string) error {
	q.mu.Lock()
	seen := map[string]bool{}
	keys := []string{}
	for _, set := range []map[string]*entry{q.pending, q.running} {
		for key := range set {
			if strings.HasPrefix(key, prefix) && !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	q.mu.Unlock()
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		if err := q.Flush(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pending reports whether key has a save waiting for its timer.
func (q *Queue) Pending(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[key]
	return ok
}

// Active reports whether key has a save waiting or running.
func (q *Queue) Active(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, pending := q.pending[key]
	_, running := q.running[key]
	return pending || running
}

// Close stops all timers and runs every pending save.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	keys := make([]string, 0, len(q.pending))
	for key := range q.pending {
		keys = append(keys, key)
	}
	q.mu.Unlock()

	var errs []error
	for _, key := range keys {
		if err := q.Flush(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
