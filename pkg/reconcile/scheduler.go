// Package reconcile decides when the authoritative REST fetch runs. Push
// events classified needs-refetch are coalesced per (scope, domain): a
// debounce window absorbs bursts into a single fetch, and an in-flight guard
// prevents overlapping fetches for the same key. A failed fetch is logged
// and never retried automatically; the next qualifying event or an explicit
// user action re-attempts it, so local state stays stale-but-consistent.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/streamcart/cartsync/pkg/log"
)

// FetchFunc performs one authoritative refetch. Implementations replace
// local state only on success so a failure leaves the prior snapshot intact.
type FetchFunc func(ctx context.Context) error

// Key partitions debounce state by scope and domain ("LS1"/"cart",
// "global"/"notifications", ...).
type Key struct {
	Scope  string
	Domain string
}

// Scheduler coalesces refetches. Zero value is not usable; construct with
// NewScheduler.
type Scheduler struct {
	window time.Duration
	logger *log.Logger

	mu      sync.Mutex
	entries map[Key]*entry
	closed  bool
}

// entry tracks one (scope, domain) pair. While a timer is armed, new events
// reset it; while a fetch is in flight, new events set rearm so a fresh
// window opens after completion instead of overlapping fetches.
type entry struct {
	timer    *time.Timer
	fetch    FetchFunc
	inflight bool
	rearm    bool
	cancel   context.CancelFunc
}

// NewScheduler creates a scheduler with the given debounce window.
func NewScheduler(window time.Duration) *Scheduler {
	if window <= 0 {
		window = 900 * time.Millisecond
	}
	return &Scheduler{
		window:  window,
		logger:  log.ForComponent("reconcile"),
		entries: make(map[Key]*entry),
	}
}

// Window returns the configured debounce window.
func (s *Scheduler) Window() time.Duration { return s.window }

// Schedule arms (or re-arms) the debounced fetch for key. A qualifying event
// arriving before the window elapses reschedules the pending fetch rather
// than duplicating it; an event arriving while a fetch is in flight opens a
// fresh window once that fetch completes.
func (s *Scheduler) Schedule(key Key, fetch FetchFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.fetch = fetch

	if e.inflight {
		e.rearm = true
		return
	}
	if e.timer != nil {
		e.timer.Reset(s.window)
		return
	}
	e.timer = time.AfterFunc(s.window, func() { s.fire(key) })
}

// RefreshNow collapses into pending work: with a fetch already in flight or
// a timer armed it fires that one immediately instead of adding a second
// call; otherwise it runs fetch straight away.
func (s *Scheduler) RefreshNow(key Key, fetch FetchFunc) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.fetch = fetch

	if e.inflight {
		// Already fetching; the in-flight call is the single network call.
		s.mu.Unlock()
		return
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	s.mu.Unlock()
	s.fire(key)
}

// Cancel stops any pending timer and aborts an in-flight fetch for key.
func (s *Scheduler) Cancel(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(key)
}

// CancelScope cancels every domain belonging to scope. Used when a UI
// surface unmounts and releases the scopes it owns.
func (s *Scheduler) CancelScope(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if key.Scope == scope {
			s.cancelLocked(key)
		}
	}
}

// CancelAll cancels every pending and in-flight fetch but keeps the
// scheduler usable. Used on logout.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		s.cancelLocked(key)
	}
}

// Close cancels everything and rejects further scheduling.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		s.cancelLocked(key)
	}
	s.closed = true
}

func (s *Scheduler) cancelLocked(key Key) {
	e, ok := s.entries[key]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	if e.cancel != nil {
		e.cancel()
	}
	delete(s.entries, key)
}

// fire runs the fetch for key on its own goroutine, holding the in-flight
// guard for the duration.
func (s *Scheduler) fire(key Key) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || s.closed || e.inflight || e.fetch == nil {
		s.mu.Unlock()
		return
	}
	e.timer = nil
	e.inflight = true
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	fetch := e.fetch
	s.mu.Unlock()

	go func() {
		defer cancel()
		err := fetch(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		// The entry may have been cancelled while fetching.
		cur, ok := s.entries[key]
		if !ok || cur != e {
			return
		}
		e.inflight = false
		e.cancel = nil

		if err != nil && ctx.Err() == nil {
			// Stale-but-consistent: keep the prior snapshot, no retry.
			s.logger.Warnf("refetch %s/%s failed: %v", key.Scope, key.Domain, err)
		}
		if e.rearm && !s.closed {
			e.rearm = false
			e.timer = time.AfterFunc(s.window, func() { s.fire(key) })
		}
	}()
}
