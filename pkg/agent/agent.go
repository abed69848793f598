// Package agent wires the synchronization pipeline together: hub
// connections in, reducers over local stores, debounced reconciliation
// against the REST backend, snapshot caching for fast paint, and a local
// fan-out of state-change events for UI consumers.
//
// Data flow per push event: the hub manager dispatches the raw payload to
// the domain reducer; a self-sufficient outcome is applied locally and
// broadcast immediately, a needs-refetch outcome only arms the scheduler.
// When the debounce window closes the scheduler runs a single authoritative
// fetch that replaces the domain snapshot wholesale.
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/streamcart/cartsync/pkg/auth"
	"github.com/streamcart/cartsync/pkg/cache"
	"github.com/streamcart/cartsync/pkg/hub"
	"github.com/streamcart/cartsync/pkg/log"
	"github.com/streamcart/cartsync/pkg/realtime"
	"github.com/streamcart/cartsync/pkg/reconcile"
	"github.com/streamcart/cartsync/pkg/restapi"
	"github.com/streamcart/cartsync/pkg/state"
)

// Domain names used for scheduler keys, cache rows and state events.
const (
	DomainNotifications = "notifications"
	DomainPinned        = "pinned"
	DomainCart          = "cart"
)

// Config carries the agent's collaborators. Hub, REST and Scheduler are
// required; Cache may be nil to run without fast-paint persistence.
type Config struct {
	Hub       *hub.Manager
	REST      *restapi.Client
	Scheduler *reconcile.Scheduler
	Cache     *cache.Store
	Events    *realtime.Hub
}

// Agent owns all domain state and its synchronization.
type Agent struct {
	hub    *hub.Manager
	rest   *restapi.Client
	sched  *reconcile.Scheduler
	cache  *cache.Store
	events *realtime.Hub
	logger *log.Logger

	notifications *state.NotificationStore

	mu       sync.Mutex
	sessions map[string]*session
	started  bool
}

// session is the per-livestream state bundle.
type session struct {
	livestreamID string
	pinned       *state.PinnedStore
	cart         *state.CartStore
}

// New creates an agent.
func New(cfg Config) *Agent {
	events := cfg.Events
	if events == nil {
		events = realtime.NewHub(0)
	}
	return &Agent{
		hub:           cfg.Hub,
		rest:          cfg.REST,
		sched:         cfg.Scheduler,
		cache:         cfg.Cache,
		events:        events,
		logger:        log.ForComponent("agent"),
		notifications: state.NewNotificationStore(),
		sessions:      make(map[string]*session),
	}
}

// Events returns the local state-change hub for API consumers.
func (a *Agent) Events() *realtime.Hub { return a.events }

// Start paints cached state, connects the global notification scope and
// registers its handler. A missing credential is returned to the caller as
// auth.ErrNoCredential and not retried.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.mu.Unlock()

	a.paintNotifications()

	a.hub.On(hub.ScopeGlobal, hub.EventReceiveNotification, a.onNotification)
	if _, err := a.hub.Connect(ctx, hub.ScopeGlobal); err != nil {
		return fmt.Errorf("connecting notification hub: %w", err)
	}

	// First authoritative list so the cached paint gets replaced.
	a.sched.RefreshNow(a.key(hub.ScopeGlobal, DomainNotifications), a.fetchNotifications)
	return nil
}

// Stop tears everything down.
func (a *Agent) Stop() {
	a.sched.Close()
	a.hub.DisconnectAll()
}

func (a *Agent) key(scope, domain string) reconcile.Key {
	return reconcile.Key{Scope: scope, Domain: domain}
}

func (a *Agent) broadcast(scope, domain, kind string) {
	a.events.Broadcast(realtime.StateEvent{Scope: scope, Domain: domain, Kind: kind})
}

// --- notifications -------------------------------------------------------

func (a *Agent) onNotification(data []byte) {
	switch a.notifications.ApplyPush(data) {
	case state.SelfSufficient:
		a.cacheNotifications()
		a.broadcast(hub.ScopeGlobal, DomainNotifications, realtime.KindOptimistic)
	case state.NeedsRefetch:
		a.sched.Schedule(a.key(hub.ScopeGlobal, DomainNotifications), a.fetchNotifications)
	}
}

func (a *Agent) fetchNotifications(ctx context.Context) error {
	entries, err := a.rest.ListNotifications(ctx)
	if err != nil {
		return err
	}
	a.notifications.ReplaceAll(entries)
	a.cacheNotifications()
	a.broadcast(hub.ScopeGlobal, DomainNotifications, realtime.KindReplace)
	return nil
}

// Notifications returns the local notification list and unread count.
func (a *Agent) Notifications() ([]state.NotificationEntry, int) {
	return a.notifications.Snapshot()
}

// MarkAllNotificationsRead performs the user action server-side first, then
// applies it locally. The error is returned for user-facing surfacing;
// local state stays untouched on failure.
func (a *Agent) MarkAllNotificationsRead(ctx context.Context) error {
	if err := a.rest.MarkAllNotificationsRead(ctx); err != nil {
		return err
	}
	a.notifications.MarkAllRead()
	a.cacheNotifications()
	a.broadcast(hub.ScopeGlobal, DomainNotifications, realtime.KindReplace)
	return nil
}

func (a *Agent) paintNotifications() {
	if a.cache == nil {
		return
	}
	var entries []state.NotificationEntry
	found, err := a.cache.Get(hub.ScopeGlobal, DomainNotifications, &entries)
	if err != nil {
		a.logger.Warnf("loading cached notifications: %v", err)
		return
	}
	if found {
		a.notifications.ReplaceAll(entries)
		a.logger.Debugf("painted %d cached notifications", len(entries))
	}
}

func (a *Agent) cacheNotifications() {
	if a.cache == nil {
		return
	}
	entries, _ := a.notifications.Snapshot()
	if err := a.cache.Put(hub.ScopeGlobal, DomainNotifications, entries); err != nil {
		a.logger.Warnf("caching notifications: %v", err)
	}
}

// --- credential lifecycle ------------------------------------------------

// OnCredentialChange reacts to external login/logout observed by the
// credential watcher. Logout drops every connection, pending fetch and
// cached snapshot; login re-establishes the global scope and any watched
// livestreams.
func (a *Agent) OnCredentialChange(ctx context.Context, change auth.Change) {
	switch change {
	case auth.LoggedOut:
		a.logger.Infof("logged out, tearing down")
		a.sched.CancelAll()
		a.hub.DisconnectAll()
		a.notifications.ReplaceAll(nil)
		a.mu.Lock()
		sessions := a.sessions
		a.sessions = make(map[string]*session)
		a.mu.Unlock()
		if a.cache != nil {
			if err := a.cache.Clear(); err != nil {
				a.logger.Warnf("clearing cache: %v", err)
			}
		}
		a.broadcast(hub.ScopeGlobal, DomainNotifications, realtime.KindCleared)
		for id := range sessions {
			a.broadcast(id, DomainCart, realtime.KindCleared)
			a.broadcast(id, DomainPinned, realtime.KindCleared)
		}
	case auth.LoggedIn:
		if a.hub.StateOf(hub.ScopeGlobal) != hub.Disconnected {
			// Token rotated under a live connection; just resync.
			a.sched.RefreshNow(a.key(hub.ScopeGlobal, DomainNotifications), a.fetchNotifications)
			return
		}
		a.logger.Infof("logged in, reconnecting")
		// Start may have registered the handler before failing on the
		// missing credential; drop any leftover registration first.
		a.hub.Off(hub.ScopeGlobal)
		a.hub.On(hub.ScopeGlobal, hub.EventReceiveNotification, a.onNotification)
		if _, err := a.hub.Connect(ctx, hub.ScopeGlobal); err != nil {
			a.logger.Errorf("reconnecting notification hub: %v", err)
			return
		}
		a.sched.RefreshNow(a.key(hub.ScopeGlobal, DomainNotifications), a.fetchNotifications)
	}
}
