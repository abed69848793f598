// Package hub maintains the persistent push connections to the Stream Cart
// hub: one websocket per scope key ("global" for account-wide notifications,
// or a livestream id). The manager owns the (scope, event) handler registry
// so callers never re-subscribe across reconnects, and it reference-counts
// shared scopes so the last consumer tearing down closes the socket.
package hub

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/streamcart/cartsync/pkg/log"
)

// ScopeGlobal is the scope key of the account-wide notification connection.
const ScopeGlobal = "global"

// State is the lifecycle state of a scope's connection.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Handler receives the raw data payload of a named hub event. Handlers for
// the same (scope, event) pair run in registration order on the connection's
// dispatch goroutine; they must not block.
type Handler func(data []byte)

// TokenSource supplies the bearer token used for the hub handshake.
// auth.Store satisfies it.
type TokenSource interface {
	Token() (string, error)
}

// Config configures a Manager.
type Config struct {
	// BaseURL is the hub endpoint, e.g. "wss://hub.streamcart.example".
	BaseURL string
	// Tokens gates connects; absence of a token is a fatal precondition.
	Tokens TokenSource
	// Backoff and MaxBackoff bound the reconnect delay for established
	// connections that later drop. Handshake failures are never retried.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// Dialer overrides the websocket dialer (tests). Defaults to
	// websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Manager owns at most one live connection per scope key.
type Manager struct {
	cfg    Config
	logger *log.Logger

	mu       sync.Mutex
	conns    map[string]*conn
	handlers map[string]map[string][]Handler // scope -> event -> ordered handlers
}

// conn is the per-scope connection bookkeeping. ws is replaced in place on
// reconnect; refs counts the consumers sharing the scope.
type conn struct {
	scope  string
	ws     *websocket.Conn
	state  State
	refs   int
	cancel context.CancelFunc
	done   chan struct{}
}

// Handle identifies a live (or reference-counted) scope connection.
type Handle struct {
	m     *Manager
	scope string
}

// ScopeKey returns the scope this handle is attached to.
func (h *Handle) ScopeKey() string { return h.scope }

// State returns the current connection state for the handle's scope.
func (h *Handle) State() State { return h.m.StateOf(h.scope) }

// NewManager creates a hub connection manager.
func NewManager(cfg Config) *Manager {
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.MaxBackoff < cfg.Backoff {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Manager{
		cfg:      cfg,
		logger:   log.ForComponent("hub"),
		conns:    make(map[string]*conn),
		handlers: make(map[string]map[string][]Handler),
	}
}

// On registers a handler for a named event on a scope. Multiple handlers per
// event are invoked in registration order. Registration is independent of
// connection lifecycle: handlers survive reconnects and may be added before
// Connect.
func (m *Manager) On(scopeKey, eventName string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byEvent, ok := m.handlers[scopeKey]
	if !ok {
		byEvent = make(map[string][]Handler)
		m.handlers[scopeKey] = byEvent
	}
	byEvent[eventName] = append(byEvent[eventName], h)
}

// Off removes every handler registered for a scope. Used when a consumer
// abandons a scope it never managed to connect.
func (m *Manager) Off(scopeKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, scopeKey)
}

// Connect establishes (or joins) the connection for scopeKey and increments
// its reference count. It is idempotent: a scope with a live connection
// returns the existing handle without opening a second socket.
//
// Failure modes are deliberately asymmetric: a missing credential returns
// auth.ErrNoCredential and a failed handshake returns the dial error, both
// leaving the scope Disconnected with no retry loop. Only connections that
// were once established reconnect automatically.
func (m *Manager) Connect(ctx context.Context, scopeKey string) (*Handle, error) {
	m.mu.Lock()
	if c, ok := m.conns[scopeKey]; ok {
		c.refs++
		m.mu.Unlock()
		return &Handle{m: m, scope: scopeKey}, nil
	}
	m.mu.Unlock()

	token, err := m.cfg.Tokens.Token()
	if err != nil {
		m.logger.Warnf("connect %s: %v", scopeKey, err)
		return nil, err
	}

	ws, err := m.dial(ctx, scopeKey, token)
	if err != nil {
		m.logger.Errorf("handshake failed for scope %s: %v", scopeKey, err)
		return nil, fmt.Errorf("hub handshake for scope %s: %w", scopeKey, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &conn{
		scope:  scopeKey,
		ws:     ws,
		state:  Connected,
		refs:   1,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	if existing, ok := m.conns[scopeKey]; ok {
		// Lost the race with a concurrent Connect; keep the winner.
		existing.refs++
		m.mu.Unlock()
		cancel()
		_ = ws.Close()
		return &Handle{m: m, scope: scopeKey}, nil
	}
	m.conns[scopeKey] = c
	m.mu.Unlock()

	m.logger.Infof("connected scope %s", scopeKey)
	go m.run(runCtx, c)
	return &Handle{m: m, scope: scopeKey}, nil
}

// Release decrements the reference count for scopeKey. When the last
// consumer releases, the connection is closed, the scope's handlers are
// dropped and Release reports true.
func (m *Manager) Release(scopeKey string) bool {
	m.mu.Lock()
	c, ok := m.conns[scopeKey]
	if !ok {
		m.mu.Unlock()
		return false
	}
	c.refs--
	if c.refs > 0 {
		m.mu.Unlock()
		return false
	}
	delete(m.conns, scopeKey)
	delete(m.handlers, scopeKey)
	m.mu.Unlock()
	m.teardown(c)
	return true
}

// Disconnect closes the scope's connection regardless of reference count.
func (m *Manager) Disconnect(scopeKey string) {
	m.mu.Lock()
	c, ok := m.conns[scopeKey]
	if ok {
		delete(m.conns, scopeKey)
		delete(m.handlers, scopeKey)
	}
	m.mu.Unlock()
	if ok {
		m.teardown(c)
	}
}

// DisconnectAll closes every connection. Used on logout and shutdown.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	conns := make([]*conn, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.conns = make(map[string]*conn)
	m.handlers = make(map[string]map[string][]Handler)
	m.mu.Unlock()
	for _, c := range conns {
		m.teardown(c)
	}
}

// StateOf returns the connection state for scopeKey.
func (m *Manager) StateOf(scopeKey string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conns[scopeKey]; ok {
		return c.state
	}
	return Disconnected
}

// Refs returns the current reference count for scopeKey.
func (m *Manager) Refs(scopeKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conns[scopeKey]; ok {
		return c.refs
	}
	return 0
}

func (m *Manager) teardown(c *conn) {
	c.cancel()
	m.mu.Lock()
	ws := c.ws
	m.mu.Unlock()
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = ws.Close()
	<-c.done
	m.logger.Infof("disconnected scope %s", c.scope)
}

func (m *Manager) dial(ctx context.Context, scopeKey, token string) (*websocket.Conn, error) {
	u, err := scopeURL(m.cfg.BaseURL, scopeKey)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	ws, resp, err := m.cfg.Dialer.DialContext(ctx, u, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return ws, err
}

// scopeURL maps a scope key onto the hub endpoint path: the global scope
// lands on the notification hub, everything else on the per-livestream hub.
func scopeURL(base, scopeKey string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing hub base URL: %w", err)
	}
	if scopeKey == ScopeGlobal {
		u.Path += "/hubs/notifications"
	} else {
		u.Path += "/hubs/livestream/" + url.PathEscape(scopeKey)
	}
	return u.String(), nil
}

// run owns the read/dispatch loop for one scope. On read failure of an
// established connection it re-dials with exponential backoff, reusing the
// manager-held handler registry so callers observe nothing but a gap in
// events.
func (m *Manager) run(ctx context.Context, c *conn) {
	defer close(c.done)
	for {
		if err := m.readLoop(ctx, c); err == nil || ctx.Err() != nil {
			return
		}
		m.setState(c, Reconnecting)
		if !m.reconnect(ctx, c) {
			return
		}
		m.setState(c, Connected)
	}
}

// readLoop reads frames until the connection drops. A nil return means
// intentional shutdown.
func (m *Manager) readLoop(ctx context.Context, c *conn) error {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warnf("scope %s read error: %v", c.scope, err)
			}
			return err
		}
		m.dispatch(c.scope, data)
	}
}

// reconnect re-dials until success or shutdown. Returns false on shutdown.
func (m *Manager) reconnect(ctx context.Context, c *conn) bool {
	backoff := m.cfg.Backoff
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}

		token, err := m.cfg.Tokens.Token()
		if err != nil {
			// Logged out while reconnecting: the precondition is gone,
			// stop trying.
			m.logger.Warnf("scope %s reconnect abandoned: %v", c.scope, err)
			m.setState(c, Disconnected)
			return false
		}

		ws, err := m.dial(ctx, c.scope, token)
		if err == nil {
			m.mu.Lock()
			c.ws = ws
			m.mu.Unlock()
			m.logger.Infof("scope %s reconnected", c.scope)
			return true
		}

		m.logger.Warnf("scope %s reconnect failed (%v), retrying in %s", c.scope, err, backoff)
		backoff *= 2
		if backoff > m.cfg.MaxBackoff {
			backoff = m.cfg.MaxBackoff
		}
	}
}

// dispatch decodes one frame and invokes the registered handlers in order.
// Malformed frames are logged and skipped; push payloads must never take the
// consumer down.
func (m *Manager) dispatch(scopeKey string, raw []byte) {
	event, data, err := decodeFrame(raw)
	if err != nil {
		m.logger.Debugf("scope %s: dropping malformed frame: %v", scopeKey, err)
		return
	}

	m.mu.Lock()
	var hs []Handler
	if byEvent, ok := m.handlers[scopeKey]; ok {
		hs = append(hs, byEvent[event]...)
	}
	m.mu.Unlock()

	for _, h := range hs {
		h(data)
	}
}

func (m *Manager) setState(c *conn, s State) {
	m.mu.Lock()
	c.state = s
	m.mu.Unlock()
}
