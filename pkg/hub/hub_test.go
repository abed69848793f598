package hub

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/streamcart/cartsync/pkg/auth"
)

type staticTokens struct {
	token string
}

func (s staticTokens) Token() (string, error) {
	if s.token == "" {
		return "", auth.ErrNoCredential
	}
	return s.token, nil
}

// hubServer is a fake push hub: it upgrades connections, records them, and
// lets tests push frames to the most recent connection per path.
type hubServer struct {
	t        *testing.T
	ts       *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	dials    atomic.Int64
	lastAuth atomic.Value // string
}

func newHubServer(t *testing.T) *hubServer {
	t.Helper()
	s := &hubServer{t: t}
	s.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.dials.Add(1)
		s.lastAuth.Store(r.Header.Get("Authorization"))
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		// Keep the read side alive so close frames are processed.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	t.Cleanup(s.ts.Close)
	return s
}

func (s *hubServer) baseURL() string {
	return "ws" + strings.TrimPrefix(s.ts.URL, "http")
}

func (s *hubServer) push(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		s.t.Fatal("no hub connection to push to")
	}
	conn := s.conns[len(s.conns)-1]
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		s.t.Fatalf("pushing frame: %v", err)
	}
}

func (s *hubServer) dropLast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		s.t.Fatal("no hub connection to drop")
	}
	_ = s.conns[len(s.conns)-1].Close()
}

func newTestManager(s *hubServer) *Manager {
	return NewManager(Config{
		BaseURL:    s.baseURL(),
		Tokens:     staticTokens{token: "tok"},
		Backoff:    20 * time.Millisecond,
		MaxBackoff: 100 * time.Millisecond,
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestConnectRequiresCredential(t *testing.T) {
	s := newHubServer(t)
	m := NewManager(Config{BaseURL: s.baseURL(), Tokens: staticTokens{}})

	_, err := m.Connect(t.Context(), ScopeGlobal)
	if !errors.Is(err, auth.ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
	if got := m.StateOf(ScopeGlobal); got != Disconnected {
		t.Fatalf("state = %v, want disconnected", got)
	}
	if s.dials.Load() != 0 {
		t.Fatal("no dial should happen without a credential")
	}
}

func TestHandshakeFailureIsNotRetried(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer ts.Close()

	m := NewManager(Config{
		BaseURL: "ws" + strings.TrimPrefix(ts.URL, "http"),
		Tokens:  staticTokens{token: "tok"},
		Backoff: 10 * time.Millisecond,
	})

	_, err := m.Connect(t.Context(), "LS1")
	if err == nil {
		t.Fatal("expected handshake error")
	}
	// A retry loop would show up as a non-disconnected state.
	time.Sleep(50 * time.Millisecond)
	if got := m.StateOf("LS1"); got != Disconnected {
		t.Fatalf("state = %v, want disconnected", got)
	}
}

func TestConnectIsIdempotentPerScope(t *testing.T) {
	s := newHubServer(t)
	m := newTestManager(s)
	defer m.DisconnectAll()

	h1, err := m.Connect(t.Context(), "LS1")
	if err != nil {
		t.Fatalf("first connect: %v", err)
	}
	h2, err := m.Connect(t.Context(), "LS1")
	if err != nil {
		t.Fatalf("second connect: %v", err)
	}

	if h1.ScopeKey() != h2.ScopeKey() {
		t.Fatal("handles should share the scope")
	}
	if got := s.dials.Load(); got != 1 {
		t.Fatalf("expected exactly one socket, got %d dials", got)
	}
	if got := m.Refs("LS1"); got != 2 {
		t.Fatalf("refs = %d, want 2", got)
	}
	if auth, _ := s.lastAuth.Load().(string); auth != "Bearer tok" {
		t.Fatalf("authorization header = %q", auth)
	}
}

func TestHandlersInvokedInRegistrationOrder(t *testing.T) {
	s := newHubServer(t)
	m := newTestManager(s)
	defer m.DisconnectAll()

	var mu sync.Mutex
	var order []string
	add := func(name string) Handler {
		return func(data []byte) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}
	m.On("LS1", EventPinChanged, add("first"))
	m.On("LS1", EventPinChanged, add("second"))
	m.On("LS1", EventStockChanged, add("other"))

	if _, err := m.Connect(t.Context(), "LS1"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	s.push(`{"event":"PinnedProductChanged","data":{"productId":"p1"}}`)

	waitFor(t, "both handlers", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	})
	mu.Lock()
	defer mu.Unlock()
	if order[0] != "first" || order[1] != "second" {
		t.Fatalf("order = %v", order)
	}
}

func TestMalformedFrameIsDropped(t *testing.T) {
	s := newHubServer(t)
	m := newTestManager(s)
	defer m.DisconnectAll()

	var calls atomic.Int64
	m.On("LS1", EventPinChanged, func(data []byte) { calls.Add(1) })

	if _, err := m.Connect(t.Context(), "LS1"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	s.push(`not json at all`)
	s.push(`{"noevent":"here"}`)
	s.push(`{"event":"PinnedProductChanged"}`)

	waitFor(t, "the valid frame", func() bool { return calls.Load() == 1 })
}

func TestReconnectKeepsHandlers(t *testing.T) {
	s := newHubServer(t)
	m := newTestManager(s)
	defer m.DisconnectAll()

	var calls atomic.Int64
	m.On("LS1", EventStockChanged, func(data []byte) { calls.Add(1) })

	if _, err := m.Connect(t.Context(), "LS1"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	s.push(`{"event":"StockChanged","data":{"stock":5}}`)
	waitFor(t, "first event", func() bool { return calls.Load() == 1 })

	// Drop the established connection; the manager must re-dial on its own.
	s.dropLast()
	waitFor(t, "reconnect", func() bool { return s.dials.Load() >= 2 })
	waitFor(t, "connected state", func() bool { return m.StateOf("LS1") == Connected })

	// No re-subscription happened, yet the handler still fires.
	s.push(`{"event":"StockChanged","data":{"stock":4}}`)
	waitFor(t, "event after reconnect", func() bool { return calls.Load() == 2 })
}

func TestReleaseIsReferenceCounted(t *testing.T) {
	s := newHubServer(t)
	m := newTestManager(s)

	if _, err := m.Connect(t.Context(), ScopeGlobal); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := m.Connect(t.Context(), ScopeGlobal); err != nil {
		t.Fatalf("second connect: %v", err)
	}

	m.Release(ScopeGlobal)
	if got := m.StateOf(ScopeGlobal); got != Connected {
		t.Fatalf("state after first release = %v, want connected", got)
	}

	m.Release(ScopeGlobal)
	if got := m.StateOf(ScopeGlobal); got != Disconnected {
		t.Fatalf("state after last release = %v, want disconnected", got)
	}
}

func TestScopeURLMapping(t *testing.T) {
	tests := []struct {
		scope string
		want  string
	}{
		{ScopeGlobal, "wss://hub.test/hubs/notifications"},
		{"LS1", "wss://hub.test/hubs/livestream/LS1"},
	}
	for _, tt := range tests {
		got, err := scopeURL("wss://hub.test", tt.scope)
		if err != nil {
			t.Fatalf("scopeURL(%q): %v", tt.scope, err)
		}
		if got != tt.want {
			t.Errorf("scopeURL(%q) = %q, want %q", tt.scope, got, tt.want)
		}
	}
}
