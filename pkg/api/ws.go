package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// The events socket only serves local UI processes, so the origin check is
// disabled.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	wsWriteWait    = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// HandleEventsWS streams state-change events to a websocket client. Each
// event names the scope and domain that changed; the client refetches the
// snapshot through the JSON endpoints rather than receiving state inline.
func (s *Server) HandleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	id, events := s.agent.Events().Register()
	defer s.agent.Events().Unregister(id)
	defer conn.Close()

	s.logger.Debugf("events listener %d connected from %s", id, r.RemoteAddr)

	// Reader goroutine: discard client frames, detect disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debugf("events listener %d write failed: %v", id, err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
