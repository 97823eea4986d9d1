package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/skywavefm/onair/internal/state"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsEnvelope struct {
	Type     string          `json:"type"` // "event" or "snapshot"
	Revision int64           `json:"revision"`
	Event    string          `json:"event,omitempty"`
	Payload  interface{}     `json:"payload,omitempty"`
	Snapshot *state.Snapshot `json:"snapshot,omitempty"`
}

func marshalSSE(ev state.Event) ([]byte, error) {
	return json.Marshal(ev)
}

// handleWebSocket implements `WS /ws?lastRevision=N`: on
// connect it replays missed events since N if the ring still covers them,
// otherwise sends a fresh snapshot; afterward it forwards live events.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.deps.Log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.deps.State.Subscribe()
	defer s.deps.State.Unsubscribe(sub)

	var lastRevision int64
	if raw := r.URL.Query().Get("lastRevision"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			lastRevision = n
		}
	}

	missed, covered := s.deps.State.EventsSince(lastRevision)
	if covered && lastRevision > 0 {
		for _, ev := range missed {
			if err := conn.WriteJSON(wsEnvelope{Type: "event", Revision: ev.Revision, Event: ev.Event, Payload: ev.Payload}); err != nil {
				return
			}
		}
	} else {
		snap := s.deps.State.Snapshot()
		if err := conn.WriteJSON(wsEnvelope{Type: "snapshot", Snapshot: &snap}); err != nil {
			return
		}
	}

	// Drain client reads on a background goroutine so a close/error is
	// noticed even though this handler never expects inbound messages.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := conn.WriteJSON(wsEnvelope{Type: "event", Revision: ev.Revision, Event: ev.Event, Payload: ev.Payload}); err != nil {
				return
			}
		}
	}
}
