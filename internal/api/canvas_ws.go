package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/coder/websocket"

	"github.com/abhisek/mathpad/internal/apperr"
	"github.com/abhisek/mathpad/internal/canvas"
	"github.com/abhisek/mathpad/internal/session"
)

// wsMessage is one client message on the canvas socket.
type wsMessage struct {
	Type  string               `json:"type"`
	Event *canvas.PointerEvent `json:"event,omitempty"`
}

// wsReply is one server message on the canvas socket.
type wsReply struct {
	Type       string      `json:"type"`
	Changed    bool        `json:"changed,omitempty"`
	Generation int         `json:"generation"`
	Empty      bool        `json:"empty"`
	Error      string      `json:"error,omitempty"`
	Kind       apperr.Kind `json:"kind,omitempty"`
}

// CanvasSocket streams pointer events into the session canvas. Each
// pointer release and clear is acknowledged with the canvas generation so
// the page knows when to refresh its preview.
func (s *Server) CanvasSocket(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.allowedOrigins),
	})
	if err != nil {
		s.log.Warn("failed to accept websocket", "user", id.Username, "error", err)
		return
	}
	defer ws.CloseNow()

	ctx := r.Context()
	s.log.Debug("canvas socket opened", "session", id.SessionID)

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 {
				s.log.Debug("canvas socket read error", "session", id.SessionID, "error", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.writeWS(ctx, ws, wsReply{Type: "error", Error: "invalid message", Kind: apperr.KindValidation})
			continue
		}

		reply, ok := s.handleWS(ctx, id.SessionID, msg)
		if !ok {
			continue
		}
		if err := s.writeWS(ctx, ws, reply); err != nil {
			return
		}
	}
}

// handleWS applies msg. ok is false when nothing needs to be sent back.
func (s *Server) handleWS(ctx context.Context, sessionID string, msg wsMessage) (wsReply, bool) {
	var changed bool
	var fn func(*session.State) error

	switch msg.Type {
	case "ping":
		return wsReply{Type: "pong"}, true
	case "pointer":
		if msg.Event == nil {
			return wsReply{Type: "error", Error: "missing event", Kind: apperr.KindValidation}, true
		}
		fn = func(st *session.State) error {
			var err error
			changed, err = session.HandlePointer(st, *msg.Event)
			return err
		}
	case "clear":
		fn = func(st *session.State) error {
			session.ClearCanvas(st)
			return nil
		}
	default:
		return wsReply{Type: "error", Error: "unknown message type " + msg.Type, Kind: apperr.KindValidation}, true
	}

	st, err := s.sessions.Do(ctx, sessionID, fn)
	if err != nil {
		return wsReply{Type: "error", Error: err.Error(), Kind: apperr.KindOf(err)}, true
	}
	if msg.Type == "pointer" && msg.Event.Kind != canvas.PointerUp {
		return wsReply{}, false
	}
	return wsReply{
		Type:       "ack",
		Changed:    changed || msg.Type == "clear",
		Generation: st.Canvas.Generation,
		Empty:      st.Canvas.Empty(),
	}, true
}

func (s *Server) writeWS(ctx context.Context, ws *websocket.Conn, v wsReply) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

// originPatterns converts allowed origins into the host patterns the
// websocket handshake matches against. Same-origin requests are always
// accepted.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o == "*" {
			out = append(out, "*")
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		}
	}
	return out
}
