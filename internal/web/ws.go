package web

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"PocketChat/internal/llm"
	"PocketChat/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// wsRequest is a frame from the widget.
type wsRequest struct {
	Type              string `json:"type"`
	Message           string `json:"message,omitempty"`
	SystemInstruction string `json:"system_instruction,omitempty"`
	Model             string `json:"model,omitempty"`
}

// wsReply answers a chat frame.
type wsReply struct {
	Type       string            `json:"type"`
	Reply      string            `json:"reply,omitempty"`
	Transcript []session.Message `json:"transcript"`
}

// wsError reports a failed frame without closing the connection.
type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// handleWebSocket runs the widget's chat channel. Frames are read one
// at a time per connection, so a widget's requests queue naturally and
// replies arrive in issue order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()
	s.logger.Info("websocket connected", "remote", conn.RemoteAddr().String())

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var out any
		switch req.Type {
		case "chat":
			reply, err := s.bot.Send(r.Context(), req.Message, req.SystemInstruction, req.Model)
			if err != nil {
				out = wsErrorFrame(err)
				break
			}
			out = wsReply{Type: "reply", Reply: reply, Transcript: s.bot.Transcript()}

		case "clear":
			s.bot.Clear()
			out = wsReply{Type: "transcript", Transcript: s.bot.Transcript()}

		case "transcript":
			out = wsReply{Type: "transcript", Transcript: s.bot.Transcript()}

		default:
			out = wsError{Type: "error", Error: "unknown frame type: " + req.Type, Kind: llm.KindInvalidRequest}
		}

		if err := conn.WriteJSON(out); err != nil {
			s.logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func wsErrorFrame(err error) wsError {
	kind := llm.KindOf(err)
	if errors.Is(err, llm.ErrBusy) {
		kind = "busy"
	}
	return wsError{Type: "error", Error: err.Error(), Kind: kind}
}
