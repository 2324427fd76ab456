package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tourgo/pkg/engine"
	"tourgo/pkg/geo"
	"tourgo/pkg/visitor"
)

// StreamHandler evaluates a live location stream over a websocket. Each
// inbound location message gets one trigger evaluation and one result
// message back.
type StreamHandler struct {
	engine   *engine.Engine
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(e *engine.Engine) *StreamHandler {
	return &StreamHandler{
		engine: e,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

type streamError struct {
	Error string `json:"error"`
}

// HandleStream handles GET /api/visitors/{id}/stream.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	visitorID := r.PathValue("id")
	if _, err := h.engine.Visitor(visitorID); err != nil {
		writeEngineError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "visitor", visitorID, "error", err)
		return
	}
	defer conn.Close()

	slog.Info("Location stream opened", "visitor", visitorID)

	for {
		var req locationRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("Location stream read failed", "visitor", visitorID, "error", err)
			}
			return
		}

		loc := geo.Point{Lat: req.Lat, Lon: req.Lon, Alt: req.Alt}
		res, err := h.engine.TriggerNarration(r.Context(), visitorID, loc)
		if err != nil {
			if errors.Is(err, visitor.ErrVisitorNotFound) {
				// Visitor evicted mid-stream.
				h.closeWith(conn, websocket.ClosePolicyViolation, "visitor not found")
				return
			}
			if writeErr := conn.WriteJSON(streamError{Error: err.Error()}); writeErr != nil {
				slog.Warn("Location stream write failed", "visitor", visitorID, "error", writeErr)
				return
			}
			continue
		}

		if err := conn.WriteJSON(res); err != nil {
			slog.Warn("Location stream write failed", "visitor", visitorID, "error", err)
			return
		}
	}
}

func (h *StreamHandler) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		slog.Debug("Failed to send close message", "error", err)
	}
}
