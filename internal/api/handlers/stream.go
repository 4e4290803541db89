package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/earnsight/internal/notify"
	"github.com/wonny/earnsight/pkg/logger"
)

const streamWriteTimeout = 10 * time.Second

// StreamHandler upgrades clients onto the event stream (push channel)
type StreamHandler struct {
	hub      *notify.Hub
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(hub *notify.Hub, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// cross-origin dashboards are allowed; auth happens upstream
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: log,
	}
}

// Connect upgrades the request and pumps the user's events until the
// client disconnects or the hub drops the subscription.
// GET /api/stream?user_id=alice
func (h *StreamHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "Query parameter 'user_id' is required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Stream upgrade failed")
		return
	}

	sub := h.hub.Subscribe(userID)
	defer func() {
		h.hub.Unsubscribe(sub)
		conn.Close()
	}()

	// reader detects client disconnects; inbound frames are ignored
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case env := <-sub.Events():
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(env); err != nil {
				h.logger.WithFields(map[string]interface{}{
					"user_id": userID,
					"error":   err.Error(),
				}).Debug("Stream write failed")
				return
			}
		case <-sub.Done():
			return
		case <-readerDone:
			return
		}
	}
}
