package websocket

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/ducdigital/fairy-go/internal/events"
	"github.com/ducdigital/fairy-go/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, implement proper origin checking
		return true
	},
}

// Handler handles WebSocket connections
type Handler struct {
	hub *Hub
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// ServeWS handles WebSocket upgrade requests
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(h.hub, conn)

	// A dashboard can narrow its feed up front with ?events=task.enqueued,group.blocked
	// instead of waiting for a subscribe message over the socket.
	if filter := r.URL.Query().Get("events"); filter != "" {
		for _, et := range strings.Split(filter, ",") {
			client.Subscribe(events.EventType(strings.TrimSpace(et)))
		}
	} else {
		client.SubscribeAll()
	}

	h.hub.Register(client)

	// Start pumps in goroutines
	go client.WritePump()
	go client.ReadPump()

	logger.Info().
		Str("client_id", client.ID).
		Str("remote_addr", r.RemoteAddr).
		Int("group_blocked_watchers", h.hub.SubscriberCount(events.EventGroupBlocked)).
		Msg("WebSocket client connected")
}
