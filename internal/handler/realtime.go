package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/homelink/hub-go/internal/ws"
)

// RealtimeHandler upgrades HTTP requests onto the realtime channel.
// The upgrade itself is unauthenticated; trust is established by the
// in-channel auth frame.
type RealtimeHandler struct {
	hub       *ws.Hub
	auth      ws.Authenticator
	caller    ws.ServiceCaller
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

func NewRealtimeHandler(hub *ws.Hub, auth ws.Authenticator, caller ws.ServiceCaller, heartbeat time.Duration) *RealtimeHandler {
	return &RealtimeHandler{
		hub:       hub,
		auth:      auth,
		caller:    caller,
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Companion apps connect from arbitrary local origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *RealtimeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := ws.NewConn(h.hub, wsConn, h.auth, h.caller, h.heartbeat)
	conn.Run(r.Context())
}
