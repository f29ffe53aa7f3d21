package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	apperrors "github.com/homelink/hub-go/internal/errors"
	"github.com/homelink/hub-go/internal/model"
)

const (
	sendBufferSize = 64
	maxFrameBytes  = 64 * 1024
)

// Authenticator resolves auth frames and enforces liveness of the
// client's trust on every privileged action.
type Authenticator interface {
	VerifyCertificate(ctx context.Context, clientID, certificate string) (*model.Client, error)
	RequireActive(ctx context.Context, clientID string) error
	UpdateActivity(ctx context.Context, clientID string) error
}

// ServiceCaller forwards call_service frames to the upstream
// home-automation proxy. The proxy is an external collaborator; the
// gateway only defines the boundary.
type ServiceCaller interface {
	CallService(ctx context.Context, clientID string, call CallServicePayload) (any, error)
}

type connState int

const (
	stateConnected connState = iota
	stateAuthenticated
	stateClosed
)

// Conn is one realtime connection and its state machine:
// Connected (unauthenticated) -> Authenticated -> Closed.
type Conn struct {
	hub       *Hub
	ws        *websocket.Conn
	auth      Authenticator
	caller    ServiceCaller
	heartbeat time.Duration

	send      chan Frame
	closed    chan struct{}
	draining  chan struct{}
	closeOnce sync.Once
	drainOnce sync.Once

	mu              sync.Mutex
	state           connState
	clientID        string
	subscribed      bool
	entityFilter    map[string]struct{}
	pingOutstanding bool
}

func NewConn(hub *Hub, wsConn *websocket.Conn, auth Authenticator, caller ServiceCaller, heartbeat time.Duration) *Conn {
	return &Conn{
		hub:       hub,
		ws:        wsConn,
		auth:      auth,
		caller:    caller,
		heartbeat: heartbeat,
		send:      make(chan Frame, sendBufferSize),
		closed:    make(chan struct{}),
		draining:  make(chan struct{}),
	}
}

// Run services the connection until it closes. It blocks; the caller
// owns the goroutine.
func (c *Conn) Run(ctx context.Context) {
	go c.writePump()

	c.enqueue(NewFrame(FrameConnected, map[string]any{
		"heartbeat_interval_ms": c.heartbeat.Milliseconds(),
	}))

	c.readPump(ctx)

	c.mu.Lock()
	clientID := c.clientID
	wasAuthenticated := c.state == stateAuthenticated
	c.state = stateClosed
	c.mu.Unlock()

	if wasAuthenticated {
		c.hub.Unregister(clientID, c)
	}
	c.ForceClose("connection ended")
}

// ForceClose terminates the connection without a graceful close
// handshake. Used for missed pongs, superseded connections and
// revocation.
func (c *Conn) ForceClose(reason string) {
	c.closeOnce.Do(func() {
		log.Debug().Str("reason", reason).Msg("realtime connection closed")
		close(c.closed)
		c.ws.Close()
	})
}

// drainClose flushes queued frames (an error frame the peer should
// see) before dropping the connection.
func (c *Conn) drainClose() {
	c.drainOnce.Do(func() {
		close(c.draining)
	})
}

func (c *Conn) enqueue(frame Frame) {
	select {
	case c.send <- frame:
	default:
		log.Warn().Str("type", frame.Type).Msg("send buffer full, dropping frame")
	}
}

func (c *Conn) readPump(ctx context.Context) {
	c.ws.SetReadLimit(maxFrameBytes)

	for {
		var frame Frame
		if err := c.ws.ReadJSON(&frame); err != nil {
			return
		}
		c.handleFrame(ctx, frame)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()
	defer c.ws.Close()

	for {
		select {
		case <-c.closed:
			return

		case <-c.draining:
			for {
				select {
				case frame := <-c.send:
					_ = c.ws.WriteJSON(frame)
				default:
					return
				}
			}

		case frame := <-c.send:
			if err := c.ws.WriteJSON(frame); err != nil {
				return
			}

		case <-ticker.C:
			c.mu.Lock()
			missed := c.pingOutstanding
			c.pingOutstanding = true
			c.mu.Unlock()

			if missed {
				log.Debug().Msg("missed pong, terminating connection")
				return
			}
			if err := c.ws.WriteJSON(NewFrame(FramePing, nil)); err != nil {
				return
			}
		}
	}
}

func (c *Conn) handleFrame(ctx context.Context, frame Frame) {
	switch frame.Type {
	case FramePing:
		c.enqueue(NewFrame(FramePong, nil))

	case FramePong:
		c.handlePong(ctx)

	case FrameAuth:
		c.handleAuth(ctx, frame)

	case FrameSubscribeEntities:
		c.privileged(ctx, frame, c.handleSubscribe)

	case FrameCallService:
		c.privileged(ctx, frame, c.handleCallService)

	default:
		c.enqueue(ErrorFrame("Unknown frame type: " + frame.Type))
	}
}

func (c *Conn) handlePong(ctx context.Context) {
	c.mu.Lock()
	c.pingOutstanding = false
	clientID := c.clientID
	authenticated := c.state == stateAuthenticated
	c.mu.Unlock()

	// A pong is the client's heartbeat; keep last_seen fresh.
	if authenticated {
		if err := c.auth.UpdateActivity(ctx, clientID); err != nil {
			log.Warn().Err(err).Str("clientId", clientID).Msg("failed to update activity")
		}
	}
}

func (c *Conn) handleAuth(ctx context.Context, frame Frame) {
	c.mu.Lock()
	alreadyAuthenticated := c.state == stateAuthenticated
	c.mu.Unlock()

	if alreadyAuthenticated {
		c.enqueue(ErrorFrame("Already authenticated"))
		return
	}

	var payload AuthPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.ClientID == "" || payload.Certificate == "" {
		c.failAuth("Invalid auth payload")
		return
	}

	client, err := c.auth.VerifyCertificate(ctx, payload.ClientID, payload.Certificate)
	if err != nil {
		message := "Authentication failed"
		if appErr, ok := apperrors.AsAppError(err); ok {
			message = appErr.Message
		}
		log.Warn().Str("clientId", payload.ClientID).Msg("realtime auth failed")
		c.failAuth(message)
		return
	}

	c.mu.Lock()
	c.state = stateAuthenticated
	c.clientID = client.ID
	c.mu.Unlock()

	c.hub.Register(client.ID, c)

	if err := c.auth.UpdateActivity(ctx, client.ID); err != nil {
		log.Warn().Err(err).Str("clientId", client.ID).Msg("failed to update activity")
	}

	c.enqueue(NewFrame(FrameAuthOK, map[string]any{"client_id": client.ID}))
}

// failAuth delivers the error frame, then drops the connection. There
// is no auth retry on the same connection.
func (c *Conn) failAuth(message string) {
	c.enqueue(ErrorFrame(message))
	c.drainClose()
}

// privileged gates a frame handler behind authentication. Before auth
// the connection stays open but the frame has no effect; after auth,
// is_active is re-checked on every frame so revocation takes hold
// mid-connection.
func (c *Conn) privileged(ctx context.Context, frame Frame, handler func(ctx context.Context, clientID string, frame Frame)) {
	c.mu.Lock()
	clientID := c.clientID
	authenticated := c.state == stateAuthenticated
	c.mu.Unlock()

	if !authenticated {
		c.enqueue(ErrorFrame("Authentication required"))
		return
	}

	if err := c.auth.RequireActive(ctx, clientID); err != nil {
		c.enqueue(ErrorFrame("Access revoked"))
		c.drainClose()
		return
	}

	handler(ctx, clientID, frame)
}

func (c *Conn) handleSubscribe(ctx context.Context, clientID string, frame Frame) {
	var payload SubscribeEntitiesPayload
	if len(frame.Payload) > 0 {
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			c.enqueue(ErrorFrame("Invalid subscribe_entities payload"))
			return
		}
	}

	filter := make(map[string]struct{}, len(payload.EntityIDs))
	for _, id := range payload.EntityIDs {
		filter[id] = struct{}{}
	}

	c.mu.Lock()
	c.subscribed = true
	c.entityFilter = filter
	c.mu.Unlock()

	c.enqueue(NewFrame(FrameSubscribed, SubscribeEntitiesPayload{EntityIDs: payload.EntityIDs}))
}

func (c *Conn) handleCallService(ctx context.Context, clientID string, frame Frame) {
	var payload CallServicePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.Domain == "" || payload.Service == "" {
		c.enqueue(ErrorFrame("Invalid call_service payload"))
		return
	}

	result, err := c.caller.CallService(ctx, clientID, payload)
	if err != nil {
		c.enqueue(NewFrame(FrameServiceCallResult, ServiceCallResultPayload{Success: false, Result: err.Error()}))
		return
	}

	c.enqueue(NewFrame(FrameServiceCallResult, ServiceCallResultPayload{Success: true, Result: result}))
}

// deliverEntityUpdate hands an update to this connection if it is
// authenticated, subscribed, and the update passes its filter. An
// empty filter means all entities.
func (c *Conn) deliverEntityUpdate(update EntityUpdatePayload) {
	c.mu.Lock()
	eligible := c.state == stateAuthenticated && c.subscribed
	if eligible && len(c.entityFilter) > 0 {
		_, eligible = c.entityFilter[update.EntityID]
	}
	c.mu.Unlock()

	if !eligible {
		return
	}

	c.enqueue(NewFrame(FrameEntityUpdate, update))
}

// Authenticated reports whether the connection has completed the auth
// handshake.
func (c *Conn) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateAuthenticated
}

// ClientID returns the bound client id, empty before authentication.
func (c *Conn) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}
