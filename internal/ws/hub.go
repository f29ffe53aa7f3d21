package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	redisclient "github.com/homelink/hub-go/internal/redis"
)

// Hub is the active-connection registry, keyed by client id with at
// most one live connection per client. It is the only in-process
// shared mutable state; scaling across processes means moving this
// into the store or a shared broker.
type Hub struct {
	redis  *redisclient.Client
	mu     sync.RWMutex
	conns  map[string]*Conn
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewHub(redisClient *redisclient.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		redis:  redisClient,
		conns:  make(map[string]*Conn),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins consuming upstream entity updates. Without a redis
// client (tests) the hub still registers and broadcasts locally.
func (h *Hub) Start() {
	if h.redis == nil {
		return
	}
	h.wg.Add(1)
	go h.consumeEntityUpdates()
}

func (h *Hub) Stop() {
	h.cancel()
	h.wg.Wait()

	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*Conn)
	h.mu.Unlock()

	for _, c := range conns {
		c.ForceClose("server shutting down")
	}
}

// Register installs conn as the live connection for clientID. A prior
// connection for the same client is force-closed first.
func (h *Hub) Register(clientID string, conn *Conn) {
	h.mu.Lock()
	prior := h.conns[clientID]
	h.conns[clientID] = conn
	count := len(h.conns)
	h.mu.Unlock()

	if prior != nil && prior != conn {
		prior.ForceClose("superseded by a newer connection")
	}

	log.Info().
		Str("clientId", clientID).
		Int("connections", count).
		Msg("realtime connection registered")
}

// Unregister removes conn if it is still the registered connection for
// clientID; a replacement that has already taken the slot is left alone.
func (h *Hub) Unregister(clientID string, conn *Conn) {
	h.mu.Lock()
	if h.conns[clientID] == conn {
		delete(h.conns, clientID)
	}
	count := len(h.conns)
	h.mu.Unlock()

	log.Info().
		Str("clientId", clientID).
		Int("connections", count).
		Msg("realtime connection unregistered")
}

func (h *Hub) Get(clientID string) *Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[clientID]
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseClient force-closes the live connection for clientID, if any.
// Revocation uses this so a revoked client does not keep its channel.
func (h *Hub) CloseClient(clientID string) {
	if conn := h.Get(clientID); conn != nil {
		conn.ForceClose("access revoked")
	}
}

// BroadcastEntityUpdate fans an update out to every authenticated,
// subscribed connection. Delivery is best effort; a connection with a
// full buffer misses the event.
func (h *Hub) BroadcastEntityUpdate(update EntityUpdatePayload) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.deliverEntityUpdate(update)
	}
}

func (h *Hub) consumeEntityUpdates() {
	defer h.wg.Done()

	pubsub := h.redis.Subscribe(h.ctx, redisclient.EntityUpdateChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-h.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var update EntityUpdatePayload
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal entity update")
				continue
			}

			h.BroadcastEntityUpdate(update)
		}
	}
}
