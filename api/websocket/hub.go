package websocket

import (
	"net/http"
	"sync"
	"sync/atomic"

	"cosmossdk.io/log"
	"github.com/google/uuid"

	"github.com/openalpha/etf-service/metrics"
)

// Hub maintains the set of dashboard subscribers and fans frames out to
// them. There are no channels or subscriptions: every subscriber receives
// every frame from the moment it connects. A subscriber whose send buffer
// is full when a frame arrives is disconnected rather than allowed to
// stall the broadcast.
type Hub struct {
	// Registered subscribers
	clients map[*Client]bool
	mu      sync.RWMutex

	// Register/unregister requests
	register   chan *Client
	unregister chan *Client

	// Frames from the broadcaster
	frames chan []byte

	stopCh chan struct{}

	// Counters
	totalConnections atomic.Uint64
	framesSent       atomic.Uint64
	slowDrops        atomic.Uint64

	logger  log.Logger
	metrics *metrics.Collector
}

// NewHub creates a new Hub
func NewHub(logger log.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		frames:     make(chan []byte, 16),
		stopCh:     make(chan struct{}),
		logger:     logger.With("module", "ws_hub"),
		metrics:    metrics.GetCollector(),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case frame := <-h.frames:
			h.broadcastFrame(frame)

		case <-h.stopCh:
			h.closeAll()
			return
		}
	}
}

// Stop terminates the run loop and closes every subscriber.
func (h *Hub) Stop() {
	close(h.stopCh)
}

// Broadcast hands a frame to the run loop. It never blocks: if the loop
// is congested the frame is dropped, the next tick will carry fresher
// state anyway.
func (h *Hub) Broadcast(frame []byte) {
	select {
	case h.frames <- frame:
	case <-h.stopCh:
	default:
	}
}

// registerClient adds a new subscriber
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	h.totalConnections.Add(1)
	h.metrics.RecordWSConnection(1)
	h.logger.Info("subscriber connected", "id", client.id, "ip", client.ip)
}

// unregisterClient removes a subscriber. Safe to call for clients already
// dropped by the broadcast path.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()

	if ok {
		h.metrics.RecordWSConnection(-1)
		h.logger.Info("subscriber disconnected", "id", client.id)
	}
}

// broadcastFrame sends one frame to every subscriber. Subscribers that
// cannot take the frame are cut loose here, under the same lock that
// guards registration.
func (h *Hub) broadcastFrame(frame []byte) {
	var dropped []*Client

	h.mu.Lock()
	for client := range h.clients {
		select {
		case client.send <- frame:
		default:
			// Send buffer full: the subscriber is too slow to keep.
			delete(h.clients, client)
			close(client.send)
			dropped = append(dropped, client)
		}
	}
	h.mu.Unlock()

	h.framesSent.Add(1)
	for _, client := range dropped {
		h.slowDrops.Add(1)
		h.metrics.WSSlowDrops.Inc()
		h.metrics.RecordWSConnection(-1)
		h.logger.Info("slow subscriber dropped", "id", client.id)
	}
}

// closeAll disconnects every subscriber.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		h.metrics.RecordWSConnection(-1)
	}
}

// ServeWS handles WebSocket upgrade requests
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	client := NewClient(h, conn, uuid.New().String(), getClientIP(r))

	select {
	case h.register <- client:
	case <-h.stopCh:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubStats is the hub's counter snapshot.
type HubStats struct {
	ActiveConnections int    `json:"active_connections"`
	TotalConnections  uint64 `json:"total_connections"`
	FramesSent        uint64 `json:"frames_sent"`
	SlowDrops         uint64 `json:"slow_drops"`
}

// Stats returns current hub statistics
func (h *Hub) Stats() HubStats {
	return HubStats{
		ActiveConnections: h.ClientCount(),
		TotalConnections:  h.totalConnections.Load(),
		FramesSent:        h.framesSent.Load(),
		SlowDrops:         h.slowDrops.Load(),
	}
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == ':' {
			return ip[:i]
		}
	}
	return ip
}
