// Package broadcaster tracks live client connections and pushes
// notifications to them.
package broadcaster

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"feed-hub/domain"
)

// Conn is one live push channel to a client session.
type Conn interface {
	// SendJSON delivers one JSON-encoded event.
	SendJSON(v any) error
	Close() error
}

// Hub maps user ids to their live connections. A user may hold several
// concurrent sessions; the hub is process-local and nothing is persisted.
// All mutation and snapshot reads are serialized by the mutex so a send
// never iterates a set a concurrent disconnect is modifying.
type Hub struct {
	mu          sync.Mutex
	connections map[int64]map[string]Conn
	logger      *slog.Logger
}

// NewHub creates an empty connection hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		connections: make(map[int64]map[string]Conn),
		logger:      logger,
	}
}

// Register stores an authenticated connection and returns its fresh
// connection id.
func (h *Hub) Register(userID int64, conn Conn) string {
	connID := uuid.New().String()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[userID] == nil {
		h.connections[userID] = make(map[string]Conn)
	}
	h.connections[userID][connID] = conn

	h.logger.Info("live connection registered", "user_id", userID, "conn_id", connID)
	return connID
}

// Unregister removes a connection, pruning the user's entry once empty.
func (h *Hub) Unregister(userID int64, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(userID, connID)
}

func (h *Hub) remove(userID int64, connID string) {
	conns, ok := h.connections[userID]
	if !ok {
		return
	}
	if _, ok := conns[connID]; !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(h.connections, userID)
	}
	h.logger.Info("live connection removed", "user_id", userID, "conn_id", connID)
}

// Send delivers the notification to every live connection of the user,
// independently. A connection whose delivery fails is unregistered and
// closed, never retried. A user with no live connections is a silent no-op;
// events are not queued.
func (h *Hub) Send(ctx context.Context, userID int64, n domain.Notification) {
	h.mu.Lock()
	snapshot := make(map[string]Conn, len(h.connections[userID]))
	for connID, conn := range h.connections[userID] {
		snapshot[connID] = conn
	}
	h.mu.Unlock()

	if len(snapshot) == 0 {
		return
	}

	h.logger.InfoContext(ctx, "sending notification",
		"user_id", userID, "type", n.Type, "connections", len(snapshot))

	for connID, conn := range snapshot {
		if err := conn.SendJSON(n); err != nil {
			h.logger.WarnContext(ctx, "dropping dead connection",
				"user_id", userID, "conn_id", connID, "error", err)

			h.mu.Lock()
			h.remove(userID, connID)
			h.mu.Unlock()
			conn.Close()
		}
	}
}

// ConnectionCount reports how many live connections a user currently holds.
func (h *Hub) ConnectionCount(userID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections[userID])
}
