package ws

import (
	"context"
	"errors"
	"sync"
)

// ErrForbidden means the authorized identity is not entitled to watch the
// requested order. The connection stays open.
var ErrForbidden = errors.New("not entitled to this order")

// EntitlementChecker is implemented by the order storage service: it decides
// whether an identity may watch an order. The hub enforces the check but
// owns no entitlement rules itself.
type EntitlementChecker interface {
	IsEntitled(ctx context.Context, userID, orderID string) (bool, error)
}

// Hub keeps member sets per orderID and, together with the Registry, the
// bidirectional membership invariant: a connection is in a room's member set
// iff the room is in the connection's joined set.
type Hub struct {
	registry *Registry
	entitle  EntitlementChecker

	mu    sync.RWMutex
	rooms map[string]*room
}

func NewHub(registry *Registry, entitle EntitlementChecker) *Hub {
	return &Hub{
		registry: registry,
		entitle:  entitle,
		rooms:    make(map[string]*room),
	}
}

// Join adds the connection to the order's room, creating the room on first
// join. Joining an already-joined room is a no-op. Returns whether the
// membership is new.
func (h *Hub) Join(ctx context.Context, id ConnID, conn Conn, orderID string) (bool, error) {
	identity, err := h.registry.Identity(id)
	if err != nil {
		return false, err
	}

	ok, err := h.entitle.IsEntitled(ctx, identity, orderID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrForbidden
	}

	h.mu.Lock()
	r, exists := h.rooms[orderID]
	if !exists {
		r = newRoom()
		h.rooms[orderID] = r
	}
	h.mu.Unlock()

	// Joined set first: fails cleanly if the connection was deregistered
	// between the identity check and here.
	if err := h.registry.trackJoin(id, orderID); err != nil {
		return false, err
	}

	r.mu.Lock()
	_, already := r.conns[id]
	r.conns[id] = conn
	r.mu.Unlock()

	// A disconnect may have completed between trackJoin and the insert
	// above; its LeaveAll would then miss this membership, so undo it here.
	if !h.registry.alive(id) {
		r.remove(id)
		return false, ErrUnknownConnection
	}
	return !already, nil
}

// Leave removes the membership; no-op if not a member. Returns whether a
// membership was removed.
func (h *Hub) Leave(id ConnID, orderID string) bool {
	h.registry.trackLeave(id, orderID)

	h.mu.RLock()
	r, ok := h.rooms[orderID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return r.remove(id)
}

// LeaveAll removes the connection from every named room; used on disconnect
// with the set returned by Registry.Deregister. A fan-out already past its
// membership snapshot may still reach the connection, but none started after
// LeaveAll returns will.
func (h *Hub) LeaveAll(id ConnID, rooms []string) {
	for _, orderID := range rooms {
		h.Leave(id, orderID)
	}
}

// Members returns a snapshot of the room's membership. Empty rooms persist;
// membership is their only state, so a stale empty room is harmless.
func (h *Hub) Members(orderID string) []ConnID {
	h.mu.RLock()
	r, ok := h.rooms[orderID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	return r.members()
}

func (h *Hub) roomFor(orderID string) (*room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[orderID]
	return r, ok
}
