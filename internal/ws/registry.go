package ws

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrAlreadyAuthorized = errors.New("connection already authorized")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrUnauthorized      = errors.New("connection not authorized")
)

// ConnID is the opaque identifier assigned to a connection at accept time.
type ConnID string

type connEntry struct {
	conn     Conn
	identity string
	rooms    map[string]struct{}
}

// Registry owns connection lifecycle and identity. It also holds the
// canonical joined-room set per connection; the Hub mutates that set through
// trackJoin/trackLeave so room membership and the joined set never drift
// apart, and Deregister can hand the rooms back for cleanup.
type Registry struct {
	mu    sync.Mutex
	conns map[ConnID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[ConnID]*connEntry)}
}

func (reg *Registry) Register(conn Conn) ConnID {
	id := ConnID(uuid.NewString())

	reg.mu.Lock()
	reg.conns[id] = &connEntry{conn: conn, rooms: make(map[string]struct{})}
	reg.mu.Unlock()
	return id
}

// Authorize attaches an identity once. The identity is immutable afterwards.
func (reg *Registry) Authorize(id ConnID, identity string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	e, ok := reg.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	if e.identity != "" {
		return ErrAlreadyAuthorized
	}
	e.identity = identity
	return nil
}

func (reg *Registry) Identity(id ConnID) (string, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	e, ok := reg.conns[id]
	if !ok {
		return "", ErrUnknownConnection
	}
	if e.identity == "" {
		return "", ErrUnauthorized
	}
	return e.identity, nil
}

// Deregister removes the entry and returns the rooms it belonged to so the
// caller can clean them up. Idempotent: a second call returns nil, never an
// error, so duplicate close signals are harmless.
func (reg *Registry) Deregister(id ConnID) []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	e, ok := reg.conns[id]
	if !ok {
		return nil
	}
	delete(reg.conns, id)

	rooms := make([]string, 0, len(e.rooms))
	for r := range e.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// trackJoin records orderID in the connection's joined set. Fails when the
// entry is already gone (join racing a disconnect).
func (reg *Registry) trackJoin(id ConnID, orderID string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	e, ok := reg.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	e.rooms[orderID] = struct{}{}
	return nil
}

func (reg *Registry) trackLeave(id ConnID, orderID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if e, ok := reg.conns[id]; ok {
		delete(e.rooms, orderID)
	}
}

// alive reports whether the entry still exists; used by the Hub to close the
// join/deregister race.
func (reg *Registry) alive(id ConnID) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	_, ok := reg.conns[id]
	return ok
}
