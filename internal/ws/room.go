package ws

import "sync"

type room struct {
	mu    sync.RWMutex
	conns map[ConnID]Conn

	// sendMu serialises whole-room fan-outs: one order's events reach every
	// member in publish order, never interleaved.
	sendMu sync.Mutex
}

func newRoom() *room { return &room{conns: map[ConnID]Conn{}} }

func (r *room) add(id ConnID, c Conn) {
	r.mu.Lock()
	r.conns[id] = c
	r.mu.Unlock()
}

func (r *room) remove(id ConnID) bool {
	r.mu.Lock()
	_, ok := r.conns[id]
	delete(r.conns, id)
	r.mu.Unlock()
	return ok
}

func (r *room) members() []ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ConnID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// deliver writes msg to every current member and returns the connections
// whose send failed. The membership snapshot is taken under the read lock;
// the I/O happens outside it.
func (r *room) deliver(msg []byte) []ConnID {
	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	r.mu.RLock()
	type member struct {
		id ConnID
		c  Conn
	}
	conns := make([]member, 0, len(r.conns))
	for id, c := range r.conns {
		conns = append(conns, member{id, c})
	}
	r.mu.RUnlock()

	var failed []ConnID
	for _, m := range conns {
		if err := m.c.Write(msg); err != nil {
			failed = append(failed, m.id)
		}
	}
	return failed
}
