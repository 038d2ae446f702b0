package ws

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

func orderEventsChannel(orderID string) string { return "ord:" + orderID + ":events" }

// subscriptionManager guarantees that we have **exactly one** Redis
// subscription per "ord:<id>:events" channel ― no matter how many websocket
// clients join the same order room. It is what makes the fan-out work across
// server processes: updates persisted by any instance reach every room.
type subscriptionManager struct {
	rdb  *redis.Client
	pub  *Publisher
	mu   sync.Mutex
	subs map[string]*subEntry // orderID ➜ subscription data
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
}

func newSubscriptionManager(rdb *redis.Client, pub *Publisher) *subscriptionManager {
	return &subscriptionManager{
		rdb:  rdb,
		pub:  pub,
		subs: make(map[string]*subEntry),
	}
}

// Subscribe ensures that the process is subscribed to the order's channel;
// subsequent calls for the same order only increment the ref‑counter.
func (sm *subscriptionManager) Subscribe(orderID string) {
	sm.mu.Lock()
	if e, ok := sm.subs[orderID]; ok {
		e.refCnt++
		sm.mu.Unlock()
		return
	}

	// First consumer → create Redis SUB and fan‑out loop.
	ctx, cancel := context.WithCancel(context.Background())
	ps := sm.rdb.Subscribe(ctx, orderEventsChannel(orderID))

	sm.subs[orderID] = &subEntry{refCnt: 1, cancel: cancel}
	sm.mu.Unlock()

	// One goroutine per order channel; it calls Publish sequentially, which
	// together with the room's send mutex preserves per-order delivery order.
	go func() {
		defer ps.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ps.Channel():
				if !ok { // Redis connection closed.
					return
				}
				sm.pub.Publish(orderID, []byte(m.Payload))
			}
		}
	}()
}

// Unsubscribe decrements the ref‑counter and tears the Redis SUB down when
// the last websocket client leaves the room.
func (sm *subscriptionManager) Unsubscribe(orderID string) {
	sm.mu.Lock()
	e, ok := sm.subs[orderID]
	if !ok {
		sm.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		sm.mu.Unlock()
		return
	}
	delete(sm.subs, orderID)
	sm.mu.Unlock()

	// Outside the lock → stop the fan‑out goroutine.
	e.cancel()
}
