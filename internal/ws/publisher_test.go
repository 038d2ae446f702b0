package ws

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_DeliversToRoomMembersOnly(t *testing.T) {
	reg, hub := newTestHub(nil)
	pub := NewPublisher(hub, nil)

	aID, aConn := authorizedConn(t, reg, "customer-1")
	_, err := hub.Join(context.Background(), aID, aConn, "order-1")
	require.NoError(t, err)

	// B is connected and authorized but never joined
	_, bConn := authorizedConn(t, reg, "customer-2")

	pub.Publish("order-1", []byte(`{"event":"status","id":"order-1","status":"out_for_delivery"}`))

	frames := aConn.getFrames()
	require.Len(t, frames, 1)
	event, body := decodeEnvelope(t, frames[0])
	assert.Equal(t, "orders/status", event)
	assert.Equal(t, "out_for_delivery", body["status"])

	assert.Empty(t, bConn.getFrames())

	// A disconnects; the next publish reaches no one and nothing breaks
	hub.LeaveAll(aID, reg.Deregister(aID))
	pub.Publish("order-1", []byte(`{"event":"status","status":"delivered"}`))
	assert.Len(t, aConn.getFrames(), 1)
}

func TestPublisher_TwoMembersNoDuplicates(t *testing.T) {
	reg, hub := newTestHub(nil)
	pub := NewPublisher(hub, nil)

	aID, aConn := authorizedConn(t, reg, "u1")
	bID, bConn := authorizedConn(t, reg, "u2")

	// join order must not matter
	_, err := hub.Join(context.Background(), bID, bConn, "order-2")
	require.NoError(t, err)
	_, err = hub.Join(context.Background(), aID, aConn, "order-2")
	require.NoError(t, err)

	pub.Publish("order-2", []byte(`{"event":"status","status":"ready"}`))

	assert.Len(t, aConn.getFrames(), 1)
	assert.Len(t, bConn.getFrames(), 1)
}

func TestPublisher_DropsWhenNobodySubscribed(t *testing.T) {
	_, hub := newTestHub(nil)
	pub := NewPublisher(hub, nil)

	// no room exists at all; the event is dropped, not queued
	pub.Publish("order-9", []byte(`{"event":"status","status":"ready"}`))
	assert.Empty(t, hub.Members("order-9"))
}

func TestPublisher_PerOrderDeliveryOrder(t *testing.T) {
	reg, hub := newTestHub(nil)
	pub := NewPublisher(hub, nil)

	id, conn := authorizedConn(t, reg, "u1")
	_, err := hub.Join(context.Background(), id, conn, "order-1")
	require.NoError(t, err)

	const n = 50
	for i := 0; i < n; i++ {
		pub.Publish("order-1", []byte(fmt.Sprintf(`{"event":"status","seq":%d}`, i)))
	}

	frames := conn.getFrames()
	require.Len(t, frames, n)
	for i, frame := range frames {
		_, body := decodeEnvelope(t, frame)
		assert.EqualValues(t, i, body["seq"])
	}
}

func TestPublisher_SendFailureIsolated(t *testing.T) {
	reg, hub := newTestHub(nil)

	failed := make(chan ConnID, 1)
	pub := NewPublisher(hub, func(id ConnID) { failed <- id })

	dead := &mockConn{sendErr: errSendFailed}
	deadID := reg.Register(dead)
	require.NoError(t, reg.Authorize(deadID, "u1"))
	_, err := hub.Join(context.Background(), deadID, dead, "order-1")
	require.NoError(t, err)

	okID, okConn := authorizedConn(t, reg, "u2")
	_, err = hub.Join(context.Background(), okID, okConn, "order-1")
	require.NoError(t, err)

	pub.Publish("order-1", []byte(`{"event":"status","status":"ready"}`))

	// healthy member still got the event
	assert.Len(t, okConn.getFrames(), 1)

	// the failing connection was reported for disconnect handling
	select {
	case id := <-failed:
		assert.Equal(t, deadID, id)
	case <-time.After(time.Second):
		t.Fatal("send failure was not reported")
	}
}

func TestPublisher_MalformedPayloadForwardedAsIs(t *testing.T) {
	reg, hub := newTestHub(nil)
	pub := NewPublisher(hub, nil)

	id, conn := authorizedConn(t, reg, "u1")
	_, err := hub.Join(context.Background(), id, conn, "order-1")
	require.NoError(t, err)

	raw := []byte("not json")
	pub.Publish("order-1", raw)

	frames := conn.getFrames()
	require.Len(t, frames, 1)
	assert.Equal(t, raw, frames[0])
}
