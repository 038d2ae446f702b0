package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_DispatchTypedHandler(t *testing.T) {
	r := NewRouter()
	Register(r, "orders/join",
		func(_ context.Context, _ *Session, req JoinRequest) (AckBody, error) {
			assert.Equal(t, "order-1", req.OrderID)
			return AckBody{}, nil
		},
	)

	res, err := r.dispatch(context.Background(), nil, Envelope{
		Event: "orders/join",
		Body:  json.RawMessage(`{"order_id":"order-1"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, AckBody{}, res)
}

func TestRouter_UnknownEvent(t *testing.T) {
	r := NewRouter()

	_, err := r.dispatch(context.Background(), nil, Envelope{Event: "orders/teleport"})
	assert.ErrorIs(t, err, ErrUnknownEvent)
	assert.Contains(t, err.Error(), "orders/teleport")
}

func TestRouter_MalformedBody(t *testing.T) {
	r := NewRouter()
	Register(r, "orders/join",
		func(_ context.Context, _ *Session, req JoinRequest) (AckBody, error) {
			return AckBody{}, nil
		},
	)

	_, err := r.dispatch(context.Background(), nil, Envelope{
		Event: "orders/join",
		Body:  json.RawMessage(`{"order_id":`),
	})
	assert.Error(t, err)
}
