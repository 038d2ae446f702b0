package ws

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Publisher fans order-update events out to the matching room. It keeps no
// queue: events published while nobody is subscribed are dropped, and a new
// subscriber gets current state from the snapshot path only.
type Publisher struct {
	hub *Hub

	// onSendFailure is invoked (once per failed connection, off the fan-out
	// path) when a send fails; the server wires it to session teardown so a
	// dead transport is treated as a disconnect.
	onSendFailure func(ConnID)
}

func NewPublisher(hub *Hub, onSendFailure func(ConnID)) *Publisher {
	return &Publisher{hub: hub, onSendFailure: onSendFailure}
}

// Publish wraps the collaborator's payload into the client envelope and
// delivers it to every current member of the order's room. A send failure
// never aborts delivery to the remaining members.
func (p *Publisher) Publish(orderID string, payload []byte) {
	r, ok := p.hub.roomFor(orderID)
	if !ok {
		return
	}

	wrapped, err := wrapOrderEvent(payload)
	if err != nil {
		zap.L().Warn("ws.wrap_event_failed", zap.Error(err))
		wrapped = payload // Fallback: forward as‑is.
	}

	for _, id := range r.deliver(wrapped) {
		if p.onSendFailure != nil {
			go p.onSendFailure(id)
		}
	}
}

// wrapOrderEvent turns
//
//	{"event":"status","id":"o1","status":"PREPARING",…}
//
// into
//
//	{"event":"orders/status","body":{"id":"o1","status":"PREPARING",…}}
func wrapOrderEvent(payload []byte) ([]byte, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	evt, _ := raw["event"].(string)
	if evt == "" {
		evt = "update"
	}
	delete(raw, "event") // Avoid duplication inside "body".

	env := map[string]interface{}{
		"event": "orders/" + evt,
		"body":  raw,
	}
	return json.Marshal(env)
}
