package ws

import "encoding/json"

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "orders/join"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// ──────────────────────────── Request / Response DTOs ─────────────────────────

// AuthorizeRequest is the body for "orders/authorize".
type AuthorizeRequest struct {
	Token string `json:"token" validate:"required"`
}

// JoinRequest is the body for "orders/join" and "orders/leave".
type JoinRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}

// Empty ACK body (useful for many handlers).
type AckBody struct{}

// ErrorBody is returned for failures.
type ErrorBody struct {
	Error string `json:"error"`
}
