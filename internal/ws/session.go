package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"ordertrackgo/internal/services/identity"
	"ordertrackgo/internal/services/order"

	"go.uber.org/zap"
)

type sessionState int

const (
	stateConnecting sessionState = iota
	stateAuthorized
	stateClosed
)

// A connection that has not authorized within authWait is closed.
const authWait = 10 * time.Second

// roomSubscriptions is the per-room upstream subscription hook (the Redis
// subscription manager in production).
type roomSubscriptions interface {
	Subscribe(orderID string)
	Unsubscribe(orderID string)
}

// Session drives one connection through
// Connecting → Authorized → Joined* → Closed. It is the only component that
// talks to the transport; registry and hub stay transport-free.
type Session struct {
	id       ConnID
	conn     Conn
	registry *Registry
	hub      *Hub
	verifier identity.IIdentityService
	subs     roomSubscriptions
	snapshot func(ctx context.Context, orderID string) (any, error)
	onClosed func(ConnID)

	mu        sync.Mutex
	state     sessionState
	authTimer *time.Timer

	closeOnce sync.Once
}

func (s *Session) ID() ConnID { return s.id }

// Authorize verifies the token and attaches the resulting identity.
// A failure is terminal for the connection; the caller closes it.
func (s *Session) Authorize(token string) error {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return ErrUnknownConnection
	}
	s.mu.Unlock()

	ident, err := s.verifier.Verify(token)
	if err != nil {
		return identity.ErrAuthenticationFailed
	}

	if err := s.registry.Authorize(s.id, ident.UserID); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = stateAuthorized
	if s.authTimer != nil {
		s.authTimer.Stop()
	}
	s.mu.Unlock()
	return nil
}

// Join subscribes the connection to the order's room. On a new membership it
// ensures the upstream Redis subscription exists and pushes the current
// snapshot, so the client has a baseline to patch updates onto.
func (s *Session) Join(ctx context.Context, orderID string) error {
	joined, err := s.hub.Join(ctx, s.id, s.conn, orderID)
	if err != nil {
		return err
	}
	if !joined {
		return nil // idempotent re-join
	}

	if s.subs != nil {
		s.subs.Subscribe(orderID)
	}

	// Close may have finished while the subscribe was in flight; its
	// Unsubscribe then found no entry to release, so the ref just taken
	// would never be dropped. Undo it here, mirroring hub.Join's own
	// post-insert liveness re-check.
	if !s.registry.alive(s.id) {
		if s.subs != nil {
			s.subs.Unsubscribe(orderID)
		}
		return ErrUnknownConnection
	}

	if s.snapshot != nil {
		snap, err := s.snapshot(ctx, orderID)
		switch {
		case err == nil:
			_ = s.conn.WriteJSON(map[string]any{
				"event": "orders/snapshot",
				"body":  snap,
			})
		case !errors.Is(err, order.ErrOrderNotFound):
			zap.L().Warn("ws.snapshot", zap.Error(err))
		}
	}
	return nil
}

func (s *Session) Leave(orderID string) {
	if s.hub.Leave(s.id, orderID) && s.subs != nil {
		s.subs.Unsubscribe(orderID)
	}
}

// Close tears the session down: deregister, leave every room, drop upstream
// subscriptions, close the transport. Terminal and idempotent; duplicate
// close signals (reader error + pinger error + send failure) collapse here.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = stateClosed
		if s.authTimer != nil {
			s.authTimer.Stop()
		}
		s.mu.Unlock()

		rooms := s.registry.Deregister(s.id)
		s.hub.LeaveAll(s.id, rooms)
		if s.subs != nil {
			for _, r := range rooms {
				s.subs.Unsubscribe(r)
			}
		}
		_ = s.conn.Close()
		if s.onClosed != nil {
			s.onClosed(s.id)
		}
		zap.L().Debug("ws.session_closed",
			zap.String("conn_id", string(s.id)),
			zap.String("reason", reason),
			zap.Int("rooms_left", len(rooms)),
		)
	})
}
