package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"ordertrackgo/internal/services/identity"
	"ordertrackgo/internal/services/order"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 12 * time.Second
	pingPeriod = 3 * time.Second // must be < pongWait
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 512,
	CheckOrigin:     func(*http.Request) bool { return true }, // dev‑only
}

type WsServer struct {
	registry *Registry
	hub      *Hub
	pub      *Publisher
	subMgr   *subscriptionManager
	router   *Router
	orderSvc order.IOrderService
	idSvc    identity.IIdentityService

	mu       sync.Mutex
	sessions map[ConnID]*Session
}

func NewWsServer(registry *Registry, h *Hub, rdc *redis.Client,
	orderSvc order.IOrderService, idSvc identity.IIdentityService) *WsServer {

	srv := &WsServer{
		registry: registry,
		hub:      h,
		router:   NewRouter(),
		orderSvc: orderSvc,
		idSvc:    idSvc,
		sessions: make(map[ConnID]*Session),
	}
	srv.pub = NewPublisher(h, srv.disconnect)
	srv.subMgr = newSubscriptionManager(rdc, srv.pub)
	srv.registerHandlers() // ← all WS endpoints configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(512)

	wsConn := &clientConn{rawConn: rawConn}
	sess := s.newSession(wsConn)

	// The mobile client passes its token in the connection query; a missing
	// token leaves the session in the unauthenticated window until an
	// "orders/authorize" frame (or the auth timer) resolves it.
	if token := ginCtx.Query("token"); token != "" {
		if err := sess.Authorize(token); err != nil {
			_ = wsConn.WriteJSON(map[string]any{
				"event": "error",
				"body":  ErrorBody{Error: err.Error()},
			})
			sess.Close("authentication failed")
			return
		}
	}

	go s.reader(sess, wsConn)
	go s.pinger(sess, wsConn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) newSession(conn Conn) *Session {
	sess := &Session{
		conn:     conn,
		registry: s.registry,
		hub:      s.hub,
		verifier: s.idSvc,
		subs:     s.subMgr,
		snapshot: s.fetchSnapshot,
		onClosed: s.dropSession,
	}
	sess.id = s.registry.Register(conn)
	sess.authTimer = time.AfterFunc(authWait, func() {
		sess.Close("authorization timeout")
	})

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return sess
}

func (s *WsServer) dropSession(id ConnID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// disconnect is the publisher's send-failure hook: a dead transport is an
// implicit disconnect for that one connection only.
func (s *WsServer) disconnect(id ConnID) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		sess.Close("send failure")
	}
}

func (s *WsServer) registerHandlers() {
	// 🔹 orders/authorize ----------------------------------------------------
	Register(
		s.router,
		"orders/authorize",
		func(ctx context.Context, sess *Session, req AuthorizeRequest) (AckBody, error) {
			return AckBody{}, sess.Authorize(req.Token)
		},
	)

	// 🔹 orders/join ---------------------------------------------------------
	Register(
		s.router,
		"orders/join",
		func(ctx context.Context, sess *Session, req JoinRequest) (AckBody, error) {
			if req.OrderID == "" {
				return AckBody{}, errors.New("order_id is required")
			}
			return AckBody{}, sess.Join(ctx, req.OrderID)
		},
	)

	// 🔹 orders/leave --------------------------------------------------------
	Register(
		s.router,
		"orders/leave",
		func(ctx context.Context, sess *Session, req JoinRequest) (AckBody, error) {
			sess.Leave(req.OrderID)
			return AckBody{}, nil
		},
	)
}

func (s *WsServer) fetchSnapshot(ctx context.Context, orderID string) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()
	return s.orderSvc.TrackOrder(ctx, orderID)
}

// fatal errors close the connection; Forbidden does not — the session may
// still watch other orders.
func isFatal(err error) bool {
	return errors.Is(err, identity.ErrAuthenticationFailed) ||
		errors.Is(err, ErrUnauthorized)
}

func (s *WsServer) reader(sess *Session, conn *clientConn) {
	defer sess.Close("transport closed")

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := conn.rawConn.ReadJSON(&env); err != nil {
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1900*time.Millisecond)
		res, err := s.router.dispatch(ctx, sess, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			_ = conn.WriteJSON(map[string]any{
				"event": "error",
				"body":  ErrorBody{Error: err.Error()},
			})
			if isFatal(err) {
				sess.Close(err.Error())
				return
			}
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		reply := map[string]any{"event": env.Event + "-ack"}
		if res != nil {
			reply["body"] = res
		}
		_ = conn.WriteJSON(reply)
	}
}

func (s *WsServer) pinger(sess *Session, conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.ping(); err != nil {
			sess.Close("ping timeout")
			return
		}
	}
}
