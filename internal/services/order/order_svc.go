package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type OrderDTO struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer_id"`
	RestaurantID string    `json:"restaurant_id"`
	CourierID    string    `json:"courier_id,omitempty"`
	Status       string    `json:"status"     example:"OUT_FOR_DELIVERY"`
	PlacedAt     time.Time `json:"placed_at"  example:"2026-08-29T12:05:05Z"`
	Version      int64     `json:"version"`
	CourierLat   float64   `json:"courier_lat,omitempty"`
	CourierLng   float64   `json:"courier_lng,omitempty"`
}

const (
	redisOrderKeyPrefix      = "ord:"
	redisOrderTimerKeyPrefix = "ord_t:"
)

// Order status machine; transitions are enforced by the order_set_status
// Redis Function.
const (
	StatusPlaced         = "PLACED"
	StatusPreparing      = "PREPARING"
	StatusReady          = "READY"
	StatusOutForDelivery = "OUT_FOR_DELIVERY"
	StatusDelivered      = "DELIVERED"
	StatusCancelled      = "CANCELLED"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrAlreadyTracked = errors.New("order already tracked")
	ErrOrderClosed    = errors.New("order already delivered or cancelled")
	ErrBadTransition  = errors.New("invalid status transition")
	ErrNotInTransit   = errors.New("order is not out for delivery")
)

type IOrderService interface {
	CreateOrder(ctx context.Context, customerID, restaurantID string) (string, error)
	UpdateStatus(ctx context.Context, orderID, status, courierID string) error
	UpdateLocation(ctx context.Context, orderID string, lat, lng float64) error
	TrackOrder(ctx context.Context, orderID string) (*OrderDTO, error)
	ListOrders(ctx context.Context, status string, limit, offset int) ([]OrderDTO, error)
	IsEntitled(ctx context.Context, userID, orderID string) (bool, error)
	ReportTrackingLost(ctx context.Context, orderID string) error
}

type orderService struct {
	rdc         *redis.Client
	db          *sql.DB
	trackingTTL int // seconds
}

func NewOrderService(rdc *redis.Client, db *sql.DB, trackingTTLSeconds int) IOrderService {
	return &orderService{
		rdc:         rdc,
		db:          db,
		trackingTTL: trackingTTLSeconds,
	}
}

// CreateOrder inserts the durable row and starts the disposable Redis
// tracking hash for the live channel.
func (svc *orderService) CreateOrder(ctx context.Context, customerID, restaurantID string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	const ins = `
	  INSERT INTO orders (id, customer_id, restaurant_id, status, placed_at)
	       VALUES ($1, $2, $3, 'PLACED', $4)`
	if _, err := svc.db.ExecContext(ctx, ins, id, customerID, restaurantID, now); err != nil {
		return "", err
	}

	err := svc.rdc.FCall(ctx, "order_track_start",
		[]string{
			redisOrderKeyPrefix + id,
			redisOrderTimerKeyPrefix + id,
		},
		customerID,
		restaurantID,
		now.Unix(),
	).Err()
	if err != nil && strings.Contains(err.Error(), "already_tracked") {
		return id, ErrAlreadyTracked
	}
	return id, err
}

// UpdateStatus executes the Lua function that validates the transition and
// publishes the update event. courierID is only consulted when the order
// goes out for delivery.
func (svc *orderService) UpdateStatus(ctx context.Context, orderID, status, courierID string) error {
	res := svc.rdc.FCall(ctx, "order_set_status",
		[]string{
			redisOrderKeyPrefix + orderID,
			redisOrderTimerKeyPrefix + orderID,
		},
		status,
		courierID,
		time.Now().Unix(),
		svc.trackingTTL,
	)
	if err := res.Err(); err != nil {
		return mapLuaErr(err)
	}

	// Mirror terminal states and courier assignment to Postgres right away;
	// intermediate states ride on the 10 s synchroniser.
	switch status {
	case StatusOutForDelivery:
		_, err := svc.db.ExecContext(ctx,
			`UPDATE orders SET status = $2, courier_id = $3 WHERE id = $1`,
			orderID, status, courierID)
		return err
	case StatusDelivered, StatusCancelled:
		_, err := svc.db.ExecContext(ctx,
			`UPDATE orders SET status = $2 WHERE id = $1`,
			orderID, status)
		return err
	}
	return nil
}

// UpdateLocation records a courier position ping and refreshes the
// freshness timer.
func (svc *orderService) UpdateLocation(ctx context.Context, orderID string, lat, lng float64) error {
	err := svc.rdc.FCall(ctx, "order_set_location",
		[]string{
			redisOrderKeyPrefix + orderID,
			redisOrderTimerKeyPrefix + orderID,
		},
		lat,
		lng,
		time.Now().Unix(),
		svc.trackingTTL,
	).Err()
	if err != nil {
		return mapLuaErr(err)
	}
	return nil
}

func (svc *orderService) TrackOrder(ctx context.Context, orderID string) (*OrderDTO, error) {
	// 1. Fast path ‑ live orders are served straight from Redis
	snap, _ := svc.rdc.HGetAll(ctx, redisOrderKeyPrefix+orderID).Result()
	if st, ok := snap["st"]; ok {
		return &OrderDTO{
			ID:           orderID,
			CustomerID:   snap["cid"],
			RestaurantID: snap["rid"],
			CourierID:    snap["drv"],
			Status:       st,
			PlacedAt:     ts(snap["pa"]),
			Version:      atoi(snap["ver"]),
			CourierLat:   atof(snap["lat"]),
			CourierLng:   atof(snap["lng"]),
		}, nil
	}

	// 2. Otherwise go to Postgres
	const q = `SELECT id, customer_id, restaurant_id, coalesce(courier_id,''),
	                  status, placed_at, coalesce(courier_lat,0), coalesce(courier_lng,0)
	             FROM orders WHERE id = $1`
	row := svc.db.QueryRowContext(ctx, q, orderID)
	dto := &OrderDTO{}
	if err := row.Scan(&dto.ID, &dto.CustomerID, &dto.RestaurantID, &dto.CourierID,
		&dto.Status, &dto.PlacedAt, &dto.CourierLat, &dto.CourierLng); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return dto, nil
}

func (svc *orderService) ListOrders(ctx context.Context, st string,
	limit, offset int) ([]OrderDTO, error) {

	if limit == 0 {
		limit = 10
	}
	var (
		rows *sql.Rows
		err  error
	)
	base := `SELECT id, customer_id, restaurant_id, coalesce(courier_id,''),
	                status, placed_at
	           FROM orders`
	switch st {
	case StatusPlaced, StatusPreparing, StatusReady, StatusOutForDelivery,
		StatusDelivered, StatusCancelled:
		base += " WHERE status = $1"
		rows, err = svc.db.QueryContext(ctx, base+" ORDER BY placed_at DESC LIMIT $2 OFFSET $3",
			st, limit, offset)
	default:
		rows, err = svc.db.QueryContext(ctx, base+" ORDER BY placed_at DESC LIMIT $1 OFFSET $2",
			limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]OrderDTO, 0, limit)
	for rows.Next() {
		var o OrderDTO
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.RestaurantID, &o.CourierID,
			&o.Status, &o.PlacedAt); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// IsEntitled reports whether userID may watch orderID's live channel:
// the customer who placed it, the courier delivering it, or the
// restaurant preparing it.
func (svc *orderService) IsEntitled(ctx context.Context, userID, orderID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	// 1. Fast path ‑ live tracking hash
	snap, _ := svc.rdc.HGetAll(ctx, redisOrderKeyPrefix+orderID).Result()
	if len(snap) != 0 {
		return userID == snap["cid"] || userID == snap["drv"] || userID == snap["rid"], nil
	}

	// 2. Otherwise go to Postgres
	const q = `SELECT customer_id, restaurant_id, coalesce(courier_id,'')
	             FROM orders WHERE id = $1`
	var cid, rid, drv string
	if err := svc.db.QueryRowContext(ctx, q, orderID).Scan(&cid, &rid, &drv); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return userID == cid || userID == drv || userID == rid, nil
}

// ReportTrackingLost is called by the freshness watcher when the courier
// stopped pinging. It only emits an event; the order status is untouched.
func (svc *orderService) ReportTrackingLost(ctx context.Context, orderID string) error {
	payload, err := json.Marshal(map[string]any{
		"event": "tracking_lost",
		"id":    orderID,
		"at":    time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	return svc.rdc.Publish(ctx, redisOrderKeyPrefix+orderID+":events", payload).Err()
}

func mapLuaErr(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "order_not_tracked"):
		return ErrOrderNotFound
	case strings.Contains(msg, "order_closed"):
		return ErrOrderClosed
	case strings.Contains(msg, "bad_transition"):
		return ErrBadTransition
	case strings.Contains(msg, "not_in_transit"):
		return ErrNotInTransit
	case strings.Contains(msg, "already_tracked"):
		return ErrAlreadyTracked
	}
	return fmt.Errorf("order tracking call: %w", err)
}

// helpers
func ts(s string) time.Time {
	i, _ := strconv.ParseInt(s, 10, 64)
	return time.Unix(i, 0).UTC()
}
func atof(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
func atoi(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
