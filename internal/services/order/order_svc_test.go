package order

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (IOrderService, redismock.ClientMock, sqlmock.Sqlmock) {
	t.Helper()
	rdc, rmock := redismock.NewClientMock()
	db, smock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewOrderService(rdc, db, 120), rmock, smock
}

func TestTrackOrder_RedisFastPath(t *testing.T) {
	svc, rmock, _ := newTestService(t)

	rmock.ExpectHGetAll("ord:order-1").SetVal(map[string]string{
		"cid": "customer-1",
		"rid": "rest-1",
		"drv": "courier-1",
		"st":  StatusOutForDelivery,
		"pa":  "1756464000",
		"ver": "7",
		"lat": "52.52",
		"lng": "13.405",
	})

	dto, err := svc.TrackOrder(context.Background(), "order-1")
	require.NoError(t, err)

	assert.Equal(t, "order-1", dto.ID)
	assert.Equal(t, "customer-1", dto.CustomerID)
	assert.Equal(t, "courier-1", dto.CourierID)
	assert.Equal(t, StatusOutForDelivery, dto.Status)
	assert.EqualValues(t, 7, dto.Version)
	assert.InDelta(t, 52.52, dto.CourierLat, 1e-9)
	assert.InDelta(t, 13.405, dto.CourierLng, 1e-9)
	assert.Equal(t, time.Unix(1756464000, 0).UTC(), dto.PlacedAt)
}

func TestTrackOrder_PostgresFallback(t *testing.T) {
	svc, rmock, smock := newTestService(t)

	rmock.ExpectHGetAll("ord:order-2").SetVal(map[string]string{})

	placedAt := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	smock.ExpectQuery(regexp.QuoteMeta("SELECT id, customer_id, restaurant_id")).
		WithArgs("order-2").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "customer_id", "restaurant_id", "courier_id",
			"status", "placed_at", "courier_lat", "courier_lng",
		}).AddRow("order-2", "customer-2", "rest-9", "", StatusDelivered, placedAt, 0.0, 0.0))

	dto, err := svc.TrackOrder(context.Background(), "order-2")
	require.NoError(t, err)

	assert.Equal(t, StatusDelivered, dto.Status)
	assert.Empty(t, dto.CourierID)
	assert.Equal(t, placedAt, dto.PlacedAt)
	assert.NoError(t, smock.ExpectationsWereMet())
}

func TestTrackOrder_NotFound(t *testing.T) {
	svc, rmock, smock := newTestService(t)

	rmock.ExpectHGetAll("ord:missing").SetVal(map[string]string{})
	smock.ExpectQuery(regexp.QuoteMeta("SELECT id, customer_id, restaurant_id")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := svc.TrackOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestIsEntitled_RedisFastPath(t *testing.T) {
	svc, rmock, _ := newTestService(t)

	snap := map[string]string{
		"cid": "customer-1",
		"rid": "rest-1",
		"drv": "courier-1",
		"st":  StatusOutForDelivery,
	}

	for user, want := range map[string]bool{
		"customer-1": true,
		"courier-1":  true,
		"rest-1":     true,
		"stranger":   false,
	} {
		rmock.ExpectHGetAll("ord:order-1").SetVal(snap)
		ok, err := svc.IsEntitled(context.Background(), user, "order-1")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "user %q", user)
	}
}

func TestIsEntitled_PostgresFallback(t *testing.T) {
	svc, rmock, smock := newTestService(t)

	rmock.ExpectHGetAll("ord:order-3").SetVal(map[string]string{})
	smock.ExpectQuery(regexp.QuoteMeta("SELECT customer_id, restaurant_id")).
		WithArgs("order-3").
		WillReturnRows(sqlmock.NewRows([]string{"customer_id", "restaurant_id", "courier_id"}).
			AddRow("customer-3", "rest-3", "courier-3"))

	ok, err := svc.IsEntitled(context.Background(), "courier-3", "order-3")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsEntitled_UnknownOrderOrEmptyUser(t *testing.T) {
	svc, rmock, smock := newTestService(t)

	// unknown order: not entitled, not an error
	rmock.ExpectHGetAll("ord:nope").SetVal(map[string]string{})
	smock.ExpectQuery(regexp.QuoteMeta("SELECT customer_id, restaurant_id")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	ok, err := svc.IsEntitled(context.Background(), "customer-1", "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	// empty identity can never be entitled; no lookups happen
	ok, err = svc.IsEntitled(context.Background(), "", "order-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListOrders_StatusFilter(t *testing.T) {
	svc, _, smock := newTestService(t)

	placedAt := time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC)
	smock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1")).
		WithArgs(StatusOutForDelivery, 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "customer_id", "restaurant_id", "courier_id", "status", "placed_at",
		}).AddRow("order-1", "c1", "r1", "d1", StatusOutForDelivery, placedAt))

	out, err := svc.ListOrders(context.Background(), StatusOutForDelivery, 0, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "order-1", out[0].ID)
	assert.NoError(t, smock.ExpectationsWereMet())
}

func TestMapLuaErr(t *testing.T) {
	for msg, want := range map[string]error{
		"ERR order_not_tracked": ErrOrderNotFound,
		"ERR order_closed":      ErrOrderClosed,
		"ERR bad_transition":    ErrBadTransition,
		"ERR not_in_transit":    ErrNotInTransit,
		"ERR already_tracked":   ErrAlreadyTracked,
	} {
		assert.ErrorIs(t, mapLuaErr(redisErr(msg)), want)
	}
}

type redisErr string

func (e redisErr) Error() string { return string(e) }
