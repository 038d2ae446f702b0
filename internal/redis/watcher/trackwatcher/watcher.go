package trackwatcher

import (
	"context"
	"strings"

	"ordertrackgo/internal/services/order"

	"github.com/redis/go-redis/v9"
)

// Run listens to key‑expiry events on the "ord_t:<id>" freshness timers and
// reports lost tracking for orders whose courier stopped pinging.
// Run must be started once at service boot.
func Run(ctx context.Context, rdb *redis.Client, svc order.IOrderService) {
	_ = rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
	ps := rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ps.Channel():
			if !ok { // Redis connection closed.
				return
			}
			if !strings.HasPrefix(m.Payload, "ord_t:") {
				continue
			}
			id := strings.TrimPrefix(m.Payload, "ord_t:")
			_ = svc.ReportTrackingLost(ctx, id) // errors already logged in svc
		}
	}
}
