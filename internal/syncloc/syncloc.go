package syncloc

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const stream = "loc_stream"

// Run tails the Redis stream of courier position pings and persists every
// point, giving each delivery a durable route history.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	go func() {
		lastID := "0-0"
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			// block up to 2 s for new entries
			res, err := rdc.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   100,
				Block:   2000 * time.Millisecond,
			}).Result()
			if err != nil && err != redis.Nil {
				zap.L().Warn("syncloc.xread", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if len(res) == 0 {
				continue
			}
			entries := res[0].Messages
			if err := persist(ctx, db, entries); err != nil {
				zap.L().Warn("syncloc.persist", zap.Error(err))
			}
			lastID = entries[len(entries)-1].ID
		}
	}()
}

func persist(ctx context.Context, db *sql.DB, msgs []redis.XMessage) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	const ins = `INSERT INTO courier_locations (order_id, lat, lng, recorded_at)
	             VALUES ($1, $2, $3, to_timestamp($4))
	             ON CONFLICT DO NOTHING`
	for _, m := range msgs {
		oid, _ := m.Values["oid"].(string)
		latStr, _ := m.Values["lat"].(string)
		lngStr, _ := m.Values["lng"].(string)
		atStr, _ := m.Values["at"].(string)

		lat, _ := strconv.ParseFloat(latStr, 64)
		lng, _ := strconv.ParseFloat(lngStr, 64)
		at, _ := strconv.ParseInt(atStr, 10, 64)
		if _, err := tx.ExecContext(ctx, ins, oid, lat, lng, at); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
