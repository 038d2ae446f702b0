package synctrack

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	activeSet  = "ords:active"
	hashPrefix = "ord:"
)

// Every 10 s, mirror live tracking hashes (status + courier position) into
// Postgres so the durable rows stay close to the live channel.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	tk := time.NewTicker(10 * time.Second)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				syncOnce(ctx, rdc, db)
			}
		}
	}()
}

func syncOnce(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	keys, err := rdc.SMembers(ctx, activeSet).Result()
	if err != nil || len(keys) == 0 {
		return
	}

	// 1. fetch all hashes in one pipelined round‑trip
	pipe := rdc.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HGetAll(ctx, k)
	}

	if _, err = pipe.Exec(ctx); err != nil {
		zap.L().Error("synctrack.pipeline", zap.Error(err))
		return
	}

	// 2. bulk‑update Postgres
	const upd = `
	UPDATE orders
	   SET status      = $2,
	       courier_id  = nullif($3, ''),
	       courier_lat = nullif($4, '')::float8,
	       courier_lng = nullif($5, '')::float8
	 WHERE id = $1`

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		zap.L().Error("synctrack.tx_begin", zap.Error(err))
		return
	}
	defer tx.Rollback()

	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue // key disappeared between SMEMBERS and HGETALL
		}
		id := keys[i][len(hashPrefix):] // strip "ord:"
		if _, err := tx.ExecContext(ctx, upd,
			id, data["st"], data["drv"], data["lat"], data["lng"]); err != nil {
			zap.L().Error("synctrack.update", zap.String("id", id), zap.Error(err))
		}
	}

	if err = tx.Commit(); err != nil {
		zap.L().Debug("synctrack_error", zap.Error(err))
	}
}
