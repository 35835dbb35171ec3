package syncdb

import (
	"context"
	"database/sql"
	"flashbid/internal/store/redisstore"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const pipeTimeout = 1500 * time.Millisecond

// An older snapshot never overwrites a newer one.
const upsert = `
INSERT INTO auction_items (id, name, current_price, floor_price, version)
     VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
        SET name          = EXCLUDED.name,
            current_price = EXCLUDED.current_price,
            version       = EXCLUDED.version
      WHERE auction_items.version < EXCLUDED.version`

// Run mirrors every live item's price and version into Postgres on the given
// cron schedule until ctx is done.
func Run(ctx context.Context, rdc redis.Cmdable, db *sql.DB, schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		n, err := syncOnce(ctx, rdc, db)
		if err != nil {
			zap.L().Error("syncdb.sync", zap.Error(err))
			return
		}
		zap.L().Debug("syncdb.synced", zap.Int("items", n))
	})
	if err != nil {
		return fmt.Errorf("syncdb schedule %q: %w", schedule, err)
	}

	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}

func syncOnce(ctx context.Context, rdc redis.Cmdable, db *sql.DB) (int, error) {
	ids, err := rdc.SMembers(ctx, redisstore.ItemSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("smembers: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	// 1. fetch all hashes in one pipelined round-trip
	pctx, cancel := context.WithTimeout(ctx, pipeTimeout)
	defer cancel()
	pipe := rdc.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(pctx, redisstore.ItemKey(id))
	}
	if _, err = pipe.Exec(pctx); err != nil {
		return 0, fmt.Errorf("pipeline: %w", err)
	}

	// 2. upsert into Postgres
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("tx begin: %w", err)
	}
	defer tx.Rollback()

	synced := 0
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue // reset between SMEMBERS and HGETALL
		}
		item, err := redisstore.ParseItem(data)
		if err != nil {
			zap.L().Warn("syncdb.parse", zap.String("id", ids[i]), zap.Error(err))
			continue
		}
		if _, err := tx.ExecContext(ctx, upsert,
			item.ID, item.Name, item.CurrentPrice, item.FloorPrice, item.Version); err != nil {
			return 0, fmt.Errorf("upsert %s: %w", item.ID, err)
		}
		synced++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return synced, nil
}
