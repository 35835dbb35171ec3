package syncbid

import (
	"context"
	"database/sql"
	"errors"
	"flashbid/internal/store"
	"flashbid/internal/store/redisstore"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// The stream entry id doubles as source_id, so replaying the stream after a
// restart inserts nothing twice.
const ins = `INSERT INTO bids (item_id, amount, bidder, outcome, version, accepted_at, source_id)
             VALUES ($1, $2, $3, $4, $5, $6, $7)
             ON CONFLICT (source_id) DO NOTHING`

// Run tails the Redis bid stream and persists every bid outcome.
func Run(ctx context.Context, rdc redis.Cmdable, db *sql.DB) {
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
				Streams: []string{redisstore.BidsStream, lastID},
				Count:   100,
				Block:   2000 * time.Millisecond,
			}).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if ctx.Err() != nil {
					return
				}
				zap.L().Warn("syncbid.xread", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if len(res) == 0 || len(res[0].Messages) == 0 {
				continue
			}
			entries := res[0].Messages
			if err := persist(ctx, db, entries); err != nil {
				// keep lastID so the batch is retried
				zap.L().Error("syncbid.persist", zap.Error(err))
				time.Sleep(time.Second)
				continue
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
	defer tx.Rollback()

	for _, m := range msgs {
		bid, err := decode(m)
		if err != nil {
			zap.L().Warn("syncbid.skip_entry", zap.String("id", m.ID), zap.Error(err))
			continue
		}
		if _, err := tx.ExecContext(ctx, ins,
			bid.ItemID, bid.Amount, bid.Bidder, string(bid.Outcome), bid.Version, bid.AcceptedAt, m.ID,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// decode reads an entry written by item_append_bid.
func decode(m redis.XMessage) (store.Bid, error) {
	field := func(k string) string {
		s, _ := m.Values[k].(string)
		return s
	}

	bid := store.Bid{
		ItemID:  field("item"),
		Bidder:  field("bidder"),
		Outcome: store.Outcome(field("outcome")),
	}
	if bid.ItemID == "" {
		return bid, errors.New("missing item")
	}

	var err error
	if bid.Amount, err = strconv.ParseFloat(field("amount"), 64); err != nil {
		return bid, fmt.Errorf("amount: %w", err)
	}
	if bid.Version, err = strconv.ParseInt(field("ver"), 10, 64); err != nil {
		return bid, fmt.Errorf("ver: %w", err)
	}
	ms, err := strconv.ParseInt(field("at"), 10, 64)
	if err != nil {
		return bid, fmt.Errorf("at: %w", err)
	}
	bid.AcceptedAt = time.UnixMilli(ms).UTC()
	return bid, nil
}
