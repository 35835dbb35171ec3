package redisstore

import (
	"context"
	"encoding/json"
	"flashbid/internal/redis/redis_functions"
	"flashbid/internal/store"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	ItemSetKey    = "items"
	ItemKeyPrefix = "item:"
	BidsStream    = "bids_stream"
)

func ItemKey(id string) string { return ItemKeyPrefix + id }
func BidsKey(id string) string { return ItemKeyPrefix + id + ":bids" }

// Store keeps each item in a Redis hash. Reset, the conditional price write
// and bid appends run as the Redis Functions in flashbid.lua, so each is a
// single atomic step on the server.
type Store struct {
	rdc redis.Cmdable
}

var _ store.AuctionStore = (*Store)(nil)

func New(rdc redis.Cmdable) *Store {
	return &Store{rdc: rdc}
}

func (s *Store) Reset(ctx context.Context, name string, floorPrice float64) (*store.AuctionItem, error) {
	id := uuid.NewString()
	err := s.rdc.FCall(ctx, redis_functions.ItemReset,
		[]string{ItemSetKey, ItemKey(id)},
		id, name, formatFloat(floorPrice),
	).Err()
	if err != nil {
		return nil, store.Unavailable("reset", err)
	}
	return &store.AuctionItem{
		ID:           id,
		Name:         name,
		CurrentPrice: floorPrice,
		FloorPrice:   floorPrice,
		Version:      store.InitialVersion,
	}, nil
}

func (s *Store) Read(ctx context.Context, itemID string) (*store.AuctionItem, error) {
	data, err := s.rdc.HGetAll(ctx, ItemKey(itemID)).Result()
	if err != nil {
		return nil, store.Unavailable("read", err)
	}
	if len(data) == 0 {
		return nil, store.ErrNotFound
	}
	return ParseItem(data)
}

func (s *Store) ConditionalUpdate(ctx context.Context, itemID string, expectedVersion int64, newPrice float64) (int64, error) {
	v, err := s.rdc.FCall(ctx, redis_functions.ItemCASPrice,
		[]string{ItemKey(itemID)},
		expectedVersion, formatFloat(newPrice),
	).Int64()
	if err != nil {
		return 0, store.Unavailable("conditional update", err)
	}
	if v < 0 {
		return 0, store.ErrConflict
	}
	return v, nil
}

func (s *Store) AppendBid(ctx context.Context, bid store.Bid) error {
	payload, err := json.Marshal(bid)
	if err != nil {
		return fmt.Errorf("append bid: %w", err)
	}
	err = s.rdc.FCall(ctx, redis_functions.ItemAppendBid,
		[]string{BidsKey(bid.ItemID), BidsStream},
		string(payload),
		bid.ItemID,
		bid.Bidder,
		formatFloat(bid.Amount),
		string(bid.Outcome),
		bid.Version,
		bid.AcceptedAt.UnixMilli(),
	).Err()
	if err != nil {
		return store.Unavailable("append bid", err)
	}
	return nil
}

func (s *Store) History(ctx context.Context, itemID string) ([]store.Bid, error) {
	n, err := s.rdc.Exists(ctx, ItemKey(itemID)).Result()
	if err != nil {
		return nil, store.Unavailable("history", err)
	}
	if n == 0 {
		return nil, store.ErrNotFound
	}

	raw, err := s.rdc.LRange(ctx, BidsKey(itemID), 0, -1).Result()
	if err != nil {
		return nil, store.Unavailable("history", err)
	}
	bids := make([]store.Bid, 0, len(raw))
	for _, r := range raw {
		var b store.Bid
		if err := json.Unmarshal([]byte(r), &b); err != nil {
			return nil, fmt.Errorf("history: decode bid: %w", err)
		}
		bids = append(bids, b)
	}
	store.SortHistory(bids)
	return bids, nil
}

// ParseItem decodes an item hash as written by item_reset / item_cas_price.
func ParseItem(data map[string]string) (*store.AuctionItem, error) {
	price, err := strconv.ParseFloat(data["price"], 64)
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	floor, err := strconv.ParseFloat(data["floor"], 64)
	if err != nil {
		return nil, fmt.Errorf("parse floor: %w", err)
	}
	ver, err := strconv.ParseInt(data["ver"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse version: %w", err)
	}
	return &store.AuctionItem{
		ID:           data["id"],
		Name:         data["name"],
		CurrentPrice: price,
		FloorPrice:   floor,
		Version:      ver,
	}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

