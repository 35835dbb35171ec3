package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// InitialVersion is the version stamp of a freshly reset item.
const InitialVersion int64 = 0

var (
	ErrNotFound = errors.New("item not found")
	// ErrConflict means the stored version no longer matches the expected one.
	ErrConflict           = errors.New("version conflict")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

type Outcome string

const (
	OutcomeAccepted         Outcome = "ACCEPTED"
	OutcomeRejectedTooLow   Outcome = "REJECTED_TOO_LOW"
	OutcomeRejectedConflict Outcome = "REJECTED_CONFLICT"
	OutcomeRejectedNotFound Outcome = "REJECTED_NOT_FOUND"
)

type AuctionItem struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	CurrentPrice float64 `json:"currentPrice"`
	FloorPrice   float64 `json:"floorPrice"`
	Version      int64   `json:"version"`
} // @name AuctionItem

// Bid is one entry of an item's history. Version is the version produced by
// an accepted bid, or the stale version a conflicting bid was based on.
type Bid struct {
	ItemID     string    `json:"itemId"`
	Amount     float64   `json:"amount"`
	Bidder     string    `json:"bidder"`
	Outcome    Outcome   `json:"outcome"`
	Version    int64     `json:"version"`
	AcceptedAt time.Time `json:"acceptedAt"`
} // @name Bid

// AuctionStore owns current price and version. ConditionalUpdate is the only
// way either of them changes after Reset.
type AuctionStore interface {
	// Reset discards every item and bid and creates one fresh item priced at
	// floorPrice with version InitialVersion.
	Reset(ctx context.Context, name string, floorPrice float64) (*AuctionItem, error)
	Read(ctx context.Context, itemID string) (*AuctionItem, error)
	// ConditionalUpdate sets the price and bumps the version by one iff the
	// stored version equals expectedVersion. It returns the new version, or
	// ErrConflict with the stored state untouched.
	ConditionalUpdate(ctx context.Context, itemID string, expectedVersion int64, newPrice float64) (int64, error)
	AppendBid(ctx context.Context, bid Bid) error
	History(ctx context.Context, itemID string) ([]Bid, error)
}

// SortHistory orders bids by version, keeping insertion order among equals.
// Accepted bids end up in acceptance order even when their appends raced.
func SortHistory(bids []Bid) {
	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].Version < bids[j].Version
	})
}

// Unavailable wraps an infrastructure failure so callers can match it with
// errors.Is(err, ErrStorageUnavailable). Context errors pass through unmarked.
func Unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}
