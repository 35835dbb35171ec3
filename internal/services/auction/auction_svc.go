package auction

import (
	"context"
	"errors"
	"flashbid/internal/store"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

var (
	ErrItemNotFound  = errors.New("item not found")
	ErrBidTooLow     = errors.New("bid must be higher than current price")
	ErrBidConflict   = errors.New("item changed since it was read")
	ErrInvalidAmount = errors.New("amount must be a finite positive number")
)

// BidResult is the verdict for one bid request. CurrentPrice and Version
// describe the item as the coordinator last saw it.
type BidResult struct {
	Outcome      store.Outcome `json:"outcome"`
	ItemID       string        `json:"itemId"`
	Bidder       string        `json:"bidder"`
	Amount       float64       `json:"amount"`
	CurrentPrice float64       `json:"currentPrice"`
	Version      int64         `json:"version"`
} // @name BidResult

type ResetRequest struct {
	Name       string
	FloorPrice *float64
}

type Options struct {
	FloorPrice float64
	ItemName   string
	// BidDelay is slept between validation and the conditional write. It
	// stands in for real-world latency and widens the race window.
	BidDelay time.Duration
	Now      func() time.Time
}

type IAuctionService interface {
	ResetAuction(ctx context.Context, req ResetRequest) (*store.AuctionItem, error)
	PlaceBid(ctx context.Context, itemID, bidder string, amount float64) (*BidResult, error)
	GetItem(ctx context.Context, itemID string) (*store.AuctionItem, error)
	BidHistory(ctx context.Context, itemID string) ([]store.Bid, error)
}

type auctionService struct {
	st   store.AuctionStore
	opts Options
}

var _ IAuctionService = (*auctionService)(nil)

func NewAuctionService(st store.AuctionStore, opts Options) IAuctionService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &auctionService{st: st, opts: opts}
}

func (svc *auctionService) ResetAuction(ctx context.Context, req ResetRequest) (*store.AuctionItem, error) {
	name := req.Name
	if name == "" {
		name = svc.opts.ItemName
	}
	floor := svc.opts.FloorPrice
	if req.FloorPrice != nil {
		floor = *req.FloorPrice
	}
	if math.IsNaN(floor) || math.IsInf(floor, 0) || floor < 0 {
		return nil, ErrInvalidAmount
	}

	item, err := svc.st.Reset(ctx, name, floor)
	if err != nil {
		return nil, fmt.Errorf("reset auction: %w", err)
	}
	zap.L().Info("auction_reset",
		zap.String("item_id", item.ID),
		zap.String("name", item.Name),
		zap.Float64("floor_price", item.FloorPrice),
	)
	return item, nil
}

// PlaceBid reads a snapshot, validates the amount against it and commits with
// a version-guarded write. A lost race is reported as ErrBidConflict; the
// caller decides whether to resubmit, which re-validates against a fresh read.
func (svc *auctionService) PlaceBid(ctx context.Context, itemID, bidder string, amount float64) (*BidResult, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return nil, ErrInvalidAmount
	}
	res := &BidResult{ItemID: itemID, Bidder: bidder, Amount: amount}

	snap, err := svc.st.Read(ctx, itemID)
	if errors.Is(err, store.ErrNotFound) {
		res.Outcome = store.OutcomeRejectedNotFound
		return res, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read item %s: %w", itemID, err)
	}
	res.CurrentPrice = snap.CurrentPrice
	res.Version = snap.Version

	if amount <= snap.CurrentPrice {
		res.Outcome = store.OutcomeRejectedTooLow
		return res, ErrBidTooLow
	}

	if err := svc.pause(ctx); err != nil {
		return nil, err
	}

	newVersion, err := svc.st.ConditionalUpdate(ctx, itemID, snap.Version, amount)
	if errors.Is(err, store.ErrConflict) {
		res.Outcome = store.OutcomeRejectedConflict
		svc.record(ctx, res, snap.Version)
		zap.L().Info("bid_conflict",
			zap.String("item_id", itemID),
			zap.String("bidder", bidder),
			zap.Float64("amount", amount),
			zap.Int64("read_version", snap.Version),
		)
		return res, fmt.Errorf("%w: %w", ErrBidConflict, err)
	}
	if err != nil {
		return nil, fmt.Errorf("commit bid on %s: %w", itemID, err)
	}

	res.Outcome = store.OutcomeAccepted
	res.CurrentPrice = amount
	res.Version = newVersion
	svc.record(ctx, res, newVersion)
	zap.L().Debug("bid_accepted",
		zap.String("item_id", itemID),
		zap.String("bidder", bidder),
		zap.Float64("amount", amount),
		zap.Int64("version", newVersion),
	)
	return res, nil
}

func (svc *auctionService) GetItem(ctx context.Context, itemID string) (*store.AuctionItem, error) {
	item, err := svc.st.Read(ctx, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrItemNotFound
	}
	return item, err
}

func (svc *auctionService) BidHistory(ctx context.Context, itemID string) ([]store.Bid, error) {
	bids, err := svc.st.History(ctx, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrItemNotFound
	}
	return bids, err
}

func (svc *auctionService) pause(ctx context.Context) error {
	if svc.opts.BidDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(svc.opts.BidDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// record appends the outcome to history. The verdict is already final, so a
// failed append is logged rather than returned.
func (svc *auctionService) record(ctx context.Context, res *BidResult, version int64) {
	bid := store.Bid{
		ItemID:     res.ItemID,
		Amount:     res.Amount,
		Bidder:     res.Bidder,
		Outcome:    res.Outcome,
		Version:    version,
		AcceptedAt: svc.opts.Now().UTC(),
	}
	if err := svc.st.AppendBid(context.WithoutCancel(ctx), bid); err != nil {
		zap.L().Error("append_bid_failed",
			zap.String("item_id", res.ItemID),
			zap.String("outcome", string(res.Outcome)),
			zap.Error(err),
		)
	}
}
