// Package journal mirrors auction events onto a NATS JetStream stream so
// other processes can follow bids without touching the store.
package journal

import (
	"context"
	"encoding/json"
	"flashbid/internal/store"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

const (
	SubjectRoot    = "flashbid"
	SubjectResets  = SubjectRoot + ".resets"
	publishTimeout = 5 * time.Second
)

// BidSubject is the subject a bid on itemID is published to.
func BidSubject(itemID string) string { return SubjectRoot + ".bids." + itemID }

// Publisher is the slice of jetstream.JetStream the journal needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// EnsureStream creates the journal stream, or updates it in place.
func EnsureStream(ctx context.Context, js jetstream.JetStream, name string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        name,
		Description: "Auction resets and bid outcomes",
		Subjects:    []string{SubjectRoot + ".>"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("create or update stream %s: %w", name, err)
	}
	return nil
}

// Store decorates an AuctionStore. Successful resets and bid appends are
// published after the inner store has them; a failed publish is logged and
// never changes the store's result.
type Store struct {
	store.AuctionStore
	pub Publisher
}

var _ store.AuctionStore = (*Store)(nil)

func Wrap(inner store.AuctionStore, pub Publisher) *Store {
	return &Store{AuctionStore: inner, pub: pub}
}

func (s *Store) Reset(ctx context.Context, name string, floorPrice float64) (*store.AuctionItem, error) {
	item, err := s.AuctionStore.Reset(ctx, name, floorPrice)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, SubjectResets, item)
	return item, nil
}

func (s *Store) AppendBid(ctx context.Context, bid store.Bid) error {
	if err := s.AuctionStore.AppendBid(ctx, bid); err != nil {
		return err
	}
	s.publish(ctx, BidSubject(bid.ItemID), bid)
	return nil
}

func (s *Store) publish(ctx context.Context, subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		zap.L().Error("journal.marshal", zap.String("subject", subject), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	ack, err := s.pub.Publish(ctx, subject, data)
	if err != nil {
		zap.L().Warn("journal.publish", zap.String("subject", subject), zap.Error(err))
		return
	}
	zap.L().Debug("journal.published", zap.String("subject", subject), zap.Uint64("seq", ack.Sequence))
}
