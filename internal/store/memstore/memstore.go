package memstore

import (
	"context"
	"flashbid/internal/store"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// priceState is never mutated after publication; a price change swaps in a
// new one.
type priceState struct {
	price   float64
	version int64
}

type entry struct {
	id    string
	name  string
	floor float64
	state atomic.Pointer[priceState]

	histMu sync.Mutex
	bids   []store.Bid
}

// Store keeps auction items in process memory. The map lock only guards
// lookups and Reset; price changes go through a pointer compare-and-swap.
type Store struct {
	mu    sync.RWMutex
	items map[string]*entry
}

var _ store.AuctionStore = (*Store)(nil)

func New() *Store {
	return &Store{items: make(map[string]*entry)}
}

func (s *Store) Reset(_ context.Context, name string, floorPrice float64) (*store.AuctionItem, error) {
	e := &entry{
		id:    uuid.NewString(),
		name:  name,
		floor: floorPrice,
	}
	e.state.Store(&priceState{price: floorPrice, version: store.InitialVersion})

	s.mu.Lock()
	s.items = map[string]*entry{e.id: e}
	s.mu.Unlock()

	return e.snapshot(), nil
}

func (s *Store) Read(_ context.Context, itemID string) (*store.AuctionItem, error) {
	e, ok := s.lookup(itemID)
	if !ok {
		return nil, store.ErrNotFound
	}
	return e.snapshot(), nil
}

func (s *Store) ConditionalUpdate(_ context.Context, itemID string, expectedVersion int64, newPrice float64) (int64, error) {
	e, ok := s.lookup(itemID)
	if !ok {
		return 0, store.ErrConflict
	}

	cur := e.state.Load()
	if cur.version != expectedVersion {
		return 0, store.ErrConflict
	}
	next := &priceState{price: newPrice, version: cur.version + 1}
	if !e.state.CompareAndSwap(cur, next) {
		return 0, store.ErrConflict
	}
	return next.version, nil
}

func (s *Store) AppendBid(_ context.Context, bid store.Bid) error {
	e, ok := s.lookup(bid.ItemID)
	if !ok {
		// item was reset away while the bid was in flight
		return nil
	}
	e.histMu.Lock()
	e.bids = append(e.bids, bid)
	e.histMu.Unlock()
	return nil
}

func (s *Store) History(_ context.Context, itemID string) ([]store.Bid, error) {
	e, ok := s.lookup(itemID)
	if !ok {
		return nil, store.ErrNotFound
	}
	e.histMu.Lock()
	out := make([]store.Bid, len(e.bids))
	copy(out, e.bids)
	e.histMu.Unlock()

	store.SortHistory(out)
	return out, nil
}

func (s *Store) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	return e, ok
}

func (e *entry) snapshot() *store.AuctionItem {
	st := e.state.Load()
	return &store.AuctionItem{
		ID:           e.id,
		Name:         e.name,
		CurrentPrice: st.price,
		FloorPrice:   e.floor,
		Version:      st.version,
	}
}
