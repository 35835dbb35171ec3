package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"flashbid/internal/store"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS auction_items (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	current_price DOUBLE PRECISION NOT NULL,
	floor_price   DOUBLE PRECISION NOT NULL,
	version       BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS bids (
	id          BIGSERIAL PRIMARY KEY,
	item_id     TEXT NOT NULL,
	amount      DOUBLE PRECISION NOT NULL,
	bidder      TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	version     BIGINT NOT NULL,
	accepted_at TIMESTAMPTZ NOT NULL,
	source_id   TEXT UNIQUE
);
CREATE INDEX IF NOT EXISTS idx_bids_item_version ON bids (item_id, version, id);`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS auction_items (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	current_price REAL NOT NULL,
	floor_price   REAL NOT NULL,
	version       INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS bids (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id     TEXT NOT NULL,
	amount      REAL NOT NULL,
	bidder      TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	version     INTEGER NOT NULL,
	accepted_at DATETIME NOT NULL,
	source_id   TEXT UNIQUE
);
CREATE INDEX IF NOT EXISTS idx_bids_item_version ON bids (item_id, version, id);`

const (
	qDeleteBids  = `DELETE FROM bids`
	qDeleteItems = `DELETE FROM auction_items`
	qInsertItem  = `INSERT INTO auction_items (id, name, current_price, floor_price, version)
	                VALUES ($1, $2, $3, $3, $4)`
	qReadItem = `SELECT id, name, current_price, floor_price, version
	               FROM auction_items WHERE id = $1`
	// Matches only while the version is still the one the caller read.
	qConditionalUpdate = `UPDATE auction_items
	                         SET current_price = $1, version = version + 1
	                       WHERE id = $2 AND version = $3
	                   RETURNING version`
	qInsertBid = `INSERT INTO bids (item_id, amount, bidder, outcome, version, accepted_at)
	              VALUES ($1, $2, $3, $4, $5, $6)`
	qItemExists = `SELECT 1 FROM auction_items WHERE id = $1`
	qHistory    = `SELECT item_id, amount, bidder, outcome, version, accepted_at
	                 FROM bids WHERE item_id = $1
	             ORDER BY version, id`
)

// Store is an AuctionStore over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ store.AuctionStore = (*Store)(nil)

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.dialect == SQLite {
		schema = sqliteSchema
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Reset(ctx context.Context, name string, floorPrice float64) (*store.AuctionItem, error) {
	item := &store.AuctionItem{
		ID:           uuid.NewString(),
		Name:         name,
		CurrentPrice: floorPrice,
		FloorPrice:   floorPrice,
		Version:      store.InitialVersion,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, store.Unavailable("reset", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, qDeleteBids); err != nil {
		return nil, store.Unavailable("reset", err)
	}
	if _, err = tx.ExecContext(ctx, qDeleteItems); err != nil {
		return nil, store.Unavailable("reset", err)
	}
	if _, err = tx.ExecContext(ctx, s.rebind(qInsertItem),
		item.ID, item.Name, floorPrice, item.Version); err != nil {
		return nil, store.Unavailable("reset", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, store.Unavailable("reset", err)
	}
	return item, nil
}

func (s *Store) Read(ctx context.Context, itemID string) (*store.AuctionItem, error) {
	item := &store.AuctionItem{}
	err := s.db.QueryRowContext(ctx, s.rebind(qReadItem), itemID).Scan(
		&item.ID, &item.Name, &item.CurrentPrice, &item.FloorPrice, &item.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("read", err)
	}
	return item, nil
}

func (s *Store) ConditionalUpdate(ctx context.Context, itemID string, expectedVersion int64, newPrice float64) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx, s.rebind(qConditionalUpdate),
		newPrice, itemID, expectedVersion).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrConflict
	}
	if err != nil {
		return 0, store.Unavailable("conditional update", err)
	}
	return version, nil
}

func (s *Store) AppendBid(ctx context.Context, bid store.Bid) error {
	_, err := s.db.ExecContext(ctx, s.rebind(qInsertBid),
		bid.ItemID, bid.Amount, bid.Bidder, string(bid.Outcome), bid.Version, bid.AcceptedAt.UTC())
	if err != nil {
		return store.Unavailable("append bid", err)
	}
	return nil
}

func (s *Store) History(ctx context.Context, itemID string) ([]store.Bid, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind(qItemExists), itemID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("history", err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(qHistory), itemID)
	if err != nil {
		return nil, store.Unavailable("history", err)
	}
	defer rows.Close()

	bids := make([]store.Bid, 0)
	for rows.Next() {
		var (
			b       store.Bid
			outcome string
		)
		if err := rows.Scan(&b.ItemID, &b.Amount, &b.Bidder, &outcome, &b.Version, &b.AcceptedAt); err != nil {
			return nil, store.Unavailable("history", err)
		}
		b.Outcome = store.Outcome(outcome)
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("history", err)
	}
	return bids, nil
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// rebind turns $n placeholders into SQLite's ?n form.
func (s *Store) rebind(q string) string {
	if s.dialect != SQLite {
		return q
	}
	return placeholder.ReplaceAllString(q, "?$1")
}

