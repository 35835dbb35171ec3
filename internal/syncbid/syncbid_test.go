package syncbid

import (
	"context"
	"errors"
	"flashbid/internal/store"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string, vals map[string]any) redis.XMessage {
	return redis.XMessage{ID: id, Values: vals}
}

func TestDecode(t *testing.T) {
	bid, err := decode(entry("1-0", map[string]any{
		"item": "i1", "bidder": "alice", "amount": "550", "outcome": "ACCEPTED", "ver": "1", "at": "1700000000000",
	}))
	require.NoError(t, err)
	assert.Equal(t, "i1", bid.ItemID)
	assert.Equal(t, 550.0, bid.Amount)
	assert.Equal(t, store.OutcomeAccepted, bid.Outcome)
	assert.Equal(t, int64(1), bid.Version)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), bid.AcceptedAt)

	_, err = decode(entry("2-0", map[string]any{"item": "i1", "amount": "abc"}))
	assert.Error(t, err)
	_, err = decode(entry("3-0", map[string]any{"amount": "1"}))
	assert.Error(t, err)
}

func TestPersist_InsertsValidEntries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.UnixMilli(1700000000000).UTC()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bids").
		WithArgs("i1", 550.0, "alice", "ACCEPTED", int64(1), at, "1-0").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO bids").
		WithArgs("i1", 505.0, "bob", "REJECTED_CONFLICT", int64(0), at, "1-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err = persist(context.Background(), db, []redis.XMessage{
		entry("1-0", map[string]any{"item": "i1", "bidder": "alice", "amount": "550", "outcome": "ACCEPTED", "ver": "1", "at": "1700000000000"}),
		entry("1-1", map[string]any{"item": "i1", "bidder": "bob", "amount": "505", "outcome": "REJECTED_CONFLICT", "ver": "0", "at": "1700000000000"}),
		entry("1-2", map[string]any{"garbage": "x"}),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersist_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bids").WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	err = persist(context.Background(), db, []redis.XMessage{
		entry("1-0", map[string]any{"item": "i1", "bidder": "a", "amount": "1", "outcome": "ACCEPTED", "ver": "1", "at": "0"}),
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
