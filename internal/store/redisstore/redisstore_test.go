package redisstore

import (
	"context"
	"errors"
	"flashbid/internal/store"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db)

	mock.ExpectHGetAll("item:abc").SetVal(map[string]string{
		"id": "abc", "name": "PlayStation 5 Pro", "price": "550", "floor": "500", "ver": "1",
	})

	item, err := s.Read(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, store.AuctionItem{
		ID: "abc", Name: "PlayStation 5 Pro", CurrentPrice: 550, FloorPrice: 500, Version: 1,
	}, *item)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRead_NotFound(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectHGetAll("item:nope").SetVal(map[string]string{})

	_, err := New(db).Read(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRead_StorageUnavailable(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectHGetAll("item:abc").SetErr(errors.New("dial tcp: connection refused"))

	_, err := New(db).Read(context.Background(), "abc")
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
}

func TestHistory_SortsByVersion(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectExists("item:abc").SetVal(1)
	mock.ExpectLRange("item:abc:bids", 0, -1).SetVal([]string{
		`{"itemId":"abc","amount":600,"bidder":"bob","outcome":"ACCEPTED","version":2,"acceptedAt":"2026-01-01T00:00:01Z"}`,
		`{"itemId":"abc","amount":550,"bidder":"alice","outcome":"ACCEPTED","version":1,"acceptedAt":"2026-01-01T00:00:00Z"}`,
	})

	hist, err := New(db).History(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "alice", hist[0].Bidder)
	assert.Equal(t, store.OutcomeAccepted, hist[0].Outcome)
	assert.Equal(t, "bob", hist[1].Bidder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory_NotFound(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectExists("item:gone").SetVal(0)

	_, err := New(db).History(context.Background(), "gone")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestParseItem_RejectsGarbage(t *testing.T) {
	_, err := ParseItem(map[string]string{"price": "abc", "floor": "1", "ver": "0"})
	assert.Error(t, err)
}

func TestConditionalUpdate(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db)

	mock.ExpectFCall("item_cas_price", []string{"item:abc"}, int64(0), "550").SetVal(int64(1))
	mock.ExpectFCall("item_cas_price", []string{"item:abc"}, int64(0), "505").SetVal(int64(-1))

	v, err := s.ConditionalUpdate(context.Background(), "abc", 0, 550)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, err = s.ConditionalUpdate(context.Background(), "abc", 0, 505)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReset_CallsItemReset(t *testing.T) {
	db, mock := redismock.NewClientMock()

	// the item id is generated, so match on shape
	mock.CustomMatch(func(expected, actual []interface{}) error {
		if actual[1] != "item_reset" || actual[3] != ItemSetKey || actual[6] != "PS5" || actual[7] != "500" {
			return errors.New("unexpected item_reset call")
		}
		if actual[4] != ItemKey(actual[5].(string)) {
			return errors.New("item key does not match id")
		}
		return nil
	}).ExpectFCall("item_reset", []string{"", ""}, "", "", "").SetVal(int64(0))

	item, err := New(db).Reset(context.Background(), "PS5", 500)
	require.NoError(t, err)
	assert.Equal(t, "PS5", item.Name)
	assert.Equal(t, store.InitialVersion, item.Version)
	assert.Equal(t, 500.0, item.CurrentPrice)
	assert.NoError(t, mock.ExpectationsWereMet())
}
