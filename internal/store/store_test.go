package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortHistory_OrdersByVersionAndKeepsInsertionOrder(t *testing.T) {
	bids := []Bid{
		{Bidder: "carol", Version: 2, Outcome: OutcomeAccepted},
		{Bidder: "alice", Version: 1, Outcome: OutcomeAccepted},
		{Bidder: "bob", Version: 0, Outcome: OutcomeRejectedConflict},
		{Bidder: "dave", Version: 1, Outcome: OutcomeRejectedConflict},
	}

	SortHistory(bids)

	var got []string
	for _, b := range bids {
		got = append(got, b.Bidder)
	}
	assert.Equal(t, []string{"bob", "alice", "dave", "carol"}, got)
}
