package ws

import "encoding/json"

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "auctions/bid"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

const (
	EventBid      = "auctions/bid"
	EventSnapshot = "auctions/snapshot"
	EventError    = "error"
)

// BidRequest is the body for "auctions/bid". Item and bidder come from the
// connection's query string.
type BidRequest struct {
	Amount float64 `json:"amount" validate:"gt=0"`
}

type SnapshotRequest struct{}

// ErrorBody is returned for failures.
type ErrorBody struct {
	Error string `json:"error"`
}
