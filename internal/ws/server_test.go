package ws

import (
	"context"
	"encoding/json"
	"flashbid/internal/services/auction"
	"flashbid/internal/store"
	"flashbid/internal/store/memstore"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body"`
}

func startServer(t *testing.T) (*httptest.Server, *store.AuctionItem) {
	t.Helper()
	svc := auction.NewAuctionService(memstore.New(), auction.Options{FloorPrice: 500, ItemName: "x"})
	item, err := svc.ResetAuction(context.Background(), auction.ResetRequest{})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", NewWsServer(svc).Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, item
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWs_SnapshotThenBidVerdicts(t *testing.T) {
	srv, item := startServer(t)
	conn := dial(t, srv, "item_id="+item.ID+"&bidder=alice")

	snap := readFrame(t, conn)
	assert.Equal(t, EventSnapshot, snap.Event)
	var got store.AuctionItem
	require.NoError(t, json.Unmarshal(snap.Body, &got))
	assert.Equal(t, item.ID, got.ID)

	require.NoError(t, conn.WriteJSON(Envelope{Event: EventBid, Body: json.RawMessage(`{"amount":550}`)}))
	ack := readFrame(t, conn)
	assert.Equal(t, EventBid+"-ack", ack.Event)
	var res auction.BidResult
	require.NoError(t, json.Unmarshal(ack.Body, &res))
	assert.Equal(t, store.OutcomeAccepted, res.Outcome)
	assert.Equal(t, 550.0, res.CurrentPrice)
	assert.Equal(t, "alice", res.Bidder)

	require.NoError(t, conn.WriteJSON(Envelope{Event: EventBid, Body: json.RawMessage(`{"amount":520}`)}))
	ack = readFrame(t, conn)
	require.NoError(t, json.Unmarshal(ack.Body, &res))
	assert.Equal(t, store.OutcomeRejectedTooLow, res.Outcome)
	assert.Equal(t, 550.0, res.CurrentPrice)
}

func TestWs_InvalidAndUnknownEvents(t *testing.T) {
	srv, item := startServer(t)
	conn := dial(t, srv, "item_id="+item.ID+"&bidder=bob")
	readFrame(t, conn) // snapshot

	require.NoError(t, conn.WriteJSON(Envelope{Event: EventBid, Body: json.RawMessage(`{"amount":-5}`)}))
	f := readFrame(t, conn)
	assert.Equal(t, EventError, f.Event)

	require.NoError(t, conn.WriteJSON(Envelope{Event: "auctions/teleport"}))
	f = readFrame(t, conn)
	assert.Equal(t, EventError, f.Event)
	assert.Contains(t, string(f.Body), ErrUnknownEvent.Error())
}

func TestWs_RequiresQuery(t *testing.T) {
	srv, _ := startServer(t)
	resp, err := http.Get(srv.URL + "/ws?item_id=x")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
