package auctionhandler

import (
	"context"
	"encoding/json"
	"errors"
	"flashbid/internal/services/auction"
	"flashbid/internal/store"
	"flashbid/internal/store/memstore"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(svc auction.IAuctionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(svc).Register(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func newService() auction.IAuctionService {
	return auction.NewAuctionService(memstore.New(), auction.Options{
		FloorPrice: 500,
		ItemName:   "PlayStation 5 Pro",
	})
}

func TestReset_EmptyBodyUsesDefaults(t *testing.T) {
	r := newRouter(newService())

	w := do(t, r, http.MethodPost, "/reset", "")
	require.Equal(t, http.StatusOK, w.Code)

	item := decode[store.AuctionItem](t, w)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "PlayStation 5 Pro", item.Name)
	assert.Equal(t, 500.0, item.CurrentPrice)
	assert.Equal(t, int64(0), item.Version)
}

func TestReset_WithBody(t *testing.T) {
	r := newRouter(newService())

	w := do(t, r, http.MethodPost, "/reset", `{"name":"Switch 2","floorPrice":300}`)
	require.Equal(t, http.StatusOK, w.Code)
	item := decode[store.AuctionItem](t, w)
	assert.Equal(t, "Switch 2", item.Name)
	assert.Equal(t, 300.0, item.FloorPrice)

	w = do(t, r, http.MethodPost, "/reset", `{"floorPrice":-3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBid_Outcomes(t *testing.T) {
	r := newRouter(newService())
	item := decode[store.AuctionItem](t, do(t, r, http.MethodPost, "/reset", ""))

	w := do(t, r, http.MethodPost, "/bid", `{"itemId":"`+item.ID+`","amount":550,"bidder":"alice"}`)
	require.Equal(t, http.StatusOK, w.Code)
	ok := decode[BidAcceptedResponse](t, w)
	assert.Equal(t, "Bid accepted", ok.Message)
	assert.Equal(t, 550.0, ok.CurrentPrice)
	assert.Equal(t, int64(1), ok.Version)

	w = do(t, r, http.MethodPost, "/bid", `{"itemId":"`+item.ID+`","amount":550,"bidder":"bob"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Bid too low", decode[ErrorResponse](t, w).Error)

	w = do(t, r, http.MethodPost, "/bid", `{"itemId":"nope","amount":600,"bidder":"bob"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Item not found", decode[ErrorResponse](t, w).Error)

	w = do(t, r, http.MethodPost, "/bid", `{"itemId":"`+item.ID+`","bidder":"bob"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestItemAndHistory(t *testing.T) {
	r := newRouter(newService())
	item := decode[store.AuctionItem](t, do(t, r, http.MethodPost, "/reset", ""))
	do(t, r, http.MethodPost, "/bid", `{"itemId":"`+item.ID+`","amount":510,"bidder":"alice"}`)

	w := do(t, r, http.MethodGet, "/items/"+item.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[store.AuctionItem](t, w)
	assert.Equal(t, 510.0, got.CurrentPrice)

	w = do(t, r, http.MethodGet, "/items/"+item.ID+"/bids", "")
	require.Equal(t, http.StatusOK, w.Code)
	bids := decode[[]store.Bid](t, w)
	require.Len(t, bids, 1)
	assert.Equal(t, "alice", bids[0].Bidder)
	assert.Equal(t, store.OutcomeAccepted, bids[0].Outcome)

	w = do(t, r, http.MethodGet, "/items/missing/bids", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// stubService lets the handler see verdicts the memory store cannot produce
// deterministically.
type stubService struct {
	auction.IAuctionService
	err error
}

func (s stubService) PlaceBid(context.Context, string, string, float64) (*auction.BidResult, error) {
	return &auction.BidResult{Outcome: store.OutcomeRejectedConflict}, s.err
}

func TestBid_ConflictAndInternalError(t *testing.T) {
	r := newRouter(stubService{err: auction.ErrBidConflict})
	w := do(t, r, http.MethodPost, "/bid", `{"itemId":"a","amount":1,"bidder":"b"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Conflict, retry", decode[ErrorResponse](t, w).Error)

	r = newRouter(stubService{err: errors.Join(store.ErrStorageUnavailable, errors.New("boom"))})
	w = do(t, r, http.MethodPost, "/bid", `{"itemId":"a","amount":1,"bidder":"b"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal error", decode[ErrorResponse](t, w).Error)
}
