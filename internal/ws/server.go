package ws

import (
	"context"
	"errors"
	"flashbid/internal/services/auction"
	"flashbid/internal/store"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 12 * time.Second
	pingPeriod = 3 * time.Second // must be < pongWait

	dispatchTimeout = 5 * time.Second
)

// WsServer is a second transport for bids: one socket per (item, bidder),
// request/ack frames, no broadcast.
type WsServer struct {
	router     *Router
	upgrader   websocket.Upgrader
	auctionSvc auction.IAuctionService
}

func NewWsServer(auctionSvc auction.IAuctionService) *WsServer {
	srv := &WsServer{
		router: NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true }, // dev-only
		},
		auctionSvc: auctionSvc,
	}
	srv.registerHandlers()
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	itemID := ginCtx.Query("item_id")
	bidder := ginCtx.Query("bidder")
	if itemID == "" || bidder == "" {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "item_id and bidder are required"})
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(512)

	conn := &clientConn{rawConn: rawConn}
	if err := s.pushSnapshot(ginCtx.Request.Context(), itemID, conn); err != nil &&
		!errors.Is(err, auction.ErrItemNotFound) {
		zap.L().Warn("ws.snapshot", zap.String("item_id", itemID), zap.Error(err))
	}

	done := make(chan struct{})
	go s.reader(&ConnContext{ItemID: itemID, Bidder: bidder}, conn, done)
	go s.pinger(conn, done)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// Rejections are verdicts, not failures: they come back in the ack with
	// their outcome. Only malformed input and infrastructure errors become
	// "error" frames.
	Register(
		s.router,
		EventBid,
		func(ctx context.Context, cc *ConnContext, req BidRequest) (*auction.BidResult, error) {
			res, err := s.auctionSvc.PlaceBid(ctx, cc.ItemID, cc.Bidder, req.Amount)
			if res != nil {
				return res, nil
			}
			return nil, err
		},
	)

	Register(
		s.router,
		EventSnapshot,
		func(ctx context.Context, cc *ConnContext, _ SnapshotRequest) (*store.AuctionItem, error) {
			return s.auctionSvc.GetItem(ctx, cc.ItemID)
		},
	)
}

func (s *WsServer) pushSnapshot(ctx context.Context, itemID string, conn *clientConn) error {
	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	item, err := s.auctionSvc.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	return conn.writeJSON(gin.H{
		"event": EventSnapshot,
		"body":  item,
	})
}

func (s *WsServer) reader(cc *ConnContext, conn *clientConn, done chan struct{}) {
	defer func() {
		close(done)
		_ = conn.rawConn.Close()
	}()

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := conn.rawConn.ReadJSON(&env); err != nil {
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			_ = conn.writeJSON(map[string]any{
				"event": EventError,
				"body":  ErrorBody{Error: err.Error()},
			})
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		reply := map[string]any{"event": env.Event + "-ack"}
		if res != nil {
			reply["body"] = res
		}
		_ = conn.writeJSON(reply)
	}
}

func (s *WsServer) pinger(conn *clientConn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				_ = conn.rawConn.Close()
				return
			}
		}
	}
}
