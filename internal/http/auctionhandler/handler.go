package auctionhandler

import (
	"errors"
	"flashbid/internal/services/auction"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	svc auction.IAuctionService
}

func New(svc auction.IAuctionService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/reset", h.reset)
	r.POST("/bid", h.bid)
	r.GET("/items/:id", h.item)
	r.GET("/items/:id/bids", h.history)
}

// @Summary		Reset the auction
// @Description	Discards every item and bid and creates one fresh item at the floor price, version 0.
// @Tags			Auctions
// @Param			body	body		ResetBody	false	"Optional name and floor price"
// @Success		200		{object}	store.AuctionItem
// @Failure		400		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/reset [post]
func (h *Handler) reset(ginCtx *gin.Context) {
	var body ResetBody
	// an empty body means "use the configured defaults"
	if err := ginCtx.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	item, err := h.svc.ResetAuction(ginCtx.Request.Context(), auction.ResetRequest{
		Name:       body.Name,
		FloorPrice: body.FloorPrice,
	})
	if err != nil {
		h.fail(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, item)
}

// @Summary		Place a bid
// @Description	Validates the bid against a fresh snapshot and commits it with a version check.
// @Description	409 means another bid committed first; resubmit to re-validate against the new price.
// @Tags			Auctions
// @Param			body	body		PlaceBidBody	true	"Bid payload"
// @Success		200		{object}	BidAcceptedResponse
// @Failure		400		{object}	ErrorResponse
// @Failure		404		{object}	ErrorResponse
// @Failure		409		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/bid [post]
func (h *Handler) bid(ginCtx *gin.Context) {
	var body PlaceBidBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	res, err := h.svc.PlaceBid(ginCtx.Request.Context(), body.ItemID, body.Bidder, body.Amount)
	if err != nil {
		h.fail(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, &BidAcceptedResponse{
		Message:      msgBidAccepted,
		CurrentPrice: res.CurrentPrice,
		Version:      res.Version,
	})
}

// @Summary		Get an item
// @Tags			Auctions
// @Param			id	path		string	true	"Item ID"
// @Success		200	{object}	store.AuctionItem
// @Failure		404	{object}	ErrorResponse
// @Router			/items/{id} [get]
func (h *Handler) item(ginCtx *gin.Context) {
	item, err := h.svc.GetItem(ginCtx.Request.Context(), ginCtx.Param("id"))
	if err != nil {
		h.fail(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, item)
}

// @Summary		Bid history
// @Description	Accepted and conflicting bids, in version order.
// @Tags			Auctions
// @Param			id	path		string	true	"Item ID"
// @Success		200	{array}		store.Bid
// @Failure		404	{object}	ErrorResponse
// @Router			/items/{id}/bids [get]
func (h *Handler) history(ginCtx *gin.Context) {
	bids, err := h.svc.BidHistory(ginCtx.Request.Context(), ginCtx.Param("id"))
	if err != nil {
		h.fail(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, bids)
}

func (h *Handler) fail(ginCtx *gin.Context, err error) {
	switch {
	case errors.Is(err, auction.ErrBidTooLow):
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: msgBidTooLow})
	case errors.Is(err, auction.ErrInvalidAmount):
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
	case errors.Is(err, auction.ErrItemNotFound):
		ginCtx.JSON(http.StatusNotFound, &ErrorResponse{Error: msgItemNotFound})
	case errors.Is(err, auction.ErrBidConflict):
		ginCtx.JSON(http.StatusConflict, &ErrorResponse{Error: msgConflict})
	default:
		zap.L().Error("http_request_failed",
			zap.String("path", ginCtx.FullPath()),
			zap.Error(err),
		)
		ginCtx.JSON(http.StatusInternalServerError, &ErrorResponse{Error: msgInternal})
	}
}
