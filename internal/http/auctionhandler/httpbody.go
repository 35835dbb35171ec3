package auctionhandler

type ResetBody struct {
	Name       string   `json:"name"       example:"PlayStation 5 Pro"`
	FloorPrice *float64 `json:"floorPrice" binding:"omitempty,gte=0" example:"500"`
} // @name ResetRequest

type PlaceBidBody struct {
	ItemID string  `json:"itemId" binding:"required"      example:"0b6f4c1e-3f0e-4a7e-9d59-1c9b7f7f2a10"`
	Amount float64 `json:"amount" binding:"required,gt=0" example:"550"`
	Bidder string  `json:"bidder" binding:"required"      example:"alice"`
} // @name PlaceBidRequest

type BidAcceptedResponse struct {
	Message      string  `json:"message"      example:"Bid accepted"`
	CurrentPrice float64 `json:"currentPrice" example:"550"`
	Version      int64   `json:"version"      example:"1"`
} // @name BidAcceptedResponse

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

const (
	msgBidAccepted  = "Bid accepted"
	msgBidTooLow    = "Bid too low"
	msgItemNotFound = "Item not found"
	msgConflict     = "Conflict, retry"
	msgInternal     = "Internal error"
)
