package helpers

import (
	"time"

	model "auction-engine/internal/models"
)

// Request/Response DTOs. Dates travel as integer epoch seconds.
type CreateAuctionRequest struct {
	CreatedBy   string   `json:"created_by" binding:"required"`
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	StartDate   int64    `json:"start_date" binding:"required"`
	EndDate     int64    `json:"end_date" binding:"required"`
	StartAmount float64  `json:"start_amount" binding:"gte=0"`
	Images      []string `json:"images"`
}

type UpdateAuctionRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Images      []string `json:"images"`
	StartDate   *int64   `json:"start_date"`
	EndDate     *int64   `json:"end_date"`
}

type PlaceBidRequest struct {
	AuctionID string  `json:"auction_id" binding:"required"`
	BidderID  string  `json:"bidder_id" binding:"required"`
	Amount    float64 `json:"amount" binding:"required,gt=0"`
}

type VoidAuctionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type ReportPaymentRequest struct {
	Status string `json:"status" binding:"required"`
}

type AuctionResponse struct {
	AuctionID     string   `json:"auction_id"`
	CreatedBy     string   `json:"created_by"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	StartDate     int64    `json:"start_date"`
	EndDate       int64    `json:"end_date"`
	StartAmount   float64  `json:"start_amount"`
	CurrentAmount float64  `json:"current_amount"`
	Images        []string `json:"images"`
	Status        string   `json:"status"`
	CreatedAt     string   `json:"created_at"`
}

type BidResponse struct {
	AuctionID string  `json:"auction_id"`
	BidID     int     `json:"bid_id"`
	BidderID  string  `json:"bidder_id"`
	Amount    float64 `json:"amount"`
	PlacedAt  string  `json:"placed_at"`
}

type PaymentResponse struct {
	PaymentID string  `json:"payment_id"`
	AuctionID string  `json:"auction_id"`
	BidderID  string  `json:"bidder_id"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
}

// NewAuctionResponse converts a domain auction to its wire shape
func NewAuctionResponse(a model.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:     a.AuctionID,
		CreatedBy:     a.CreatedBy,
		Title:         a.Title,
		Description:   a.Description,
		StartDate:     a.StartDate.Unix(),
		EndDate:       a.EndDate.Unix(),
		StartAmount:   a.StartAmount,
		CurrentAmount: a.CurrentAmount,
		Images:        a.Images,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// NewBidResponse converts a domain bid to its wire shape
func NewBidResponse(b model.Bid) BidResponse {
	return BidResponse{
		AuctionID: b.AuctionID,
		BidID:     b.BidID,
		BidderID:  b.BidderID,
		Amount:    b.Amount,
		PlacedAt:  b.PlacedAt.UTC().Format(time.RFC3339),
	}
}

// NewPaymentResponse converts a domain payment to its wire shape
func NewPaymentResponse(p model.Payment) PaymentResponse {
	return PaymentResponse{
		PaymentID: p.PaymentID,
		AuctionID: p.AuctionID,
		BidderID:  p.BidderID,
		Amount:    p.Amount,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
