package models

import "time"

// AuctionStatus is the lifecycle state of an auction.
type AuctionStatus string

const (
	StatusScheduled    AuctionStatus = "SCHEDULED"
	StatusOpen         AuctionStatus = "OPEN"
	StatusClosed       AuctionStatus = "CLOSED"
	StatusClosedPaid   AuctionStatus = "CLOSED_PAID"
	StatusClosedUnpaid AuctionStatus = "CLOSED_UNPAID"
	StatusVoid         AuctionStatus = "VOID"
)

// Terminal reports whether no further lifecycle transition is defined from s.
func (s AuctionStatus) Terminal() bool {
	return s == StatusClosedPaid || s == StatusClosedUnpaid || s == StatusVoid
}

// PaymentStatus is the settlement state of a payment record.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Auction represents a lot up for auction
type Auction struct {
	AuctionID     string        `json:"auction_id"`
	CreatedBy     string        `json:"created_by"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	StartDate     time.Time     `json:"start_date"`
	EndDate       time.Time     `json:"end_date"`
	StartAmount   float64       `json:"start_amount"`
	CurrentAmount float64       `json:"current_amount"`
	Images        []string      `json:"images"`
	Status        AuctionStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Bid represents a user's bid on an auction. BidID is a per-auction
// sequence number, not a global identifier.
type Bid struct {
	AuctionID string    `json:"auction_id"`
	BidID     int       `json:"bid_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    float64   `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
}

// Payment records the financial settlement of a closed auction.
type Payment struct {
	PaymentID string        `json:"payment_id"`
	AuctionID string        `json:"auction_id"`
	BidderID  string        `json:"bidder_id"`
	Amount    float64       `json:"amount"`
	Status    PaymentStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}
