package auctionerrors

import "errors"

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrNoBids          = errors.New("no bids found for auction")
)

// business logic errors
var (
	ErrInvalidSchedule   = errors.New("invalid auction schedule")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidBid        = errors.New("invalid bid")
	ErrBidTooLow         = errors.New("bid amount too low")
	ErrStaleBid          = errors.New("bid lost to a concurrent bid")
)
