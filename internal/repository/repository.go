package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"auction-engine/internal/auctionerrors"
	model "auction-engine/internal/models"
)

// AuctionStore defines the persistence contract the lifecycle engine depends on.
// Conditional updates (CASStatus, CASPaymentStatus, RecordBid) only apply when
// the stored value still matches the expectation the caller read; they are the
// sole concurrency guard the engine relies on.
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction model.Auction) error
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	PutAuction(ctx context.Context, auction model.Auction) error
	CASStatus(ctx context.Context, auctionID string, expected, next model.AuctionStatus) error

	// RecordBid atomically checks that the auction's current amount still equals
	// expectedCurrent, assigns the next per-auction sequence number, appends the
	// bid and raises the current amount to amount. Returns ErrStaleBid when the
	// current amount moved underneath the caller.
	RecordBid(ctx context.Context, auctionID, bidderID string, amount, expectedCurrent float64, placedAt time.Time) (model.Bid, error)
	ListBids(ctx context.Context, auctionID string) ([]model.Bid, error)

	CreatePayment(ctx context.Context, payment model.Payment) error
	GetPayment(ctx context.Context, paymentID string) (model.Payment, error)
	GetPaymentByAuction(ctx context.Context, auctionID string) (model.Payment, error)
	CASPaymentStatus(ctx context.Context, paymentID string, expected, next model.PaymentStatus) error
}

// MemoryStore is a concurrency-safe in-memory implementation of AuctionStore
type MemoryStore struct {
	mu             sync.RWMutex
	auctions       map[string]model.Auction // key: auctionID
	bids           map[string][]model.Bid   // key: auctionID -> ordered by BidID
	payments       map[string]model.Payment // key: paymentID
	auctionPayment map[string]string        // key: auctionID -> paymentID
}

// NewMemoryStore creates a new in-memory store instance
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions:       make(map[string]model.Auction),
		bids:           make(map[string][]model.Bid),
		payments:       make(map[string]model.Payment),
		auctionPayment: make(map[string]string),
	}
}

// CreateAuction stores a new auction record
func (s *MemoryStore) CreateAuction(_ context.Context, auction model.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[auction.AuctionID]; ok {
		return fmt.Errorf("create auction %s: already exists", auction.AuctionID)
	}
	s.auctions[auction.AuctionID] = auction
	return nil
}

// GetAuction returns an auction by id
func (s *MemoryStore) GetAuction(_ context.Context, auctionID string) (model.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	return auction, nil
}

// PutAuction replaces an existing auction record
func (s *MemoryStore) PutAuction(_ context.Context, auction model.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[auction.AuctionID]; !ok {
		return fmt.Errorf("put auction %s: %w", auction.AuctionID, auctionerrors.ErrAuctionNotFound)
	}
	s.auctions[auction.AuctionID] = auction
	return nil
}

// CASStatus updates the auction status only if it still equals expected
func (s *MemoryStore) CASStatus(_ context.Context, auctionID string, expected, next model.AuctionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return fmt.Errorf("cas status for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if auction.Status != expected {
		return fmt.Errorf("cas status for auction %s: status is %s, expected %s: %w",
			auctionID, auction.Status, expected, auctionerrors.ErrInvalidTransition)
	}
	auction.Status = next
	s.auctions[auctionID] = auction
	return nil
}

// RecordBid appends a bid and bumps the current amount as one atomic unit
func (s *MemoryStore) RecordBid(_ context.Context, auctionID, bidderID string, amount, expectedCurrent float64, placedAt time.Time) (model.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return model.Bid{}, fmt.Errorf("record bid for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if auction.CurrentAmount != expectedCurrent {
		return model.Bid{}, fmt.Errorf("record bid for auction %s: current amount is %.2f, expected %.2f: %w",
			auctionID, auction.CurrentAmount, expectedCurrent, auctionerrors.ErrStaleBid)
	}

	bid := model.Bid{
		AuctionID: auctionID,
		BidID:     s.lastBidIDLocked(auctionID) + 1,
		BidderID:  bidderID,
		Amount:    amount,
		PlacedAt:  placedAt,
	}

	s.bids[auctionID] = append(s.bids[auctionID], bid)
	auction.CurrentAmount = amount
	s.auctions[auctionID] = auction

	return bid, nil
}

// lastBidIDLocked returns the highest sequence number assigned for an auction.
// Caller must hold the write lock.
func (s *MemoryStore) lastBidIDLocked(auctionID string) int {
	bids := s.bids[auctionID]
	if len(bids) == 0 {
		return 0
	}
	return bids[len(bids)-1].BidID
}

// ListBids returns all bids for an auction in ascending sequence order
func (s *MemoryStore) ListBids(_ context.Context, auctionID string) ([]model.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("list bids for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	return append([]model.Bid(nil), s.bids[auctionID]...), nil
}

// CreatePayment stores a new payment record linked to an auction
func (s *MemoryStore) CreatePayment(_ context.Context, payment model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[payment.PaymentID]; ok {
		return fmt.Errorf("create payment %s: already exists", payment.PaymentID)
	}
	s.payments[payment.PaymentID] = payment
	s.auctionPayment[payment.AuctionID] = payment.PaymentID
	return nil
}

// GetPayment returns a payment by id
func (s *MemoryStore) GetPayment(_ context.Context, paymentID string) (model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payment, ok := s.payments[paymentID]
	if !ok {
		return model.Payment{}, fmt.Errorf("get payment %s: %w", paymentID, auctionerrors.ErrPaymentNotFound)
	}
	return payment, nil
}

// GetPaymentByAuction returns the payment linked to an auction
func (s *MemoryStore) GetPaymentByAuction(_ context.Context, auctionID string) (model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paymentID, ok := s.auctionPayment[auctionID]
	if !ok {
		return model.Payment{}, fmt.Errorf("get payment for auction %s: %w", auctionID, auctionerrors.ErrPaymentNotFound)
	}
	return s.payments[paymentID], nil
}

// CASPaymentStatus updates the payment status only if it still equals expected
func (s *MemoryStore) CASPaymentStatus(_ context.Context, paymentID string, expected, next model.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[paymentID]
	if !ok {
		return fmt.Errorf("cas status for payment %s: %w", paymentID, auctionerrors.ErrPaymentNotFound)
	}
	if payment.Status != expected {
		return fmt.Errorf("cas status for payment %s: status is %s, expected %s: %w",
			paymentID, payment.Status, expected, auctionerrors.ErrInvalidTransition)
	}
	payment.Status = next
	s.payments[paymentID] = payment
	return nil
}
