package auction

import (
	"context"
	"fmt"
	"time"

	"auction-engine/internal/auctionerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/scheduler"
)

// AuctionUpdate carries the administratively editable fields of an auction.
// Nil means unchanged. Bids, payments, created_by, current_amount and status
// are deliberately absent: an update can never overwrite the bid history or
// the owning user.
type AuctionUpdate struct {
	Title       *string
	Description *string
	Images      []string
	StartDate   *time.Time
	EndDate     *time.Time
}

// UpdateAuction applies an administrative edit to an auction's basic fields.
// Date changes on a SCHEDULED auction disarm and re-arm the pre-start rules
// with the new timestamps; terminal auctions reject any edit.
func (s *LifecycleService) UpdateAuction(ctx context.Context, auctionID string, update AuctionUpdate) (models.Auction, error) {
	a, err := s.getAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, err
	}
	if a.Status.Terminal() {
		return models.Auction{}, fmt.Errorf("service: %w - auction %s is %s", auctionerrors.ErrInvalidTransition, auctionID, a.Status)
	}

	if update.Title != nil {
		a.Title = *update.Title
	}
	if update.Description != nil {
		a.Description = *update.Description
	}
	if update.Images != nil {
		a.Images = update.Images
	}

	datesChanged := false
	if update.StartDate != nil && !update.StartDate.Equal(a.StartDate) {
		if a.Status != models.StatusScheduled {
			return models.Auction{}, fmt.Errorf("service: %w - cannot move start date of a %s auction", auctionerrors.ErrInvalidTransition, a.Status)
		}
		a.StartDate = update.StartDate.UTC()
		datesChanged = true
	}
	if update.EndDate != nil && !update.EndDate.Equal(a.EndDate) {
		a.EndDate = update.EndDate.UTC()
		datesChanged = true
	}

	if datesChanged {
		if !a.EndDate.After(a.StartDate) {
			return models.Auction{}, fmt.Errorf("service: %w - end date must be after start date", auctionerrors.ErrInvalidSchedule)
		}
		if a.Status == models.StatusScheduled {
			if err := s.validateSchedule(a.StartDate, a.EndDate, s.clock().UTC()); err != nil {
				return models.Auction{}, err
			}
		}
	}

	if err := s.store.PutAuction(ctx, a); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to update auction %s: %w", auctionID, err)
	}

	if datesChanged {
		if err := s.rearmAfterDateChange(ctx, a); err != nil {
			return models.Auction{}, err
		}
	}
	return a, nil
}

// rearmAfterDateChange replaces the rules affected by a timestamp move.
// Arm replaces an existing rule of the same key, so no explicit disarm is
// needed for rules that stay armed; the reminder is disarmed first because
// the new start date may leave no room for one.
func (s *LifecycleService) rearmAfterDateChange(ctx context.Context, a models.Auction) error {
	switch a.Status {
	case models.StatusScheduled:
		if err := s.disarm(ctx, a.AuctionID, scheduler.KindReminder); err != nil {
			return err
		}
		return s.armStartRules(ctx, a)
	case models.StatusOpen:
		return s.arm(ctx, a.AuctionID, scheduler.KindEnd, a.EndDate)
	default:
		return nil
	}
}

// GetAuction returns an auction by id
func (s *LifecycleService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	return s.getAuction(ctx, auctionID)
}

// ListBids returns the ordered bid history of an auction
func (s *LifecycleService) ListBids(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrAuctionNotFound)
	}
	bids, err := s.store.ListBids(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// WinningBid returns the current highest bid for an auction. The ledger is
// strictly increasing, so the last entry is the winner.
func (s *LifecycleService) WinningBid(ctx context.Context, auctionID string) (models.Bid, error) {
	bids, err := s.ListBids(ctx, auctionID)
	if err != nil {
		return models.Bid{}, err
	}
	if len(bids) == 0 {
		return models.Bid{}, fmt.Errorf("service: %w - auction %s", auctionerrors.ErrNoBids, auctionID)
	}
	return bids[len(bids)-1], nil
}

// GetPayment returns a payment by id
func (s *LifecycleService) GetPayment(ctx context.Context, paymentID string) (models.Payment, error) {
	if paymentID == "" {
		return models.Payment{}, fmt.Errorf("service: %w - empty payment ID", auctionerrors.ErrPaymentNotFound)
	}
	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return models.Payment{}, fmt.Errorf("service: failed to get payment %s: %w", paymentID, err)
	}
	return payment, nil
}

// GetPaymentByAuction returns the payment linked to a closed auction
func (s *LifecycleService) GetPaymentByAuction(ctx context.Context, auctionID string) (models.Payment, error) {
	if auctionID == "" {
		return models.Payment{}, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrAuctionNotFound)
	}
	payment, err := s.store.GetPaymentByAuction(ctx, auctionID)
	if err != nil {
		return models.Payment{}, fmt.Errorf("service: failed to get payment for auction %s: %w", auctionID, err)
	}
	return payment, nil
}
