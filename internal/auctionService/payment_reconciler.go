package auction

import (
	"context"
	"fmt"

	"auction-engine/internal/auctionerrors"
	"auction-engine/internal/models"
)

// ReportPayment applies a payment-gateway outcome to a payment record and,
// for terminal outcomes on a PENDING payment, closes out the linked
// auction's financial state:
//
//	PENDING   -> CONFIRMED  auction CLOSED -> CLOSED_PAID
//	PENDING   -> FAILED     auction CLOSED -> CLOSED_UNPAID
//	CONFIRMED -> REFUNDED   payment only, a financial reversal after the fact
//
// Every other combination is an invalid transition. The engine records the
// outcome; it never talks to a gateway itself.
func (s *LifecycleService) ReportPayment(ctx context.Context, paymentID string, status models.PaymentStatus) (models.Payment, error) {
	if paymentID == "" {
		return models.Payment{}, fmt.Errorf("service: %w - empty payment ID", auctionerrors.ErrPaymentNotFound)
	}

	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return models.Payment{}, fmt.Errorf("service: failed to get payment %s: %w", paymentID, err)
	}

	switch status {
	case models.PaymentConfirmed:
		err = s.resolvePayment(ctx, payment, models.PaymentConfirmed, models.StatusClosedPaid)
	case models.PaymentFailed:
		err = s.resolvePayment(ctx, payment, models.PaymentFailed, models.StatusClosedUnpaid)
	case models.PaymentRefunded:
		// Refunds never reopen the auction for bidding.
		if err := s.store.CASPaymentStatus(ctx, paymentID, models.PaymentConfirmed, models.PaymentRefunded); err != nil {
			return models.Payment{}, fmt.Errorf("service: failed to refund payment %s: %w", paymentID, err)
		}
	default:
		return models.Payment{}, fmt.Errorf("service: %w - %q is not a reportable payment status", auctionerrors.ErrInvalidTransition, status)
	}
	if err != nil {
		return models.Payment{}, err
	}

	s.sink.PaymentResolved(string(status))
	payment.Status = status
	return payment, nil
}

// resolvePayment flips a PENDING payment to its terminal status and advances
// the linked auction out of CLOSED accordingly.
func (s *LifecycleService) resolvePayment(ctx context.Context, payment models.Payment, status models.PaymentStatus, auctionStatus models.AuctionStatus) error {
	if err := s.store.CASPaymentStatus(ctx, payment.PaymentID, models.PaymentPending, status); err != nil {
		return fmt.Errorf("service: failed to resolve payment %s: %w", payment.PaymentID, err)
	}
	if err := s.store.CASStatus(ctx, payment.AuctionID, models.StatusClosed, auctionStatus); err != nil {
		return fmt.Errorf("service: failed to close out auction %s after payment %s: %w", payment.AuctionID, payment.PaymentID, err)
	}
	s.sink.TransitionApplied(string(models.StatusClosed), string(auctionStatus))
	return nil
}
