package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"auction-engine/internal/auctionerrors"
	model "auction-engine/internal/models"
)

// casRetries bounds optimistic-transaction retries when an unrelated field of
// the same auction record was written between WATCH and EXEC.
const casRetries = 3

// RedisStore is a Redis-backed implementation of AuctionStore. Conditional
// updates use WATCH/MULTI optimistic transactions so that the compare and the
// write land atomically.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store backed by the given Redis client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func auctionKey(auctionID string) string    { return "auction:" + auctionID }
func bidsKey(auctionID string) string       { return "auction:" + auctionID + ":bids" }
func paymentKey(paymentID string) string    { return "payment:" + paymentID }
func auctionPayKey(auctionID string) string { return "auction:" + auctionID + ":payment" }

// CreateAuction stores a new auction record
func (s *RedisStore) CreateAuction(ctx context.Context, auction model.Auction) error {
	raw, err := json.Marshal(auction)
	if err != nil {
		return fmt.Errorf("create auction %s: marshal: %w", auction.AuctionID, err)
	}
	ok, err := s.client.SetNX(ctx, auctionKey(auction.AuctionID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("create auction %s: %w", auction.AuctionID, err)
	}
	if !ok {
		return fmt.Errorf("create auction %s: already exists", auction.AuctionID)
	}
	return nil
}

// GetAuction returns an auction by id
func (s *RedisStore) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	raw, err := s.client.Get(ctx, auctionKey(auctionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}

	var auction model.Auction
	if err := json.Unmarshal(raw, &auction); err != nil {
		return model.Auction{}, fmt.Errorf("get auction %s: unmarshal: %w", auctionID, err)
	}
	return auction, nil
}

// PutAuction replaces an existing auction record
func (s *RedisStore) PutAuction(ctx context.Context, auction model.Auction) error {
	key := auctionKey(auction.AuctionID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("put auction %s: %w", auction.AuctionID, err)
	}
	if exists == 0 {
		return fmt.Errorf("put auction %s: %w", auction.AuctionID, auctionerrors.ErrAuctionNotFound)
	}

	raw, err := json.Marshal(auction)
	if err != nil {
		return fmt.Errorf("put auction %s: marshal: %w", auction.AuctionID, err)
	}
	if err := s.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("put auction %s: %w", auction.AuctionID, err)
	}
	return nil
}

// CASStatus updates the auction status only if it still equals expected
func (s *RedisStore) CASStatus(ctx context.Context, auctionID string, expected, next model.AuctionStatus) error {
	key := auctionKey(auctionID)

	cas := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("cas status for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
		}
		if err != nil {
			return fmt.Errorf("cas status for auction %s: %w", auctionID, err)
		}

		var auction model.Auction
		if err := json.Unmarshal(raw, &auction); err != nil {
			return fmt.Errorf("cas status for auction %s: unmarshal: %w", auctionID, err)
		}
		if auction.Status != expected {
			return fmt.Errorf("cas status for auction %s: status is %s, expected %s: %w",
				auctionID, auction.Status, expected, auctionerrors.ErrInvalidTransition)
		}

		auction.Status = next
		updated, err := json.Marshal(auction)
		if err != nil {
			return fmt.Errorf("cas status for auction %s: marshal: %w", auctionID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	for i := 0; i < casRetries; i++ {
		err := s.client.Watch(ctx, cas, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("cas status for auction %s: %w", auctionID, auctionerrors.ErrInvalidTransition)
}

// RecordBid appends a bid and bumps the current amount as one atomic unit.
// A transaction abort means another bid committed first, which surfaces as
// ErrStaleBid rather than being retried here: the caller must re-read the
// current amount before trying again.
func (s *RedisStore) RecordBid(ctx context.Context, auctionID, bidderID string, amount, expectedCurrent float64, placedAt time.Time) (model.Bid, error) {
	aKey := auctionKey(auctionID)
	bKey := bidsKey(auctionID)

	var bid model.Bid
	cas := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, aKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("record bid for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
		}
		if err != nil {
			return fmt.Errorf("record bid for auction %s: %w", auctionID, err)
		}

		var auction model.Auction
		if err := json.Unmarshal(raw, &auction); err != nil {
			return fmt.Errorf("record bid for auction %s: unmarshal: %w", auctionID, err)
		}
		if auction.CurrentAmount != expectedCurrent {
			return fmt.Errorf("record bid for auction %s: current amount is %.2f, expected %.2f: %w",
				auctionID, auction.CurrentAmount, expectedCurrent, auctionerrors.ErrStaleBid)
		}

		seq, err := tx.LLen(ctx, bKey).Result()
		if err != nil {
			return fmt.Errorf("record bid for auction %s: %w", auctionID, err)
		}

		bid = model.Bid{
			AuctionID: auctionID,
			BidID:     int(seq) + 1,
			BidderID:  bidderID,
			Amount:    amount,
			PlacedAt:  placedAt,
		}
		bidRaw, err := json.Marshal(bid)
		if err != nil {
			return fmt.Errorf("record bid for auction %s: marshal: %w", auctionID, err)
		}

		auction.CurrentAmount = amount
		auctionRaw, err := json.Marshal(auction)
		if err != nil {
			return fmt.Errorf("record bid for auction %s: marshal: %w", auctionID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, aKey, auctionRaw, 0)
			pipe.RPush(ctx, bKey, bidRaw)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, cas, aKey, bKey)
	if errors.Is(err, redis.TxFailedErr) {
		return model.Bid{}, fmt.Errorf("record bid for auction %s: %w", auctionID, auctionerrors.ErrStaleBid)
	}
	if err != nil {
		return model.Bid{}, err
	}
	return bid, nil
}

// ListBids returns all bids for an auction in ascending sequence order
func (s *RedisStore) ListBids(ctx context.Context, auctionID string) ([]model.Bid, error) {
	exists, err := s.client.Exists(ctx, auctionKey(auctionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list bids for auction %s: %w", auctionID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("list bids for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}

	raws, err := s.client.LRange(ctx, bidsKey(auctionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list bids for auction %s: %w", auctionID, err)
	}

	bids := make([]model.Bid, 0, len(raws))
	for _, raw := range raws {
		var bid model.Bid
		if err := json.Unmarshal([]byte(raw), &bid); err != nil {
			return nil, fmt.Errorf("list bids for auction %s: unmarshal: %w", auctionID, err)
		}
		bids = append(bids, bid)
	}
	return bids, nil
}

// CreatePayment stores a new payment record linked to an auction
func (s *RedisStore) CreatePayment(ctx context.Context, payment model.Payment) error {
	raw, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("create payment %s: marshal: %w", payment.PaymentID, err)
	}

	ok, err := s.client.SetNX(ctx, paymentKey(payment.PaymentID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("create payment %s: %w", payment.PaymentID, err)
	}
	if !ok {
		return fmt.Errorf("create payment %s: already exists", payment.PaymentID)
	}

	if err := s.client.Set(ctx, auctionPayKey(payment.AuctionID), payment.PaymentID, 0).Err(); err != nil {
		return fmt.Errorf("create payment %s: link auction: %w", payment.PaymentID, err)
	}
	return nil
}

// GetPayment returns a payment by id
func (s *RedisStore) GetPayment(ctx context.Context, paymentID string) (model.Payment, error) {
	raw, err := s.client.Get(ctx, paymentKey(paymentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Payment{}, fmt.Errorf("get payment %s: %w", paymentID, auctionerrors.ErrPaymentNotFound)
	}
	if err != nil {
		return model.Payment{}, fmt.Errorf("get payment %s: %w", paymentID, err)
	}

	var payment model.Payment
	if err := json.Unmarshal(raw, &payment); err != nil {
		return model.Payment{}, fmt.Errorf("get payment %s: unmarshal: %w", paymentID, err)
	}
	return payment, nil
}

// GetPaymentByAuction returns the payment linked to an auction
func (s *RedisStore) GetPaymentByAuction(ctx context.Context, auctionID string) (model.Payment, error) {
	paymentID, err := s.client.Get(ctx, auctionPayKey(auctionID)).Result()
	if errors.Is(err, redis.Nil) {
		return model.Payment{}, fmt.Errorf("get payment for auction %s: %w", auctionID, auctionerrors.ErrPaymentNotFound)
	}
	if err != nil {
		return model.Payment{}, fmt.Errorf("get payment for auction %s: %w", auctionID, err)
	}
	return s.GetPayment(ctx, paymentID)
}

// CASPaymentStatus updates the payment status only if it still equals expected
func (s *RedisStore) CASPaymentStatus(ctx context.Context, paymentID string, expected, next model.PaymentStatus) error {
	key := paymentKey(paymentID)

	cas := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("cas status for payment %s: %w", paymentID, auctionerrors.ErrPaymentNotFound)
		}
		if err != nil {
			return fmt.Errorf("cas status for payment %s: %w", paymentID, err)
		}

		var payment model.Payment
		if err := json.Unmarshal(raw, &payment); err != nil {
			return fmt.Errorf("cas status for payment %s: unmarshal: %w", paymentID, err)
		}
		if payment.Status != expected {
			return fmt.Errorf("cas status for payment %s: status is %s, expected %s: %w",
				paymentID, payment.Status, expected, auctionerrors.ErrInvalidTransition)
		}

		payment.Status = next
		updated, err := json.Marshal(payment)
		if err != nil {
			return fmt.Errorf("cas status for payment %s: marshal: %w", paymentID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	for i := 0; i < casRetries; i++ {
		err := s.client.Watch(ctx, cas, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("cas status for payment %s: %w", paymentID, auctionerrors.ErrInvalidTransition)
}
