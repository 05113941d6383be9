package auction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"auction-engine/internal/auctionerrors"
	model "auction-engine/internal/models"
	"auction-engine/internal/notifier"
	"auction-engine/internal/repository"
	"auction-engine/internal/scheduler"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type serviceMocks struct {
	store     *repository.MockAuctionStore
	sched     *scheduler.MockScheduler
	notifier  *notifier.MockNotifier
	directory *notifier.MockDirectory
}

func newTestService(t *testing.T) (*LifecycleService, serviceMocks) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	m := serviceMocks{
		store:     repository.NewMockAuctionStore(ctrl),
		sched:     scheduler.NewMockScheduler(ctrl),
		notifier:  notifier.NewMockNotifier(ctrl),
		directory: notifier.NewMockDirectory(ctrl),
	}
	service := NewLifecycleService(m.store, m.sched, m.notifier, m.directory, nil)
	service.clock = func() time.Time { return testNow }
	return service, m
}

// expectBroadcast wires the recipient lookup and one notification request
func (m serviceMocks) expectBroadcast() {
	recipients := []string{"bidder@example.com", "watcher@example.com"}
	m.directory.EXPECT().BroadcastList(gomock.Any()).Return(recipients, nil)
	m.notifier.EXPECT().Notify(gomock.Any(), recipients, gomock.Any(), gomock.Any())
}

func openAuction(auctionID string, currentAmount float64) model.Auction {
	return model.Auction{
		AuctionID:     auctionID,
		CreatedBy:     "seller1",
		Title:         "Vintage clock",
		StartDate:     testNow.Add(-time.Hour),
		EndDate:       testNow.Add(time.Hour),
		StartAmount:   100,
		CurrentAmount: currentAmount,
		Status:        model.StatusOpen,
		CreatedAt:     testNow.Add(-2 * time.Hour),
	}
}

func scheduledAuction(auctionID string) model.Auction {
	a := openAuction(auctionID, 100)
	a.StartDate = testNow.Add(time.Hour)
	a.EndDate = testNow.Add(2 * time.Hour)
	a.Status = model.StatusScheduled
	return a
}

// Tests CreateAuction
func TestLifecycleService_CreateAuction(t *testing.T) {
	validParams := CreateAuctionParams{
		CreatedBy:   "seller1",
		Title:       "Vintage clock",
		Description: "Early 1900s",
		StartDate:   testNow.Add(time.Hour),
		EndDate:     testNow.Add(2 * time.Hour),
		StartAmount: 100,
	}

	tests := []struct {
		name          string
		params        CreateAuctionParams
		mockSetup     func(m serviceMocks)
		expectError   bool
		expectedError error
	}{
		{
			name:   "valid_auction_arms_reminder_and_start",
			params: validParams,
			mockSetup: func(m serviceMocks) {
				m.store.EXPECT().CreateAuction(gomock.Any(), gomock.Any()).Return(nil)
				m.sched.EXPECT().Arm(gomock.Any(),
					gomock.AssignableToTypeOf(scheduler.RuleKey{}),
					validParams.StartDate.Add(-10*time.Minute)).Return(nil)
				m.sched.EXPECT().Arm(gomock.Any(),
					gomock.AssignableToTypeOf(scheduler.RuleKey{}),
					validParams.StartDate).Return(nil)
			},
		},
		{
			name: "start_too_close_skips_reminder",
			params: func() CreateAuctionParams {
				p := validParams
				p.StartDate = testNow.Add(5 * time.Minute)
				return p
			}(),
			mockSetup: func(m serviceMocks) {
				m.store.EXPECT().CreateAuction(gomock.Any(), gomock.Any()).Return(nil)
				m.sched.EXPECT().Arm(gomock.Any(), gomock.Any(), testNow.Add(5*time.Minute)).Return(nil)
			},
		},
		{
			name: "start_date_in_past",
			params: func() CreateAuctionParams {
				p := validParams
				p.StartDate = testNow.Add(-time.Minute)
				return p
			}(),
			mockSetup:     func(serviceMocks) {},
			expectError:   true,
			expectedError: auctionerrors.ErrInvalidSchedule,
		},
		{
			name: "end_date_before_start_date",
			params: func() CreateAuctionParams {
				p := validParams
				p.EndDate = p.StartDate.Add(-time.Minute)
				return p
			}(),
			mockSetup:     func(serviceMocks) {},
			expectError:   true,
			expectedError: auctionerrors.ErrInvalidSchedule,
		},
		{
			name: "missing_creator",
			params: func() CreateAuctionParams {
				p := validParams
				p.CreatedBy = ""
				return p
			}(),
			mockSetup:     func(serviceMocks) {},
			expectError:   true,
			expectedError: auctionerrors.ErrInvalidSchedule,
		},
		{
			name: "negative_start_amount",
			params: func() CreateAuctionParams {
				p := validParams
				p.StartAmount = -1
				return p
			}(),
			mockSetup:     func(serviceMocks) {},
			expectError:   true,
			expectedError: auctionerrors.ErrInvalidSchedule,
		},
		{
			name:   "store_failure_propagates",
			params: validParams,
			mockSetup: func(m serviceMocks) {
				m.store.EXPECT().CreateAuction(gomock.Any(), gomock.Any()).Return(errors.New("store write failed"))
			},
			expectError:   true,
			expectedError: nil, // wrapped store error, no sentinel to match
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			service, m := newTestService(t)
			tc.mockSetup(m)

			a, err := service.CreateAuction(context.Background(), tc.params)

			if tc.expectError {
				require.Error(t, err)
				if tc.expectedError != nil {
					require.ErrorIs(t, err, tc.expectedError)
				}
				return
			}

			require.NoError(t, err)
			_, parseErr := uuid.Parse(a.AuctionID)
			require.NoError(t, parseErr, "AuctionID should be a valid UUID")
			require.Equal(t, model.StatusScheduled, a.Status)
			require.Equal(t, tc.params.StartAmount, a.CurrentAmount, "current amount starts at start amount")
			require.Equal(t, tc.params.CreatedBy, a.CreatedBy)
			require.Equal(t, testNow, a.CreatedAt)
		})
	}
}

// Tests StartAuction
func TestLifecycleService_StartAuction(t *testing.T) {
	t.Run("scheduled_auction_opens", func(t *testing.T) {
		service, m := newTestService(t)
		a := scheduledAuction("a1")

		m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(a, nil)
		m.store.EXPECT().CASStatus(gomock.Any(), "a1", model.StatusScheduled, model.StatusOpen).Return(nil)
		m.sched.EXPECT().Disarm(gomock.Any(), scheduler.RuleKey{AuctionID: "a1", Kind: scheduler.KindStart}).Return(nil)
		m.sched.EXPECT().Arm(gomock.Any(), scheduler.RuleKey{AuctionID: "a1", Kind: scheduler.KindEnd}, a.EndDate).Return(nil)
		m.expectBroadcast()

		require.NoError(t, service.StartAuction(context.Background(), "a1"))
	})

	t.Run("already_open_rejected", func(t *testing.T) {
		service, m := newTestService(t)

		m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(openAuction("a1", 100), nil)
		m.store.EXPECT().CASStatus(gomock.Any(), "a1", model.StatusScheduled, model.StatusOpen).
			Return(auctionerrors.ErrInvalidTransition)

		err := service.StartAuction(context.Background(), "a1")
		require.ErrorIs(t, err, auctionerrors.ErrInvalidTransition)
	})

	t.Run("auction_not_found", func(t *testing.T) {
		service, m := newTestService(t)

		m.store.EXPECT().GetAuction(gomock.Any(), "ghost").
			Return(model.Auction{}, auctionerrors.ErrAuctionNotFound)

		err := service.StartAuction(context.Background(), "ghost")
		require.ErrorIs(t, err, auctionerrors.ErrAuctionNotFound)
	})
}

// Tests PlaceBid
func TestLifecycleService_PlaceBid(t *testing.T) {
	tests := []struct {
		name          string
		auctionID     string
		bidderID      string
		amount        float64
		mockSetup     func(m serviceMocks)
		expectedError error
	}{
		{
			name:      "valid_bid",
			auctionID: "a1",
			bidderID:  "u1",
			amount:    150,
			mockSetup: func(m serviceMocks) {
				m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(openAuction("a1", 100), nil)
				m.store.EXPECT().RecordBid(gomock.Any(), "a1", "u1", 150.0, 100.0, testNow).
					Return(model.Bid{AuctionID: "a1", BidID: 1, BidderID: "u1", Amount: 150, PlacedAt: testNow}, nil)
			},
		},
		{
			name:          "empty_auctionID",
			auctionID:     "",
			bidderID:      "u1",
			amount:        150,
			mockSetup:     func(serviceMocks) {},
			expectedError: auctionerrors.ErrInvalidBid,
		},
		{
			name:          "empty_bidderID",
			auctionID:     "a1",
			bidderID:      "",
			amount:        150,
			mockSetup:     func(serviceMocks) {},
			expectedError: auctionerrors.ErrInvalidBid,
		},
		{
			name:          "non_positive_amount",
			auctionID:     "a1",
			bidderID:      "u1",
			amount:        0,
			mockSetup:     func(serviceMocks) {},
			expectedError: auctionerrors.ErrInvalidBid,
		},
		{
			name:      "auction_not_open",
			auctionID: "a1",
			bidderID:  "u1",
			amount:    150,
			mockSetup: func(m serviceMocks) {
				m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(scheduledAuction("a1"), nil)
			},
			expectedError: auctionerrors.ErrInvalidTransition,
		},
		{
			name:      "self_bid",
			auctionID: "a1",
			bidderID:  "seller1",
			amount:    150,
			mockSetup: func(m serviceMocks) {
				m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(openAuction("a1", 100), nil)
			},
			expectedError: auctionerrors.ErrInvalidBid,
		},
		{
			name:      "bid_below_current",
			auctionID: "a1",
			bidderID:  "u2",
			amount:    140,
			mockSetup: func(m serviceMocks) {
				m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(openAuction("a1", 150), nil)
			},
			expectedError: auctionerrors.ErrBidTooLow,
		},
		{
			name:      "bid_equal_to_current",
			auctionID: "a1",
			bidderID:  "u2",
			amount:    150,
			mockSetup: func(m serviceMocks) {
				m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(openAuction("a1", 150), nil)
			},
			expectedError: auctionerrors.ErrBidTooLow,
		},
		{
			name:      "lost_concurrent_race",
			auctionID: "a1",
			bidderID:  "u2",
			amount:    160,
			mockSetup: func(m serviceMocks) {
				m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(openAuction("a1", 150), nil)
				m.store.EXPECT().RecordBid(gomock.Any(), "a1", "u2", 160.0, 150.0, testNow).
					Return(model.Bid{}, auctionerrors.ErrStaleBid)
			},
			expectedError: auctionerrors.ErrStaleBid,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			service, m := newTestService(t)
			tc.mockSetup(m)

			bid, err := service.PlaceBid(context.Background(), tc.auctionID, tc.bidderID, tc.amount)

			if tc.expectedError != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tc.expectedError)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.auctionID, bid.AuctionID)
			require.Equal(t, tc.bidderID, bid.BidderID)
			require.Equal(t, tc.amount, bid.Amount)
			require.Equal(t, 1, bid.BidID)
		})
	}
}

// Tests EndAuction
func TestLifecycleService_EndAuction(t *testing.T) {
	t.Run("with_bids_creates_pending_payment", func(t *testing.T) {
		service, m := newTestService(t)
		bids := []model.Bid{
			{AuctionID: "a1", BidID: 1, BidderID: "u1", Amount: 150},
			{AuctionID: "a1", BidID: 2, BidderID: "u2", Amount: 200},
		}

		m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(openAuction("a1", 200), nil)
		m.store.EXPECT().CASStatus(gomock.Any(), "a1", model.StatusOpen, model.StatusClosed).Return(nil)
		m.sched.EXPECT().Disarm(gomock.Any(), scheduler.RuleKey{AuctionID: "a1", Kind: scheduler.KindEnd}).Return(nil)
		m.store.EXPECT().ListBids(gomock.Any(), "a1").Return(bids, nil)
		m.store.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p model.Payment) error {
				require.Equal(t, "a1", p.AuctionID)
				require.Equal(t, "u2", p.BidderID, "payment links to the last bidder")
				require.Equal(t, 200.0, p.Amount, "payment equals the final amount")
				require.Equal(t, model.PaymentPending, p.Status)
				_, parseErr := uuid.Parse(p.PaymentID)
				require.NoError(t, parseErr)
				return nil
			})
		m.expectBroadcast()

		require.NoError(t, service.EndAuction(context.Background(), "a1"))
	})

	t.Run("without_bids_closes_unpaid", func(t *testing.T) {
		service, m := newTestService(t)

		m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(openAuction("a1", 100), nil)
		m.store.EXPECT().CASStatus(gomock.Any(), "a1", model.StatusOpen, model.StatusClosed).Return(nil)
		m.sched.EXPECT().Disarm(gomock.Any(), scheduler.RuleKey{AuctionID: "a1", Kind: scheduler.KindEnd}).Return(nil)
		m.store.EXPECT().ListBids(gomock.Any(), "a1").Return([]model.Bid{}, nil)
		m.store.EXPECT().CASStatus(gomock.Any(), "a1", model.StatusClosed, model.StatusClosedUnpaid).Return(nil)
		m.expectBroadcast()

		require.NoError(t, service.EndAuction(context.Background(), "a1"))
	})

	t.Run("not_open_rejected", func(t *testing.T) {
		service, m := newTestService(t)

		m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(scheduledAuction("a1"), nil)
		m.store.EXPECT().CASStatus(gomock.Any(), "a1", model.StatusOpen, model.StatusClosed).
			Return(auctionerrors.ErrInvalidTransition)

		err := service.EndAuction(context.Background(), "a1")
		require.ErrorIs(t, err, auctionerrors.ErrInvalidTransition)
	})
}

// Tests VoidAuction
func TestLifecycleService_VoidAuction(t *testing.T) {
	expectDisarmAll := func(m serviceMocks, auctionID string) {
		for _, kind := range []scheduler.Kind{scheduler.KindReminder, scheduler.KindStart, scheduler.KindEnd} {
			m.sched.EXPECT().Disarm(gomock.Any(), scheduler.RuleKey{AuctionID: auctionID, Kind: kind}).Return(nil)
		}
	}

	t.Run("void_from_scheduled", func(t *testing.T) {
		service, m := newTestService(t)

		m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(scheduledAuction("a1"), nil)
		m.store.EXPECT().CASStatus(gomock.Any(), "a1", model.StatusScheduled, model.StatusVoid).Return(nil)
		expectDisarmAll(m, "a1")
		m.expectBroadcast()

		require.NoError(t, service.VoidAuction(context.Background(), "a1", "listing error"))
	})

	t.Run("void_from_open", func(t *testing.T) {
		service, m := newTestService(t)

		m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(openAuction("a1", 150), nil)
		m.store.EXPECT().CASStatus(gomock.Any(), "a1", model.StatusOpen, model.StatusVoid).Return(nil)
		expectDisarmAll(m, "a1")
		m.expectBroadcast()

		require.NoError(t, service.VoidAuction(context.Background(), "a1", "seller withdrew"))
	})

	t.Run("void_from_closed_rejected", func(t *testing.T) {
		service, m := newTestService(t)
		a := openAuction("a1", 200)
		a.Status = model.StatusClosed

		m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(a, nil)

		err := service.VoidAuction(context.Background(), "a1", "too late")
		require.ErrorIs(t, err, auctionerrors.ErrInvalidTransition)
	})
}

// Tests FireReminder
func TestLifecycleService_FireReminder(t *testing.T) {
	t.Run("scheduled_auction_notifies", func(t *testing.T) {
		service, m := newTestService(t)

		m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(scheduledAuction("a1"), nil)
		m.expectBroadcast()

		require.NoError(t, service.FireReminder(context.Background(), "a1"))
	})

	t.Run("overtaken_by_manual_start_is_noop", func(t *testing.T) {
		service, m := newTestService(t)

		m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(openAuction("a1", 100), nil)

		require.NoError(t, service.FireReminder(context.Background(), "a1"),
			"reminder after a manual start must be a silent no-op")
	})

	t.Run("voided_auction_is_noop", func(t *testing.T) {
		service, m := newTestService(t)
		a := scheduledAuction("a1")
		a.Status = model.StatusVoid

		m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(a, nil)

		require.NoError(t, service.FireReminder(context.Background(), "a1"))
	})
}

// Tests HandleTrigger
func TestLifecycleService_HandleTrigger(t *testing.T) {
	t.Run("start_rule_opens_auction", func(t *testing.T) {
		service, m := newTestService(t)
		a := scheduledAuction("a1")

		m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(a, nil)
		m.store.EXPECT().CASStatus(gomock.Any(), "a1", model.StatusScheduled, model.StatusOpen).Return(nil)
		m.sched.EXPECT().Disarm(gomock.Any(), scheduler.RuleKey{AuctionID: "a1", Kind: scheduler.KindStart}).Return(nil)
		m.sched.EXPECT().Arm(gomock.Any(), scheduler.RuleKey{AuctionID: "a1", Kind: scheduler.KindEnd}, a.EndDate).Return(nil)
		m.expectBroadcast()

		err := service.HandleTrigger(context.Background(), scheduler.Firing{
			Key: scheduler.RuleKey{AuctionID: "a1", Kind: scheduler.KindStart},
		})
		require.NoError(t, err)
	})

	t.Run("duplicate_fire_is_swallowed", func(t *testing.T) {
		service, m := newTestService(t)

		m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(openAuction("a1", 100), nil)
		m.store.EXPECT().CASStatus(gomock.Any(), "a1", model.StatusScheduled, model.StatusOpen).
			Return(auctionerrors.ErrInvalidTransition)

		err := service.HandleTrigger(context.Background(), scheduler.Firing{
			Key: scheduler.RuleKey{AuctionID: "a1", Kind: scheduler.KindStart},
		})
		require.NoError(t, err, "at-least-once delivery makes a lost race an expected case")
	})

	t.Run("end_rule_after_void_is_swallowed", func(t *testing.T) {
		service, m := newTestService(t)
		a := openAuction("a1", 150)
		a.Status = model.StatusVoid

		m.store.EXPECT().GetAuction(gomock.Any(), "a1").Return(a, nil)
		m.store.EXPECT().CASStatus(gomock.Any(), "a1", model.StatusOpen, model.StatusClosed).
			Return(auctionerrors.ErrInvalidTransition)

		err := service.HandleTrigger(context.Background(), scheduler.Firing{
			Key: scheduler.RuleKey{AuctionID: "a1", Kind: scheduler.KindEnd},
		})
		require.NoError(t, err)
	})

	t.Run("unknown_kind_rejected", func(t *testing.T) {
		service, _ := newTestService(t)

		err := service.HandleTrigger(context.Background(), scheduler.Firing{
			Key: scheduler.RuleKey{AuctionID: "a1", Kind: "sweep"},
		})
		require.Error(t, err)
	})

	t.Run("storage_failure_propagates", func(t *testing.T) {
		service, m := newTestService(t)

		m.store.EXPECT().GetAuction(gomock.Any(), "a1").
			Return(model.Auction{}, errors.New("store unavailable"))

		err := service.HandleTrigger(context.Background(), scheduler.Firing{
			Key: scheduler.RuleKey{AuctionID: "a1", Kind: scheduler.KindStart},
		})
		require.Error(t, err)
	})
}
