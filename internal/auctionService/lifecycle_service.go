package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-engine/internal/auctionerrors"
	"auction-engine/internal/metrics"
	"auction-engine/internal/models"
	"auction-engine/internal/notifier"
	"auction-engine/internal/repository"
	"auction-engine/internal/scheduler"
	"auction-engine/utils"
)

// reminderLead is how long before the start date the reminder rule fires.
const reminderLead = 10 * time.Minute

// LifecycleService owns the auction state machine: which transitions are
// legal, what side effects they carry, and how scheduler-fired callbacks and
// concurrent callers are kept from double-applying them. All collaborators
// are injected; the service never inspects the environment.
type LifecycleService struct {
	store     repository.AuctionStore
	sched     scheduler.Scheduler
	notifier  notifier.Notifier
	directory notifier.Directory
	sink      metrics.Sink
	clock     func() time.Time
}

// NewLifecycleService creates a new LifecycleService instance
func NewLifecycleService(store repository.AuctionStore, sched scheduler.Scheduler, n notifier.Notifier, d notifier.Directory, sink metrics.Sink) *LifecycleService {
	if sink == nil {
		sink = metrics.NewNoop()
	}
	return &LifecycleService{
		store:     store,
		sched:     sched,
		notifier:  n,
		directory: d,
		sink:      sink,
		clock:     time.Now,
	}
}

// CreateAuctionParams carries the caller-supplied fields of a new auction.
type CreateAuctionParams struct {
	CreatedBy   string
	Title       string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	StartAmount float64
	Images      []string
}

// CreateAuction stores a new auction in SCHEDULED state and arms its
// reminder and start rules.
func (s *LifecycleService) CreateAuction(ctx context.Context, params CreateAuctionParams) (models.Auction, error) {
	if params.CreatedBy == "" || params.Title == "" {
		return models.Auction{}, fmt.Errorf("service: %w - missing created_by or title", auctionerrors.ErrInvalidSchedule)
	}
	if params.StartAmount < 0 {
		return models.Auction{}, fmt.Errorf("service: %w - negative start amount", auctionerrors.ErrInvalidSchedule)
	}

	now := s.clock().UTC()
	if err := s.validateSchedule(params.StartDate, params.EndDate, now); err != nil {
		return models.Auction{}, err
	}

	a := models.Auction{
		AuctionID:     utils.GenerateID(),
		CreatedBy:     params.CreatedBy,
		Title:         params.Title,
		Description:   params.Description,
		StartDate:     params.StartDate.UTC(),
		EndDate:       params.EndDate.UTC(),
		StartAmount:   params.StartAmount,
		CurrentAmount: params.StartAmount,
		Images:        params.Images,
		Status:        models.StatusScheduled,
		CreatedAt:     now,
	}

	if err := s.store.CreateAuction(ctx, a); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to create auction: %w", err)
	}

	if err := s.armStartRules(ctx, a); err != nil {
		return models.Auction{}, err
	}
	return a, nil
}

// ScheduleAuction re-validates a SCHEDULED auction's dates and (re)arms its
// reminder and start rules. Arms nothing when validation fails.
func (s *LifecycleService) ScheduleAuction(ctx context.Context, auctionID string) error {
	a, err := s.getAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if a.Status != models.StatusScheduled {
		return fmt.Errorf("service: %w - auction %s is %s, not %s", auctionerrors.ErrInvalidTransition, auctionID, a.Status, models.StatusScheduled)
	}
	if err := s.validateSchedule(a.StartDate, a.EndDate, s.clock().UTC()); err != nil {
		return err
	}
	return s.armStartRules(ctx, a)
}

// validateSchedule rejects start/end dates that are in the past or inverted
func (s *LifecycleService) validateSchedule(start, end, now time.Time) error {
	if !start.After(now) {
		return fmt.Errorf("service: %w - start date %s is not in the future", auctionerrors.ErrInvalidSchedule, start.UTC().Format(time.RFC3339))
	}
	if !end.After(now) {
		return fmt.Errorf("service: %w - end date %s is not in the future", auctionerrors.ErrInvalidSchedule, end.UTC().Format(time.RFC3339))
	}
	if !end.After(start) {
		return fmt.Errorf("service: %w - end date must be after start date", auctionerrors.ErrInvalidSchedule)
	}
	return nil
}

// armStartRules arms the pre-start reminder (when there is still time for
// one) and the start rule itself. Arming an existing rule replaces it.
func (s *LifecycleService) armStartRules(ctx context.Context, a models.Auction) error {
	remindAt := a.StartDate.Add(-reminderLead)
	if remindAt.After(s.clock().UTC()) {
		if err := s.arm(ctx, a.AuctionID, scheduler.KindReminder, remindAt); err != nil {
			return err
		}
	}
	return s.arm(ctx, a.AuctionID, scheduler.KindStart, a.StartDate)
}

func (s *LifecycleService) arm(ctx context.Context, auctionID string, kind scheduler.Kind, fireAt time.Time) error {
	key := scheduler.RuleKey{AuctionID: auctionID, Kind: kind}
	if err := s.sched.Arm(ctx, key, fireAt); err != nil {
		return fmt.Errorf("service: failed to arm %s rule for auction %s: %w", kind, auctionID, err)
	}
	s.sink.TriggerArmed(string(kind))
	return nil
}

func (s *LifecycleService) disarm(ctx context.Context, auctionID string, kind scheduler.Kind) error {
	key := scheduler.RuleKey{AuctionID: auctionID, Kind: kind}
	if err := s.sched.Disarm(ctx, key); err != nil {
		return fmt.Errorf("service: failed to disarm %s rule for auction %s: %w", kind, auctionID, err)
	}
	s.sink.TriggerDisarmed(string(kind))
	return nil
}

// FireReminder sends the about-to-start announcement. It never changes
// status: when the auction is no longer SCHEDULED (started early, voided),
// the reminder has been overtaken and this is a no-op.
func (s *LifecycleService) FireReminder(ctx context.Context, auctionID string) error {
	a, err := s.getAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if a.Status != models.StatusScheduled {
		utils.Info("reminder skipped, auction already advanced", map[string]any{
			"auction_id": auctionID,
			"status":     string(a.Status),
		})
		return nil
	}

	s.broadcast(ctx,
		fmt.Sprintf("Auction %s starts in 10 minutes", a.Title),
		fmt.Sprintf("Auction %s [%s] is about to open for bidding.", a.Title, a.AuctionID))
	return nil
}

// StartAuction transitions SCHEDULED -> OPEN, disarms the start rule (covers
// a manual start ahead of schedule) and arms the end rule at the end date.
func (s *LifecycleService) StartAuction(ctx context.Context, auctionID string) error {
	a, err := s.getAuction(ctx, auctionID)
	if err != nil {
		return err
	}

	if err := s.store.CASStatus(ctx, auctionID, models.StatusScheduled, models.StatusOpen); err != nil {
		return fmt.Errorf("service: failed to start auction %s: %w", auctionID, err)
	}
	s.sink.TransitionApplied(string(models.StatusScheduled), string(models.StatusOpen))

	if err := s.disarm(ctx, auctionID, scheduler.KindStart); err != nil {
		return err
	}
	if err := s.arm(ctx, auctionID, scheduler.KindEnd, a.EndDate); err != nil {
		return err
	}

	s.broadcast(ctx,
		fmt.Sprintf("Auction %s has started", a.Title),
		fmt.Sprintf("Auction %s [%s] is open for bidding until %s.", a.Title, a.AuctionID, a.EndDate.UTC().Format(time.RFC3339)))
	return nil
}

// PlaceBid validates and records a bid. The amount check and the write are a
// single conditional update against the store: a concurrent bid that commits
// first surfaces as ErrStaleBid and the caller retries with a fresh amount.
func (s *LifecycleService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64) (models.Bid, error) {
	if auctionID == "" || bidderID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - missing auctionID or bidderID", auctionerrors.ErrInvalidBid)
	}
	if amount <= 0 {
		return models.Bid{}, fmt.Errorf("service: %w - non-positive bid amount", auctionerrors.ErrInvalidBid)
	}

	a, err := s.getAuction(ctx, auctionID)
	if err != nil {
		return models.Bid{}, err
	}
	if a.Status != models.StatusOpen {
		s.sink.BidRejected(metrics.ReasonNotOpen)
		return models.Bid{}, fmt.Errorf("service: %w - auction %s is %s, bidding requires %s", auctionerrors.ErrInvalidTransition, auctionID, a.Status, models.StatusOpen)
	}
	if bidderID == a.CreatedBy {
		s.sink.BidRejected(metrics.ReasonSelfBid)
		return models.Bid{}, fmt.Errorf("service: %w - creator cannot bid on own auction", auctionerrors.ErrInvalidBid)
	}
	if amount <= a.CurrentAmount {
		s.sink.BidRejected(metrics.ReasonTooLow)
		return models.Bid{}, fmt.Errorf("service: %w - current amount is %.2f", auctionerrors.ErrBidTooLow, a.CurrentAmount)
	}

	bid, err := s.store.RecordBid(ctx, auctionID, bidderID, amount, a.CurrentAmount, s.clock().UTC())
	if err != nil {
		if errors.Is(err, auctionerrors.ErrStaleBid) {
			s.sink.BidRejected(metrics.ReasonStale)
		}
		return models.Bid{}, fmt.Errorf("service: failed to record bid for auction %s by bidder %s: %w", auctionID, bidderID, err)
	}

	s.sink.BidAccepted()
	return bid, nil
}

// EndAuction transitions OPEN -> CLOSED. With at least one bid it creates a
// PENDING payment for the final amount and the last bidder; with none it
// goes straight to CLOSED_UNPAID and no payment is created.
func (s *LifecycleService) EndAuction(ctx context.Context, auctionID string) error {
	a, err := s.getAuction(ctx, auctionID)
	if err != nil {
		return err
	}

	if err := s.store.CASStatus(ctx, auctionID, models.StatusOpen, models.StatusClosed); err != nil {
		return fmt.Errorf("service: failed to end auction %s: %w", auctionID, err)
	}
	s.sink.TransitionApplied(string(models.StatusOpen), string(models.StatusClosed))

	if err := s.disarm(ctx, auctionID, scheduler.KindEnd); err != nil {
		return err
	}

	// Bids are frozen once the auction left OPEN, so this read is final.
	bids, err := s.store.ListBids(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("service: failed to list bids for auction %s: %w", auctionID, err)
	}

	if len(bids) == 0 {
		if err := s.store.CASStatus(ctx, auctionID, models.StatusClosed, models.StatusClosedUnpaid); err != nil {
			return fmt.Errorf("service: failed to close out auction %s without bids: %w", auctionID, err)
		}
		s.sink.TransitionApplied(string(models.StatusClosed), string(models.StatusClosedUnpaid))
	} else {
		winning := bids[len(bids)-1]
		payment := models.Payment{
			PaymentID: utils.GenerateID(),
			AuctionID: auctionID,
			BidderID:  winning.BidderID,
			Amount:    winning.Amount,
			Status:    models.PaymentPending,
			CreatedAt: s.clock().UTC(),
		}
		if err := s.store.CreatePayment(ctx, payment); err != nil {
			return fmt.Errorf("service: failed to create payment for auction %s: %w", auctionID, err)
		}
	}

	s.broadcast(ctx,
		fmt.Sprintf("Auction %s has ended", a.Title),
		fmt.Sprintf("Auction %s [%s] is closed with %d bid(s).", a.Title, a.AuctionID, len(bids)))
	return nil
}

// VoidAuction cancels an auction from SCHEDULED or OPEN and disarms every
// outstanding rule for it. No payment is ever created for a voided auction.
func (s *LifecycleService) VoidAuction(ctx context.Context, auctionID, reason string) error {
	a, err := s.getAuction(ctx, auctionID)
	if err != nil {
		return err
	}

	switch a.Status {
	case models.StatusScheduled, models.StatusOpen:
		// fall through to the conditional update below
	default:
		return fmt.Errorf("service: %w - auction %s is %s, void requires %s or %s", auctionerrors.ErrInvalidTransition, auctionID, a.Status, models.StatusScheduled, models.StatusOpen)
	}

	if err := s.store.CASStatus(ctx, auctionID, a.Status, models.StatusVoid); err != nil {
		return fmt.Errorf("service: failed to void auction %s: %w", auctionID, err)
	}
	s.sink.TransitionApplied(string(a.Status), string(models.StatusVoid))

	for _, kind := range []scheduler.Kind{scheduler.KindReminder, scheduler.KindStart, scheduler.KindEnd} {
		if err := s.disarm(ctx, auctionID, kind); err != nil {
			return err
		}
	}

	s.broadcast(ctx,
		fmt.Sprintf("Auction %s was canceled", a.Title),
		fmt.Sprintf("Auction %s [%s] was canceled: %s", a.Title, a.AuctionID, reason))
	return nil
}

// HandleTrigger routes a fired scheduler rule to the matching transition.
// An ErrInvalidTransition here means a human or a duplicate delivery got
// there first; with at-least-once firing that is an expected case, so it is
// logged and swallowed rather than propagated.
func (s *LifecycleService) HandleTrigger(ctx context.Context, firing scheduler.Firing) error {
	s.sink.TriggerFired(string(firing.Key.Kind))

	var err error
	switch firing.Key.Kind {
	case scheduler.KindReminder:
		err = s.FireReminder(ctx, firing.Key.AuctionID)
	case scheduler.KindStart:
		err = s.StartAuction(ctx, firing.Key.AuctionID)
	case scheduler.KindEnd:
		err = s.EndAuction(ctx, firing.Key.AuctionID)
	default:
		return fmt.Errorf("service: unknown trigger kind %q", firing.Key.Kind)
	}

	if errors.Is(err, auctionerrors.ErrInvalidTransition) {
		utils.Warn("fired rule overtaken by earlier transition", map[string]any{
			"rule":       firing.Key.Name(),
			"auction_id": firing.Key.AuctionID,
			"error":      err.Error(),
		})
		return nil
	}
	return err
}

// broadcast requests delivery to the announcement list. Failures resolving
// recipients are logged and the transition proceeds; delivery itself is
// fire-and-forget by contract.
func (s *LifecycleService) broadcast(ctx context.Context, subject, body string) {
	recipients, err := s.directory.BroadcastList(ctx)
	if err != nil {
		utils.Error("failed to resolve broadcast recipients", map[string]any{"error": err.Error()})
		recipients = nil
	}
	s.notifier.Notify(ctx, recipients, subject, body)
}

func (s *LifecycleService) getAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrAuctionNotFound)
	}
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return a, nil
}
