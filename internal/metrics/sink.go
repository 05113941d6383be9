package metrics

// Sink defines the interface for recording lifecycle metrics.
// All methods are fire-and-forget: implementations MUST NOT block or
// propagate errors.
type Sink interface {
	// Bid path
	BidAccepted()
	BidRejected(reason string)

	// State machine
	TransitionApplied(from, to string)

	// Trigger scheduler
	TriggerArmed(kind string)
	TriggerDisarmed(kind string)
	TriggerFired(kind string)

	// Payment reconciliation
	PaymentResolved(status string)
}

// Rejection reason constants for BidRejected.
const (
	ReasonNotOpen = "not_open"
	ReasonTooLow  = "too_low"
	ReasonSelfBid = "self_bid"
	ReasonStale   = "stale"
)

// Noop is a Sink that discards everything.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (Noop) BidAccepted()                  {}
func (Noop) BidRejected(string)            {}
func (Noop) TransitionApplied(_, _ string) {}
func (Noop) TriggerArmed(string)           {}
func (Noop) TriggerDisarmed(string)        {}
func (Noop) TriggerFired(string)           {}
func (Noop) PaymentResolved(string)        {}
