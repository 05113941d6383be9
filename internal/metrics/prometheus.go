package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"auction-engine/utils"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are logged but never propagated; a collector that
// fails to register still works, it just isn't scraped.
type PrometheusSink struct {
	bidsAcceptedTotal prometheus.Counter
	bidsRejectedTotal *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	triggersArmed     *prometheus.CounterVec
	triggersDisarmed  *prometheus.CounterVec
	triggersFired     *prometheus.CounterVec
	paymentsResolved  *prometheus.CounterVec
}

// NewPrometheusSink creates a Prometheus metrics sink registered on reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		bidsAcceptedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auction_bids_accepted_total",
			Help: "Total number of bids accepted.",
		}),
		bidsRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auction_bids_rejected_total",
			Help: "Total number of bids rejected, by reason.",
		}, []string{"reason"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auction_transitions_total",
			Help: "Total number of applied lifecycle transitions.",
		}, []string{"from", "to"}),
		triggersArmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auction_triggers_armed_total",
			Help: "Total number of armed trigger rules, by kind.",
		}, []string{"kind"}),
		triggersDisarmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auction_triggers_disarmed_total",
			Help: "Total number of disarmed trigger rules, by kind.",
		}, []string{"kind"}),
		triggersFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auction_triggers_fired_total",
			Help: "Total number of fired trigger rules, by kind.",
		}, []string{"kind"}),
		paymentsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auction_payments_resolved_total",
			Help: "Total number of payment status resolutions, by status.",
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{
		s.bidsAcceptedTotal, s.bidsRejectedTotal, s.transitionsTotal,
		s.triggersArmed, s.triggersDisarmed, s.triggersFired, s.paymentsResolved,
	} {
		if err := reg.Register(c); err != nil {
			utils.Warn("metrics collector registration failed", map[string]any{"error": err.Error()})
		}
	}
	return s
}

func (s *PrometheusSink) BidAccepted() {
	s.bidsAcceptedTotal.Inc()
}

func (s *PrometheusSink) BidRejected(reason string) {
	s.bidsRejectedTotal.WithLabelValues(reason).Inc()
}

func (s *PrometheusSink) TransitionApplied(from, to string) {
	s.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (s *PrometheusSink) TriggerArmed(kind string) {
	s.triggersArmed.WithLabelValues(kind).Inc()
}

func (s *PrometheusSink) TriggerDisarmed(kind string) {
	s.triggersDisarmed.WithLabelValues(kind).Inc()
}

func (s *PrometheusSink) TriggerFired(kind string) {
	s.triggersFired.WithLabelValues(kind).Inc()
}

func (s *PrometheusSink) PaymentResolved(status string) {
	s.paymentsResolved.WithLabelValues(status).Inc()
}
