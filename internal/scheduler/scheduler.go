package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-engine/utils"
)

// Kind identifies which lifecycle transition a rule fires.
type Kind string

const (
	KindReminder Kind = "reminder"
	KindStart    Kind = "start"
	KindEnd      Kind = "end"
)

// RuleKey identifies a scheduled rule. The derivation to a backend name is
// pure, so re-arming or disarming the same logical rule is idempotent across
// process restarts.
type RuleKey struct {
	AuctionID string
	Kind      Kind
}

// Name derives the stable backend rule name for this key.
func (k RuleKey) Name() string {
	return fmt.Sprintf("%s_auction_%s", k.Kind, k.AuctionID)
}

// Firing is the payload handed to the bound handler when a rule comes due.
type Firing struct {
	Key    RuleKey
	FireAt time.Time
}

// Handler consumes a fired rule. Delivery is at-least-once: a handler must
// tolerate being invoked for a rule whose transition already happened.
type Handler func(ctx context.Context, firing Firing) error

// Scheduler is the deferred-execution contract the lifecycle engine arms and
// disarms rules through.
type Scheduler interface {
	// Arm schedules the rule to fire at fireAt, replacing any existing rule
	// with the same key.
	Arm(ctx context.Context, key RuleKey, fireAt time.Time) error
	// Disarm removes the rule if present. Disarming an absent rule is not an
	// error: it may already have fired, or never have been armed.
	Disarm(ctx context.Context, key RuleKey) error
}

// MemoryScheduler is an in-process Scheduler driven by a tick loop. A rule is
// deleted before its handler runs, so it is consumed exactly once even when
// the resulting transition fails.
type MemoryScheduler struct {
	mu      sync.Mutex
	rules   map[string]rule
	handler Handler
	clock   func() time.Time
	tick    time.Duration
}

type rule struct {
	key    RuleKey
	fireAt time.Time
}

// NewMemoryScheduler creates a scheduler polling at the given tick interval
func NewMemoryScheduler(tick time.Duration) *MemoryScheduler {
	return &MemoryScheduler{
		rules: make(map[string]rule),
		clock: time.Now,
		tick:  tick,
	}
}

// Bind registers the handler invoked for fired rules. Must be called before Run.
func (s *MemoryScheduler) Bind(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Arm schedules or replaces a rule
func (s *MemoryScheduler) Arm(_ context.Context, key RuleKey, fireAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules[key.Name()] = rule{key: key, fireAt: fireAt.UTC()}
	return nil
}

// Disarm removes a rule if it exists
func (s *MemoryScheduler) Disarm(_ context.Context, key RuleKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rules, key.Name())
	return nil
}

// Run drives the tick loop until the context is canceled
func (s *MemoryScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	utils.Info("scheduler started", map[string]any{"tick": s.tick.String()})

	for {
		select {
		case <-ctx.Done():
			utils.Info("scheduler stopped", nil)
			return ctx.Err()
		case <-ticker.C:
			s.processTick(ctx)
		}
	}
}

// processTick fires every rule due at or before the current clock reading.
// Handler errors are logged and never stop the loop: a transition refused
// because the state already advanced is an expected outcome of at-least-once
// delivery.
func (s *MemoryScheduler) processTick(ctx context.Context) {
	now := s.clock().UTC()

	s.mu.Lock()
	var due []rule
	for name, r := range s.rules {
		if !r.fireAt.After(now) {
			due = append(due, r)
			delete(s.rules, name)
		}
	}
	s.mu.Unlock()

	// Stable dispatch order across rules due in the same tick.
	sort.Slice(due, func(i, j int) bool {
		if !due[i].fireAt.Equal(due[j].fireAt) {
			return due[i].fireAt.Before(due[j].fireAt)
		}
		return due[i].key.Name() < due[j].key.Name()
	})

	for _, r := range due {
		s.dispatch(ctx, r)
	}
}

func (s *MemoryScheduler) dispatch(ctx context.Context, r rule) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()

	if h == nil {
		utils.Warn("rule fired with no handler bound", map[string]any{"rule": r.key.Name()})
		return
	}

	if err := h(ctx, Firing{Key: r.key, FireAt: r.fireAt}); err != nil {
		utils.Error("fired rule handler failed", map[string]any{
			"rule":    r.key.Name(),
			"fire_at": r.fireAt.Format(time.RFC3339),
			"error":   err.Error(),
		})
	}
}
