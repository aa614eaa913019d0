package exchange

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

// ErrPhaseOrder is returned when the send and advance phases are driven out of order.
var ErrPhaseOrder = errors.New("exchange: phase called out of order")

// TickReport summarizes one completed tick. MaxChange is the largest absolute
// movement of any trust entry during the advance phase.
type TickReport struct {
	Tick      int     `json:"tick"`
	Messages  int     `json:"messages"`
	Updates   int     `json:"updates"`
	MaxChange float64 `json:"max_change"`
}

// Observer is notified after every completed tick.
type Observer interface {
	TickCompleted(ctx context.Context, report TickReport)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, report TickReport)

func (f ObserverFunc) TickCompleted(ctx context.Context, report TickReport) {
	f(ctx, report)
}

// Scheduler drives the discrete-time exchange. Every tick is a full send phase
// followed by a full advance phase; no node folds trust while messages are
// still being routed.
type Scheduler struct {
	net      *Network
	topo     Topology
	log      *Log
	ticks    int
	observer Observer
	logger   *slog.Logger

	tick    int
	sent    bool
	pending int
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

func WithObserver(o Observer) SchedulerOption {
	return func(s *Scheduler) { s.observer = o }
}

func WithLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithLog records into an existing log instead of a fresh one.
func WithLog(l *Log) SchedulerOption {
	return func(s *Scheduler) { s.log = l }
}

// NewScheduler validates the configuration. The network must already be wired.
func NewScheduler(net *Network, topo Topology, ticks int, opts ...SchedulerOption) (*Scheduler, error) {
	if net == nil {
		return nil, trust.Invalid("network", nil, "network is required")
	}
	if topo == nil {
		return nil, trust.Invalid("topology", nil, "topology is required")
	}
	if ticks < 0 {
		return nil, trust.Invalid("ticks", ticks, "must be non-negative")
	}
	if err := topo.Validate(net); err != nil {
		return nil, err
	}

	s := &Scheduler{net: net, topo: topo, ticks: ticks, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = NewLog()
	}
	return s, nil
}

// Run executes the remaining ticks. Cancellation is honored between ticks only.
func (s *Scheduler) Run(ctx context.Context) error {
	for s.tick < s.ticks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Step runs one full tick.
func (s *Scheduler) Step(ctx context.Context) (TickReport, error) {
	if err := s.SendPhase(); err != nil {
		return TickReport{}, err
	}
	return s.AdvancePhase(ctx)
}

// SendPhase routes every message for the current tick and fills inboxes.
func (s *Scheduler) SendPhase() error {
	if s.sent {
		return ErrPhaseOrder
	}
	before := s.log.Len()
	if err := s.topo.Exchange(s.tick, s.net, s.log); err != nil {
		return err
	}
	s.pending = s.log.Len() - before
	s.sent = true
	return nil
}

// AdvancePhase folds every node's inbox. Each node reads only its own
// pre-tick snapshot, so node order does not matter.
func (s *Scheduler) AdvancePhase(ctx context.Context) (TickReport, error) {
	if !s.sent {
		return TickReport{}, ErrPhaseOrder
	}
	updates, maxChange := 0, 0.0
	for _, nd := range s.net.Nodes() {
		before := nd.Trust()
		updates += nd.AdvanceTrust()
		for _, d := range trust.Delta(before, nd.Trust()) {
			maxChange = math.Max(maxChange, math.Abs(d))
		}
	}

	report := TickReport{Tick: s.tick, Messages: s.pending, Updates: updates, MaxChange: maxChange}
	s.logger.Debug("tick completed",
		"tick", report.Tick,
		"topology", s.topo.Name(),
		"messages", report.Messages,
		"updates", report.Updates,
		"max_change", report.MaxChange,
	)
	if s.observer != nil {
		s.observer.TickCompleted(ctx, report)
	}

	s.tick++
	s.sent = false
	s.pending = 0
	return report, nil
}

// Tick is the index of the next tick to run.
func (s *Scheduler) Tick() int {
	return s.tick
}

func (s *Scheduler) Ticks() int {
	return s.ticks
}

func (s *Scheduler) Log() *Log {
	return s.log
}

func (s *Scheduler) Network() *Network {
	return s.net
}

func (s *Scheduler) Topology() Topology {
	return s.topo
}

// FinalTrust returns every node's trust table.
func (s *Scheduler) FinalTrust() map[trust.NodeID]trust.Table {
	out := make(map[trust.NodeID]trust.Table, s.net.Len())
	for _, nd := range s.net.Nodes() {
		out[nd.ID()] = nd.Trust()
	}
	return out
}
