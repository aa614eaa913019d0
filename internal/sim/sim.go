package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/fedtrust/internal/exchange"
	"github.com/MikeSquared-Agency/fedtrust/internal/feedback"
	"github.com/MikeSquared-Agency/fedtrust/internal/node"
	"github.com/MikeSquared-Agency/fedtrust/internal/noise"
	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

// setupStream is the PCG stream reserved for setup draws (adversary and noise
// assignment). Node streams are id+1, so they never collide with it.
const setupStream = 0

// Listener receives run lifecycle events. Any method may be a no-op.
type Listener interface {
	RunStarted(ctx context.Context, info RunInfo)
	TickCompleted(ctx context.Context, runID uuid.UUID, report exchange.TickReport)
	RunCompleted(ctx context.Context, result *Result)
}

// RunInfo identifies a run that is about to start.
type RunInfo struct {
	RunID     uuid.UUID `json:"run_id"`
	Settings  Settings  `json:"settings"`
	StartedAt time.Time `json:"started_at"`
}

// NodeSummary describes how a node was configured.
type NodeSummary struct {
	ID           trust.NodeID          `json:"id"`
	Adversarial  bool                  `json:"adversarial"`
	Distribution feedback.Distribution `json:"distribution,omitempty"`
	Noisy        bool                  `json:"noisy"`
	Alpha        float64               `json:"alpha"`
}

// Result is everything a finished run exposes to collaborators.
type Result struct {
	RunID      uuid.UUID                    `json:"run_id"`
	Settings   Settings                     `json:"settings"`
	Nodes      []NodeSummary                `json:"nodes"`
	FinalTrust map[trust.NodeID]trust.Table `json:"final_trust"`
	Log        *exchange.Log                `json:"-"`
	Ticks      int                          `json:"ticks"`
	StartedAt  time.Time                    `json:"started_at"`
	FinishedAt time.Time                    `json:"finished_at"`
}

// Simulation is a configured, not yet finished run.
type Simulation struct {
	ID        uuid.UUID
	Settings  Settings
	Scheduler *exchange.Scheduler
	Nodes     []NodeSummary

	listener Listener
	logger   *slog.Logger
}

// Option customizes Build.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	listener Listener
	policies map[trust.NodeID]feedback.Policy
	runID    uuid.UUID
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithListener(l Listener) Option {
	return func(o *options) { o.listener = l }
}

// WithPolicy replaces the feedback policy of one node. Adversarial marking
// still takes precedence.
func WithPolicy(id trust.NodeID, p feedback.Policy) Option {
	return func(o *options) {
		if o.policies == nil {
			o.policies = make(map[trust.NodeID]feedback.Policy)
		}
		o.policies[id] = p
	}
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id uuid.UUID) Option {
	return func(o *options) { o.runID = id }
}

// Build validates settings and constructs the nodes, the wiring and the
// scheduler. Every failure wraps trust.ErrConfiguration and happens before any tick.
func Build(s Settings, opts ...Option) (*Simulation, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if s.AdversarySelection == "" {
		s.AdversarySelection = SelectRandom
	}
	r, err := s.resolve()
	if err != nil {
		return nil, err
	}

	setup := rand.New(rand.NewPCG(s.Seed, setupStream))
	adversarial := pickAdversaries(setup, s.Nodes, r.adversaries, s.AdversarySelection)

	net, err := exchange.NewNetwork()
	if err != nil {
		return nil, err
	}
	summaries := make([]NodeSummary, 0, s.Nodes)
	for i := 0; i < s.Nodes; i++ {
		id := trust.NodeID(i)
		nodeOpts := []node.Option{
			node.WithAlpha(s.Alpha),
			node.WithSource(rand.NewPCG(s.Seed, uint64(i)+1)),
			node.WithParameterCount(s.ParameterCount),
		}
		if p, ok := o.policies[id]; ok {
			nodeOpts = append(nodeOpts, node.WithPolicy(p))
		}
		sum := NodeSummary{ID: id, Alpha: s.Alpha}
		if adversarial[i] {
			nodeOpts = append(nodeOpts, node.WithAdversary(r.distribution))
			sum.Adversarial = true
			sum.Distribution = r.distribution
		}
		if assignNoise(setup, s.Noise) {
			nodeOpts = append(nodeOpts, node.WithNoise(*s.Noise))
			sum.Noisy = true
		}

		nd, err := node.New(id, nodeOpts...)
		if err != nil {
			return nil, fmt.Errorf("build node %d: %w", i, err)
		}
		if err := net.Add(nd); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}

	if err := r.topology.Wire(net); err != nil {
		return nil, err
	}

	runID := o.runID
	if runID == uuid.Nil {
		runID = uuid.New()
	}
	sim := &Simulation{
		ID:       runID,
		Settings: s,
		Nodes:    summaries,
		listener: o.listener,
		logger:   o.logger.With("run_id", runID.String()),
	}

	schedOpts := []exchange.SchedulerOption{exchange.WithLogger(sim.logger)}
	if o.listener != nil {
		schedOpts = append(schedOpts, exchange.WithObserver(exchange.ObserverFunc(
			func(ctx context.Context, report exchange.TickReport) {
				o.listener.TickCompleted(ctx, runID, report)
			})))
	}
	sched, err := exchange.NewScheduler(net, r.topology, s.Ticks, schedOpts...)
	if err != nil {
		return nil, err
	}
	sim.Scheduler = sched
	return sim, nil
}

// Run executes every tick and collects the result.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	started := time.Now().UTC()
	s.logger.Info("simulation starting",
		"nodes", s.Settings.Nodes,
		"ticks", s.Settings.Ticks,
		"topology", s.Scheduler.Topology().Name(),
		"adversaries", countAdversaries(s.Nodes),
	)
	if s.listener != nil {
		s.listener.RunStarted(ctx, RunInfo{RunID: s.ID, Settings: s.Settings, StartedAt: started})
	}

	if err := s.Scheduler.Run(ctx); err != nil {
		return nil, fmt.Errorf("run simulation %s: %w", s.ID, err)
	}

	res := &Result{
		RunID:      s.ID,
		Settings:   s.Settings,
		Nodes:      append([]NodeSummary(nil), s.Nodes...),
		FinalTrust: s.Scheduler.FinalTrust(),
		Log:        s.Scheduler.Log(),
		Ticks:      s.Scheduler.Tick(),
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	s.logger.Info("simulation finished",
		"ticks", res.Ticks,
		"messages", res.Log.Len(),
		"duration", res.FinishedAt.Sub(res.StartedAt).String(),
	)
	if s.listener != nil {
		s.listener.RunCompleted(ctx, res)
	}
	return res, nil
}

// Run builds and runs a simulation in one call.
func Run(ctx context.Context, s Settings, opts ...Option) (*Result, error) {
	sim, err := Build(s, opts...)
	if err != nil {
		return nil, err
	}
	return sim.Run(ctx)
}

func pickAdversaries(r *rand.Rand, n, k int, selection string) []bool {
	marked := make([]bool, n)
	if k <= 0 {
		return marked
	}
	if selection == SelectFirst {
		for i := 0; i < k; i++ {
			marked[i] = true
		}
		return marked
	}
	for _, i := range r.Perm(n)[:k] {
		marked[i] = true
	}
	return marked
}

// assignNoise flips the per-node participation coin. The draw is taken even
// without a config so node assignment stays aligned across settings.
func assignNoise(r *rand.Rand, cfg *noise.Config) bool {
	coin := r.Float64()
	return cfg != nil && coin < cfg.Fraction
}

func countAdversaries(nodes []NodeSummary) int {
	n := 0
	for _, s := range nodes {
		if s.Adversarial {
			n++
		}
	}
	return n
}
