package hermes

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/fedtrust/internal/exchange"
	"github.com/MikeSquared-Agency/fedtrust/internal/sim"
	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

// Subjects used for run lifecycle events.
const (
	SubjectRunStarted   = "fedtrust.run.started"
	SubjectRunTick      = "fedtrust.run.tick"
	SubjectRunCompleted = "fedtrust.run.completed"
	SubjectRunRequest   = "fedtrust.run.request"
)

// RunStartedEvent is published before the first tick.
type RunStartedEvent struct {
	RunID     uuid.UUID    `json:"run_id"`
	Settings  sim.Settings `json:"settings"`
	StartedAt time.Time    `json:"started_at"`
}

// TickEvent is published after every tick.
type TickEvent struct {
	RunID     uuid.UUID `json:"run_id"`
	Tick      int       `json:"tick"`
	Messages  int       `json:"messages"`
	Updates   int       `json:"updates"`
	MaxChange float64   `json:"max_change"`
}

// RunCompletedEvent carries the final trust tables and the run summary.
type RunCompletedEvent struct {
	RunID      uuid.UUID                    `json:"run_id"`
	Ticks      int                          `json:"ticks"`
	FinalTrust map[trust.NodeID]trust.Table `json:"final_trust"`
	Summary    sim.Summary                  `json:"summary"`
	Duration   string                       `json:"duration"`
}

// RunRequest asks a serving instance to execute a run. Settings fields are
// overlaid on the instance's configured defaults; omitted fields keep them.
type RunRequest struct {
	Settings *sim.Settings `json:"settings,omitempty"`
}

// RunReply answers a RunRequest.
type RunReply struct {
	RunID uuid.UUID `json:"run_id,omitempty"`
	Error string    `json:"error,omitempty"`
}

// EventPublisher forwards simulation lifecycle callbacks as NATS events.
// Publish failures are logged and never stop a run.
type EventPublisher struct {
	pub    Publisher
	logger *slog.Logger
	ticks  bool
}

// NewEventPublisher returns a sim.Listener. When ticks is false, per-tick
// events are suppressed.
func NewEventPublisher(pub Publisher, logger *slog.Logger, ticks bool) *EventPublisher {
	return &EventPublisher{pub: pub, logger: logger, ticks: ticks}
}

var _ sim.Listener = (*EventPublisher)(nil)

func (p *EventPublisher) RunStarted(_ context.Context, info sim.RunInfo) {
	p.publish(SubjectRunStarted, RunStartedEvent{
		RunID:     info.RunID,
		Settings:  info.Settings,
		StartedAt: info.StartedAt,
	})
}

func (p *EventPublisher) TickCompleted(_ context.Context, runID uuid.UUID, report exchange.TickReport) {
	if !p.ticks {
		return
	}
	p.publish(SubjectRunTick, TickEvent{
		RunID:     runID,
		Tick:      report.Tick,
		Messages:  report.Messages,
		Updates:   report.Updates,
		MaxChange: report.MaxChange,
	})
}

func (p *EventPublisher) RunCompleted(_ context.Context, res *sim.Result) {
	p.publish(SubjectRunCompleted, RunCompletedEvent{
		RunID:      res.RunID,
		Ticks:      res.Ticks,
		FinalTrust: res.FinalTrust,
		Summary:    res.Summary(),
		Duration:   res.FinishedAt.Sub(res.StartedAt).String(),
	})
}

func (p *EventPublisher) publish(subject string, data any) {
	if err := p.pub.Publish(subject, data); err != nil {
		p.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
