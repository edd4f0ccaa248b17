// Package simulator runs scenarios to completion and records them.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mechevo/simulator/internal/config"
	"github.com/mechevo/simulator/internal/dispatcher"
	"github.com/mechevo/simulator/internal/eventlog"
	"github.com/mechevo/simulator/internal/logging"
	"github.com/mechevo/simulator/internal/registry"
	"github.com/mechevo/simulator/internal/scenario"
	"github.com/mechevo/simulator/internal/sim"
	"github.com/mechevo/simulator/internal/storage"
	"github.com/mechevo/simulator/internal/worker"
	"github.com/mechevo/simulator/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

// Termination reasons.
const (
	ReasonDecided  = "decided"
	ReasonMaxTicks = "maxTicks"
	ReasonCanceled = "canceled"
)

// ErrInvalidConfig is returned for run settings that cannot drive a run.
var ErrInvalidConfig = errors.New("invalid simulator config")

// Dependencies holds what the runner needs besides its config.
// Backend may be nil, in which case runs are not recorded.
type Dependencies struct {
	LogManager *logging.SlogManager
	Backend    storage.Backend
	Registry   *registry.Registry
	Status     *Status
	Meter      metric.Meter
}

// Result is everything known about a finished run.
type Result struct {
	Info    core.RunInfo
	Summary core.RunSummary
	Report  core.Report
}

// Runner advances worlds tick by tick until a run ends.
type Runner struct {
	cfg     config.SimConfig
	deps    Dependencies
	homing  sim.HomingPolicy
	metrics *metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewRunner validates cfg and creates a runner.
func NewRunner(cfg config.SimConfig, deps Dependencies) (*Runner, error) {
	if cfg.TickDuration <= 0 {
		return nil, fmt.Errorf("%w: tick duration must be positive, got %v", ErrInvalidConfig, cfg.TickDuration)
	}
	if cfg.MaxTicks < 0 {
		return nil, fmt.Errorf("%w: max ticks must not be negative, got %d", ErrInvalidConfig, cfg.MaxTicks)
	}
	homing, err := sim.ParseHomingPolicy(cfg.HomingLostTarget)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Registry == nil {
		deps.Registry = registry.New()
	}
	if deps.Status == nil {
		deps.Status = NewStatus()
	}

	m, err := newMetrics(deps.Meter)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:     cfg,
		deps:    deps,
		homing:  homing,
		metrics: m,
		logger:  deps.LogManager.Logger(),
		now:     time.Now,
	}, nil
}

// Status returns the tracker of runs in flight.
func (r *Runner) Status() *Status {
	return r.deps.Status
}

// Run simulates one scenario. The run stops at the tick limit, when at most one
// team is left (if configured), or when ctx is canceled between ticks. A canceled
// run still produces a result and is recorded.
func (r *Runner) Run(ctx context.Context, sc core.Scenario) (Result, error) {
	start := r.now()
	log := eventlog.New()

	world, err := scenario.Build(sc, r.deps.Registry, log, sim.WithHomingPolicy(r.homing))
	if err != nil {
		return Result{}, fmt.Errorf("building scenario %q: %w", sc.Name, err)
	}

	info := core.RunInfo{
		ID:           uuid.NewString(),
		ScenarioName: sc.Name,
		StartedAt:    start,
		TickDuration: r.cfg.TickDuration,
		Teams:        len(world.TeamsAlive()),
		Units:        len(world.Units()),
	}
	logger := r.logger.With("runId", info.ID, "scenario", info.ScenarioName)

	rec, err := r.startRecording(info, log, logger)
	if err != nil {
		return Result{}, err
	}

	r.deps.Status.begin(info.ID, info.ScenarioName)
	defer r.deps.Status.end(info.ID)

	logger.Info("Run started", "teams", info.Teams, "units", info.Units, "maxTicks", r.cfg.MaxTicks)

	reason := r.loop(ctx, world, info)

	report := log.Report(world.Elapsed())
	summary := core.RunSummary{
		RunID:       info.ID,
		Ticks:       world.Ticks(),
		TotalTime:   report.TotalTime,
		EventCount:  len(report.Events),
		Shots:       report.Count(core.TitleCreateProjectile),
		Hits:        report.Count(core.TitleModifyHp),
		WinningTeam: winningTeam(world),
		Reason:      reason,
		Survivors:   world.TeamsAlive(),
		WallTime:    r.now().Sub(start),
	}

	result := Result{Info: info, Summary: summary, Report: report}
	if err := rec.finish(summary, report); err != nil {
		return result, err
	}

	reasonAttr := metric.WithAttributes(attribute.String("reason", reason))
	r.metrics.runs.Add(context.Background(), 1, reasonAttr)
	r.metrics.events.Add(context.Background(), int64(summary.EventCount))
	r.metrics.duration.Record(context.Background(), float64(summary.WallTime.Microseconds())/1000, reasonAttr)

	logger.Info("Run finished",
		"reason", reason,
		"ticks", summary.Ticks,
		"totalTime", summary.TotalTime,
		"events", summary.EventCount,
		"shots", summary.Shots,
		"hits", summary.Hits,
		"winningTeam", summary.WinningTeam,
		"wallTime", summary.WallTime)
	return result, nil
}

func (r *Runner) loop(ctx context.Context, world *sim.World, info core.RunInfo) string {
	for {
		if ctx.Err() != nil {
			return ReasonCanceled
		}
		if r.cfg.StopWhenDecided && info.Teams > 1 && len(world.TeamsAlive()) <= 1 {
			return ReasonDecided
		}
		if r.cfg.MaxTicks > 0 && world.Ticks() >= r.cfg.MaxTicks {
			return ReasonMaxTicks
		}
		world.Advance(r.cfg.TickDuration)
		r.deps.Status.update(info.ID, world.Ticks(), world.Elapsed())
		r.metrics.ticks.Add(context.Background(), 1)
	}
}

// winningTeam returns the only team with live units, or -1.
func winningTeam(world *sim.World) int {
	alive := world.TeamsAlive()
	if len(alive) != 1 {
		return -1
	}
	for team := range alive {
		return team
	}
	return -1
}

// recording connects one run's event log to the storage backend.
type recording struct {
	backend storage.Backend
	disp    *dispatcher.Dispatcher
	workers *worker.Manager
	logger  *slog.Logger
}

// startRecording opens the run in the backend and replays the creation events
// raised while the world was built before subscribing to the rest.
func (r *Runner) startRecording(info core.RunInfo, log *eventlog.Log, logger *slog.Logger) (*recording, error) {
	rec := &recording{backend: r.deps.Backend, logger: logger}
	if rec.backend == nil {
		return rec, nil
	}

	if err := rec.backend.StartRun(info); err != nil {
		return nil, fmt.Errorf("starting run %s in storage: %w", info.ID, err)
	}

	disp, err := dispatcher.New(logging.NewRunLogger(r.deps.LogManager.Zerolog(), info.ID))
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	rec.disp = disp
	rec.workers = worker.NewManager(worker.Dependencies{LogManager: r.deps.LogManager}, rec.backend, info.ID)
	rec.workers.RegisterHandlers(disp)

	listener := disp.Listener()
	for _, e := range log.Events() {
		listener(e)
	}
	log.Subscribe(listener)
	return rec, nil
}

// finish drains queued events into the backend and closes the run.
func (rec *recording) finish(summary core.RunSummary, report core.Report) error {
	if rec.backend == nil {
		return nil
	}
	rec.disp.Close()
	if failed := rec.workers.Failed(); failed > 0 {
		rec.logger.Warn("Some events were not recorded", "failed", failed, "recorded", rec.workers.Recorded())
	}
	if err := rec.backend.EndRun(summary, report); err != nil {
		return fmt.Errorf("ending run %s in storage: %w", summary.RunID, err)
	}
	return nil
}

// RunBatch simulates scenarios concurrently with at most workers runs at once.
// Results are in scenario order. The first failing run cancels those not yet started.
func (r *Runner) RunBatch(ctx context.Context, scenarios []core.Scenario, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = 1
	}
	results := make([]Result, len(scenarios))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sc := range scenarios {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			res, err := r.Run(ctx, sc)
			if err != nil {
				return fmt.Errorf("scenario %d (%s): %w", i, sc.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
