// Package placement turns a composition into particle positions.
//
// A [Task] runs once. It walks the composition rows (protein rows first, so
// that their exclusion spheres are known before anything else is placed),
// samples anchor points from the target bodies, grows every molecule
// instance and collects the particles in a chunked [buffer.Buffer].
//
//	task, err := placement.New(comp, comp.Catalog(),
//	    placement.WithProgress(func(p int) { fmt.Println(p, "%") }),
//	)
//	res, err := task.Run(ctx)
//
// A run is single-threaded and deterministic: the same composition and seed
// produce the same positions in the same order. Cancelling ctx, or calling
// [Task.Stop], ends the run at the next row, molecule instance or correction
// step.
package placement

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/molplace/pkg/buffer"
	"github.com/matzehuels/molplace/pkg/chain"
	"github.com/matzehuels/molplace/pkg/composition"
	"github.com/matzehuels/molplace/pkg/errors"
	"github.com/matzehuels/molplace/pkg/geom"
	"github.com/matzehuels/molplace/pkg/observability"
	"github.com/matzehuels/molplace/pkg/particle"
	"github.com/matzehuels/molplace/pkg/protein"
)

// DefaultGrowth is the chunk size of the position buffer.
const DefaultGrowth = 1 << 14

// =============================================================================
// State
// =============================================================================

// State is the lifecycle state of a Task.
type State int32

const (
	NotStarted State = iota
	Running
	Succeeded
	Cancelled
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Done reports whether s is a final state.
func (s State) Done() bool { return s >= Succeeded }

// =============================================================================
// Observers
// =============================================================================

// Observer receives run notifications. Calls happen on the goroutine
// executing Run and must not block.
type Observer interface {
	// OnProgress reports completion in percent. 100 is only sent on success.
	OnProgress(percent int)

	// OnError reports a failed run. It is not called on cancellation.
	OnError(err error)

	// OnCancelled reports a cancelled run.
	OnCancelled()
}

// RowObserver is optionally implemented by observers that want to hear about
// every finished composition row.
type RowObserver interface {
	OnRowComplete(molecule string, placed int)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Progress  func(int)
	Error     func(error)
	Cancelled func()
}

func (o ObserverFuncs) OnProgress(p int) {
	if o.Progress != nil {
		o.Progress(p)
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

func (o ObserverFuncs) OnCancelled() {
	if o.Cancelled != nil {
		o.Cancelled()
	}
}

// =============================================================================
// Options
// =============================================================================

// Option configures a Task.
type Option func(*Task)

// WithGrower replaces the chain growth routine.
func WithGrower(g chain.Grower) Option {
	return func(t *Task) { t.grower = g }
}

// WithProteinGenerator replaces the protein coordinate generator.
func WithProteinGenerator(g protein.Generator) Option {
	return func(t *Task) { t.proteins = g }
}

// WithProgress registers a progress callback.
func WithProgress(fn func(percent int)) Option {
	return WithObserver(ObserverFuncs{Progress: fn})
}

// WithObserver registers an observer. Observers are called in registration order.
func WithObserver(o Observer) Option {
	return func(t *Task) { t.observers = append(t.observers, o) }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *log.Logger) Option {
	return func(t *Task) { t.logger = l }
}

// WithMaxTrials overrides the composition's per-point sampling limit.
func WithMaxTrials(n int) Option {
	return func(t *Task) { t.maxTrials = n }
}

// WithMaxCorrectionTrials overrides the composition's correction limit.
func WithMaxCorrectionTrials(n int) Option {
	return func(t *Task) { t.maxCorrections = n }
}

// WithGrowth sets the chunk size of the position buffer.
func WithGrowth(n int) Option {
	return func(t *Task) { t.growth = n }
}

// WithSkipUnplaceable makes instances that cannot be seated count as skipped
// instead of failing the run.
func WithSkipUnplaceable(skip bool) Option {
	return func(t *Task) { t.skipUnplaceable = skip }
}

// WithPlacementContext runs against pc instead of a fresh context, so that
// exclusions recorded in pc beforehand are honored. pc is restored to its
// initial contents when the run ends.
func WithPlacementContext(pc *geom.PlacementContext) Option {
	return func(t *Task) { t.external = pc }
}

// =============================================================================
// Task
// =============================================================================

// Task is one placement run.
type Task struct {
	comp    *composition.Composition
	catalog particle.Catalog

	grower          chain.Grower
	proteins        protein.Generator
	observers       []Observer
	logger          *log.Logger
	maxTrials       int
	maxCorrections  int
	growth          int
	skipUnplaceable bool
	external        *geom.PlacementContext

	state   atomic.Int32
	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool

	// Working state, dropped by releaseMemory.
	buf      *buffer.Buffer
	pctx     *geom.PlacementContext
	order    []int
	placer   *chain.Placer
	progress int
	molecule int
	stats    Stats
}

// New creates a task for comp. The composition must have been validated.
func New(comp *composition.Composition, catalog particle.Catalog, opts ...Option) (*Task, error) {
	if comp == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "composition is required")
	}
	if catalog == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "particle catalog is required")
	}
	if err := comp.CheckQuantities(); err != nil {
		return nil, err
	}
	t := &Task{
		comp:           comp,
		catalog:        catalog,
		grower:         chain.WalkGrower{},
		proteins:       protein.ShellGenerator{},
		maxTrials:      comp.MaxTrials,
		maxCorrections: comp.MaxCorrectionTrials,
		growth:         DefaultGrowth,
		progress:       -1,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = log.New(io.Discard)
	}
	if t.growth < 1 {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "buffer growth must be at least 1, got %d", t.growth)
	}
	if t.maxTrials < 1 {
		t.maxTrials = composition.DefaultMaxTrials
	}
	if t.maxCorrections < 1 {
		t.maxCorrections = composition.DefaultMaxCorrectionTrials
	}
	return t, nil
}

// Place is a convenience wrapper creating and running a task.
func Place(ctx context.Context, comp *composition.Composition, catalog particle.Catalog, opts ...Option) (*Result, error) {
	t, err := New(comp, catalog, opts...)
	if err != nil {
		return nil, err
	}
	return t.Run(ctx)
}

// State returns the current state. It is safe to call from any goroutine.
func (t *Task) State() State { return State(t.state.Load()) }

// Stop requests cancellation. Calling Stop before Run makes Run return
// immediately as cancelled; calling it after the run ended does nothing.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.cancel != nil {
		t.cancel()
	}
}

// Run executes the placement. A task can only be run once.
//
// On cancellation the returned error has code CANCELLED and observers get
// OnCancelled. Every other failure notifies OnError.
func (t *Task) Run(ctx context.Context) (*Result, error) {
	if !t.state.CompareAndSwap(int32(NotStarted), int32(Running)) {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "task already %s", t.State())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	t.mu.Lock()
	t.cancel = cancel
	if t.stopped {
		cancel()
	}
	t.mu.Unlock()
	defer t.releaseMemory()

	start := time.Now()
	total := t.comp.TotalParticles()
	t.logger.Debug("placement started", "composition", t.comp.Name, "rows", len(t.comp.Rows), "particles", total, "seed", t.comp.Seed)
	observability.Placement().OnRunStart(ctx, t.comp.Name, total)
	t.emitProgress(0)

	res, err := t.run(ctx, total)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		res.Stats.Duration = elapsed
		t.state.Store(int32(Succeeded))
		t.emitProgress(100)
		t.logger.Debug("placement finished", "particles", len(res.Positions), "skipped", res.Stats.Skipped,
			"corrections", res.Stats.Corrections, "duration", elapsed.Round(time.Millisecond))
	case ctx.Err() != nil:
		err = errors.Wrap(errors.ErrCodeCancelled, context.Cause(ctx), "placement cancelled")
		t.state.Store(int32(Cancelled))
		t.logger.Warn("placement cancelled", "placed", t.stats.Placed)
		for _, o := range t.observers {
			o.OnCancelled()
		}
	default:
		t.state.Store(int32(Failed))
		t.logger.Error("placement failed", "err", err)
		for _, o := range t.observers {
			o.OnError(err)
		}
	}

	placed := 0
	if res != nil {
		placed = len(res.Positions)
	}
	observability.Placement().OnRunComplete(ctx, t.comp.Name, placed, elapsed, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// releaseMemory drops the working state of a run. The result, if any, is
// owned by the caller and not affected.
func (t *Task) releaseMemory() {
	t.buf = nil
	t.pctx = nil
	t.order = nil
	t.placer = nil
}

// emitProgress notifies observers when percent advanced.
func (t *Task) emitProgress(percent int) {
	if percent <= t.progress {
		return
	}
	t.progress = percent
	for _, o := range t.observers {
		o.OnProgress(percent)
	}
}

// advance records n processed particles and reports progress in 0..99.
func (t *Task) advance(total int) {
	if total <= 0 {
		return
	}
	done := t.stats.Placed + t.stats.Skipped
	t.emitProgress(min(99, 99*done/total))
}
