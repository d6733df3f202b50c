package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/molplace/pkg/cache"
	"github.com/matzehuels/molplace/pkg/composition"
	"github.com/matzehuels/molplace/pkg/errors"
	molio "github.com/matzehuels/molplace/pkg/io"
	"github.com/matzehuels/molplace/pkg/observability"
	"github.com/matzehuels/molplace/pkg/placement"
	"github.com/matzehuels/molplace/pkg/store"
)

// Runner encapsulates pipeline execution with caching and run records.
// Both CLI and API use it to avoid duplicating that logic.
//
// The Runner is stateless apart from its backends. Multiple goroutines can
// safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Store  store.Store // optional; nil disables run records
	Logger *log.Logger
}

// NewRunner creates a runner.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, runs store.Store, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Store:  runs,
		Logger: logger,
	}
}

// Execute runs the complete load → place → encode pipeline.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	job, err := r.Prepare(ctx, opts)
	if err != nil {
		return nil, err
	}
	return job.Run(ctx)
}

// Prepare loads and validates the composition and records a new run. The
// returned job has not started placing yet.
func (r *Runner) Prepare(ctx context.Context, opts Options) (*Job, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	start := time.Now()
	comp, file, err := load(opts)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	hash, err := cache.HashJSON(file)
	if err != nil {
		return nil, fmt.Errorf("hash composition: %w", err)
	}
	if opts.Seed != 0 {
		comp.Seed = opts.Seed
	}
	if opts.MaxTrials > 0 {
		comp.MaxTrials = opts.MaxTrials
	}
	if opts.MaxCorrectionTrials > 0 {
		comp.MaxCorrectionTrials = opts.MaxCorrectionTrials
	}

	opts.Logger.Info("loaded composition",
		"name", comp.Name,
		"rows", len(comp.Rows),
		"particles", comp.TotalParticles(),
		"seed", comp.Seed)

	job := &Job{
		runner:   r,
		opts:     opts,
		comp:     comp,
		hash:     hash,
		record:   store.NewRun(comp.Name, hash, comp.Seed),
		loadTime: time.Since(start),
	}
	job.save(ctx)
	return job, nil
}

func load(opts Options) (*composition.Composition, *composition.File, error) {
	if opts.Path != "" {
		return composition.Load(opts.Path)
	}
	if opts.Encoding == EncodingJSON {
		return composition.DecodeJSON(strings.NewReader(opts.Composition))
	}
	return composition.DecodeTOML(strings.NewReader(opts.Composition))
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	var errs []error
	if r.Cache != nil {
		errs = append(errs, r.Cache.Close())
	}
	if r.Store != nil {
		errs = append(errs, r.Store.Close())
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// =============================================================================
// Jobs
// =============================================================================

// Job is a prepared pipeline run.
type Job struct {
	runner   *Runner
	opts     Options
	comp     *composition.Composition
	hash     string
	loadTime time.Duration

	mu      sync.Mutex
	record  *store.Run
	cancel  context.CancelFunc
	stopped bool
}

// ID returns the run ID.
func (j *Job) ID() string { return j.record.ID }

// Composition returns the loaded composition.
func (j *Job) Composition() *composition.Composition { return j.comp }

// Record returns a snapshot of the run record.
func (j *Job) Record() store.Run {
	j.mu.Lock()
	defer j.mu.Unlock()
	return *j.record
}

// Stop cancels the job. It may be called before or during Run.
func (j *Job) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stopped = true
	if j.cancel != nil {
		j.cancel()
	}
}

// Run places the composition, using the cache when possible, and encodes
// the result. A panic during the run is recovered, recorded as a failed run
// and returned as INTERNAL_ERROR, so background jobs cannot crash a server.
func (j *Job) Run(ctx context.Context) (res *Result, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = errors.New(errors.ErrCodeInternal, "placement of %s panicked: %v", j.comp.Name, p)
			j.opts.Logger.Error("placement panicked", "id", j.ID(), "panic", p)
			j.finish(ctx, err)
		}
	}()
	j.mu.Lock()
	j.cancel = cancel
	if j.stopped {
		cancel()
	}
	j.mu.Unlock()

	r, opts := j.runner, j.opts
	key := r.Keyer.PlacementKey(j.hash, opts.PlacementKeyOpts(j.comp))
	j.update(func(run *store.Run) { run.CacheKey = key })

	res = &Result{
		Composition:     j.comp,
		CompositionHash: j.hash,
		Artifacts:       make(map[string][]byte),
		CacheInfo:       CacheInfo{Key: key},
	}
	res.Stats.LoadTime = j.loadTime

	placeStart := time.Now()
	placed, hit, err := j.place(ctx, key)
	res.Stats.PlaceTime = time.Since(placeStart)
	if err != nil {
		j.finish(ctx, err)
		res.Run = j.snapshot()
		return nil, err
	}
	res.Placement = placed
	res.CacheInfo.PlacementHit = hit

	opts.Logger.Info("placed particles",
		"particles", len(placed.Positions),
		"skipped", placed.Stats.Skipped,
		"cached", hit,
		"duration", res.Stats.PlaceTime.Round(time.Millisecond))

	encodeStart := time.Now()
	for _, format := range opts.Formats {
		var buf bytes.Buffer
		if err := molio.Write(placed, format, &buf); err != nil {
			err = fmt.Errorf("encode %s: %w", format, err)
			j.finish(ctx, err)
			return nil, err
		}
		res.Artifacts[format] = buf.Bytes()
	}
	res.Stats.EncodeTime = time.Since(encodeStart)

	j.update(func(run *store.Run) {
		run.Particles = len(placed.Positions)
		run.Skipped = placed.Stats.Skipped
		run.Corrections = placed.Stats.Corrections
		run.CacheHit = hit
		run.Progress = 100
	})
	j.finish(ctx, nil)
	res.Run = j.snapshot()
	return res, nil
}

// place returns the cached result for key or runs the placement task.
func (j *Job) place(ctx context.Context, key string) (*placement.Result, bool, error) {
	r, opts := j.runner, j.opts

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			if res, err := molio.ReadJSON(bytes.NewReader(data)); err == nil {
				observability.Cache().OnCacheHit(ctx, "placement")
				return res, true, nil
			}
			// Undecodable entries fall through to a fresh placement.
		} else if err != nil {
			opts.Logger.Warn("cache lookup failed", "err", err)
		}
		observability.Cache().OnCacheMiss(ctx, "placement")
	}

	popts := []placement.Option{
		placement.WithLogger(opts.Logger),
		placement.WithSkipUnplaceable(opts.SkipUnplaceable),
		placement.WithObserver(placement.ObserverFuncs{Progress: j.progress}),
	}
	if opts.Observer != nil {
		popts = append(popts, placement.WithObserver(opts.Observer))
	}
	res, err := placement.Place(ctx, j.comp, j.comp.Catalog(), popts...)
	if err != nil {
		return nil, false, err
	}

	r.storePlacement(ctx, key, res, opts.Logger)
	return res, false, nil
}

// storePlacement caches res under key. Failures only cost a future cache
// hit, so they are logged and never fail the run.
func (r *Runner) storePlacement(ctx context.Context, key string, res *placement.Result, logger *log.Logger) {
	var buf bytes.Buffer
	if err := molio.WriteJSON(res, &buf); err != nil {
		logger.Warn("cache encode failed", "key", key, "err", err)
		return
	}
	if err := r.Cache.Set(ctx, key, buf.Bytes(), cache.TTLPlacement); err != nil {
		logger.Warn("cache write failed", "key", key, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "placement", buf.Len())
}

// progress records placement progress on the run.
func (j *Job) progress(percent int) {
	j.update(func(run *store.Run) { run.Progress = percent })
	j.save(context.Background())
}

// finish stores the final state of the run.
func (j *Job) finish(ctx context.Context, err error) {
	status := store.StatusSucceeded
	switch {
	case err == nil:
	case errors.Is(err, errors.ErrCodeCancelled) || ctx.Err() != nil:
		status = store.StatusCancelled
	default:
		status = store.StatusFailed
	}
	j.update(func(run *store.Run) { run.Finish(status, err) })
	j.save(context.WithoutCancel(ctx))
}

func (j *Job) update(fn func(*store.Run)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(j.record)
}

func (j *Job) snapshot() *store.Run {
	run := j.Record()
	return &run
}

// save writes the run record; failures are logged, not returned.
func (j *Job) save(ctx context.Context) {
	if j.runner.Store == nil {
		return
	}
	run := j.snapshot()
	if err := j.runner.Store.Put(ctx, run); err != nil {
		j.opts.Logger.Warn("store run failed", "id", run.ID, "err", err)
	}
}
