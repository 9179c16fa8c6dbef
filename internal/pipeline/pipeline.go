// Package pipeline wires the engine to its inputs and outputs: the scheduled
// load-score-publish cycle and the collectors that produce its input tables.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/couchcryptid/destination-etl/internal/domain"
	"github.com/couchcryptid/destination-etl/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// ErrSecondarySinks wraps the aggregated failures of the optional sinks. The
// primary output was written and the run still counts as successful.
var ErrSecondarySinks = errors.New("secondary sinks failed")

// Source loads the engine inputs. A missing input is an error.
type Source interface {
	LoadCities(ctx context.Context) (domain.Cities, error)
	LoadForecasts(ctx context.Context) ([]domain.DailyForecast, error)
	LoadListings(ctx context.Context) ([]domain.HotelListing, error)
}

// Sink publishes the ranked master rows of one run.
type Sink interface {
	Name() string
	Publish(ctx context.Context, rows []domain.MasterRow, runID string, generatedAt time.Time) error
}

// Run is the outcome of one successful RunOnce.
type Run struct {
	ID     string
	Result domain.Result
}

// Pipeline orchestrates the load-score-publish cycle.
type Pipeline struct {
	source    Source
	params    domain.Params
	primary   Sink
	secondary []Sink
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	interval  time.Duration
	tracer    trace.Tracer

	ready  atomic.Bool
	mu     sync.RWMutex
	latest Run
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the real clock used for scheduling and durations.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithInterval sets the delay between scheduled runs in Run.
func WithInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.interval = d }
}

// WithSecondarySinks adds sinks whose failures are reported but not fatal.
func WithSecondarySinks(sinks ...Sink) Option {
	return func(p *Pipeline) { p.secondary = append(p.secondary, sinks...) }
}

// New creates a Pipeline writing to primary, whose failure fails the run.
func New(source Source, params domain.Params, primary Sink, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:   source,
		params:   params,
		primary:  primary,
		logger:   logger,
		metrics:  metrics,
		clock:    clockwork.NewRealClock(),
		interval: 6 * time.Hour,
		tracer:   observability.Tracer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a run has completed, or an error describing
// why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LatestResult returns the most recent successful run.
func (p *Pipeline) LatestResult() (string, domain.Result, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest.ID, p.latest.Result, p.ready.Load()
}

// RunOnce loads the inputs, builds the ranked master table, and publishes it.
// A primary sink failure is returned as is; secondary sink failures are
// returned together, wrapped in ErrSecondarySinks, after all sinks ran.
func (p *Pipeline) RunOnce(ctx context.Context) (Run, error) {
	start := p.clock.Now()
	runID := uuid.NewString()

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	run, err := p.runOnce(ctx, runID)
	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())

	switch {
	case err == nil:
		p.metrics.Runs.WithLabelValues("success").Inc()
	case errors.Is(err, ErrSecondarySinks):
		p.metrics.Runs.WithLabelValues("partial").Inc()
		span.RecordError(err)
	default:
		p.metrics.Runs.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Run{}, err
	}

	p.mu.Lock()
	p.latest = run
	p.mu.Unlock()
	p.ready.Store(true)
	p.metrics.LastSuccess.Set(float64(p.clock.Now().Unix()))

	p.logger.Info("pipeline run complete",
		"run_id", runID,
		"rows", len(run.Result.Rows),
		"cities", len(run.Result.Summaries),
		"duration", p.clock.Since(start),
	)
	return run, err
}

func (p *Pipeline) runOnce(ctx context.Context, runID string) (Run, error) {
	cities, forecasts, listings, err := p.load(ctx)
	if err != nil {
		return Run{}, err
	}

	engine, err := domain.NewEngine(cities, p.params)
	if err != nil {
		return Run{}, err
	}
	_, span := p.tracer.Start(ctx, "pipeline.build")
	result := engine.Build(forecasts, listings)
	span.SetAttributes(
		attribute.Int("rows", len(result.Rows)),
		attribute.Int("cities_scored", len(result.Summaries)),
	)
	span.End()

	p.recordResult(cities, result)
	run := Run{ID: runID, Result: result}

	if err := p.publish(ctx, p.primary, run); err != nil {
		return Run{}, fmt.Errorf("write master table: %w", err)
	}

	var errs *multierror.Error
	for _, sink := range p.secondary {
		if err := p.publish(ctx, sink, run); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return run, fmt.Errorf("%w: %w", ErrSecondarySinks, err)
	}
	return run, nil
}

func (p *Pipeline) load(ctx context.Context) (domain.Cities, []domain.DailyForecast, []domain.HotelListing, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.load")
	defer span.End()

	cities, err := p.source.LoadCities(ctx)
	if err != nil {
		return domain.Cities{}, nil, nil, fmt.Errorf("load cities: %w", err)
	}
	if cities.Len() != domain.CanonicalCityCount {
		p.logger.Warn("unexpected city count", "cities", cities.Len(), "expected", domain.CanonicalCityCount)
	}
	forecasts, err := p.source.LoadForecasts(ctx)
	if err != nil {
		return domain.Cities{}, nil, nil, fmt.Errorf("load forecasts: %w", err)
	}
	listings, err := p.source.LoadListings(ctx)
	if err != nil {
		return domain.Cities{}, nil, nil, fmt.Errorf("load listings: %w", err)
	}

	p.metrics.ForecastsRead.Add(float64(len(forecasts)))
	p.metrics.ListingsRead.Add(float64(len(listings)))
	return cities, forecasts, listings, nil
}

// recordResult updates metrics and logs the join diagnostics of a build.
func (p *Pipeline) recordResult(cities domain.Cities, result domain.Result) {
	unmatched := 0
	for _, r := range result.Rows {
		if r.Weather == nil {
			unmatched++
		}
	}
	p.metrics.MasterRowsProduced.Add(float64(len(result.Rows)))
	p.metrics.UnmatchedListings.Add(float64(unmatched))
	p.metrics.CitiesScored.Set(float64(len(result.Summaries)))

	for _, city := range result.UnknownCities {
		if hint, score, ok := domain.SuggestCity(city, cities); ok {
			p.logger.Warn("listing city not in canonical list", "city", city, "did_you_mean", hint, "similarity", score)
			continue
		}
		p.logger.Warn("listing city not in canonical list", "city", city)
	}
	if len(result.CitiesWithoutWeather) > 0 {
		p.logger.Warn("listings without planning-window weather",
			"cities", result.CitiesWithoutWeather,
			"rows", unmatched,
		)
	}
}

func (p *Pipeline) publish(ctx context.Context, sink Sink, run Run) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.publish", trace.WithAttributes(attribute.String("sink", sink.Name())))
	defer span.End()

	err := sink.Publish(ctx, run.Result.Rows, run.ID, run.Result.GeneratedAt)
	if err != nil {
		p.metrics.SinkWrites.WithLabelValues(sink.Name(), "error").Inc()
		p.logger.Error("sink publish failed", "sink", sink.Name(), "run_id", run.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	p.metrics.SinkWrites.WithLabelValues(sink.Name(), "success").Inc()
	p.logger.Debug("sink published", "sink", sink.Name(), "run_id", run.ID, "rows", len(run.Result.Rows))
	return nil
}

// Run executes RunOnce now and then every interval until the context is
// cancelled. A failed run is retried with exponential backoff.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.interval, "sinks", len(p.secondary)+1)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := initialBackoff

	for {
		wait := p.interval
		_, err := p.RunOnce(ctx)
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
		switch {
		case err == nil:
			backoff = initialBackoff
		case errors.Is(err, ErrSecondarySinks):
			p.logger.Warn("pipeline run completed with sink errors", "error", err)
			backoff = initialBackoff
		default:
			p.logger.Error("pipeline run failed", "error", err, "retry_in", backoff)
			wait = backoff
			backoff = nextBackoff(backoff)
		}

		if !p.sleep(ctx, wait) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	return sleepClock(ctx, p.clock, d)
}
