package loadtest

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/Samuel-Jeong/RestApiSimulator/internal/httpexec"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/result"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/scenario"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/types"
)

const (
	// TickInterval is the scheduler granularity.
	TickInterval = 100 * time.Millisecond

	// AcquireGraceWindow bounds how long a dispatched request may wait for
	// a concurrency slot before it is dropped. The scheduler itself never
	// waits; the grace acquire runs off the tick loop.
	AcquireGraceWindow = 50 * time.Millisecond
)

// ProgressFunc receives a metrics snapshot roughly once per second.
type ProgressFunc func(result.LoadTestProgress)

// Engine schedules concurrent step executions against a rate curve and
// aggregates streaming metrics.
type Engine struct {
	executor *httpexec.Executor
	logger   zerolog.Logger
}

// NewEngine creates a load test engine on top of a step executor.
func NewEngine(executor *httpexec.Executor, logger zerolog.Logger) *Engine {
	return &Engine{executor: executor, logger: logger}
}

// Run drives requests at the configured rate for the configured duration.
//
// The run is divided into 100ms ticks. Each tick dispatches
// round(instantaneous_rate * tick) requests, carrying the fractional
// remainder forward so the long-run average hits the target exactly. During
// ramp-up the instantaneous rate follows the distribution shape; constant
// ignores ramp-up entirely.
//
// Dispatch stops once the duration elapses; in-flight requests are awaited
// before the result is assembled, so nothing is abandoned or double-counted.
func (e *Engine) Run(ctx context.Context, sc *types.Scenario, cfg *types.LoadTestConfig, progress ProgressFunc) (*result.LoadTestResult, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	agg := newAggregator(start)
	sem := semaphore.NewWeighted(int64(cfg.MaxConcurrent))

	res := &result.LoadTestResult{
		TestName:  sc.Name,
		StartTime: start,
		TargetTPS: cfg.TargetTPS,
	}

	e.logger.Info().Str("scenario", sc.Name).Int("target_tps", cfg.TargetTPS).
		Int("duration_s", cfg.DurationSeconds).Str("distribution", cfg.Distribution).
		Msg("load test started")

	dispatchCtx, stopDispatch := context.WithTimeout(ctx, cfg.Duration())
	defer stopDispatch()

	var wg sync.WaitGroup
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	progressEvery := time.NewTicker(time.Second)
	defer progressEvery.Stop()

	carry := 0.0
	tickSeconds := TickInterval.Seconds()

dispatch:
	for {
		select {
		case <-dispatchCtx.Done():
			break dispatch
		case <-progressEvery.C:
			if progress != nil {
				progress(agg.snapshot(time.Now()))
			}
		case now := <-ticker.C:
			elapsed := now.Sub(start).Seconds()
			if elapsed >= float64(cfg.DurationSeconds) {
				break dispatch
			}

			carry += currentRate(cfg, elapsed) * tickSeconds
			n := int(carry)
			carry -= float64(n)

			for i := 0; i < n; i++ {
				e.dispatch(ctx, sc, cfg, sem, agg, &wg)
			}
		}
	}

	// Let everything already dispatched drain before sealing the result.
	wg.Wait()

	end := time.Now()
	agg.finalize(res, end)

	e.logger.Info().Int("total", res.TotalRequests).Float64("avg_tps", res.ActualAvgTPS).
		Msg("load test finished")

	return res, nil
}

// currentRate computes the instantaneous target rate at elapsed seconds.
// linear ramps as x, exponential as x^2 (slower early, caught up by the end
// of ramp-up); constant stays flat regardless of ramp-up.
func currentRate(cfg *types.LoadTestConfig, elapsed float64) float64 {
	target := float64(cfg.TargetTPS)
	if cfg.Distribution == types.DistConstant || cfg.RampUpSeconds == 0 || elapsed >= float64(cfg.RampUpSeconds) {
		return target
	}
	x := elapsed / float64(cfg.RampUpSeconds)
	switch cfg.Distribution {
	case types.DistLinear:
		return target * x
	case types.DistExponential:
		return target * math.Pow(x, 2)
	default:
		return target
	}
}

// dispatch hands one request to the worker pool without ever blocking the
// tick loop. A request that cannot get a slot within the grace window is
// recorded as a concurrency-limit failure instead of stalling the scheduler.
func (e *Engine) dispatch(ctx context.Context, sc *types.Scenario, cfg *types.LoadTestConfig, sem *semaphore.Weighted, agg *aggregator, wg *sync.WaitGroup) {
	if sem.TryAcquire(1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			e.executeUnit(ctx, sc, cfg, agg)
		}()
		return
	}

	// No free slot: wait out the grace window off the scheduler goroutine.
	wg.Add(1)
	go func() {
		defer wg.Done()
		graceCtx, cancel := context.WithTimeout(ctx, AcquireGraceWindow)
		defer cancel()
		if err := sem.Acquire(graceCtx, 1); err != nil {
			agg.recordRejected(time.Now(), httpexec.ErrKindConcurrencyLimit)
			return
		}
		defer sem.Release(1)
		e.executeUnit(ctx, sc, cfg, agg)
	}()
}

// executeUnit runs one scheduled unit: the scenario's first step by default,
// or the whole chain in full-chain mode. Each unit owns a fresh variable
// copy seeded from the scenario; live variables are never shared across
// workers.
func (e *Engine) executeUnit(ctx context.Context, sc *types.Scenario, cfg *types.LoadTestConfig, agg *aggregator) {
	agg.addActive(1)
	defer agg.addActive(-1)

	if cfg.FullChain {
		engine := scenario.NewEngine(e.executor, e.logger)
		scRes := engine.Execute(ctx, sc, nil)
		for i := range scRes.Steps {
			step := &scRes.Steps[i]
			agg.record(sample{
				status:     step.Status,
				statusCode: step.StatusCode,
				durationMs: step.ResponseTimeMs,
				errorKind:  httpexec.ClassifyMessage(step.ErrorMessage),
			}, time.Now())
		}
		return
	}

	vars := sc.SeedVariables()
	stepRes := e.executor.ExecuteStep(ctx, &sc.Steps[0], vars)
	agg.record(sample{
		status:     stepRes.Status,
		statusCode: stepRes.StatusCode,
		durationMs: stepRes.ResponseTimeMs,
		errorKind:  httpexec.ClassifyMessage(stepRes.ErrorMessage),
	}, time.Now())
}
