// Package scenario sequences step executions for one scenario run.
//
// A scenario instance is single-threaded: steps run strictly in order
// because later steps may depend on variables extracted by earlier ones.
// Concurrency only exists across scenario runs, never inside one.
package scenario

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Samuel-Jeong/RestApiSimulator/internal/httpexec"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/result"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/types"
)

// ProgressFunc receives a notification after each completed step. Purely
// observational; it feeds no behavior back into the engine.
type ProgressFunc func(result.ScenarioProgress)

// Engine executes scenarios against one host.
type Engine struct {
	executor *httpexec.Executor
	logger   zerolog.Logger
}

// NewEngine creates a scenario engine on top of a step executor.
func NewEngine(executor *httpexec.Executor, logger zerolog.Logger) *Engine {
	return &Engine{executor: executor, logger: logger}
}

// Execute runs every step of the scenario in order and returns the full
// result. The scenario definition must have been validated; Execute itself
// never returns an error, all failures are captured in the result.
//
// A failing or erroring step halts the run unless it is marked
// skip_on_failure; halted steps are not attempted and do not appear in the
// result.
func (e *Engine) Execute(ctx context.Context, sc *types.Scenario, progress ProgressFunc) *result.ScenarioResult {
	start := time.Now()
	vars := sc.SeedVariables()

	res := &result.ScenarioResult{
		ScenarioName: sc.Name,
		Status:       result.StatusSuccess,
		StartTime:    start,
		Steps:        make([]result.StepResult, 0, len(sc.Steps)),
	}

	total := len(sc.Steps)
	for i := range sc.Steps {
		step := &sc.Steps[i]

		stepRes := e.executor.ExecuteStep(ctx, step, vars)
		res.Steps = append(res.Steps, *stepRes)

		if progress != nil {
			progress(result.ScenarioProgress{
				StepName:   step.Name,
				StepIndex:  i + 1,
				TotalSteps: total,
			})
		}

		if stepRes.Status == result.StatusSuccess {
			continue
		}
		if step.SkipOnFailure {
			e.logger.Debug().Str("scenario", sc.Name).Str("step", step.Name).
				Str("status", string(stepRes.Status)).Msg("step failed, continuing")
			continue
		}
		break
	}

	res.Status = classify(res.Steps)

	res.EndTime = time.Now()
	res.DurationSeconds = res.EndTime.Sub(start).Seconds()
	res.Variables = vars

	for i := range res.Steps {
		res.TotalRequests++
		switch res.Steps[i].Status {
		case result.StatusSuccess:
			res.SuccessfulRequests++
		case result.StatusFailure:
			res.FailedRequests++
		case result.StatusError:
			res.ErrorRequests++
		}
	}

	return res
}

// classify derives the scenario status from its recorded steps: any error
// outranks any failure, which outranks success.
func classify(steps []result.StepResult) result.TestStatus {
	status := result.StatusSuccess
	for i := range steps {
		switch steps[i].Status {
		case result.StatusError:
			return result.StatusError
		case result.StatusFailure:
			status = result.StatusFailure
		}
	}
	return status
}
