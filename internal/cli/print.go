// Package cli renders results and progress lines for terminal output.
package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/Samuel-Jeong/RestApiSimulator/internal/report"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/result"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

func statusLabel(s result.TestStatus) string {
	switch s {
	case result.StatusSuccess:
		return passStyle.Render("PASS")
	case result.StatusFailure:
		return failStyle.Render("FAIL")
	default:
		return errStyle.Render("ERROR")
	}
}

// PrintScenarioResult writes a full scenario report to w.
func PrintScenarioResult(w io.Writer, res *result.ScenarioResult) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Scenario:"), res.ScenarioName)

	for i := range res.Steps {
		step := &res.Steps[i]
		fmt.Fprintf(w, "  %s %-30s %s", statusLabel(step.Status), step.StepName,
			dimStyle.Render(fmt.Sprintf("%.1fms", step.ResponseTimeMs)))
		if step.StatusCode > 0 {
			fmt.Fprintf(w, " %s", dimStyle.Render(fmt.Sprintf("[%d]", step.StatusCode)))
		}
		if step.Attempts > 1 {
			fmt.Fprintf(w, " %s", dimStyle.Render(fmt.Sprintf("(%d attempts)", step.Attempts)))
		}
		fmt.Fprintln(w)

		for _, detail := range step.AssertionDetails {
			if !detail.Passed {
				fmt.Fprintf(w, "      %s %s\n", failStyle.Render("x"), detail.Message)
			}
		}
		if step.ErrorMessage != "" {
			fmt.Fprintf(w, "      %s %s\n", errStyle.Render("!"), step.ErrorMessage)
		}
	}

	fmt.Fprintf(w, "%s %s  steps: %d  ok: %d  failed: %d  errors: %d  %.2fs\n",
		titleStyle.Render("Result:"), statusLabel(res.Status),
		res.TotalRequests, res.SuccessfulRequests, res.FailedRequests,
		res.ErrorRequests, res.DurationSeconds)
}

// PrintLoadTestResult writes a load test summary to w.
func PrintLoadTestResult(w io.Writer, res *result.LoadTestResult) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Load test:"), res.TestName)
	fmt.Fprintf(w, "  duration: %.1fs  target: %d tps  actual: %.1f tps\n",
		res.DurationSeconds, res.TargetTPS, res.ActualAvgTPS)
	fmt.Fprintf(w, "  requests: %d  %s %d  %s %d  %s %d  (%.1f%% success)\n",
		res.TotalRequests,
		passStyle.Render("ok:"), res.SuccessfulRequests,
		failStyle.Render("failed:"), res.FailedRequests,
		errStyle.Render("errors:"), res.ErrorRequests,
		res.SuccessRate)
	fmt.Fprintf(w, "  latency: avg %.1fms  min %.1fms  max %.1fms  p50 %.1fms  p95 %.1fms  p99 %.1fms\n",
		res.AvgResponseTimeMs, res.MinResponseTimeMs, res.MaxResponseTimeMs,
		res.P50ResponseTimeMs, res.P95ResponseTimeMs, res.P99ResponseTimeMs)

	if len(res.StatusCodes) > 0 {
		fmt.Fprintf(w, "  %s\n", sectionStyle.Render("status codes"))
		codes := make([]int, 0, len(res.StatusCodes))
		for code := range res.StatusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "    %d: %d\n", code, res.StatusCodes[code])
		}
	}

	if len(res.Errors) > 0 {
		fmt.Fprintf(w, "  %s\n", sectionStyle.Render("errors"))
		kinds := make([]string, 0, len(res.Errors))
		for kind := range res.Errors {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Fprintf(w, "    %s: %d\n", kind, res.Errors[kind])
		}
	}
}

// PrintScenarioHistory lists past scenario runs, newest first.
func PrintScenarioHistory(w io.Writer, runs []report.ScenarioRunSummary) {
	fmt.Fprintln(w, sectionStyle.Render("scenario runs"))
	if len(runs) == 0 {
		fmt.Fprintf(w, "  %s\n", dimStyle.Render("none"))
		return
	}
	for _, run := range runs {
		fmt.Fprintf(w, "  #%-4d %s %-24s %s  steps: %d  failed: %d  errors: %d  %.2fs\n",
			run.ID, statusLabel(result.TestStatus(run.Status)), run.ScenarioName,
			dimStyle.Render(run.StartedAt.Format("2006-01-02 15:04:05")),
			run.TotalRequests, run.FailedRequests, run.ErrorRequests,
			run.DurationSeconds)
	}
}

// PrintLoadTestHistory lists past load test runs, newest first.
func PrintLoadTestHistory(w io.Writer, runs []report.LoadTestRunSummary) {
	fmt.Fprintln(w, sectionStyle.Render("load test runs"))
	if len(runs) == 0 {
		fmt.Fprintf(w, "  %s\n", dimStyle.Render("none"))
		return
	}
	for _, run := range runs {
		fmt.Fprintf(w, "  #%-4d %-24s %s  target: %d tps  actual: %.1f tps  total: %d  failed: %d  errors: %d\n",
			run.ID, run.TestName,
			dimStyle.Render(run.StartedAt.Format("2006-01-02 15:04:05")),
			run.TargetTPS, run.ActualAvgTPS, run.TotalRequests,
			run.FailedRequests, run.ErrorRequests)
	}
}

// PrintScenarioProgress writes one progress line per completed step.
func PrintScenarioProgress(w io.Writer, p result.ScenarioProgress) {
	fmt.Fprintf(w, "%s\n", dimStyle.Render(fmt.Sprintf("[%d/%d] %s", p.StepIndex, p.TotalSteps, p.StepName)))
}

// PrintLoadTestProgress writes a once-per-second progress line.
func PrintLoadTestProgress(w io.Writer, p result.LoadTestProgress) {
	fmt.Fprintf(w, "%s\n", dimStyle.Render(fmt.Sprintf(
		"%.0fs  %.1f tps  total=%d ok=%d failed=%d errors=%d active=%d",
		p.ElapsedSeconds, p.CurrentTPS, p.TotalRequests, p.SuccessfulRequests,
		p.FailedRequests, p.ErrorRequests, p.ActiveRequests)))
}
