package result

import "time"

// TestStatus classifies a step, scenario or request outcome.
type TestStatus string

const (
	StatusSuccess TestStatus = "success"
	StatusFailure TestStatus = "failure"
	StatusError   TestStatus = "error"
	StatusSkipped TestStatus = "skipped"
)

// AssertionDetail records the outcome of one assertion evaluation.
type AssertionDetail struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Expected any    `json:"expected,omitempty"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message"`
}

// StepResult is the outcome of one step execution. It never carries an
// error out of the engine; transport failures land in ErrorMessage.
type StepResult struct {
	StepName           string            `json:"step_name"`
	Method             string            `json:"method"`
	URL                string            `json:"url"`
	Status             TestStatus        `json:"status"`
	StatusCode         int               `json:"status_code,omitempty"`
	ResponseTimeMs     float64           `json:"response_time_ms"`
	ResponseHeaders    map[string]string `json:"response_headers,omitempty"`
	ResponseBody       any               `json:"response_body,omitempty"`
	ErrorMessage       string            `json:"error_message,omitempty"`
	AssertionsPassed   int               `json:"assertions_passed"`
	AssertionsFailed   int               `json:"assertions_failed"`
	AssertionDetails   []AssertionDetail `json:"assertion_details,omitempty"`
	ExtractedVariables map[string]any    `json:"extracted_variables,omitempty"`
	Attempts           int               `json:"attempts"`
	Timestamp          time.Time         `json:"timestamp"`
}

// ScenarioResult is the artifact of one scenario run, handed to the
// reporting collaborator. Immutable once the run ends.
type ScenarioResult struct {
	ScenarioName       string         `json:"scenario_name"`
	Status             TestStatus     `json:"status"`
	StartTime          time.Time      `json:"start_time"`
	EndTime            time.Time      `json:"end_time"`
	DurationSeconds    float64        `json:"duration_seconds"`
	Steps              []StepResult   `json:"steps"`
	Variables          map[string]any `json:"variables,omitempty"`
	TotalRequests      int            `json:"total_requests"`
	SuccessfulRequests int            `json:"successful_requests"`
	FailedRequests     int            `json:"failed_requests"`
	ErrorRequests      int            `json:"error_requests"`
}

// TimelineBucket is the sealed metrics snapshot for one elapsed second of a
// load test. Requests are credited to the second in which they completed.
type TimelineBucket struct {
	Second            int     `json:"second"`
	Requests          int     `json:"requests"`
	Successes         int     `json:"successes"`
	Failures          int     `json:"failures"`
	Errors            int     `json:"errors"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

// LoadTestResult aggregates a complete load test run.
type LoadTestResult struct {
	TestName           string           `json:"test_name"`
	StartTime          time.Time        `json:"start_time"`
	EndTime            time.Time        `json:"end_time"`
	DurationSeconds    float64          `json:"duration_seconds"`
	TargetTPS          int              `json:"target_tps"`
	ActualAvgTPS       float64          `json:"actual_avg_tps"`
	TotalRequests      int              `json:"total_requests"`
	SuccessfulRequests int              `json:"successful_requests"`
	FailedRequests     int              `json:"failed_requests"`
	ErrorRequests      int              `json:"error_requests"`
	SuccessRate        float64          `json:"success_rate"`
	AvgResponseTimeMs  float64          `json:"avg_response_time_ms"`
	MinResponseTimeMs  float64          `json:"min_response_time_ms"`
	MaxResponseTimeMs  float64          `json:"max_response_time_ms"`
	P50ResponseTimeMs  float64          `json:"p50_response_time_ms"`
	P95ResponseTimeMs  float64          `json:"p95_response_time_ms"`
	P99ResponseTimeMs  float64          `json:"p99_response_time_ms"`
	Timeline           []TimelineBucket `json:"timeline"`
	StatusCodes        map[int]int      `json:"status_code_distribution"`
	Errors             map[string]int   `json:"error_distribution"`
}

// ScenarioProgress is the per-step notification sent to a scenario
// progress callback.
type ScenarioProgress struct {
	StepName   string
	StepIndex  int
	TotalSteps int
}

// LoadTestProgress is the periodic snapshot sent to a load test progress
// callback. Purely observational.
type LoadTestProgress struct {
	ElapsedSeconds     float64
	CurrentTPS         float64
	TotalRequests      int
	SuccessfulRequests int
	FailedRequests     int
	ErrorRequests      int
	ActiveRequests     int
}
