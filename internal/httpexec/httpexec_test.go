package httpexec

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Samuel-Jeong/RestApiSimulator/internal/result"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/types"
)

// fakeClock records waits instead of sleeping.
type fakeClock struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	c.mu.Lock()
	c.slept = append(c.slept, d)
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) Now() time.Time {
	return time.Now()
}

func newTestExecutor(baseURL string, opts ...Option) *Executor {
	host := &types.HostConfig{BaseURL: baseURL, Timeout: 5}
	return NewExecutor(host, zerolog.Nop(), opts...)
}

func TestExecuteStep_SuccessWithAssertions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": 7, "name": "alice"})
	}))
	defer server.Close()

	executor := newTestExecutor(server.URL)
	step := &types.Step{
		Name:   "create",
		Method: "POST",
		Path:   "/users",
		Body:   map[string]any{"name": "alice"},
		Assertions: []types.Assertion{
			{Field: "status", Operator: "eq", Value: 201},
			{Field: "body.id", Operator: "exists"},
		},
		Extract: map[string]string{"user_id": "body.id"},
	}

	vars := map[string]any{}
	res := executor.ExecuteStep(context.Background(), step, vars)

	if res.Status != result.StatusSuccess {
		t.Fatalf("Expected success, got: %s (%s)", res.Status, res.ErrorMessage)
	}
	if res.StatusCode != 201 {
		t.Errorf("Expected status 201, got: %d", res.StatusCode)
	}
	if res.AssertionsPassed != 2 || res.AssertionsFailed != 0 {
		t.Errorf("Expected 2/0 assertions, got: %d/%d", res.AssertionsPassed, res.AssertionsFailed)
	}
	if vars["user_id"] != float64(7) {
		t.Errorf("Expected extracted user_id=7, got: %v", vars["user_id"])
	}
	if res.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", res.Attempts)
	}
}

func TestExecuteStep_HTTPErrorStatusIsNotTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	executor := newTestExecutor(server.URL)
	step := &types.Step{
		Name:   "check",
		Method: "GET",
		Path:   "/health",
		Assertions: []types.Assertion{
			{Field: "status", Operator: "eq", Value: 200},
		},
	}

	res := executor.ExecuteStep(context.Background(), step, map[string]any{})
	if res.Status != result.StatusFailure {
		t.Errorf("Expected assertion failure, got: %s", res.Status)
	}
	if res.ErrorMessage != "" {
		t.Errorf("Expected no transport error, got: %q", res.ErrorMessage)
	}
}

func TestExecuteStep_NoAssertionsMeansSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	executor := newTestExecutor(server.URL)
	step := &types.Step{Name: "any", Method: "GET", Path: "/"}

	res := executor.ExecuteStep(context.Background(), step, map[string]any{})
	if res.Status != result.StatusSuccess {
		t.Errorf("Expected success with no assertions, got: %s", res.Status)
	}
}

func TestExecuteStep_TemplateFailure(t *testing.T) {
	executor := newTestExecutor("http://localhost:1")
	step := &types.Step{Name: "bad", Method: "GET", Path: "/users/{{missing}}"}

	res := executor.ExecuteStep(context.Background(), step, map[string]any{})
	if res.Status != result.StatusError {
		t.Errorf("Expected error status, got: %s", res.Status)
	}
	if res.ErrorMessage == "" {
		t.Error("Expected error message naming the missing variable")
	}
}

func TestExecuteStep_RetryBudget(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		// Hijack and drop the connection to force a transport error.
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("server does not support hijacking")
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Errorf("hijack failed: %v", err)
			return
		}
		conn.Close()
	}))
	defer server.Close()

	clock := &fakeClock{}
	executor := newTestExecutor(server.URL, WithClock(clock))
	step := &types.Step{Name: "flaky", Method: "GET", Path: "/", Retry: 2}

	res := executor.ExecuteStep(context.Background(), step, map[string]any{})
	if res.Status != result.StatusError {
		t.Fatalf("Expected error status, got: %s", res.Status)
	}
	if res.Attempts != 3 {
		t.Errorf("Expected 3 attempts (1 + 2 retries), got: %d", res.Attempts)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected server hit 3 times, got: %d", got)
	}
	if res.ErrorMessage == "" {
		t.Error("Expected transport error message")
	}
}

func TestExecuteStep_DelaysUseClock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	clock := &fakeClock{}
	executor := newTestExecutor(server.URL, WithClock(clock))
	step := &types.Step{
		Name:        "slow",
		Method:      "GET",
		Path:        "/",
		DelayBefore: 1.5,
		DelayAfter:  0.5,
	}

	executor.ExecuteStep(context.Background(), step, map[string]any{})

	clock.mu.Lock()
	defer clock.mu.Unlock()
	if len(clock.slept) != 2 {
		t.Fatalf("Expected 2 waits, got: %d", len(clock.slept))
	}
	if clock.slept[0] != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s delay_before, got: %v", clock.slept[0])
	}
	if clock.slept[1] != 500*time.Millisecond {
		t.Errorf("Expected 0.5s delay_after, got: %v", clock.slept[1])
	}
}

func TestExecuteStep_QueryParamsAndHeaders(t *testing.T) {
	var gotQuery, gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("page")
		gotHeader = r.Header.Get("X-Request-Id")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor := newTestExecutor(server.URL)
	step := &types.Step{
		Name:        "list",
		Method:      "GET",
		Path:        "/items",
		Headers:     map[string]string{"X-Request-Id": "{{rid}}"},
		QueryParams: map[string]any{"page": "{{page}}"},
	}

	res := executor.ExecuteStep(context.Background(), step, map[string]any{"rid": "r-1", "page": 3})
	if res.Status != result.StatusSuccess {
		t.Fatalf("Expected success, got: %s (%s)", res.Status, res.ErrorMessage)
	}
	if gotQuery != "3" {
		t.Errorf("Expected page=3, got: %q", gotQuery)
	}
	if gotHeader != "r-1" {
		t.Errorf("Expected X-Request-Id=r-1, got: %q", gotHeader)
	}
}

func TestExecuteStep_VariableExtractionFailureIsWarning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 1}`))
	}))
	defer server.Close()

	executor := newTestExecutor(server.URL)
	step := &types.Step{
		Name:    "get",
		Method:  "GET",
		Path:    "/",
		Extract: map[string]string{"gone": "body.missing", "id": "body.id"},
	}

	vars := map[string]any{}
	res := executor.ExecuteStep(context.Background(), step, vars)
	if res.Status != result.StatusSuccess {
		t.Fatalf("Expected success despite extraction miss, got: %s", res.Status)
	}
	if _, ok := vars["gone"]; ok {
		t.Error("Expected failed extraction to leave variable unset")
	}
	if vars["id"] != float64(1) {
		t.Errorf("Expected id extracted, got: %v", vars["id"])
	}
}

func TestExecuteStep_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	host := &types.HostConfig{BaseURL: server.URL, Timeout: 10}
	executor := NewExecutor(host, zerolog.Nop(), WithRetryWait(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	step := &types.Step{Name: "slow", Method: "GET", Path: "/"}
	res := executor.ExecuteStep(ctx, step, map[string]any{})
	if res.Status != result.StatusError {
		t.Errorf("Expected timeout error status, got: %s", res.Status)
	}
}

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"", ""},
		{"template: undefined variable \"x\"", ErrKindTemplate},
		{"context deadline exceeded", ErrKindTimeout},
		{"dial tcp: connection refused", ErrKindConnection},
	}
	for _, tt := range tests {
		if got := ClassifyMessage(tt.msg); got != tt.want {
			t.Errorf("ClassifyMessage(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}
