// Package httpexec executes single scenario steps: template resolution,
// delays, the HTTP call with retry, assertion validation and variable
// extraction. Ordinary HTTP and assertion failures are captured into the
// StepResult; only configuration problems surface as errors elsewhere.
package httpexec

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Samuel-Jeong/RestApiSimulator/internal/assertion"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/auth"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/extract"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/result"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/template"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/types"
)

// HTTP client configuration timeouts.
const (
	TCPDialTimeout        = 5 * time.Second
	TCPKeepAliveInterval  = 30 * time.Second
	TLSHandshakeTimeout   = 5 * time.Second
	IdleConnTimeout       = 90 * time.Second
	ExpectContinueTimeout = 1 * time.Second

	// DefaultRetryWait is the fixed pause between retry attempts.
	DefaultRetryWait = 1 * time.Second

	// DefaultPoolSize sizes the connection pool when no concurrency hint
	// is given.
	DefaultPoolSize = 100
)

// Error kinds used in load test error distributions.
const (
	ErrKindTimeout          = "timeout"
	ErrKindConnection       = "connection"
	ErrKindTemplate         = "template"
	ErrKindConcurrencyLimit = "concurrency limit"
)

// Executor performs scenario steps against one host. It is safe for
// concurrent use: the shared client pools connections and all mutable state
// lives in the per-call variable map owned by the caller.
type Executor struct {
	host      *types.HostConfig
	client    *http.Client
	clock     Clock
	retryWait time.Duration
	poolSize  int
	logger    zerolog.Logger
}

// Option tweaks an Executor.
type Option func(*Executor)

// WithClock swaps the wall clock, used by tests to avoid real sleeps.
func WithClock(c Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// WithRetryWait overrides the pause between retry attempts.
func WithRetryWait(d time.Duration) Option {
	return func(e *Executor) { e.retryWait = d }
}

// WithPoolSize sizes the transport connection pool, typically to the load
// test's max_concurrent.
func WithPoolSize(n int) Option {
	return func(e *Executor) { e.poolSize = n }
}

// NewExecutor builds a step executor with a pooled HTTP client for host.
func NewExecutor(host *types.HostConfig, logger zerolog.Logger, opts ...Option) *Executor {
	e := &Executor{
		host:      host,
		clock:     RealClock{},
		retryWait: DefaultRetryWait,
		poolSize:  DefaultPoolSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.client = buildHTTPClient(host, e.poolSize)
	return e
}

// buildHTTPClient creates a client with connection pooling sized for
// concurrent execution. Per-request timeouts come from the step context, so
// the client itself carries none.
func buildHTTPClient(host *types.HostConfig, poolSize int) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        poolSize,
		MaxIdleConnsPerHost: poolSize,
		MaxConnsPerHost:     poolSize * 2,
		IdleConnTimeout:     IdleConnTimeout,
		ForceAttemptHTTP2:   true,

		DialContext: (&net.Dialer{
			Timeout:   TCPDialTimeout,
			KeepAlive: TCPKeepAliveInterval,
		}).DialContext,

		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ExpectContinueTimeout: ExpectContinueTimeout,
	}

	if !host.SSLVerification() {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{
		Transport: auth.WrapTransport(transport, host.Auth),
	}
}

// ExecuteStep runs one step against the live variable set. Extracted
// variables are merged into vars so later steps see them.
func (e *Executor) ExecuteStep(ctx context.Context, step *types.Step, vars map[string]any) *result.StepResult {
	res := &result.StepResult{
		StepName:  step.Name,
		Method:    step.Method,
		Timestamp: e.clock.Now(),
	}

	req, err := e.resolveStep(step, vars)
	if err != nil {
		e.logger.Warn().Str("step", step.Name).Err(err).Msg("template resolution failed")
		res.Status = result.StatusError
		res.ErrorMessage = err.Error()
		return res
	}
	res.URL = req.url

	if err := e.clock.Sleep(ctx, step.DelayBeforeDuration()); err != nil {
		res.Status = result.StatusError
		res.ErrorMessage = err.Error()
		return res
	}

	attempts := step.Retry + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res.Attempts = attempt

		resp, err := e.doRequest(ctx, step, req)
		if err != nil {
			lastErr = err
			e.logger.Debug().Str("step", step.Name).Int("attempt", attempt).Err(err).Msg("request failed")
			if attempt < attempts {
				if serr := e.clock.Sleep(ctx, e.retryWait); serr != nil {
					break
				}
				continue
			}
			break
		}

		e.finishStep(step, resp, vars, res)
		if err := e.clock.Sleep(ctx, step.DelayAfterDuration()); err != nil {
			res.Status = result.StatusError
			res.ErrorMessage = err.Error()
		}
		return res
	}

	res.Status = result.StatusError
	if lastErr != nil {
		res.ErrorMessage = lastErr.Error()
	}
	return res
}

// resolvedRequest is a step after template substitution.
type resolvedRequest struct {
	url     string
	headers map[string]string
	body    []byte
}

func (e *Executor) resolveStep(step *types.Step, vars map[string]any) (*resolvedRequest, error) {
	path, err := template.SubstituteString(step.Path, vars)
	if err != nil {
		return nil, err
	}

	headers, err := template.SubstituteStringMap(step.Headers, vars)
	if err != nil {
		return nil, err
	}

	fullURL := strings.TrimRight(e.host.BaseURL, "/") + path
	if len(step.QueryParams) > 0 {
		query := url.Values{}
		for key, value := range step.QueryParams {
			resolved, err := template.Substitute(value, vars)
			if err != nil {
				return nil, err
			}
			query.Set(key, template.Stringify(resolved))
		}
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + query.Encode()
	}

	var body []byte
	if step.Body != nil {
		resolved, err := template.Substitute(step.Body, vars)
		if err != nil {
			return nil, err
		}
		if s, ok := resolved.(string); ok {
			body = []byte(s)
		} else {
			body, err = json.Marshal(resolved)
			if err != nil {
				return nil, fmt.Errorf("failed to encode body: %w", err)
			}
		}
	}

	return &resolvedRequest{url: fullURL, headers: headers, body: body}, nil
}

// httpResponse is a fully read response with the body parsed as JSON when
// possible.
type httpResponse struct {
	statusCode int
	headers    map[string]string
	body       any
	elapsedMs  float64
}

func (e *Executor) doRequest(ctx context.Context, step *types.Step, req *resolvedRequest) (*httpResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, step.GetTimeout(e.host))
	defer cancel()

	var reader io.Reader
	if req.body != nil {
		reader = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, step.Method, req.url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range e.host.Headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.headers {
		httpReq.Header.Set(key, value)
	}
	if req.body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := e.clock.Now()
	resp, err := e.client.Do(httpReq)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for key, values := range resp.Header {
		headers[key] = strings.Join(values, ", ")
	}

	return &httpResponse{
		statusCode: resp.StatusCode,
		headers:    headers,
		body:       parseBody(bodyBytes),
		elapsedMs:  elapsed,
	}, nil
}

// parseBody decodes JSON bodies into their dynamic form; anything else is
// kept as a string snapshot.
func parseBody(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(data, &parsed); err == nil {
		return parsed
	}
	return string(data)
}

// finishStep applies assertions and extractions to a received response.
// An HTTP error status is not a transport failure; it simply feeds the
// assertions.
func (e *Executor) finishStep(step *types.Step, resp *httpResponse, vars map[string]any, res *result.StepResult) {
	res.StatusCode = resp.statusCode
	res.ResponseHeaders = resp.headers
	res.ResponseBody = resp.body
	res.ResponseTimeMs = resp.elapsedMs

	passed, failed, details := assertion.ValidateAll(step.Assertions, resp.statusCode, resp.body)
	res.AssertionsPassed = passed
	res.AssertionsFailed = failed
	res.AssertionDetails = details

	if failed > 0 {
		res.Status = result.StatusFailure
		return
	}
	res.Status = result.StatusSuccess

	if len(step.Extract) == 0 {
		return
	}
	extracted := make(map[string]any, len(step.Extract))
	for name, path := range step.Extract {
		value, err := extract.Extract(resp.statusCode, resp.body, path)
		if err != nil {
			// A failed variable extraction leaves the variable unset.
			e.logger.Warn().Str("step", step.Name).Str("variable", name).Err(err).Msg("extraction failed")
			continue
		}
		extracted[name] = value
		vars[name] = value
	}
	res.ExtractedVariables = extracted
}

// ClassifyError maps a transport error to an error-kind bucket for the load
// test error distribution.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	var tmplErr *template.Error
	if errors.As(err, &tmplErr) {
		return ErrKindTemplate
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrKindTimeout
	}
	return ErrKindConnection
}

// ClassifyMessage buckets a StepResult error message the same way
// ClassifyError buckets live errors.
func ClassifyMessage(msg string) string {
	switch {
	case msg == "":
		return ""
	case strings.Contains(msg, "template:"):
		return ErrKindTemplate
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "Client.Timeout"), strings.Contains(msg, "timeout"):
		return ErrKindTimeout
	default:
		return ErrKindConnection
	}
}
