package types

import (
	"fmt"
	"time"
)

// HTTP methods accepted in scenario steps.
const (
	MethodGet     = "GET"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodPatch   = "PATCH"
	MethodDelete  = "DELETE"
	MethodHead    = "HEAD"
	MethodOptions = "OPTIONS"
)

var validMethods = map[string]bool{
	MethodGet:     true,
	MethodPost:    true,
	MethodPut:     true,
	MethodPatch:   true,
	MethodDelete:  true,
	MethodHead:    true,
	MethodOptions: true,
}

// Assertion operators.
const (
	OpEq          = "eq"
	OpNe          = "ne"
	OpGt          = "gt"
	OpLt          = "lt"
	OpGte         = "gte"
	OpLte         = "lte"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpIn          = "in"
	OpNotIn       = "not_in"
	OpRegex       = "regex"
	OpExists      = "exists"
)

var validOperators = map[string]bool{
	OpEq:          true,
	OpNe:          true,
	OpGt:          true,
	OpLt:          true,
	OpGte:         true,
	OpLte:         true,
	OpContains:    true,
	OpNotContains: true,
	OpIn:          true,
	OpNotIn:       true,
	OpRegex:       true,
	OpExists:      true,
}

// Load distribution shapes.
const (
	DistConstant    = "constant"
	DistLinear      = "linear"
	DistExponential = "exponential"
)

// ConfigError reports invalid scenario or host configuration. It is the only
// error class that escapes the engines; everything else is captured into
// results.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return e.Msg
}

// NewConfigError builds a ConfigError with a formatted message.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// AuthConfig describes how requests against a host are authenticated.
// Type is one of "basic", "bearer", "api_key", "oauth2".
type AuthConfig struct {
	Type     string `json:"type" yaml:"type"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`
	Header   string `json:"header,omitempty" yaml:"header,omitempty"`
	Key      string `json:"key,omitempty" yaml:"key,omitempty"`

	// OAuth2 client credentials flow
	TokenURL     string   `json:"token_url,omitempty" yaml:"token_url,omitempty"`
	ClientID     string   `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty" yaml:"client_secret,omitempty"`
	Scopes       []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
}

// HostConfig is the per-host connection configuration. It is read-only once
// loaded and safe to share across concurrent executions.
type HostConfig struct {
	BaseURL   string            `json:"base_url" yaml:"base_url"`
	Timeout   int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	VerifySSL *bool             `json:"verify_ssl,omitempty" yaml:"verify_ssl,omitempty"`
	Auth      *AuthConfig       `json:"auth,omitempty" yaml:"auth,omitempty"`
}

// GetTimeout returns the host request timeout, defaulting to 30s.
func (h *HostConfig) GetTimeout() time.Duration {
	if h.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(h.Timeout) * time.Second
}

// SSLVerification reports whether server certificates should be verified.
// Defaults to true when unset.
func (h *HostConfig) SSLVerification() bool {
	if h.VerifySSL == nil {
		return true
	}
	return *h.VerifySSL
}

// Validate checks the host configuration.
func (h *HostConfig) Validate() error {
	if h.BaseURL == "" {
		return NewConfigError("host: base_url is required")
	}
	if h.Timeout < 0 {
		return NewConfigError("host: timeout cannot be negative")
	}
	if h.Auth != nil {
		switch h.Auth.Type {
		case "basic":
			if h.Auth.Username == "" {
				return NewConfigError("host: basic auth requires username")
			}
		case "bearer":
			if h.Auth.Token == "" {
				return NewConfigError("host: bearer auth requires token")
			}
		case "api_key":
			if h.Auth.Key == "" {
				return NewConfigError("host: api_key auth requires key")
			}
		case "oauth2":
			if h.Auth.TokenURL == "" || h.Auth.ClientID == "" {
				return NewConfigError("host: oauth2 auth requires token_url and client_id")
			}
		default:
			return NewConfigError("host: unknown auth type %q", h.Auth.Type)
		}
	}
	return nil
}

// Assertion is a declarative check against a response field.
// Field uses dot notation rooted at "status" or "body".
type Assertion struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
	Message  string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Validate rejects unknown operators and empty fields at load time so a bad
// assertion never reaches a running scenario.
func (a *Assertion) Validate() error {
	if a.Field == "" {
		return NewConfigError("assertion: field is required")
	}
	if !validOperators[a.Operator] {
		return NewConfigError("assertion %q: unknown operator %q", a.Field, a.Operator)
	}
	if a.Operator != OpExists && a.Value == nil {
		return NewConfigError("assertion %q: operator %q requires a value", a.Field, a.Operator)
	}
	return nil
}

// Step is a single HTTP request definition plus validation and
// extraction rules. Path, headers, query params and body may contain
// {{variable}} references at any nesting depth.
type Step struct {
	Name          string            `json:"name" yaml:"name"`
	Method        string            `json:"method" yaml:"method"`
	Path          string            `json:"path" yaml:"path"`
	Headers       map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	QueryParams   map[string]any    `json:"query_params,omitempty" yaml:"query_params,omitempty"`
	Body          any               `json:"body,omitempty" yaml:"body,omitempty"`
	Timeout       int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	DelayBefore   float64           `json:"delay_before,omitempty" yaml:"delay_before,omitempty"`
	DelayAfter    float64           `json:"delay_after,omitempty" yaml:"delay_after,omitempty"`
	Assertions    []Assertion       `json:"assertions,omitempty" yaml:"assertions,omitempty"`
	Extract       map[string]string `json:"extract,omitempty" yaml:"extract,omitempty"`
	SkipOnFailure bool              `json:"skip_on_failure,omitempty" yaml:"skip_on_failure,omitempty"`
	Retry         int               `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// GetTimeout returns the step timeout override, or the host default.
func (s *Step) GetTimeout(host *HostConfig) time.Duration {
	if s.Timeout > 0 {
		return time.Duration(s.Timeout) * time.Second
	}
	return host.GetTimeout()
}

// DelayBeforeDuration returns delay_before as a duration.
func (s *Step) DelayBeforeDuration() time.Duration {
	return time.Duration(s.DelayBefore * float64(time.Second))
}

// DelayAfterDuration returns delay_after as a duration.
func (s *Step) DelayAfterDuration() time.Duration {
	return time.Duration(s.DelayAfter * float64(time.Second))
}

// Validate checks the step definition.
func (s *Step) Validate() error {
	if s.Name == "" {
		return NewConfigError("step: name is required")
	}
	if !validMethods[s.Method] {
		return NewConfigError("step %q: invalid method %q", s.Name, s.Method)
	}
	if s.Path == "" {
		return NewConfigError("step %q: path is required", s.Name)
	}
	if s.Timeout < 0 {
		return NewConfigError("step %q: timeout cannot be negative", s.Name)
	}
	if s.DelayBefore < 0 || s.DelayAfter < 0 {
		return NewConfigError("step %q: delays cannot be negative", s.Name)
	}
	if s.Retry < 0 {
		return NewConfigError("step %q: retry cannot be negative", s.Name)
	}
	for i := range s.Assertions {
		if err := s.Assertions[i].Validate(); err != nil {
			return err
		}
	}
	for name, path := range s.Extract {
		if path == "" {
			return NewConfigError("step %q: extract %q has empty path", s.Name, name)
		}
	}
	return nil
}

// LoadTestConfig controls rate-controlled concurrent execution.
type LoadTestConfig struct {
	DurationSeconds int    `json:"duration_seconds" yaml:"duration_seconds"`
	TargetTPS       int    `json:"target_tps" yaml:"target_tps"`
	RampUpSeconds   int    `json:"ramp_up_seconds,omitempty" yaml:"ramp_up_seconds,omitempty"`
	MaxConcurrent   int    `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`
	Distribution    string `json:"distribution,omitempty" yaml:"distribution,omitempty"`

	// FullChain runs the whole scenario per dispatch instead of only the
	// first step.
	FullChain bool `json:"full_chain,omitempty" yaml:"full_chain,omitempty"`
}

// ApplyDefaults fills optional fields.
func (c *LoadTestConfig) ApplyDefaults() {
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 100
	}
	if c.Distribution == "" {
		c.Distribution = DistConstant
	}
}

// Duration returns the run duration.
func (c *LoadTestConfig) Duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

// RampUp returns the ramp-up duration.
func (c *LoadTestConfig) RampUp() time.Duration {
	return time.Duration(c.RampUpSeconds) * time.Second
}

// Validate checks load test bounds.
func (c *LoadTestConfig) Validate() error {
	if c.DurationSeconds <= 0 {
		return NewConfigError("load test: duration_seconds must be greater than 0")
	}
	if c.TargetTPS <= 0 {
		return NewConfigError("load test: target_tps must be greater than 0")
	}
	if c.RampUpSeconds < 0 {
		return NewConfigError("load test: ramp_up_seconds cannot be negative")
	}
	if c.RampUpSeconds > c.DurationSeconds {
		return NewConfigError("load test: ramp_up_seconds cannot exceed duration_seconds")
	}
	if c.MaxConcurrent <= 0 {
		return NewConfigError("load test: max_concurrent must be greater than 0")
	}
	switch c.Distribution {
	case DistConstant, DistLinear, DistExponential:
	default:
		return NewConfigError("load test: unknown distribution %q", c.Distribution)
	}
	return nil
}

// Scenario is an ordered list of HTTP steps plus variables, run once
// end-to-end. The declared variable map is immutable during a run; engines
// work on their own copy seeded from it.
type Scenario struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Host        string          `json:"host,omitempty" yaml:"host,omitempty"`
	Tags        []string        `json:"tags,omitempty" yaml:"tags,omitempty"`
	Variables   map[string]any  `json:"variables,omitempty" yaml:"variables,omitempty"`
	Steps       []Step          `json:"steps" yaml:"steps"`
	LoadTest    *LoadTestConfig `json:"load_test,omitempty" yaml:"load_test,omitempty"`
}

// SeedVariables returns a fresh mutable copy of the declared variables.
func (s *Scenario) SeedVariables() map[string]any {
	vars := make(map[string]any, len(s.Variables))
	for k, v := range s.Variables {
		vars[k] = v
	}
	return vars
}

// Validate checks the whole scenario definition.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return NewConfigError("scenario: name is required")
	}
	if len(s.Steps) == 0 {
		return NewConfigError("scenario %q: at least one step is required", s.Name)
	}
	for i := range s.Steps {
		if err := s.Steps[i].Validate(); err != nil {
			return err
		}
	}
	if s.LoadTest != nil {
		s.LoadTest.ApplyDefaults()
		if err := s.LoadTest.Validate(); err != nil {
			return err
		}
	}
	return nil
}
