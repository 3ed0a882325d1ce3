// Package assertion evaluates declarative checks against HTTP responses.
package assertion

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/Samuel-Jeong/RestApiSimulator/internal/extract"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/result"
	"github.com/Samuel-Jeong/RestApiSimulator/internal/types"
)

// Validate evaluates a single assertion against the response status and
// parsed body. It returns whether the assertion passed and a human-readable
// message either way. Evaluation never returns an error: operator validity
// is enforced at scenario load time.
func Validate(a *types.Assertion, statusCode int, body any) (bool, string) {
	actual, err := extract.Extract(statusCode, body, a.Field)

	if a.Operator == types.OpExists {
		if err != nil {
			return false, fmt.Sprintf("%s does not exist (%v)", a.Field, err)
		}
		return true, fmt.Sprintf("%s exists", a.Field)
	}

	if err != nil {
		return false, failMessage(a, fmt.Sprintf("extraction failed: %v", err))
	}

	passed, detail := compare(actual, a.Operator, a.Value)
	if passed {
		return true, fmt.Sprintf("%s %s %v", a.Field, a.Operator, a.Value)
	}
	if detail == "" {
		detail = fmt.Sprintf("got %v", actual)
	}
	return false, failMessage(a, detail)
}

func failMessage(a *types.Assertion, detail string) string {
	if a.Message != "" {
		return a.Message
	}
	return fmt.Sprintf("%s: expected %s %v, %s", a.Field, a.Operator, a.Value, detail)
}

// ValidateAll evaluates every assertion independently, never short-circuiting,
// so the result carries complete diagnostic detail.
func ValidateAll(assertions []types.Assertion, statusCode int, body any) (int, int, []result.AssertionDetail) {
	passed := 0
	failed := 0
	details := make([]result.AssertionDetail, 0, len(assertions))

	for i := range assertions {
		a := &assertions[i]
		ok, message := Validate(a, statusCode, body)
		if ok {
			passed++
		} else {
			failed++
		}
		details = append(details, result.AssertionDetail{
			Field:    a.Field,
			Operator: a.Operator,
			Expected: a.Value,
			Passed:   ok,
			Message:  message,
		})
	}

	return passed, failed, details
}

// compare applies the operator. The detail string, when non-empty, explains
// the failure beyond "got <actual>".
func compare(actual any, operator string, expected any) (bool, string) {
	switch operator {
	case types.OpEq:
		return deepEqual(actual, expected), fmt.Sprintf("got %v", actual)
	case types.OpNe:
		return !deepEqual(actual, expected), fmt.Sprintf("got %v", actual)
	case types.OpGt, types.OpLt, types.OpGte, types.OpLte:
		return compareNumeric(actual, operator, expected)
	case types.OpContains:
		ok, detail := contains(actual, expected)
		return ok, detail
	case types.OpNotContains:
		ok, detail := contains(actual, expected)
		return !ok, detail
	case types.OpIn:
		return memberOf(actual, expected)
	case types.OpNotIn:
		ok, detail := memberOf(actual, expected)
		return !ok, detail
	case types.OpRegex:
		return matchRegex(actual, expected)
	default:
		// Unreachable when scenarios are validated at load time.
		return false, fmt.Sprintf("unknown operator %q", operator)
	}
}

// deepEqual compares values structurally after normalizing numbers, so that
// a YAML int expectation matches a JSON float64 body value.
func deepEqual(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// normalize converts numeric types to float64 and typed maps/slices from the
// YAML decoder into their JSON-shaped equivalents, recursively.
func normalize(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	case float64:
		return val
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	default:
		return v
	}
}

func compareNumeric(actual any, operator string, expected any) (bool, string) {
	a, ok := toFloat(actual)
	if !ok {
		return false, fmt.Sprintf("got non-numeric value %v", actual)
	}
	e, ok := toFloat(expected)
	if !ok {
		return false, fmt.Sprintf("expected value %v is not numeric", expected)
	}

	switch operator {
	case types.OpGt:
		return a > e, fmt.Sprintf("got %v", a)
	case types.OpLt:
		return a < e, fmt.Sprintf("got %v", a)
	case types.OpGte:
		return a >= e, fmt.Sprintf("got %v", a)
	default:
		return a <= e, fmt.Sprintf("got %v", a)
	}
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	default:
		return 0, false
	}
}

// contains is a substring test when the target is a string and a membership
// test when it is a sequence.
func contains(actual, expected any) (bool, string) {
	switch target := actual.(type) {
	case string:
		return strings.Contains(target, stringForm(expected)), fmt.Sprintf("got %q", target)
	case []any:
		for _, item := range target {
			if deepEqual(item, expected) {
				return true, ""
			}
		}
		return false, fmt.Sprintf("got sequence of %d items", len(target))
	default:
		return false, fmt.Sprintf("got non-container value %v", actual)
	}
}

// memberOf checks that the target appears in the expected sequence.
func memberOf(actual, expected any) (bool, string) {
	seq, ok := expected.([]any)
	if !ok {
		return false, fmt.Sprintf("expected value %v is not a sequence", expected)
	}
	for _, item := range seq {
		if deepEqual(item, actual) {
			return true, ""
		}
	}
	return false, fmt.Sprintf("got %v", actual)
}

func matchRegex(actual, expected any) (bool, string) {
	pattern, ok := expected.(string)
	if !ok {
		return false, fmt.Sprintf("pattern %v is not a string", expected)
	}
	target, ok := coerceString(actual)
	if !ok {
		return false, fmt.Sprintf("got value %v that is not string-coercible", actual)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid pattern: %v", err)
	}
	return re.MatchString(target), fmt.Sprintf("got %q", target)
}

// coerceString renders scalars as strings; containers are not coercible.
func coerceString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64, float32, int, int32, int64, bool:
		return fmt.Sprintf("%v", val), true
	default:
		return "", false
	}
}

func stringForm(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
