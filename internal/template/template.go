// Package template substitutes {{variable}} references in step definitions.
//
// Substitution is recursive over strings, maps and slices. A string that
// consists of exactly one placeholder resolves to the raw typed value of the
// variable, so a body field declared as "{{count}}" with count=5 becomes the
// number 5, not the string "5". Placeholders embedded in longer strings are
// replaced with the string form of the value.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Variable placeholder pattern: {{varName}}
var varPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Error reports an unresolved variable reference. It fails the owning step.
type Error struct {
	Variable string
}

func (e *Error) Error() string {
	return fmt.Sprintf("template: undefined variable %q", e.Variable)
}

// Substitute resolves every placeholder in value against vars. Maps and
// slices are walked recursively; non-string scalars pass through untouched.
func Substitute(value any, vars map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return substituteString(v, vars)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			resolved, err := Substitute(item, vars)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := Substitute(item, vars)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

// SubstituteString resolves placeholders in a plain string, always producing
// a string. Used for paths, header values and query parameters.
func SubstituteString(s string, vars map[string]any) (string, error) {
	resolved, err := substituteString(s, vars)
	if err != nil {
		return "", err
	}
	return Stringify(resolved), nil
}

// SubstituteStringMap resolves placeholders in every value of a string map.
func SubstituteStringMap(m map[string]string, vars map[string]any) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for key, value := range m {
		resolved, err := SubstituteString(value, vars)
		if err != nil {
			return nil, err
		}
		out[key] = resolved
	}
	return out, nil
}

func substituteString(s string, vars map[string]any) (any, error) {
	// Full-string match keeps the variable's raw type.
	if name, ok := wholePlaceholder(s); ok {
		value, found := vars[name]
		if !found {
			return nil, &Error{Variable: name}
		}
		return value, nil
	}

	var missing string
	out := varPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		value, found := vars[name]
		if !found {
			if missing == "" {
				missing = name
			}
			return match
		}
		return Stringify(value)
	})
	if missing != "" {
		return nil, &Error{Variable: missing}
	}
	return out, nil
}

// wholePlaceholder reports whether s is exactly one {{name}} reference.
func wholePlaceholder(s string) (string, bool) {
	loc := varPattern.FindStringIndex(s)
	if loc == nil || loc[0] != 0 || loc[1] != len(s) {
		return "", false
	}
	return strings.TrimSpace(s[2 : len(s)-2]), true
}

// Stringify renders a variable value for embedding into a string fragment.
// Numbers avoid the float64 exponent form, complex values serialize as JSON.
func Stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
