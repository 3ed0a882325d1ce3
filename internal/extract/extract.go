// Package extract pulls values out of HTTP responses by dot-path.
//
// A path is split on dots. The first segment selects the root: "status" is
// the HTTP status code, "body" is the parsed response body. Later segments
// index into maps by key, or into slices when the segment is numeric.
// Expressions prefixed with "jmespath:" run a JMESPath query over the body
// instead, for cases where dot notation is not expressive enough.
package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jmespath/go-jmespath"
)

// JMESPathPrefix marks an extraction expression handled by go-jmespath.
const JMESPathPrefix = "jmespath:"

// Error reports a path segment that could not be resolved.
type Error struct {
	Path    string
	Segment string
	Reason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract %q: segment %q: %s", e.Path, e.Segment, e.Reason)
}

// Extract resolves path against the response status and parsed body.
func Extract(statusCode int, body any, path string) (any, error) {
	if expr, ok := strings.CutPrefix(path, JMESPathPrefix); ok {
		return searchJMESPath(body, expr, path)
	}

	segments := strings.Split(path, ".")

	var current any
	switch segments[0] {
	case "status":
		current = statusCode
	case "body":
		current = body
	default:
		return nil, &Error{Path: path, Segment: segments[0], Reason: "root must be 'status' or 'body'"}
	}

	for _, seg := range segments[1:] {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[seg]
			if !ok {
				return nil, &Error{Path: path, Segment: seg, Reason: "key not found"}
			}
			current = value
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil, &Error{Path: path, Segment: seg, Reason: "sequence requires a numeric index"}
			}
			if idx < 0 || idx >= len(node) {
				return nil, &Error{Path: path, Segment: seg, Reason: fmt.Sprintf("index out of range (len %d)", len(node))}
			}
			current = node[idx]
		default:
			return nil, &Error{Path: path, Segment: seg, Reason: "cannot index into scalar"}
		}
	}

	return current, nil
}

func searchJMESPath(body any, expr, path string) (any, error) {
	value, err := jmespath.Search(expr, body)
	if err != nil {
		return nil, &Error{Path: path, Segment: expr, Reason: err.Error()}
	}
	if value == nil {
		return nil, &Error{Path: path, Segment: expr, Reason: "expression returned null"}
	}
	return value, nil
}
