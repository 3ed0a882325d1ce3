package assertion

import (
	"encoding/json"
	"testing"

	"github.com/Samuel-Jeong/RestApiSimulator/internal/types"
)

func parse(t *testing.T, raw string) any {
	t.Helper()
	var body any
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		t.Fatalf("Failed to parse body: %v", err)
	}
	return body
}

func TestValidate_Operators(t *testing.T) {
	body := parse(t, `{
		"id": 7,
		"name": "alice",
		"tags": ["a", "b"],
		"nested": {"ok": true}
	}`)

	tests := []struct {
		name      string
		assertion types.Assertion
		want      bool
	}{
		{"eq status", types.Assertion{Field: "status", Operator: "eq", Value: 200}, true},
		{"eq int vs json float", types.Assertion{Field: "body.id", Operator: "eq", Value: 7}, true},
		{"ne", types.Assertion{Field: "body.name", Operator: "ne", Value: "bob"}, true},
		{"gt", types.Assertion{Field: "body.id", Operator: "gt", Value: 5}, true},
		{"gt fails", types.Assertion{Field: "body.id", Operator: "gt", Value: 7}, false},
		{"lt", types.Assertion{Field: "body.id", Operator: "lt", Value: 10}, true},
		{"gte boundary", types.Assertion{Field: "body.id", Operator: "gte", Value: 7}, true},
		{"lte boundary", types.Assertion{Field: "body.id", Operator: "lte", Value: 7}, true},
		{"gt non-numeric target", types.Assertion{Field: "body.name", Operator: "gt", Value: 1}, false},
		{"gt non-numeric expected", types.Assertion{Field: "body.id", Operator: "gt", Value: "x"}, false},
		{"contains substring", types.Assertion{Field: "body.name", Operator: "contains", Value: "lic"}, true},
		{"contains membership", types.Assertion{Field: "body.tags", Operator: "contains", Value: "a"}, true},
		{"not_contains", types.Assertion{Field: "body.tags", Operator: "not_contains", Value: "z"}, true},
		{"in", types.Assertion{Field: "body.name", Operator: "in", Value: []any{"alice", "bob"}}, true},
		{"not_in", types.Assertion{Field: "body.name", Operator: "not_in", Value: []any{"bob"}}, true},
		{"in non-sequence expected", types.Assertion{Field: "body.name", Operator: "in", Value: "alice"}, false},
		{"regex", types.Assertion{Field: "body.name", Operator: "regex", Value: "^ali"}, true},
		{"regex numeric target", types.Assertion{Field: "body.id", Operator: "regex", Value: "^7$"}, true},
		{"regex non-coercible target", types.Assertion{Field: "body.nested", Operator: "regex", Value: ".*"}, false},
		{"exists", types.Assertion{Field: "body.nested.ok", Operator: "exists"}, true},
		{"exists missing", types.Assertion{Field: "body.nope", Operator: "exists"}, false},
		{"eq missing path fails", types.Assertion{Field: "body.nope", Operator: "eq", Value: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passed, msg := Validate(&tt.assertion, 200, body)
			if passed != tt.want {
				t.Errorf("Expected passed=%v, got %v (%s)", tt.want, passed, msg)
			}
		})
	}
}

func TestValidate_DeepStructuralEquality(t *testing.T) {
	body := parse(t, `{"user":{"id":1,"roles":["admin"]}}`)

	a := types.Assertion{
		Field:    "body.user",
		Operator: "eq",
		Value: map[string]any{
			"id":    1,
			"roles": []any{"admin"},
		},
	}
	passed, msg := Validate(&a, 200, body)
	if !passed {
		t.Errorf("Expected deep equality to pass, got: %s", msg)
	}
}

func TestValidate_CustomMessage(t *testing.T) {
	a := types.Assertion{Field: "status", Operator: "eq", Value: 200, Message: "status must be OK"}

	_, msg := Validate(&a, 500, nil)
	if msg != "status must be OK" {
		t.Errorf("Expected custom message, got: %q", msg)
	}
}

func TestValidateAll_NoShortCircuit(t *testing.T) {
	body := parse(t, `{"id":7}`)

	assertions := []types.Assertion{
		{Field: "status", Operator: "eq", Value: 200},
		{Field: "body.id", Operator: "eq", Value: 99},
		{Field: "body.id", Operator: "exists"},
	}

	passed, failed, details := ValidateAll(assertions, 200, body)
	if passed != 2 {
		t.Errorf("Expected 2 passed, got: %d", passed)
	}
	if failed != 1 {
		t.Errorf("Expected 1 failed, got: %d", failed)
	}
	if len(details) != 3 {
		t.Fatalf("Expected all 3 assertions in detail, got: %d", len(details))
	}
	if details[1].Passed {
		t.Error("Expected second assertion to be the failing one")
	}
	if !details[0].Passed || !details[2].Passed {
		t.Error("Expected first and third assertions to pass")
	}
}

func TestValidateAll_Empty(t *testing.T) {
	passed, failed, details := ValidateAll(nil, 200, nil)
	if passed != 0 || failed != 0 || len(details) != 0 {
		t.Errorf("Expected empty evaluation, got: %d/%d/%d", passed, failed, len(details))
	}
}
