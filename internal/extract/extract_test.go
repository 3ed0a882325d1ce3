package extract

import (
	"encoding/json"
	"errors"
	"testing"
)

func parse(t *testing.T, raw string) any {
	t.Helper()
	var body any
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		t.Fatalf("Failed to parse body: %v", err)
	}
	return body
}

func TestExtract_Status(t *testing.T) {
	value, err := Extract(201, nil, "status")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if value != 201 {
		t.Errorf("Expected 201, got: %v", value)
	}
}

func TestExtract_NestedSequenceIndex(t *testing.T) {
	body := parse(t, `{"items":[{"id":7}]}`)

	value, err := Extract(200, body, "body.items.0.id")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if value != float64(7) {
		t.Errorf("Expected 7, got: %v", value)
	}
}

func TestExtract_MissingKey(t *testing.T) {
	body := parse(t, `{"items":[]}`)

	_, err := Extract(200, body, "body.missing")
	if err == nil {
		t.Fatal("Expected error for missing key")
	}
	var eerr *Error
	if !errors.As(err, &eerr) {
		t.Fatalf("Expected extraction error, got: %T", err)
	}
	if eerr.Segment != "missing" {
		t.Errorf("Expected failing segment 'missing', got: %q", eerr.Segment)
	}
}

func TestExtract_IndexOutOfRange(t *testing.T) {
	body := parse(t, `{"items":[1,2]}`)

	if _, err := Extract(200, body, "body.items.5"); err == nil {
		t.Error("Expected error for index out of range")
	}
	if _, err := Extract(200, body, "body.items.x"); err == nil {
		t.Error("Expected error for non-numeric index into sequence")
	}
}

func TestExtract_ScalarIndexing(t *testing.T) {
	body := parse(t, `{"name":"a"}`)

	if _, err := Extract(200, body, "body.name.first"); err == nil {
		t.Error("Expected error when indexing into a scalar")
	}
}

func TestExtract_BadRoot(t *testing.T) {
	if _, err := Extract(200, nil, "headers.x"); err == nil {
		t.Error("Expected error for unknown path root")
	}
}

func TestExtract_JMESPath(t *testing.T) {
	body := parse(t, `{"users":[{"name":"a","age":3},{"name":"b","age":9}]}`)

	value, err := Extract(200, body, "jmespath:users[?age > `5`].name | [0]")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if value != "b" {
		t.Errorf("Expected 'b', got: %v", value)
	}

	if _, err := Extract(200, body, "jmespath:users[9].name"); err == nil {
		t.Error("Expected error for null JMESPath result")
	}
}
