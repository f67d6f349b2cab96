package llm

import (
	"errors"
	"strings"
	"testing"
)

func testSchema() *Schema {
	return &Schema{
		Name:        "test-object",
		Description: "A test object",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":  map[string]any{"type": "string"},
				"age":   map[string]any{"type": "integer", "minimum": 0},
				"grade": map[string]any{"type": "string", "enum": []any{"A", "B", "C"}},
			},
			"required": []any{"name", "age"},
		},
	}
}

func TestValidateResponse_ValidJSON(t *testing.T) {
	raw := `{"name":"Alice","age":10,"grade":"A"}`
	err := validateResponse(testSchema(), raw)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidateResponse_ValidWithoutOptional(t *testing.T) {
	raw := `{"name":"Bob","age":8}`
	err := validateResponse(testSchema(), raw)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidateResponse_MissingRequired(t *testing.T) {
	raw := `{"name":"Charlie"}`
	err := validateResponse(testSchema(), raw)
	if err == nil {
		t.Fatal("expected error for missing required field")
	}
	var invErr *ErrInvalidResponse
	if !errors.As(err, &invErr) {
		t.Fatalf("expected ErrInvalidResponse, got: %T", err)
	}
}

func TestValidateResponse_WrongType(t *testing.T) {
	raw := `{"name":"Dave","age":"ten"}`
	err := validateResponse(testSchema(), raw)
	if err == nil {
		t.Fatal("expected error for wrong type")
	}
	var invErr *ErrInvalidResponse
	if !errors.As(err, &invErr) {
		t.Fatalf("expected ErrInvalidResponse, got: %T", err)
	}
}

func TestValidateResponse_InvalidEnum(t *testing.T) {
	raw := `{"name":"Eve","age":9,"grade":"D"}`
	err := validateResponse(testSchema(), raw)
	if err == nil {
		t.Fatal("expected error for invalid enum value")
	}
	var invErr *ErrInvalidResponse
	if !errors.As(err, &invErr) {
		t.Fatalf("expected ErrInvalidResponse, got: %T", err)
	}
}

func TestValidateResponse_MalformedJSON(t *testing.T) {
	raw := `{not json}`
	err := validateResponse(testSchema(), raw)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	var invErr *ErrInvalidResponse
	if !errors.As(err, &invErr) {
		t.Fatalf("expected ErrInvalidResponse, got: %T", err)
	}
}

func TestValidateResponse_EmptyResponse(t *testing.T) {
	raw := ``
	err := validateResponse(testSchema(), raw)
	if err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestValidateResponse_NilSchema(t *testing.T) {
	raw := `{"anything":"goes"}`
	err := validateResponse(nil, raw)
	if err != nil {
		t.Fatalf("expected no error with nil schema, got: %v", err)
	}
}

func TestValidateResponse_NestedObjects(t *testing.T) {
	schema := &Schema{
		Name:        "test-nested",
		Description: "Nested test",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"student": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name": map[string]any{"type": "string"},
					},
					"required": []any{"name"},
				},
				"scores": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "integer"},
				},
			},
			"required": []any{"student", "scores"},
		},
	}

	valid := `{"student":{"name":"Alice"},"scores":[90,85,92]}`
	if err := validateResponse(schema, valid); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	invalid := `{"student":{"name":"Alice"},"scores":["not","ints"]}`
	if err := validateResponse(schema, invalid); err == nil {
		t.Fatal("expected error for wrong array item type")
	}
}

func TestChoiceSchema_DecodeChoice(t *testing.T) {
	schema := ChoiceSchema([]string{"YES", "NO"})

	got, err := decodeChoice(schema, `{"choice":"NO"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "NO" {
		t.Fatalf("expected NO, got %q", got)
	}

	_, err = decodeChoice(schema, `{"choice":"MAYBE"}`)
	var invErr *ErrInvalidResponse
	if !errors.As(err, &invErr) {
		t.Fatalf("expected ErrInvalidResponse for a value outside the enum, got: %v", err)
	}

	_, err = decodeChoice(schema, `{"choice":"YES","extra":1}`)
	if !errors.As(err, &invErr) {
		t.Fatalf("expected ErrInvalidResponse for extra properties, got: %v", err)
	}
}

func TestChoiceSchema_NameIsStableAndSafe(t *testing.T) {
	a := ChoiceSchema([]string{"YES", "NO"})
	b := ChoiceSchema([]string{"NO", "YES"})
	if a.Name != b.Name {
		t.Fatalf("schema name depends on choice order: %q vs %q", a.Name, b.Name)
	}

	c := ChoiceSchema([]string{"Yes please", "no/thanks"})
	if strings.ContainsAny(c.Name, " /") {
		t.Fatalf("schema name has unsafe characters: %q", c.Name)
	}

	d := ChoiceSchema([]string{"yes please", "no/thanks"})
	if c.Name == d.Name {
		t.Fatalf("choices differing in case share a schema name: %q", c.Name)
	}
}

func TestFinishText(t *testing.T) {
	req := withChoiceSchema(Request{Choices: []string{"YES", "NO"}})
	if req.Schema == nil {
		t.Fatal("expected choice schema to be attached")
	}
	got, err := finishText(req, `{"choice":"YES"}`)
	if err != nil || got != "YES" {
		t.Fatalf("finishText = (%q, %v), want (YES, nil)", got, err)
	}

	plain, err := finishText(Request{}, "1. A question?")
	if err != nil || plain != "1. A question?" {
		t.Fatalf("finishText without schema = (%q, %v)", plain, err)
	}
}
