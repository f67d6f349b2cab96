package llm

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaCache caches compiled JSON schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

// choiceField is the property that carries the selected choice when a
// provider emulates constrained decoding with structured output.
const choiceField = "choice"

// ChoiceSchema builds a schema whose only valid documents select one of
// choices. The schema name is derived from the sorted choices so the
// compiled form can be cached.
func ChoiceSchema(choices []string) *Schema {
	sorted := append([]string(nil), choices...)
	sort.Strings(sorted)

	enum := make([]any, len(choices))
	for i, c := range choices {
		enum[i] = c
	}

	return &Schema{
		Name:        choiceSchemaName(sorted),
		Description: "Exactly one of the allowed answers",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				choiceField: map[string]any{
					"type": "string",
					"enum": enum,
				},
			},
			"required":             []any{choiceField},
			"additionalProperties": false,
		},
	}
}

func choiceSchemaName(sorted []string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.Join(sorted, "\x00")))
	readable := strings.Map(schemaNameRune, strings.ToLower(strings.Join(sorted, "-")))
	return fmt.Sprintf("choice-%s-%08x", readable, h.Sum32())
}

func schemaNameRune(r rune) rune {
	if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
		return r
	}
	return '_'
}

// decodeChoice validates raw against the choice schema and returns the
// selected choice.
func decodeChoice(schema *Schema, raw string) (string, error) {
	if err := validateResponse(schema, raw); err != nil {
		return "", err
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return "", &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("decode choice: %w", err)}
	}
	return out[choiceField], nil
}

// validateResponse validates raw JSON against the given Schema.
// Returns nil if no schema is provided or validation passes.
// Returns *ErrInvalidResponse on failure.
func validateResponse(schema *Schema, raw string) error {
	if schema == nil {
		return nil
	}

	// Parse JSON first.
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return &ErrInvalidResponse{
			Content: raw,
			Err:     fmt.Errorf("invalid JSON: %w", err),
		}
	}

	// Get or compile the schema.
	compiled, err := getCompiledSchema(schema)
	if err != nil {
		return &ErrInvalidResponse{
			Content: raw,
			Err:     fmt.Errorf("compile schema %q: %w", schema.Name, err),
		}
	}

	// Validate against schema.
	if err := compiled.Validate(parsed); err != nil {
		return &ErrInvalidResponse{
			Content: raw,
			Err:     fmt.Errorf("schema validation failed: %w", err),
		}
	}

	return nil
}

// getCompiledSchema returns a cached compiled schema or compiles and caches it.
func getCompiledSchema(schema *Schema) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(schema.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// The jsonschema library expects a parsed JSON value (any), not raw bytes.
	// Marshal then unmarshal to get a clean any representation.
	defBytes, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var defParsed any
	if err := json.Unmarshal(defBytes, &defParsed); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	schemaURL := fmt.Sprintf("schema://%s.json", schema.Name)
	if err := c.AddResource(schemaURL, defParsed); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}

	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(schema.Name, compiled)
	return compiled, nil
}

// withChoiceSchema sets req.Schema from req.Choices for providers that
// emulate constrained decoding through structured output.
func withChoiceSchema(req Request) Request {
	if len(req.Choices) > 0 && req.Schema == nil {
		req.Schema = ChoiceSchema(req.Choices)
	}
	return req
}

// finishText turns the provider's raw content into the response text,
// validating it against the request's schema when there is one.
func finishText(req Request, raw string) (string, error) {
	if len(req.Choices) > 0 && req.Schema != nil {
		return decodeChoice(req.Schema, raw)
	}
	if err := validateResponse(req.Schema, raw); err != nil {
		return "", err
	}
	return raw, nil
}
