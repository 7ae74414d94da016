package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xeipuuv/gojsonschema"
)

// DefaultResponseSchema describes the output envelope: an object holding only "output".
const DefaultResponseSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["output"],
	"additionalProperties": false,
	"properties": {
		"output": {}
	}
}`

var (
	ErrNonZeroExit     = errors.New("provider exited with non-zero status")
	ErrEmptyOutput     = errors.New("provider wrote no output")
	ErrNotSingleLine   = errors.New("provider output is not one newline-terminated line")
	ErrInvalidJSON     = errors.New("provider output is not valid JSON")
	ErrSchemaViolation = errors.New("provider output violates response schema")
)

// SchemaValidator checks output envelopes against JSON schemas. Compiled schemas are cached
// by their text, so per-provider schemas are compiled once per process.
type SchemaValidator struct {
	cache *lru.Cache[string, *gojsonschema.Schema]
}

// NewSchemaValidator returns a validator caching up to size compiled schemas.
func NewSchemaValidator(size int) (*SchemaValidator, error) {
	if size <= 0 {
		size = 16
	}
	cache, err := lru.New[string, *gojsonschema.Schema](size)
	if err != nil {
		return nil, err
	}
	return &SchemaValidator{cache: cache}, nil
}

// Compile parses schemaText (empty means DefaultResponseSchema) and caches the result.
func (v *SchemaValidator) Compile(schemaText string) (*gojsonschema.Schema, error) {
	if strings.TrimSpace(schemaText) == "" {
		schemaText = DefaultResponseSchema
	}
	if s, ok := v.cache.Get(schemaText); ok {
		return s, nil
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaText))
	if err != nil {
		return nil, fmt.Errorf("compiling response schema: %w", err)
	}
	v.cache.Add(schemaText, s)
	return s, nil
}

// Validate checks one JSON document against schemaText.
func (v *SchemaValidator) Validate(schemaText string, doc []byte) error {
	schema, err := v.Compile(schemaText)
	if err != nil {
		return err
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(msgs, "; "))
	}
	return nil
}

// ValidateResponse applies the provider contract to one invocation: exit status 0 and exactly one
// newline-terminated line of JSON that satisfies schemaText.
func (v *SchemaValidator) ValidateResponse(schemaText, stdout string, exitCode int) error {
	if exitCode != 0 {
		return fmt.Errorf("%w (%d)", ErrNonZeroExit, exitCode)
	}
	if strings.TrimSpace(stdout) == "" {
		return ErrEmptyOutput
	}
	if !strings.HasSuffix(stdout, "\n") || strings.Count(stdout, "\n") != 1 {
		return ErrNotSingleLine
	}
	line := []byte(strings.TrimSuffix(stdout, "\n"))
	if !json.Valid(line) {
		return ErrInvalidJSON
	}
	return v.Validate(schemaText, line)
}

// IsValidJSON reports whether stdout holds a JSON document, ignoring surrounding whitespace.
// Providers that report errors as JSON on stdout are told apart from ones that crash.
func IsValidJSON(stdout string) bool {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return false
	}
	return json.Valid([]byte(trimmed))
}
