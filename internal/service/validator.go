package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Validator checks a patched payload before it is committed.
type Validator interface {
	Validate(contentType string, payload map[string]any) error
}

// SchemaValidator validates payloads against a JSON schema registered per
// content type. Content types without a schema only need a non-nil object.
type SchemaValidator struct {
	mu      sync.RWMutex
	schemas map[string]*gojsonschema.Schema
}

var _ Validator = (*SchemaValidator)(nil)

// NewSchemaValidator creates a validator with no schemas.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{schemas: make(map[string]*gojsonschema.Schema)}
}

// RegisterSchema compiles and stores the schema for a content type.
func (v *SchemaValidator) RegisterSchema(contentType string, schema []byte) error {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return fmt.Errorf("failed to load schema for %s: %w", contentType, err)
	}
	v.mu.Lock()
	v.schemas[contentType] = s
	v.mu.Unlock()
	return nil
}

// LoadSchemaDir registers every <contentType>.json file found in dir.
// An empty dir is a no-op.
func (v *SchemaValidator) LoadSchemaDir(dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			return 0, fmt.Errorf("read schema %s: %w", f, err)
		}
		contentType := strings.TrimSuffix(filepath.Base(f), ".json")
		if err := v.RegisterSchema(contentType, raw); err != nil {
			return 0, err
		}
	}
	return len(files), nil
}

// Validate implements Validator.
func (v *SchemaValidator) Validate(contentType string, payload map[string]any) error {
	if payload == nil {
		return &ValidationError{Problems: []string{"payload must be an object"}}
	}
	v.mu.RLock()
	schema, ok := v.schemas[contentType]
	v.mu.RUnlock()
	if !ok {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return fmt.Errorf("failed to validate payload: %w", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return &ValidationError{Problems: problems}
}
