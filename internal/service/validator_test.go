package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageSchema = `{
  "type": "object",
  "required": ["title"],
  "properties": {
    "title": {"type": "object", "properties": {"en": {"type": "string"}, "ar": {"type": "string"}}},
    "order": {"type": "integer", "minimum": 0}
  }
}`

func TestSchemaValidator(t *testing.T) {
	v := NewSchemaValidator()
	require.NoError(t, v.RegisterSchema("PageContent", []byte(pageSchema)))

	tests := []struct {
		name        string
		contentType string
		payload     map[string]any
		wantErr     bool
	}{
		{name: "valid", contentType: "PageContent", payload: map[string]any{"title": map[string]any{"en": "Home"}}},
		{name: "missing required", contentType: "PageContent", payload: map[string]any{"order": 1}, wantErr: true},
		{name: "wrong type", contentType: "PageContent", payload: map[string]any{"title": map[string]any{"ar": 5}}, wantErr: true},
		{name: "no schema accepts any object", contentType: "Banner", payload: map[string]any{"anything": true}},
		{name: "nil payload", contentType: "Banner", payload: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.contentType, tt.payload)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidationFailed)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.NotEmpty(t, verr.Problems)
		})
	}
}

func TestSchemaValidator_RegisterInvalid(t *testing.T) {
	v := NewSchemaValidator()
	assert.Error(t, v.RegisterSchema("PageContent", []byte(`{"type": 12`)))
}

func TestSchemaValidator_LoadSchemaDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PageContent.json"), []byte(pageSchema), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	v := NewSchemaValidator()
	n, err := v.LoadSchemaDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, v.Validate("PageContent", map[string]any{}), ErrValidationFailed)

	n, err = v.LoadSchemaDir("")
	require.NoError(t, err)
	assert.Zero(t, n)
}
