package schema_test

import (
	"reflect"
	"testing"

	"github.com/effective-security/mcphost/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type writeFileInput struct {
	FilePath string `json:"file_path" jsonschema:"description=Path of the file relative to the working directory."`
	Content  string `json:"content" jsonschema:"description=Content to write."`
	Append   bool   `json:"append,omitempty" jsonschema:"description=Append instead of overwrite."`
}

type nestedInput struct {
	Target writeFileInput   `json:"target"`
	Labels []writeFileInput `json:"labels,omitempty"`
}

func Test_New(t *testing.T) {
	sc, err := schema.New(reflect.TypeOf(writeFileInput{}))
	require.NoError(t, err)
	require.NotNil(t, sc.Parameters)

	assert.Equal(t, "object", sc.Parameters.Type)
	assert.Equal(t, []string{"file_path", "content"}, sc.Parameters.Required)

	props := sc.Parameters.Properties
	require.NotNil(t, props)

	fp, ok := props.Get("file_path")
	require.True(t, ok)
	assert.Equal(t, "string", fp.Type)
	assert.Equal(t, "Path of the file relative to the working directory.", fp.Description)

	ap, ok := props.Get("append")
	require.True(t, ok)
	assert.Equal(t, "boolean", ap.Type)

	raw, err := sc.MarshalParameters()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"file_path"`)
	assert.NotContains(t, string(raw), "$ref")
}

func Test_NewNested(t *testing.T) {
	sc, err := schema.New(reflect.TypeOf(nestedInput{}))
	require.NoError(t, err)

	raw, err := sc.MarshalParameters()
	require.NoError(t, err)

	// nested structs are inlined, no dangling references
	assert.NotContains(t, string(raw), "$ref")
	assert.Contains(t, string(raw), `"target"`)
	assert.Contains(t, string(raw), `"content"`)
}

func Test_NewCached(t *testing.T) {
	a, err := schema.New(reflect.TypeOf(writeFileInput{}))
	require.NoError(t, err)
	b, err := schema.New(reflect.TypeOf(writeFileInput{}))
	require.NoError(t, err)
	assert.Same(t, a, b)
}
