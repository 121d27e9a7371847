package filetools_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/effective-security/mcphost/toolserver"
	"github.com/effective-security/mcphost/toolserver/filetools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T) (*filetools.Provider, map[string]toolserver.ITool) {
	t.Helper()
	p, err := filetools.New(t.TempDir())
	require.NoError(t, err)

	tools, err := p.Tools()
	require.NoError(t, err)
	require.Len(t, tools, 4)

	byName := make(map[string]toolserver.ITool, len(tools))
	for _, tool := range tools {
		byName[tool.Name()] = tool
	}
	return p, byName
}

func call(t *testing.T, tool toolserver.ITool, args string) (string, error) {
	t.Helper()
	raw, err := tool.Call(context.Background(), json.RawMessage(args))
	if err != nil {
		return "", err
	}
	var out string
	require.NoError(t, json.Unmarshal(raw, &out))
	return out, nil
}

func Test_Catalog(t *testing.T) {
	_, tools := newProvider(t)
	for _, name := range []string{"read_file", "show_folder_tree", "update_file", "create_file"} {
		tool, ok := tools[name]
		require.True(t, ok, name)
		assert.NotEmpty(t, tool.Description())
		assert.Contains(t, string(tool.InputSchema()), `"type":"object"`)
	}
}

func Test_CreateReadUpdate(t *testing.T) {
	_, tools := newProvider(t)

	content := gofakeit.Paragraph(2, 3, 8, "\n")
	args, err := json.Marshal(map[string]string{
		"file_path": "notes/draft.txt",
		"content":   content,
	})
	require.NoError(t, err)

	out, err := call(t, tools["create_file"], string(args))
	require.NoError(t, err)
	assert.Equal(t, "File 'notes/draft.txt' created successfully.", out)

	out, err = call(t, tools["read_file"], `{"file_path":"notes/draft.txt"}`)
	require.NoError(t, err)
	assert.Equal(t, content, out)

	updated := gofakeit.Sentence(10)
	args, err = json.Marshal(map[string]string{
		"file_path": "notes/draft.txt",
		"content":   updated,
	})
	require.NoError(t, err)

	out, err = call(t, tools["update_file"], string(args))
	require.NoError(t, err)
	assert.Equal(t, "File 'notes/draft.txt' updated successfully.", out)

	out, err = call(t, tools["read_file"], `{"file_path":"notes/draft.txt"}`)
	require.NoError(t, err)
	assert.Equal(t, updated, out)
}

func Test_CreateExisting(t *testing.T) {
	_, tools := newProvider(t)

	_, err := call(t, tools["create_file"], `{"file_path":"a.txt","content":"one"}`)
	require.NoError(t, err)

	_, err = call(t, tools["create_file"], `{"file_path":"a.txt","content":"two"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file already exists: a.txt")
}

func Test_UpdateMissing(t *testing.T) {
	_, tools := newProvider(t)

	_, err := call(t, tools["update_file"], `{"file_path":"missing.txt","content":"x"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found or is not a regular file: missing.txt")
}

func Test_ReadMissing(t *testing.T) {
	_, tools := newProvider(t)

	_, err := call(t, tools["read_file"], `{"file_path":"missing.txt"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found or is not a regular file")
}

func Test_ShowFolderTree(t *testing.T) {
	_, tools := newProvider(t)

	out, err := call(t, tools["show_folder_tree"], `{}`)
	require.NoError(t, err)
	assert.Contains(t, out, "(empty)")

	_, err = call(t, tools["create_file"], `{"file_path":"src/main.go","content":"package main"}`)
	require.NoError(t, err)
	_, err = call(t, tools["create_file"], `{"file_path":"README.md","content":"hello"}`)
	require.NoError(t, err)

	out, err = call(t, tools["show_folder_tree"], `{}`)
	require.NoError(t, err)
	assert.Contains(t, out, "[F] README.md")
	assert.Contains(t, out, "[D] src")

	out, err = call(t, tools["show_folder_tree"], `{"path":"src"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "[F] main.go")

	_, err = call(t, tools["show_folder_tree"], `{"path":"nope"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory not found")
}

func Test_PathTraversalRejected(t *testing.T) {
	_, tools := newProvider(t)

	tcases := []string{
		fmt.Sprintf(`{"file_path":%q}`, "../outside.txt"),
		fmt.Sprintf(`{"file_path":%q}`, "a/../../outside.txt"),
		fmt.Sprintf(`{"file_path":%q}`, "/etc/passwd"),
	}
	for _, args := range tcases {
		_, err := call(t, tools["read_file"], args)
		require.Error(t, err, args)
		_, err = call(t, tools["create_file"], `{"content":"x","file_path":"../escape.txt"}`)
		require.Error(t, err)
	}
}
