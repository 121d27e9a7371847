package gittools_test

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/effective-security/mcphost/toolserver"
	"github.com/effective-security/mcphost/toolserver/gittools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T) (string, map[string]toolserver.ITool) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not installed")
	}

	dir := t.TempDir()
	p, err := gittools.New(dir)
	require.NoError(t, err)

	tools, err := p.Tools()
	require.NoError(t, err)
	require.Len(t, tools, 4)

	byName := make(map[string]toolserver.ITool, len(tools))
	for _, tool := range tools {
		byName[tool.Name()] = tool
	}
	return dir, byName
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

func gitConfig(t *testing.T, dir string) {
	t.Helper()
	for _, args := range [][]string{
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test User"},
	} {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		require.NoError(t, cmd.Run())
	}
}

func Test_InitStatusCommit(t *testing.T) {
	dir, tools := newProvider(t)

	out, err := call(t, tools["git_init"], `{}`)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	gitConfig(t, dir)

	out, err = call(t, tools["git_status"], `{}`)
	require.NoError(t, err)
	assert.Contains(t, out, "No commits yet")

	// nothing staged yet
	out, err = call(t, tools["git_commit"], `{"message":"empty"}`)
	require.NoError(t, err)
	assert.Equal(t, "No changes detected to commit.", out)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))

	out, err = call(t, tools["git_commit"], `{"message":"add main"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "add main")

	// committing again with no changes
	out, err = call(t, tools["git_commit"], `{"message":"noop"}`)
	require.NoError(t, err)
	assert.Equal(t, "No changes detected to commit.", out)
}

func Test_RunCommand(t *testing.T) {
	dir, tools := newProvider(t)

	out, err := call(t, tools["run_command"], `{"command":"echo hello from tools"}`)
	require.NoError(t, err)
	assert.Equal(t, "hello from tools", out)

	// commands run inside the repository directory
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644))
	out, err = call(t, tools["run_command"], `{"command":"ls"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "marker.txt")

	out, err = call(t, tools["run_command"], `{"command":"true"}`)
	require.NoError(t, err)
	assert.Equal(t, "Command executed successfully (No stdout).", out)
}

func Test_RunCommandFailure(t *testing.T) {
	_, tools := newProvider(t)

	_, err := call(t, tools["run_command"], `{"command":"exit 3"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed with exit code 3")

	_, err = call(t, tools["run_command"], `{"command":"  "}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command is required")
}

func Test_RunCommandAsync(t *testing.T) {
	_, tools := newProvider(t)

	out, err := call(t, tools["run_command"], `{"command":"sleep 0.1","async_run":true}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Launched async command (PID:")
}
