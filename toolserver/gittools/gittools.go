// Package gittools provides the version control tool set: repository
// initialization, staging and committing, status, and arbitrary command
// execution inside the repository directory.
package gittools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcphost/toolserver"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcphost", "gittools")

// Provider builds version control tools operating on one repository
// directory.
type Provider struct {
	repoDir string
}

// New creates a Provider, creating the repository directory if needed.
func New(repoDir string) (*Provider, error) {
	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create repository directory")
	}
	return &Provider{repoDir: repoDir}, nil
}

// GitInitRequest represents the git_init tool input.
type GitInitRequest struct {
	CreateNewRepo bool `json:"create_new_repo,omitempty" jsonschema:"title=create_new_repo,description=Initialize a new empty repository if true."`
}

// GitCommitRequest represents the git_commit tool input.
type GitCommitRequest struct {
	Message string `json:"message" jsonschema:"title=message,description=The commit message."`
}

// GitStatusRequest represents the git_status tool input.
type GitStatusRequest struct{}

// CommandRequest represents the run_command tool input.
type CommandRequest struct {
	Command  string `json:"command" jsonschema:"title=command,description=The shell command to run inside the repository directory."`
	AsyncRun bool   `json:"async_run,omitempty" jsonschema:"title=async_run,description=If true runs the command without waiting for it to complete and does not capture output. Server start commands are best run asynchronously."`
}

// Tools returns the version control tool set in catalog order.
func (p *Provider) Tools() ([]toolserver.ITool, error) {
	gitInit, err := toolserver.NewTool("git_init",
		"Initializes the repository directory as a Git repository if it is not already.",
		p.gitInit)
	if err != nil {
		return nil, err
	}
	gitCommit, err := toolserver.NewTool("git_commit",
		"Stages all changes in the repository directory and commits them with the provided message.",
		p.gitCommit)
	if err != nil {
		return nil, err
	}
	gitStatus, err := toolserver.NewTool("git_status",
		"Shows the working tree status of the repository directory.",
		p.gitStatus)
	if err != nil {
		return nil, err
	}
	runCommand, err := toolserver.NewTool("run_command",
		"Runs an arbitrary shell command within the repository directory. Use 'async_run=true' for long-running processes or servers.",
		p.runCommand)
	if err != nil {
		return nil, err
	}
	return []toolserver.ITool{gitInit, gitCommit, gitStatus, runCommand}, nil
}

// git runs one git command against the repository and returns combined
// stdout/stderr text.
func (p *Provider) git(ctx context.Context, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", p.repoDir}, args...)...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String()), err
}

func (p *Provider) gitInit(ctx context.Context, _ *GitInitRequest) (any, error) {
	stdout, stderr, err := p.git(ctx, "init")
	if err != nil {
		return nil, errors.Newf("git init failed: %s", values.StringsCoalesce(stderr, err.Error()))
	}
	out := stdout
	if out == "" {
		out = "Git repository initialized."
	}
	if stderr != "" {
		out += "\nStderr: " + stderr
	}
	return out, nil
}

func (p *Provider) gitCommit(ctx context.Context, req *GitCommitRequest) (any, error) {
	if _, stderr, err := p.git(ctx, "add", "."); err != nil {
		return nil, errors.Newf("git add failed: %s", values.StringsCoalesce(stderr, err.Error()))
	}

	stdout, stderr, err := p.git(ctx, "commit", "-m", req.Message)
	if err != nil {
		combined := strings.ToLower(stdout + "\n" + stderr)
		if strings.Contains(combined, "nothing to commit") ||
			strings.Contains(combined, "no changes added to commit") ||
			strings.Contains(combined, "nothing added to commit") {
			return "No changes detected to commit.", nil
		}
		return nil, errors.Newf("git commit failed: %s", values.StringsCoalesce(stderr, stdout, err.Error()))
	}

	out := stdout
	if out == "" {
		out = fmt.Sprintf("Successfully committed with message: '%s'", req.Message)
	}
	if stderr != "" {
		out += "\nStderr: " + stderr
	}
	return out, nil
}

func (p *Provider) gitStatus(ctx context.Context, _ *GitStatusRequest) (any, error) {
	stdout, stderr, err := p.git(ctx, "status")
	if err != nil {
		return nil, errors.Newf("git status failed: %s", values.StringsCoalesce(stderr, err.Error()))
	}
	return stdout, nil
}

func (p *Provider) runCommand(ctx context.Context, req *CommandRequest) (any, error) {
	if strings.TrimSpace(req.Command) == "" {
		return nil, errors.New("command is required")
	}

	if req.AsyncRun {
		// Fire and forget: detach from the request context so the process
		// outlives the call.
		cmd := exec.Command("sh", "-c", req.Command)
		cmd.Dir = p.repoDir
		cmd.Stdout = nil
		cmd.Stderr = nil
		if err := cmd.Start(); err != nil {
			return nil, errors.Wrapf(err, "failed to launch async command '%s'", req.Command)
		}
		pid := cmd.Process.Pid
		go func() { _ = cmd.Wait() }()
		logger.KV(xlog.DEBUG, "status", "async_command_launched", "pid", pid, "command", req.Command)
		return fmt.Sprintf("Launched async command (PID: %d): %s", pid, req.Command), nil
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", req.Command)
	cmd.Dir = p.repoDir
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, errors.Newf("command '%s' failed with exit code %d.\nStderr: %s\nStdout: %s",
			req.Command, exitCode,
			values.StringsCoalesce(strings.TrimSpace(stderr.String()), "(no stderr)"),
			values.StringsCoalesce(strings.TrimSpace(stdout.String()), "(no stdout)"))
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		out = "Command executed successfully (No stdout)."
	}
	if s := strings.TrimSpace(stderr.String()); s != "" {
		out += "\nStderr: " + s
	}
	return out, nil
}
