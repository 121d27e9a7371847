// Package filetools provides the file management tool set: reading, creating
// and updating files, and listing directories, all confined to one base
// directory.
package filetools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcphost/toolserver"
)

// Provider builds file tools rooted at a base directory. Paths are always
// resolved relative to it; escaping it is rejected.
type Provider struct {
	baseDir string
}

// New creates a Provider, creating the base directory if needed.
func New(baseDir string) (*Provider, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base directory")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create base directory")
	}
	return &Provider{baseDir: abs}, nil
}

// ReadFileRequest represents the read_file tool input.
type ReadFileRequest struct {
	FilePath string `json:"file_path" jsonschema:"title=file_path,description=The path of the file to read relative to the base directory."`
}

// ShowFolderTreeRequest represents the show_folder_tree tool input.
type ShowFolderTreeRequest struct {
	Path string `json:"path,omitempty" jsonschema:"title=path,description=The directory to list relative to the base directory. Defaults to the base directory."`
}

// WriteFileRequest represents the create_file and update_file tool inputs.
type WriteFileRequest struct {
	FilePath string `json:"file_path" jsonschema:"title=file_path,description=The path of the file relative to the base directory."`
	Content  string `json:"content" jsonschema:"title=content,description=The full content to write."`
}

// Tools returns the file tool set in catalog order.
func (p *Provider) Tools() ([]toolserver.ITool, error) {
	readFile, err := toolserver.NewTool("read_file",
		"Read the content of a specific file.",
		p.readFile)
	if err != nil {
		return nil, err
	}
	showTree, err := toolserver.NewTool("show_folder_tree",
		"List the contents (files and directories) of a specified directory.",
		p.showFolderTree)
	if err != nil {
		return nil, err
	}
	updateFile, err := toolserver.NewTool("update_file",
		"Update the content of an existing file. Overwrites the file.",
		p.updateFile)
	if err != nil {
		return nil, err
	}
	createFile, err := toolserver.NewTool("create_file",
		"Create a new file with the specified content.",
		p.createFile)
	if err != nil {
		return nil, err
	}
	return []toolserver.ITool{readFile, showTree, updateFile, createFile}, nil
}

// resolve maps a request path onto the base directory, rejecting absolute
// paths and traversal out of it.
func (p *Provider) resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", errors.Newf("absolute paths are not allowed: %s", rel)
	}
	full := filepath.Join(p.baseDir, rel)
	inside, err := filepath.Rel(p.baseDir, full)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", errors.Newf("path escapes the base directory: %s", rel)
	}
	return full, nil
}

func (p *Provider) readFile(_ context.Context, req *ReadFileRequest) (any, error) {
	full, err := p.resolve(req.FilePath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return nil, errors.Newf("file not found or is not a regular file: %s", req.FilePath)
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading file %s", req.FilePath)
	}
	return string(content), nil
}

func (p *Provider) showFolderTree(_ context.Context, req *ShowFolderTreeRequest) (any, error) {
	full, err := p.resolve(req.Path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, errors.Newf("directory not found: %s", req.Path)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Contents of '%s':\n", filepath.Join(".", req.Path))
	if len(entries) == 0 {
		sb.WriteString("  (empty)")
		return sb.String(), nil
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		kind := "[F]"
		if e.IsDir() {
			kind = "[D]"
		}
		lines = append(lines, "  "+kind+" "+e.Name())
	}
	sb.WriteString(strings.Join(lines, "\n"))
	return sb.String(), nil
}

func (p *Provider) createFile(_ context.Context, req *WriteFileRequest) (any, error) {
	full, err := p.resolve(req.FilePath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create parent directory for %s", req.FilePath)
	}
	if _, err := os.Stat(full); err == nil {
		return nil, errors.Newf("file already exists: %s", req.FilePath)
	}
	if err := os.WriteFile(full, []byte(req.Content), 0o644); err != nil {
		return nil, errors.Wrapf(err, "error creating file %s", req.FilePath)
	}
	return fmt.Sprintf("File '%s' created successfully.", req.FilePath), nil
}

func (p *Provider) updateFile(_ context.Context, req *WriteFileRequest) (any, error) {
	full, err := p.resolve(req.FilePath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return nil, errors.Newf("file not found or is not a regular file: %s", req.FilePath)
	}
	if err := os.WriteFile(full, []byte(req.Content), 0o644); err != nil {
		return nil, errors.Wrapf(err, "error updating file %s", req.FilePath)
	}
	return fmt.Sprintf("File '%s' updated successfully.", req.FilePath), nil
}
