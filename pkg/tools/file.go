// Package tools provides the concrete tool.Handler implementations a
// conduit deployment wires into its Executor: file I/O, sandboxed shell,
// text search, web fetch, and document readers, grounded on the teacher's
// pkg/tool/filetool and pkg/tools handler set.
package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/arclane/conduit/pkg/tool"
)

// ReadFile reads a UTF-8 text file relative to the execution context's
// working directory, grounded on pkg/tool/filetool/read_file.go.
type ReadFile struct{}

func (ReadFile) Definition() tool.Def {
	return tool.Def{
		Name:        "read_file",
		Description: "Read the contents of a text file.",
		InputSchema: &jsonschema.Schema{Required: []string{"path"}},
	}
}

func (ReadFile) Execute(ctx context.Context, ectx tool.ExecContext, args map[string]any) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", fmt.Errorf("read_file: path is required")
	}
	resolved, err := resolve(ectx.WorkingDir, path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}
	return string(data), nil
}

// WriteFile writes (overwriting) a UTF-8 text file relative to the working
// directory, grounded on pkg/tool/filetool/write_file.go.
type WriteFile struct{}

func (WriteFile) Definition() tool.Def {
	return tool.Def{
		Name:        "write_file",
		Description: "Write content to a file, creating or overwriting it.",
		InputSchema: &jsonschema.Schema{Required: []string{"path", "content"}},
	}
}

func (WriteFile) Execute(ctx context.Context, ectx tool.ExecContext, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if path == "" {
		return "", fmt.Errorf("write_file: path is required")
	}
	resolved, err := resolve(ectx.WorkingDir, path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", fmt.Errorf("write_file: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write_file: %w", err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
}

// EditFile performs a single literal search/replace in a file, grounded on
// pkg/tool/filetool/search_replace.go.
type EditFile struct{}

func (EditFile) Definition() tool.Def {
	return tool.Def{
		Name:        "edit_file",
		Description: "Replace the first occurrence of a string in a file with another.",
		InputSchema: &jsonschema.Schema{Required: []string{"path", "search", "replace"}},
	}
}

func (EditFile) Execute(ctx context.Context, ectx tool.ExecContext, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	search, _ := args["search"].(string)
	replace, _ := args["replace"].(string)
	if path == "" || search == "" {
		return "", fmt.Errorf("edit_file: path and search are required")
	}
	resolved, err := resolve(ectx.WorkingDir, path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("edit_file: %w", err)
	}
	content := string(data)
	if !strings.Contains(content, search) {
		return "", fmt.Errorf("edit_file: search text not found in %s", path)
	}
	updated := strings.Replace(content, search, replace, 1)
	if err := os.WriteFile(resolved, []byte(updated), 0o644); err != nil {
		return "", fmt.Errorf("edit_file: %w", err)
	}
	return fmt.Sprintf("replaced 1 occurrence in %s", path), nil
}

// resolve joins path onto workingDir (if set) and rejects escapes outside
// of it via ".." traversal, the way filetool's handlers guard working-
// directory confinement.
func resolve(workingDir, path string) (string, error) {
	if workingDir == "" {
		return path, nil
	}
	full := filepath.Join(workingDir, path)
	rel, err := filepath.Rel(workingDir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q escapes working directory", path)
	}
	return full, nil
}
