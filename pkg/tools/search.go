package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/arclane/conduit/pkg/tool"
)

// GrepSearch searches text files under the working directory for lines
// matching a regular expression, grounded on pkg/tools/grep_search.go.
type GrepSearch struct {
	// MaxMatches bounds how many matches are returned; 0 uses a sane
	// default so a broad pattern over a large tree can't blow up the
	// tool-result payload fed back to the model.
	MaxMatches int
}

const defaultMaxMatches = 200

func (GrepSearch) Definition() tool.Def {
	return tool.Def{
		Name:        "grep_search",
		Description: "Search files under the working directory for lines matching a regular expression.",
		InputSchema: &jsonschema.Schema{Required: []string{"pattern"}},
	}
}

func (g GrepSearch) Execute(ctx context.Context, ectx tool.ExecContext, args map[string]any) (string, error) {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return "", fmt.Errorf("grep_search: pattern is required")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("grep_search: invalid pattern: %w", err)
	}

	root := ectx.WorkingDir
	if root == "" {
		root = "."
	}
	limit := g.MaxMatches
	if limit <= 0 {
		limit = defaultMaxMatches
	}

	var out strings.Builder
	matches := 0
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || matches >= limit {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		grepFile(path, re, &matches, limit, &out)
		return nil
	})
	if walkErr != nil {
		return "", fmt.Errorf("grep_search: %w", walkErr)
	}
	if matches == 0 {
		return "no matches", nil
	}
	return out.String(), nil
}

func grepFile(path string, re *regexp.Regexp, matches *int, limit int, out *strings.Builder) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if *matches >= limit {
			return
		}
		line := scanner.Text()
		if re.MatchString(line) {
			fmt.Fprintf(out, "%s:%d: %s\n", path, lineNo, line)
			*matches++
		}
	}
}
