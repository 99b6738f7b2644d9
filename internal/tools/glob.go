package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

const globDescription = `Fast file pattern matching tool.

Usage:
- Supports glob patterns like "**/*.js" or "src/**/*.ts"
- Returns matching file paths relative to the search directory, sorted
- Use this tool when you need to find files by name patterns`

// maxGlobResults caps the number of paths returned to the model.
const maxGlobResults = 100

// Glob matches files under a root directory with doublestar patterns.
type Glob struct {
	root string
}

// GlobInput is the argument shape of the glob tool.
type GlobInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

// GlobOutput is returned as the tool result.
type GlobOutput struct {
	Files     []string `json:"files"`
	Count     int      `json:"count"`
	Truncated bool     `json:"truncated,omitempty"`
}

// NewGlob creates the glob tool rooted at the given directory.
func NewGlob(root string) *Glob {
	return &Glob{root: root}
}

func (t *Glob) ID() string          { return "glob" }
func (t *Glob) Description() string { return globDescription }

func (t *Glob) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {
				"type": "string",
				"description": "The glob pattern to match files against"
			},
			"path": {
				"type": "string",
				"description": "Directory to search in (default: the tool root)"
			}
		},
		"required": ["pattern"]
	}`)
}

func (t *Glob) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var params GlobInput
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.Pattern == "" {
		return nil, fmt.Errorf("pattern is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	searchDir := t.root
	if params.Path != "" {
		if filepath.IsAbs(params.Path) {
			searchDir = params.Path
		} else {
			searchDir = filepath.Join(searchDir, params.Path)
		}
	}

	matches, err := doublestar.Glob(os.DirFS(searchDir), params.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", params.Pattern, err)
	}
	sort.Strings(matches)

	truncated := false
	if len(matches) > maxGlobResults {
		matches = matches[:maxGlobResults]
		truncated = true
	}

	return &GlobOutput{Files: matches, Count: len(matches), Truncated: truncated}, nil
}
