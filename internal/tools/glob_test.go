package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func globDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.go"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "nested.go"), nil, 0o644))
	return dir
}

func TestGlobMatchesRecursively(t *testing.T) {
	tool := NewGlob(globDir(t))

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"pattern":"**/*.go"}`))
	require.NoError(t, err)

	out, ok := result.(*GlobOutput)
	require.True(t, ok)
	assert.Equal(t, []string{"main.go", "sub/nested.go", "util.go"}, out.Files)
	assert.Equal(t, 3, out.Count)
	assert.False(t, out.Truncated)
}

func TestGlobSubdirectoryPath(t *testing.T) {
	tool := NewGlob(globDir(t))

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"pattern":"*.go","path":"sub"}`))
	require.NoError(t, err)

	out := result.(*GlobOutput)
	assert.Equal(t, []string{"nested.go"}, out.Files)
}

func TestGlobNoMatches(t *testing.T) {
	tool := NewGlob(globDir(t))

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"pattern":"**/*.rs"}`))
	require.NoError(t, err)

	out := result.(*GlobOutput)
	assert.Empty(t, out.Files)
	assert.Zero(t, out.Count)
}

func TestGlobMissingPattern(t *testing.T) {
	tool := NewGlob(globDir(t))

	_, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	assert.Error(t, err)
}
