package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestHiddenFilesIgnored(t *testing.T) {
	root := t.TempDir()
	rules := NewIgnoreRules(root)

	assert.True(t, rules.Ignored(filepath.Join(root, ".env")))
	assert.True(t, rules.Ignored(filepath.Join(root, ".git", "config")))
	assert.True(t, rules.Ignored(filepath.Join(root, ".hidden", "visible.rs")))
	assert.False(t, rules.Ignored(filepath.Join(root, "src", "main.rs")))
}

func TestGitignoreRespected(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "target/\n*.log\n")

	rules := NewIgnoreRules(root)
	assert.True(t, rules.Ignored(filepath.Join(root, "target", "debug", "main.rs")))
	assert.True(t, rules.Ignored(filepath.Join(root, "build.log")))
	assert.False(t, rules.Ignored(filepath.Join(root, "src", "main.rs")))
}

func TestContextignoreRespected(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".contextignore"), "generated/\n")

	rules := NewIgnoreRules(root)
	assert.True(t, rules.Ignored(filepath.Join(root, "generated", "api.ts")))
	assert.False(t, rules.Ignored(filepath.Join(root, "src", "api.ts")))
}

func TestGitInfoExcludeRespected(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".git", "info", "exclude"), "scratch/\n")

	rules := NewIgnoreRules(root)
	assert.True(t, rules.Ignored(filepath.Join(root, "scratch", "notes.md")))
}

func TestOutsideRootIgnored(t *testing.T) {
	root := t.TempDir()
	rules := NewIgnoreRules(root)
	assert.True(t, rules.Ignored("/somewhere/else/main.rs"))
}
