package indexer

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreRules evaluates whether a path under a watch root should be skipped.
// Sources, in order: hidden files, .gitignore, .git/info/exclude,
// .contextignore (gitignore syntax, project-local) and the global gitignore.
type IgnoreRules struct {
	root     string
	matchers []*gitignore.GitIgnore
}

// NewIgnoreRules builds a fresh rule set for a watch root. Missing ignore
// files are simply absent from the set.
func NewIgnoreRules(root string) *IgnoreRules {
	r := &IgnoreRules{root: root}

	candidates := []string{
		filepath.Join(root, ".gitignore"),
		filepath.Join(root, ".git", "info", "exclude"),
		filepath.Join(root, ".contextignore"),
	}
	if global := globalGitignorePath(); global != "" {
		candidates = append(candidates, global)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if m, err := gitignore.CompileIgnoreFile(path); err == nil {
			r.matchers = append(r.matchers, m)
		}
	}
	return r
}

func globalGitignorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, p := range []string{
		filepath.Join(home, ".config", "git", "ignore"),
		filepath.Join(home, ".gitignore_global"),
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Ignored reports whether path should be excluded from indexing.
func (r *IgnoreRules) Ignored(path string) bool {
	rel, err := filepath.Rel(r.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		// Outside the root, not ours to index.
		return true
	}

	for _, segment := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}

	for _, m := range r.matchers {
		if m.MatchesPath(rel) {
			return true
		}
	}
	return false
}
