package indexer

import (
	"path/filepath"
	"strings"
)

// indexableExtensions is the fixed set of file extensions submitted to the
// per-file pipeline.
var indexableExtensions = map[string]bool{
	"rs": true, "py": true, "ts": true, "tsx": true, "js": true, "jsx": true,
	"md": true, "txt": true, "toml": true, "json": true, "yaml": true,
	"yml": true, "html": true, "css": true, "sql": true, "sh": true,
	"bash": true, "zsh": true,
}

func extensionOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// IsIndexable reports whether the file's extension is in the indexable set.
func IsIndexable(path string) bool {
	return indexableExtensions[extensionOf(path)]
}

// DetectLanguage maps a file extension to the language tag sent to the
// sidecar.
func DetectLanguage(path string) string {
	switch extensionOf(path) {
	case "rs":
		return "rust"
	case "py":
		return "python"
	case "ts", "tsx":
		return "typescript"
	case "js", "jsx":
		return "javascript"
	case "md":
		return "markdown"
	case "toml":
		return "toml"
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	case "html":
		return "html"
	case "css":
		return "css"
	case "sql":
		return "sql"
	case "sh", "bash", "zsh":
		return "shell"
	default:
		return "text"
	}
}

// DetectSourceType classifies a file as code, docs, config, test or
// unknown. Test detection wins over extension-based classification.
func DetectSourceType(path string) string {
	norm := filepath.ToSlash(path)
	if strings.Contains(norm, "/tests/") ||
		strings.Contains(norm, "/test/") ||
		strings.Contains(norm, "__tests__") ||
		strings.Contains(norm, "test_") ||
		strings.Contains(norm, ".test.") ||
		strings.Contains(norm, ".spec.") {
		return "test"
	}

	switch extensionOf(path) {
	case "md", "txt":
		return "docs"
	case "toml", "json", "yaml", "yml":
		return "config"
	case "rs", "py", "ts", "tsx", "js", "jsx", "html", "css", "sql", "sh", "bash", "zsh":
		return "code"
	default:
		return "unknown"
	}
}
