package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cortexkb/cortex/internal/indexer"
)

// FileReadResponse is the file_read result.
type FileReadResponse struct {
	Content   string  `json:"content"`
	Size      int64   `json:"size"`
	Extension *string `json:"extension"`
	Path      string  `json:"path"`
}

// DirEntry is one file_list_directory row.
type DirEntry struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	IsDir     bool    `json:"is_dir"`
	Extension *string `json:"extension"`
	Size      int64   `json:"size"`
}

// FileStat is the file_stat result.
type FileStat struct {
	Path      string  `json:"path"`
	Size      int64   `json:"size"`
	IsDir     bool    `json:"is_dir"`
	IsFile    bool    `json:"is_file"`
	Extension *string `json:"extension"`
	ReadOnly  bool    `json:"readonly"`
}

// FileEntry is one file_list_all row.
type FileEntry struct {
	Path         string  `json:"path"`
	RelativePath string  `json:"relative_path"`
	IsDir        bool    `json:"is_dir"`
	Extension    *string `json:"extension"`
}

type pathArgs struct {
	Path string `json:"path"`
}

func extensionPtr(path string) *string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return nil
	}
	return &ext
}

func resolvePath(path string) (string, error) {
	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("path '%s' is not accessible: %v", path, err)
	}
	return filepath.Abs(canonical)
}

func (s *Server) handleFileRead(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args pathArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}

	canonical, err := resolvePath(args.Path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %v", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("path '%s' is not a file", canonical)
	}

	content, err := os.ReadFile(canonical)
	if err != nil {
		return nil, fmt.Errorf("read file: %v", err)
	}

	return FileReadResponse{
		Content:   string(content),
		Size:      info.Size(),
		Extension: extensionPtr(canonical),
		Path:      canonical,
	}, nil
}

type fileWriteArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (s *Server) handleFileWrite(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args fileWriteArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}

	parent := filepath.Dir(args.Path)
	if _, err := os.Stat(parent); err != nil {
		return nil, fmt.Errorf("parent directory '%s' does not exist", parent)
	}
	if err := os.WriteFile(args.Path, []byte(args.Content), 0o644); err != nil {
		return nil, fmt.Errorf("write file: %v", err)
	}
	return true, nil
}

func (s *Server) handleFileListDirectory(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args pathArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}

	canonical, err := resolvePath(args.Path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(canonical)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("path '%s' is not a directory", canonical)
	}

	dirEntries, err := os.ReadDir(canonical)
	if err != nil {
		return nil, fmt.Errorf("read directory: %v", err)
	}

	entries := make([]DirEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		entryInfo, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("read entry metadata: %v", err)
		}
		entryPath := filepath.Join(canonical, de.Name())
		entries = append(entries, DirEntry{
			Name:      de.Name(),
			Path:      entryPath,
			IsDir:     entryInfo.IsDir(),
			Extension: extensionPtr(entryPath),
			Size:      entryInfo.Size(),
		})
	}

	// Directories first, then case-insensitive by name.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
	return entries, nil
}

func (s *Server) handleFileStat(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args pathArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}

	canonical, err := resolvePath(args.Path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %v", err)
	}

	return FileStat{
		Path:      canonical,
		Size:      info.Size(),
		IsDir:     info.IsDir(),
		IsFile:    info.Mode().IsRegular(),
		Extension: extensionPtr(canonical),
		ReadOnly:  info.Mode().Perm()&0o200 == 0,
	}, nil
}

type fileListAllArgs struct {
	Root string `json:"root"`
}

func (s *Server) handleFileListAll(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args fileListAllArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}

	info, err := os.Stat(args.Root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("root '%s' is not a directory", args.Root)
	}

	rules := indexer.NewIgnoreRules(args.Root)
	entries := make([]FileEntry, 0)
	_ = filepath.WalkDir(args.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != args.Root && rules.Ignored(path) {
				return fs.SkipDir
			}
			return nil
		}
		if rules.Ignored(path) {
			return nil
		}
		rel, err := filepath.Rel(args.Root, path)
		if err != nil {
			rel = path
		}
		entries = append(entries, FileEntry{
			Path:         path,
			RelativePath: rel,
			IsDir:        false,
			Extension:    extensionPtr(path),
		})
		return nil
	})

	sort.SliceStable(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].RelativePath) < strings.ToLower(entries[j].RelativePath)
	})
	return entries, nil
}

func (s *Server) handleGetWorkspaceRoot(_ context.Context, _ json.RawMessage) (interface{}, error) {
	return map[string]string{"root": s.workspace}, nil
}
