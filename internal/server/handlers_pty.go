package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cortexkb/cortex/internal/term"
)

type ptyCreateArgs struct {
	SessionID string `json:"session_id"`
	Cwd       string `json:"cwd"`
	Cols      uint16 `json:"cols"`
	Rows      uint16 `json:"rows"`
}

func (s *Server) handlePtyCreate(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args ptyCreateArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.SessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	if args.Cwd != "" {
		if err := s.validateCwd(args.Cwd); err != nil {
			return nil, err
		}
	}

	var shellCmd *term.ShellCommand
	if s.hookDir != "" {
		cmd := term.BuildShellCommand(term.DetectDefaultShell(), s.hookDir)
		shellCmd = &cmd
	}

	if err := s.ptys.CreateSession(args.SessionID, args.Cwd, args.Cols, args.Rows, shellCmd); err != nil {
		return nil, err
	}
	return true, nil
}

// validateCwd requires an existing directory inside a watched directory of
// the active profile. A profile with no watched directories allows any
// existing directory.
func (s *Server) validateCwd(cwd string) error {
	info, err := os.Stat(cwd)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("invalid cwd: path '%s' does not exist or is not a directory", cwd)
	}

	watched, err := s.store.ActiveWatchedDirectories()
	if err != nil {
		return err
	}
	if len(watched) == 0 {
		return nil
	}
	for _, dir := range watched {
		rel, err := filepath.Rel(dir, cwd)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("invalid cwd: path '%s' is outside the workspace scope", cwd)
}

type ptyWriteArgs struct {
	SessionID string `json:"session_id"`
	Data      string `json:"data"` // base64-encoded bytes
}

func (s *Server) handlePtyWrite(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args ptyWriteArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	decoded, err := base64.StdEncoding.DecodeString(args.Data)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if err := s.ptys.Write(args.SessionID, decoded); err != nil {
		return nil, err
	}
	return true, nil
}

type ptyResizeArgs struct {
	SessionID string `json:"session_id"`
	Cols      uint16 `json:"cols"`
	Rows      uint16 `json:"rows"`
}

func (s *Server) handlePtyResize(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args ptyResizeArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := s.ptys.Resize(args.SessionID, args.Cols, args.Rows); err != nil {
		return nil, err
	}
	return true, nil
}

type ptyKillArgs struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handlePtyKill(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args ptyKillArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := s.ptys.Kill(args.SessionID); err != nil {
		return nil, err
	}
	return true, nil
}
