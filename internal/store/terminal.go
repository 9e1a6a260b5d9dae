package store

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// TerminalCommandRow is a persisted shell command.
type TerminalCommandRow struct {
	ID            string  `json:"id"`
	ProfileID     *string `json:"workspace_profile_id"`
	Command       string  `json:"command"`
	Cwd           *string `json:"cwd"`
	ExitCode      *int    `json:"exit_code"`
	StdoutPreview *string `json:"stdout_preview"`
	SizeBytes     *int64  `json:"stdout_size_bytes"`
	DurationMs    *int64  `json:"duration_ms"`
	CreatedAt     string  `json:"created_at"`
}

// InsertTerminalCommand stores one command record. The captured output is
// truncated to the max_stdout_capture_bytes app_config value for the
// preview; the full size is kept alongside.
func (s *Store) InsertTerminalCommand(profileID, command string, cwd *string, exitCode *int, durationMs *int64, output *string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxPreview := 10240
	var raw string
	if err := s.db.QueryRow("SELECT value FROM app_config WHERE key = 'max_stdout_capture_bytes'").Scan(&raw); err == nil {
		if v, perr := strconv.Atoi(raw); perr == nil && v > 0 {
			maxPreview = v
		}
	}

	var preview *string
	var sizeBytes *int64
	if output != nil {
		size := int64(len(*output))
		sizeBytes = &size
		p := *output
		if len(p) > maxPreview {
			p = p[:maxPreview]
		}
		preview = &p
	}

	id := uuid.New().String()
	_, err := s.db.Exec(`
		INSERT INTO terminal_commands (id, workspace_profile_id, command, cwd, exit_code, duration_ms, stdout_preview, stdout_size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, profileID, command, cwd, exitCode, durationMs, preview, sizeBytes,
	)
	if err != nil {
		return "", fmt.Errorf("insert terminal command: %w", err)
	}
	return id, nil
}

// ListTerminalCommands returns the profile's most recent commands.
func (s *Store) ListTerminalCommands(profileID string, limit int) ([]TerminalCommandRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, workspace_profile_id, command, cwd, exit_code, stdout_preview,
		       stdout_size_bytes, duration_ms, created_at
		FROM terminal_commands
		WHERE workspace_profile_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list terminal commands: %w", err)
	}
	defer rows.Close()

	cmds := make([]TerminalCommandRow, 0)
	for rows.Next() {
		var c TerminalCommandRow
		if err := rows.Scan(
			&c.ID, &c.ProfileID, &c.Command, &c.Cwd, &c.ExitCode,
			&c.StdoutPreview, &c.SizeBytes, &c.DurationMs, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}
