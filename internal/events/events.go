// Package events defines the typed event payloads emitted to the UI and the
// in-process bus that carries them.
package events

// Event name constants. These are the wire-level keys the UI subscribes to.
const (
	IndexingProgress     = "indexing:progress"
	IndexingFileComplete = "indexing:file-complete"
	IndexingFileError    = "indexing:file-error"
	IndexingFileDeleted  = "indexing:file-deleted"

	PtyOutput = "pty:output"
	PtyExit   = "pty:exit"

	TerminalCommandStart   = "terminal:command-start"
	TerminalCommandEnd     = "terminal:command-end"
	TerminalPipelineStatus = "terminal:pipeline-status"
)

// IndexingProgressPayload reports indexing counters.
type IndexingProgressPayload struct {
	Completed   int     `json:"completed"`
	Total       int     `json:"total"`
	CurrentFile *string `json:"current_file"`
	IsIdle      bool    `json:"is_idle"`
}

// IndexingFileCompletePayload is emitted after a file is ingested.
type IndexingFileCompletePayload struct {
	FilePath   string `json:"file_path"`
	ChunkCount int    `json:"chunk_count"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
}

// IndexingFileErrorPayload is emitted when a file fails to ingest.
type IndexingFileErrorPayload struct {
	FilePath  string `json:"file_path"`
	Error     string `json:"error"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// IndexingFileDeletedPayload is emitted after a file's index rows are removed.
type IndexingFileDeletedPayload struct {
	FilePath string `json:"file_path"`
}

// PtyOutputPayload carries base64-encoded clean terminal bytes.
type PtyOutputPayload struct {
	SessionID string `json:"session_id"`
	Data      string `json:"data"`
}

// PtyExitPayload is emitted when a PTY session's shell exits.
type PtyExitPayload struct {
	SessionID string `json:"session_id"`
	ExitCode  *int   `json:"exit_code"`
}

// TerminalCommandStartPayload marks the start of a shell command.
type TerminalCommandStartPayload struct {
	SessionID string `json:"session_id"`
	Command   string `json:"command"`
}

// TerminalCommandEndPayload carries the reassembled command record.
type TerminalCommandEndPayload struct {
	SessionID  string  `json:"session_id"`
	Command    string  `json:"command"`
	ExitCode   *int    `json:"exit_code"`
	Cwd        *string `json:"cwd"`
	DurationMs *int64  `json:"duration_ms"`
	Output     *string `json:"output"`
}

// TerminalPipelineStatusPayload reports long-running command status.
// Status is one of "running", "completed", "failed".
type TerminalPipelineStatusPayload struct {
	SessionID  string `json:"session_id"`
	Command    string `json:"command"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
}
