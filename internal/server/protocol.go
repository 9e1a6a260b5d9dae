// Package server exposes the command surface to the UI over a unix socket.
//
// The wire protocol is newline-delimited JSON: the client writes one
// Request per line and reads one Response per line. The "subscribe"
// operation switches the connection into event streaming: the server
// writes one bus event per line until the client hangs up.
package server

import "encoding/json"

// Operation names accepted by the command surface.
const (
	OpHealthCheck       = "health_check"
	OpGetAppStatus      = "get_app_status"
	OpGetIndexingStatus = "get_indexing_status"
	OpSemanticSearch    = "semantic_search"
	OpUniversalSearch   = "universal_search"
	OpEntitySearch      = "entity_search"

	OpNoteCreate = "note_create"
	OpNoteGet    = "note_get"
	OpNoteList   = "note_list"
	OpNoteUpdate = "note_update"
	OpNoteDelete = "note_delete"

	OpTaskCreate = "task_create"
	OpTaskGet    = "task_get"
	OpTaskList   = "task_list"
	OpTaskUpdate = "task_update"
	OpTaskDelete = "task_delete"

	OpEntityLinkCreate       = "entity_link_create"
	OpEntityLinkList         = "entity_link_list"
	OpEntityLinkDelete       = "entity_link_delete"
	OpEntityLinkConfirm      = "entity_link_confirm"
	OpEntityLinksWithDetails = "entity_links_with_details"
	OpListSuggestedLinks     = "list_suggested_links"

	OpNoteAutoLink             = "note_auto_link"
	OpExtractTasksFromTerminal = "extract_tasks_from_terminal"

	OpPtyCreate = "pty_create"
	OpPtyWrite  = "pty_write"
	OpPtyResize = "pty_resize"
	OpPtyKill   = "pty_kill"

	OpFileRead          = "file_read"
	OpFileWrite         = "file_write"
	OpFileListDirectory = "file_list_directory"
	OpFileStat          = "file_stat"
	OpFileListAll       = "file_list_all"
	OpGetWorkspaceRoot  = "get_workspace_root"

	OpProfileList           = "profile_list"
	OpProfileCreate         = "profile_create"
	OpProfileSetActive      = "profile_set_active"
	OpProfileSetWatchedDirs = "profile_update_watched_directories"

	OpConfigGet = "config_get"
	OpConfigSet = "config_set"

	OpSessionStateSave = "session_state_save"
	OpSessionStateLoad = "session_state_load"

	OpGitEventInsert = "git_event_insert"
	OpGitEventList   = "git_event_list"
	OpChatInsert     = "chat_message_insert"
	OpChatList       = "chat_message_list"

	OpSubscribe = "subscribe"
)

// Request is one command invocation from the UI.
type Request struct {
	Operation string          `json:"operation"`
	Args      json.RawMessage `json:"args,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// Response is the command result. Either Data or Error is set.
type Response struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}
