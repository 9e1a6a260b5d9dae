package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Passive storage: rows written and read on behalf of the UI with no core
// behavior attached.

// GitEventRow is a recorded git event.
type GitEventRow struct {
	ID         string  `json:"id"`
	ProfileID  *string `json:"workspace_profile_id"`
	EventType  string  `json:"event_type"`
	RepoPath   *string `json:"repo_path"`
	RefName    *string `json:"ref_name"`
	CommitHash *string `json:"commit_hash"`
	Message    *string `json:"message"`
	Author     *string `json:"author"`
	CreatedAt  string  `json:"created_at"`
}

// InsertGitEvent stores a git event row.
func (s *Store) InsertGitEvent(profileID, eventType string, repoPath, refName, commitHash, message, author *string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	_, err := s.db.Exec(`
		INSERT INTO git_events (id, workspace_profile_id, event_type, repo_path, ref_name, commit_hash, message, author)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, profileID, eventType, repoPath, refName, commitHash, message, author,
	)
	if err != nil {
		return "", fmt.Errorf("insert git event: %w", err)
	}
	return id, nil
}

// ListGitEvents returns the profile's most recent git events.
func (s *Store) ListGitEvents(profileID string, limit int) ([]GitEventRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, workspace_profile_id, event_type, repo_path, ref_name, commit_hash, message, author, created_at
		FROM git_events
		WHERE workspace_profile_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list git events: %w", err)
	}
	defer rows.Close()

	evs := make([]GitEventRow, 0)
	for rows.Next() {
		var e GitEventRow
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.EventType, &e.RepoPath, &e.RefName, &e.CommitHash, &e.Message, &e.Author, &e.CreatedAt); err != nil {
			return nil, err
		}
		evs = append(evs, e)
	}
	return evs, rows.Err()
}

// ChatMessageRow is a stored chat message.
type ChatMessageRow struct {
	ID        string  `json:"id"`
	ProfileID *string `json:"workspace_profile_id"`
	ThreadID  *string `json:"thread_id"`
	Role      string  `json:"role"`
	Content   string  `json:"content"`
	CreatedAt string  `json:"created_at"`
}

// InsertChatMessage stores one chat message.
func (s *Store) InsertChatMessage(profileID string, threadID *string, role, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	_, err := s.db.Exec(`
		INSERT INTO chat_messages (id, workspace_profile_id, thread_id, role, content)
		VALUES (?, ?, ?, ?, ?)`,
		id, profileID, threadID, role, content,
	)
	if err != nil {
		return "", fmt.Errorf("insert chat message: %w", err)
	}
	return id, nil
}

// ListChatMessages returns a thread's messages oldest first.
func (s *Store) ListChatMessages(threadID string, limit int) ([]ChatMessageRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, workspace_profile_id, thread_id, role, content, created_at
		FROM chat_messages
		WHERE thread_id = ?
		ORDER BY created_at ASC
		LIMIT ?`, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]ChatMessageRow, 0)
	for rows.Next() {
		var m ChatMessageRow
		if err := rows.Scan(&m.ID, &m.ProfileID, &m.ThreadID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SaveSessionState stores a UI session snapshot for a profile.
func (s *Store) SaveSessionState(profileID, payload, trigger string, durationMinutes *int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if trigger == "" {
		trigger = "exit"
	}
	id := uuid.New().String()
	_, err := s.db.Exec(`
		INSERT INTO session_states (id, workspace_profile_id, payload, trigger, duration_minutes)
		VALUES (?, ?, ?, ?, ?)`,
		id, profileID, payload, trigger, durationMinutes,
	)
	if err != nil {
		return "", fmt.Errorf("save session state: %w", err)
	}
	return id, nil
}

// LoadLatestSessionState returns the newest snapshot payload for a profile,
// or "" when none exists.
func (s *Store) LoadLatestSessionState(profileID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload string
	err := s.db.QueryRow(`
		SELECT payload FROM session_states
		WHERE workspace_profile_id = ?
		ORDER BY created_at DESC
		LIMIT 1`, profileID).Scan(&payload)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load session state: %w", err)
	}
	return payload, nil
}
