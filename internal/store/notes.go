package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// NoteRow is a note entity.
type NoteRow struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	ProfileID string `json:"workspace_profile_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CreateNote inserts a note entity and returns the stored row.
func (s *Store) CreateNote(title, content, profileID string) (*NoteRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO entities (id, entity_type, title, content, workspace_profile_id)
		 VALUES (?, 'note', ?, ?, ?)`,
		id, title, content, profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	return s.getNoteLocked(id)
}

// GetNote returns the note with the given id, or nil when absent.
func (s *Store) GetNote(id string) (*NoteRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getNoteLocked(id)
}

func (s *Store) getNoteLocked(id string) (*NoteRow, error) {
	var n NoteRow
	err := s.db.QueryRow(`
		SELECT id, title, COALESCE(content, ''), COALESCE(workspace_profile_id, ''), created_at, updated_at
		FROM entities WHERE id = ? AND entity_type = 'note'`, id,
	).Scan(&n.ID, &n.Title, &n.Content, &n.ProfileID, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return &n, nil
}

// ListNotes returns the profile's notes, most recently updated first.
func (s *Store) ListNotes(profileID string) ([]NoteRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, title, COALESCE(content, ''), COALESCE(workspace_profile_id, ''), created_at, updated_at
		FROM entities
		WHERE entity_type = 'note' AND workspace_profile_id = ?
		ORDER BY updated_at DESC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := make([]NoteRow, 0)
	for rows.Next() {
		var n NoteRow
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.ProfileID, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// UpdateNote replaces title and content. Returns false when the note does
// not exist.
func (s *Store) UpdateNote(id, title, content string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE entities SET title = ?, content = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND entity_type = 'note'`, title, content, id)
	if err != nil {
		return false, fmt.Errorf("update note: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteNote removes a note. Links cascade.
func (s *Store) DeleteNote(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM entities WHERE id = ? AND entity_type = 'note'", id)
	if err != nil {
		return false, fmt.Errorf("delete note: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
