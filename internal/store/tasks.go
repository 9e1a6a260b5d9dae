package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// TaskRow joins a task entity with its task columns.
type TaskRow struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Content     *string `json:"content"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
	AssignedTo  *string `json:"assigned_to"`
	SourceType  *string `json:"source_type"`
	CompletedAt *string `json:"completed_at"`
	ProfileID   string  `json:"workspace_profile_id"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

const taskSelect = `
	SELECT e.id, e.title, e.content, t.status, t.priority, t.due_date,
	       t.assigned_to, t.source_type, t.completed_at,
	       COALESCE(e.workspace_profile_id, ''), e.created_at, e.updated_at
	FROM entities e
	JOIN tasks t ON t.entity_id = e.id
`

// CreateTask inserts a task entity plus its task row.
func (s *Store) CreateTask(title string, content *string, priority, profileID string, sourceType *string) (*TaskRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if priority == "" {
		priority = "medium"
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New().String()
	if _, err := tx.Exec(
		`INSERT INTO entities (id, entity_type, title, content, workspace_profile_id)
		 VALUES (?, 'task', ?, ?, ?)`,
		id, title, content, profileID,
	); err != nil {
		return nil, fmt.Errorf("create task entity: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO tasks (entity_id, status, priority, workspace_profile_id, source_type)
		 VALUES (?, 'todo', ?, ?, ?)`,
		id, priority, profileID, sourceType,
	); err != nil {
		return nil, fmt.Errorf("create task row: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.getTaskLocked(id)
}

// GetTask returns the task with the given id, or nil when absent.
func (s *Store) GetTask(id string) (*TaskRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getTaskLocked(id)
}

func (s *Store) getTaskLocked(id string) (*TaskRow, error) {
	var t TaskRow
	err := s.db.QueryRow(taskSelect+" WHERE e.id = ?", id).Scan(
		&t.ID, &t.Title, &t.Content, &t.Status, &t.Priority, &t.DueDate,
		&t.AssignedTo, &t.SourceType, &t.CompletedAt,
		&t.ProfileID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

// ListTasks returns the profile's tasks ordered by priority (high first)
// then newest first, optionally filtered by status.
func (s *Store) ListTasks(profileID string, status *string) ([]TaskRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := ` ORDER BY CASE t.priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, e.created_at DESC`

	var rows *sql.Rows
	var err error
	if status != nil && *status != "" {
		rows, err = s.db.Query(
			taskSelect+" WHERE e.workspace_profile_id = ? AND t.status = ?"+order,
			profileID, *status,
		)
	} else {
		rows, err = s.db.Query(taskSelect+" WHERE e.workspace_profile_id = ?"+order, profileID)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]TaskRow, 0)
	for rows.Next() {
		var t TaskRow
		if err := rows.Scan(
			&t.ID, &t.Title, &t.Content, &t.Status, &t.Priority, &t.DueDate,
			&t.AssignedTo, &t.SourceType, &t.CompletedAt,
			&t.ProfileID, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask rewrites a task's fields. completed_at is set exactly when the
// status moves into 'done' and cleared when it moves out.
func (s *Store) UpdateTask(id, title string, content *string, status, priority string, dueDate, assignedTo *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE entities SET title = ?, content = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND entity_type = 'task'`, title, content, id)
	if err != nil {
		return false, fmt.Errorf("update task entity: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}

	if _, err := tx.Exec(`
		UPDATE tasks SET
			status = ?,
			priority = ?,
			due_date = ?,
			assigned_to = ?,
			completed_at = CASE
				WHEN ? = 'done' AND status != 'done' THEN CURRENT_TIMESTAMP
				WHEN ? = 'done' THEN completed_at
				ELSE NULL
			END
		WHERE entity_id = ?`,
		status, priority, dueDate, assignedTo, status, status, id,
	); err != nil {
		return false, fmt.Errorf("update task row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// DeleteTask removes the task entity (the task row cascades).
func (s *Store) DeleteTask(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM entities WHERE id = ? AND entity_type = 'task'", id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// TaskTitleExists reports whether a task with the exact title exists in the
// profile. Used by the auto-linker to avoid duplicate extracted tasks.
func (s *Store) TaskTitleExists(title, profileID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM entities
		WHERE entity_type = 'task' AND title = ? AND workspace_profile_id = ?`,
		title, profileID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("task title lookup: %w", err)
	}
	return count > 0, nil
}
