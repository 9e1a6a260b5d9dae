package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ProfileRow is a workspace profile.
type ProfileRow struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	WatchedDirectories []string `json:"watched_directories"`
	IsActive           bool     `json:"is_active"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

// ActiveProfileID returns the id of the active workspace profile, or ""
// when none is marked active.
func (s *Store) ActiveProfileID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeProfileIDLocked()
}

func (s *Store) activeProfileIDLocked() (string, error) {
	var id string
	err := s.db.QueryRow(
		"SELECT id FROM workspace_profiles WHERE is_active = TRUE LIMIT 1",
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("active profile: %w", err)
	}
	return id, nil
}

// ActiveWatchedDirectories returns the watched directory list of the active
// profile. Returns nil when no profile is active.
func (s *Store) ActiveWatchedDirectories() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.db.QueryRow(
		"SELECT watched_directories FROM workspace_profiles WHERE is_active = TRUE LIMIT 1",
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("watched directories: %w", err)
	}

	var dirs []string
	if err := json.Unmarshal([]byte(raw), &dirs); err != nil {
		return nil, fmt.Errorf("watched directories decode: %w", err)
	}
	return dirs, nil
}

// ListProfiles returns all workspace profiles ordered by name.
func (s *Store) ListProfiles() ([]ProfileRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, name, watched_directories, is_active, created_at, updated_at
		FROM workspace_profiles
		ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]ProfileRow, 0)
	for rows.Next() {
		var p ProfileRow
		var raw string
		if err := rows.Scan(&p.ID, &p.Name, &raw, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(raw), &p.WatchedDirectories)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// CreateProfile inserts a new, inactive profile.
func (s *Store) CreateProfile(name string, watchedDirs []string) (*ProfileRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if watchedDirs == nil {
		watchedDirs = []string{}
	}
	raw, err := json.Marshal(watchedDirs)
	if err != nil {
		return nil, fmt.Errorf("encode watched directories: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.Exec(
		"INSERT INTO workspace_profiles (id, name, watched_directories, is_active) VALUES (?, ?, ?, FALSE)",
		id, name, string(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return &ProfileRow{ID: id, Name: name, WatchedDirectories: watchedDirs}, nil
}

// SetActiveProfile marks the given profile active and every other profile
// inactive, in one transaction.
func (s *Store) SetActiveProfile(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow("SELECT COUNT(*) FROM workspace_profiles WHERE id = ?", id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("profile not found: %s", id)
	}
	if _, err := tx.Exec("UPDATE workspace_profiles SET is_active = (id = ?), updated_at = CURRENT_TIMESTAMP", id); err != nil {
		return fmt.Errorf("set active profile: %w", err)
	}
	return tx.Commit()
}

// UpdateWatchedDirectories replaces the watched directory list of a profile.
func (s *Store) UpdateWatchedDirectories(id string, dirs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dirs == nil {
		dirs = []string{}
	}
	raw, err := json.Marshal(dirs)
	if err != nil {
		return fmt.Errorf("encode watched directories: %w", err)
	}
	res, err := s.db.Exec(
		"UPDATE workspace_profiles SET watched_directories = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		string(raw), id,
	)
	if err != nil {
		return fmt.Errorf("update watched directories: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("profile not found: %s", id)
	}
	return nil
}
