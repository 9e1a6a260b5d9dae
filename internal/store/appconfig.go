package store

import (
	"database/sql"
	"fmt"
	"strconv"
)

// ConfigGet retrieves an app_config value. Returns "" for a missing key.
func (s *Store) ConfigGet(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM app_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("config get: %w", err)
	}
	return value, nil
}

// ConfigSet upserts an app_config value.
func (s *Store) ConfigSet(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO app_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("config set: %w", err)
	}
	return nil
}

// ConfigInt retrieves an integer app_config value, falling back to def on a
// missing or unparseable entry.
func (s *Store) ConfigInt(key string, def int) int {
	raw, err := s.ConfigGet(key)
	if err != nil || raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
