package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// EntityRef is a minimal (id, title, type) view of an entity.
type EntityRef struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	EntityType string `json:"entity_type"`
}

// EntitySearchResult is one hit from SearchEntities.
type EntitySearchResult struct {
	ID         string  `json:"id"`
	EntityType string  `json:"entity_type"`
	Title      string  `json:"title"`
	Content    *string `json:"content"`
	SourceFile *string `json:"source_file"`
	UpdatedAt  string  `json:"updated_at"`
}

// UpsertEntity inserts or updates an entity keyed by (title, source_file,
// entity_type). An existing row keeps its id; metadata and updated_at are
// refreshed.
func (s *Store) UpsertEntity(entityType, title, sourceFile, profileID, metadataJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existingID string
	err := s.db.QueryRow(
		"SELECT id FROM entities WHERE title = ? AND source_file = ? AND entity_type = ?",
		title, sourceFile, entityType,
	).Scan(&existingID)

	switch {
	case err == nil:
		_, err = s.db.Exec(
			"UPDATE entities SET metadata = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
			metadataJSON, existingID,
		)
		if err != nil {
			return fmt.Errorf("update entity: %w", err)
		}
	case err == sql.ErrNoRows:
		_, err = s.db.Exec(
			`INSERT INTO entities (id, entity_type, title, source_file, workspace_profile_id, metadata)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), entityType, title, sourceFile, profileID, metadataJSON,
		)
		if err != nil {
			return fmt.Errorf("insert entity: %w", err)
		}
	default:
		return fmt.Errorf("lookup entity: %w", err)
	}
	return nil
}

// DeleteEntitiesBySourceFile removes every entity extracted from the given
// source file and returns the number of rows deleted. Links cascade.
func (s *Store) DeleteEntitiesBySourceFile(sourceFile string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM entities WHERE source_file = ?", sourceFile)
	if err != nil {
		return 0, fmt.Errorf("delete entities: %w", err)
	}
	return res.RowsAffected()
}

// FindEntitiesByTitle returns entities with an exact title match within a
// profile.
func (s *Store) FindEntitiesByTitle(title, profileID string) ([]EntityRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		"SELECT id, title, entity_type FROM entities WHERE title = ? AND workspace_profile_id = ?",
		title, profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("find by title: %w", err)
	}
	defer rows.Close()
	return scanEntityRefs(rows)
}

// FindEntitiesBySourceFile returns entities whose source_file matches.
func (s *Store) FindEntitiesBySourceFile(sourceFile string) ([]EntityRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		"SELECT id, title, entity_type FROM entities WHERE source_file = ?",
		sourceFile,
	)
	if err != nil {
		return nil, fmt.Errorf("find by source file: %w", err)
	}
	defer rows.Close()
	return scanEntityRefs(rows)
}

// ListEntityTitles returns (id, title, type) for every entity in a profile.
func (s *Store) ListEntityTitles(profileID string) ([]EntityRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		"SELECT id, title, entity_type FROM entities WHERE workspace_profile_id = ?",
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entity titles: %w", err)
	}
	defer rows.Close()
	return scanEntityRefs(rows)
}

func scanEntityRefs(rows *sql.Rows) ([]EntityRef, error) {
	refs := make([]EntityRef, 0)
	for rows.Next() {
		var r EntityRef
		if err := rows.Scan(&r.ID, &r.Title, &r.EntityType); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// SearchEntities does a case-insensitive substring match over title and
// content, newest first.
func (s *Store) SearchEntities(query string, entityType *string, profileID string, limit int) ([]EntitySearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"

	var rows *sql.Rows
	var err error
	if entityType != nil && *entityType != "" {
		rows, err = s.db.Query(`
			SELECT id, entity_type, title, content, source_file, updated_at
			FROM entities
			WHERE workspace_profile_id = ? AND entity_type = ?
			  AND (title LIKE ? COLLATE NOCASE OR content LIKE ? COLLATE NOCASE)
			ORDER BY updated_at DESC
			LIMIT ?`, profileID, *entityType, pattern, pattern, limit)
	} else {
		rows, err = s.db.Query(`
			SELECT id, entity_type, title, content, source_file, updated_at
			FROM entities
			WHERE workspace_profile_id = ?
			  AND (title LIKE ? COLLATE NOCASE OR content LIKE ? COLLATE NOCASE)
			ORDER BY updated_at DESC
			LIMIT ?`, profileID, pattern, pattern, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("search entities: %w", err)
	}
	defer rows.Close()

	results := make([]EntitySearchResult, 0)
	for rows.Next() {
		var r EntitySearchResult
		if err := rows.Scan(&r.ID, &r.EntityType, &r.Title, &r.Content, &r.SourceFile, &r.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
