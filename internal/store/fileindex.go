package store

import (
	"database/sql"
	"fmt"
)

// FileIndexRow records one successfully ingested file.
type FileIndexRow struct {
	FilePath      string `json:"file_path"`
	ProfileID     string `json:"workspace_profile_id"`
	ContentHash   string `json:"content_hash"`
	Language      string `json:"language"`
	ChunkCount    int    `json:"chunk_count"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	LastIndexed   string `json:"last_indexed"`
}

// FileHash returns the stored content hash for a file, or "" when the file
// is not indexed.
func (s *Store) FileHash(filePath, profileID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hash string
	err := s.db.QueryRow(
		"SELECT content_hash FROM file_index WHERE file_path = ? AND workspace_profile_id = ?",
		filePath, profileID,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("file hash: %w", err)
	}
	return hash, nil
}

// UpsertFileIndex inserts or refreshes the file_index row, touching
// last_indexed.
func (s *Store) UpsertFileIndex(filePath, profileID, contentHash, language string, chunkCount int, fileSize int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO file_index (file_path, workspace_profile_id, content_hash, language, chunk_count, file_size_bytes, last_indexed)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(file_path, workspace_profile_id) DO UPDATE SET
			content_hash = excluded.content_hash,
			language = excluded.language,
			chunk_count = excluded.chunk_count,
			file_size_bytes = excluded.file_size_bytes,
			last_indexed = CURRENT_TIMESTAMP`,
		filePath, profileID, contentHash, language, chunkCount, fileSize,
	)
	if err != nil {
		return fmt.Errorf("upsert file index: %w", err)
	}
	return nil
}

// DeleteFileIndex removes the file_index row for a file.
func (s *Store) DeleteFileIndex(filePath, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"DELETE FROM file_index WHERE file_path = ? AND workspace_profile_id = ?",
		filePath, profileID,
	)
	if err != nil {
		return fmt.Errorf("delete file index: %w", err)
	}
	return nil
}

// GetFileIndex returns the full row for a file, or nil when absent.
func (s *Store) GetFileIndex(filePath, profileID string) (*FileIndexRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var r FileIndexRow
	err := s.db.QueryRow(`
		SELECT file_path, workspace_profile_id, content_hash, COALESCE(language, ''),
		       COALESCE(chunk_count, 0), COALESCE(file_size_bytes, 0), last_indexed
		FROM file_index WHERE file_path = ? AND workspace_profile_id = ?`,
		filePath, profileID,
	).Scan(&r.FilePath, &r.ProfileID, &r.ContentHash, &r.Language, &r.ChunkCount, &r.FileSizeBytes, &r.LastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file index: %w", err)
	}
	return &r, nil
}
