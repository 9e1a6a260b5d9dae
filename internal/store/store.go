// Package store is the SQLite persistence layer for the cortex knowledge
// base. A single writer connection is shared by every component; all access
// is serialized behind one mutex.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	description TEXT,
	applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS workspace_profiles (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	watched_directories TEXT NOT NULL,
	llm_routing_overrides TEXT,
	system_prompt_additions TEXT,
	default_model TEXT,
	embedding_model TEXT DEFAULT 'all-MiniLM-L6-v2',
	is_active BOOLEAN DEFAULT FALSE,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_profiles_active ON workspace_profiles(is_active);

CREATE TABLE IF NOT EXISTS session_states (
	id TEXT PRIMARY KEY,
	workspace_profile_id TEXT NOT NULL REFERENCES workspace_profiles(id) ON DELETE CASCADE,
	payload TEXT NOT NULL,
	trigger TEXT NOT NULL DEFAULT 'exit',
	duration_minutes INTEGER,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sessions_profile ON session_states(workspace_profile_id, created_at DESC);

CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT,
	metadata TEXT,
	source_file TEXT,
	workspace_profile_id TEXT REFERENCES workspace_profiles(id) ON DELETE SET NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type);
CREATE INDEX IF NOT EXISTS idx_entities_profile ON entities(workspace_profile_id);
CREATE INDEX IF NOT EXISTS idx_entities_source ON entities(source_file);
CREATE INDEX IF NOT EXISTS idx_entities_updated ON entities(updated_at DESC);

CREATE TABLE IF NOT EXISTS entity_links (
	id TEXT PRIMARY KEY,
	source_entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	target_entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	relationship_type TEXT NOT NULL,
	confidence REAL DEFAULT 1.0,
	auto_generated BOOLEAN DEFAULT TRUE,
	context TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_links_source ON entity_links(source_entity_id);
CREATE INDEX IF NOT EXISTS idx_links_target ON entity_links(target_entity_id);
CREATE INDEX IF NOT EXISTS idx_links_type ON entity_links(relationship_type);
CREATE UNIQUE INDEX IF NOT EXISTS idx_links_unique ON entity_links(source_entity_id, target_entity_id, relationship_type);

CREATE TABLE IF NOT EXISTS tasks (
	entity_id TEXT PRIMARY KEY REFERENCES entities(id) ON DELETE CASCADE,
	status TEXT DEFAULT 'todo',
	priority TEXT DEFAULT 'medium',
	due_date TIMESTAMP,
	workspace_profile_id TEXT REFERENCES workspace_profiles(id) ON DELETE SET NULL,
	source_type TEXT,
	assigned_to TEXT,
	completed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority);
CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_date);
CREATE INDEX IF NOT EXISTS idx_tasks_profile ON tasks(workspace_profile_id);

CREATE TABLE IF NOT EXISTS chat_messages (
	id TEXT PRIMARY KEY,
	workspace_profile_id TEXT REFERENCES workspace_profiles(id) ON DELETE SET NULL,
	thread_id TEXT,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	model_used TEXT,
	token_count_input INTEGER,
	token_count_output INTEGER,
	cost_usd REAL,
	latency_ms INTEGER,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_chat_profile ON chat_messages(workspace_profile_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_chat_thread ON chat_messages(thread_id, created_at ASC);

CREATE TABLE IF NOT EXISTS terminal_commands (
	id TEXT PRIMARY KEY,
	workspace_profile_id TEXT REFERENCES workspace_profiles(id) ON DELETE SET NULL,
	session_entity_id TEXT REFERENCES entities(id),
	command TEXT NOT NULL,
	cwd TEXT,
	exit_code INTEGER,
	stdout_preview TEXT,
	stderr_preview TEXT,
	stdout_size_bytes INTEGER,
	stderr_size_bytes INTEGER,
	duration_ms INTEGER,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_terminal_profile ON terminal_commands(workspace_profile_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_terminal_exit ON terminal_commands(exit_code);

CREATE TABLE IF NOT EXISTS file_index (
	file_path TEXT NOT NULL,
	workspace_profile_id TEXT NOT NULL REFERENCES workspace_profiles(id) ON DELETE CASCADE,
	content_hash TEXT NOT NULL,
	language TEXT,
	chunk_count INTEGER,
	file_size_bytes INTEGER,
	last_indexed TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (file_path, workspace_profile_id)
);

CREATE INDEX IF NOT EXISTS idx_fileindex_profile ON file_index(workspace_profile_id);
CREATE INDEX IF NOT EXISTS idx_fileindex_hash ON file_index(content_hash);

CREATE TABLE IF NOT EXISTS git_events (
	id TEXT PRIMARY KEY,
	workspace_profile_id TEXT REFERENCES workspace_profiles(id) ON DELETE SET NULL,
	event_type TEXT NOT NULL,
	repo_path TEXT,
	ref_name TEXT,
	commit_hash TEXT,
	parent_hashes TEXT,
	message TEXT,
	author TEXT,
	files_changed TEXT,
	insertions INTEGER,
	deletions INTEGER,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_git_profile ON git_events(workspace_profile_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_git_type ON git_events(event_type);
CREATE INDEX IF NOT EXISTS idx_git_branch ON git_events(ref_name);

CREATE TABLE IF NOT EXISTS app_config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// Store wraps the single SQLite writer connection.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if necessary) the database at path, applies the
// schema idempotently and seeds the version row, a default workspace
// profile and the default app_config keys.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer connection; the pool must never hand out a second.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return err
	}

	var versions int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&versions); err != nil {
		return err
	}
	if versions == 0 {
		if _, err := s.db.Exec(
			"INSERT INTO schema_version (version, description) VALUES (1, 'initial schema')",
		); err != nil {
			return err
		}
	}

	var profiles int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM workspace_profiles").Scan(&profiles); err != nil {
		return err
	}
	if profiles == 0 {
		if _, err := s.db.Exec(
			"INSERT INTO workspace_profiles (id, name, watched_directories, is_active) VALUES (?, ?, ?, TRUE)",
			uuid.New().String(), "Default", "[]",
		); err != nil {
			return err
		}
	}

	var configs int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM app_config").Scan(&configs); err != nil {
		return err
	}
	if configs == 0 {
		defaults := [][2]string{
			{"theme", `"dark"`},
			{"sidecar_port", "9400"},
			{"periodic_snapshot_interval_minutes", "5"},
			{"max_stdout_capture_bytes", "10240"},
			{"embedding_batch_size", "32"},
		}
		for _, kv := range defaults {
			if _, err := s.db.Exec(
				"INSERT INTO app_config (key, value) VALUES (?, ?)", kv[0], kv[1],
			); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// Ping verifies the connection is usable.
func (s *Store) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("SELECT 1")
	return err
}
