package store

import (
	"os"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file not created")
	}
}

func TestSchemaTables(t *testing.T) {
	s := openTestStore(t)

	tables := []string{
		"schema_version",
		"workspace_profiles",
		"session_states",
		"entities",
		"entity_links",
		"tasks",
		"chat_messages",
		"terminal_commands",
		"file_index",
		"git_events",
		"app_config",
	}

	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}
}

func TestSchemaVersionSeeded(t *testing.T) {
	s := openTestStore(t)

	var version int
	if err := s.db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("schema_version query failed: %v", err)
	}
	if version != 1 {
		t.Errorf("schema version: got %d, want 1", version)
	}
}

func TestDefaultProfileSeeded(t *testing.T) {
	s := openTestStore(t)

	id, err := s.ActiveProfileID()
	if err != nil {
		t.Fatalf("ActiveProfileID failed: %v", err)
	}
	if id == "" {
		t.Error("expected a default active profile")
	}

	var count int
	s.db.QueryRow("SELECT COUNT(*) FROM workspace_profiles WHERE is_active = TRUE").Scan(&count)
	if count != 1 {
		t.Errorf("active profiles: got %d, want 1", count)
	}
}

func TestDefaultConfigSeeded(t *testing.T) {
	s := openTestStore(t)

	for _, key := range []string{
		"theme",
		"sidecar_port",
		"periodic_snapshot_interval_minutes",
		"max_stdout_capture_bytes",
		"embedding_batch_size",
	} {
		val, err := s.ConfigGet(key)
		if err != nil {
			t.Errorf("ConfigGet(%s) failed: %v", key, err)
		}
		if val == "" {
			t.Errorf("config key %s not seeded", key)
		}
	}

	if port := s.ConfigInt("sidecar_port", 0); port != 9400 {
		t.Errorf("sidecar_port: got %d, want 9400", port)
	}
}

func TestOpenIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	first, _ := s1.ActiveProfileID()
	s1.Close()

	s2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	second, _ := s2.ActiveProfileID()
	if first != second {
		t.Errorf("reopen changed the default profile: %s vs %s", first, second)
	}

	var profiles int
	s2.db.QueryRow("SELECT COUNT(*) FROM workspace_profiles").Scan(&profiles)
	if profiles != 1 {
		t.Errorf("profiles after reopen: got %d, want 1", profiles)
	}
}

func TestFileIndexCrud(t *testing.T) {
	s := openTestStore(t)
	profileID, _ := s.ActiveProfileID()

	hash, err := s.FileHash("src/main.rs", profileID)
	if err != nil {
		t.Fatalf("FileHash failed: %v", err)
	}
	if hash != "" {
		t.Error("expected no hash before upsert")
	}

	if err := s.UpsertFileIndex("src/main.rs", profileID, "abc123", "rust", 5, 1024); err != nil {
		t.Fatalf("UpsertFileIndex failed: %v", err)
	}
	hash, _ = s.FileHash("src/main.rs", profileID)
	if hash != "abc123" {
		t.Errorf("hash: got %s, want abc123", hash)
	}

	if err := s.UpsertFileIndex("src/main.rs", profileID, "def456", "rust", 7, 2048); err != nil {
		t.Fatalf("second UpsertFileIndex failed: %v", err)
	}
	hash, _ = s.FileHash("src/main.rs", profileID)
	if hash != "def456" {
		t.Errorf("hash after update: got %s, want def456", hash)
	}

	row, err := s.GetFileIndex("src/main.rs", profileID)
	if err != nil || row == nil {
		t.Fatalf("GetFileIndex failed: %v", err)
	}
	if row.ChunkCount != 7 || row.FileSizeBytes != 2048 {
		t.Errorf("row: got chunks=%d size=%d", row.ChunkCount, row.FileSizeBytes)
	}

	if err := s.DeleteFileIndex("src/main.rs", profileID); err != nil {
		t.Fatalf("DeleteFileIndex failed: %v", err)
	}
	hash, _ = s.FileHash("src/main.rs", profileID)
	if hash != "" {
		t.Error("expected no hash after delete")
	}
}

func TestDeleteFileIndexNonexistent(t *testing.T) {
	s := openTestStore(t)
	profileID, _ := s.ActiveProfileID()
	if err := s.DeleteFileIndex("nonexistent.rs", profileID); err != nil {
		t.Errorf("delete of missing row should succeed: %v", err)
	}
}

func TestEntityUpsert(t *testing.T) {
	s := openTestStore(t)
	profileID, _ := s.ActiveProfileID()

	meta := `{"start_line": 10, "end_line": 20}`
	if err := s.UpsertEntity("function", "my_func", "src/lib.rs", profileID, meta); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}

	var count int
	s.db.QueryRow("SELECT COUNT(*) FROM entities WHERE source_file = 'src/lib.rs'").Scan(&count)
	if count != 1 {
		t.Fatalf("entities: got %d, want 1", count)
	}

	// Same key updates instead of duplicating.
	newMeta := `{"start_line": 10, "end_line": 25}`
	if err := s.UpsertEntity("function", "my_func", "src/lib.rs", profileID, newMeta); err != nil {
		t.Fatalf("second UpsertEntity failed: %v", err)
	}
	s.db.QueryRow("SELECT COUNT(*) FROM entities WHERE source_file = 'src/lib.rs'").Scan(&count)
	if count != 1 {
		t.Errorf("entities after re-upsert: got %d, want 1", count)
	}

	var stored string
	s.db.QueryRow("SELECT metadata FROM entities WHERE title = 'my_func'").Scan(&stored)
	if stored != newMeta {
		t.Errorf("metadata not updated: %s", stored)
	}
}

func TestDeleteEntitiesBySourceFile(t *testing.T) {
	s := openTestStore(t)
	profileID, _ := s.ActiveProfileID()

	s.UpsertEntity("function", "func_a", "src/lib.rs", profileID, "{}")
	s.UpsertEntity("class", "MyClass", "src/lib.rs", profileID, "{}")
	s.UpsertEntity("function", "other_func", "src/other.rs", profileID, "{}")

	deleted, err := s.DeleteEntitiesBySourceFile("src/lib.rs")
	if err != nil {
		t.Fatalf("DeleteEntitiesBySourceFile failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted: got %d, want 2", deleted)
	}

	var count int
	s.db.QueryRow("SELECT COUNT(*) FROM entities WHERE source_file = 'src/other.rs'").Scan(&count)
	if count != 1 {
		t.Errorf("other file entity missing: got %d", count)
	}
}

func TestInsertTerminalCommand(t *testing.T) {
	s := openTestStore(t)
	profileID, _ := s.ActiveProfileID()

	cwd := "/home/user"
	exit := 0
	dur := int64(150)
	out := "total 0\n"
	id, err := s.InsertTerminalCommand(profileID, "ls -la", &cwd, &exit, &dur, &out)
	if err != nil {
		t.Fatalf("InsertTerminalCommand failed: %v", err)
	}
	if id == "" {
		t.Fatal("empty id")
	}

	cmds, err := s.ListTerminalCommands(profileID, 10)
	if err != nil {
		t.Fatalf("ListTerminalCommands failed: %v", err)
	}
	if len(cmds) != 1 {
		t.Fatalf("commands: got %d, want 1", len(cmds))
	}
	got := cmds[0]
	if got.Command != "ls -la" || *got.ExitCode != 0 || *got.StdoutPreview != out {
		t.Errorf("unexpected row: %+v", got)
	}
	if *got.SizeBytes != int64(len(out)) {
		t.Errorf("size: got %d, want %d", *got.SizeBytes, len(out))
	}
}

func TestTerminalCommandPreviewTruncated(t *testing.T) {
	s := openTestStore(t)
	profileID, _ := s.ActiveProfileID()

	// Tighten the cap so the test stays small.
	if err := s.ConfigSet("max_stdout_capture_bytes", "16"); err != nil {
		t.Fatalf("ConfigSet failed: %v", err)
	}

	long := "0123456789abcdefEXTRA"
	if _, err := s.InsertTerminalCommand(profileID, "cat big", nil, nil, nil, &long); err != nil {
		t.Fatalf("InsertTerminalCommand failed: %v", err)
	}

	cmds, _ := s.ListTerminalCommands(profileID, 1)
	if len(cmds) != 1 {
		t.Fatal("missing row")
	}
	if *cmds[0].StdoutPreview != "0123456789abcdef" {
		t.Errorf("preview not truncated: %q", *cmds[0].StdoutPreview)
	}
	if *cmds[0].SizeBytes != int64(len(long)) {
		t.Errorf("size records the full output: got %d", *cmds[0].SizeBytes)
	}
}
