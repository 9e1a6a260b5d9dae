package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkb/cortex/internal/autolink"
	"github.com/cortexkb/cortex/internal/events"
	"github.com/cortexkb/cortex/internal/sidecar"
	"github.com/cortexkb/cortex/internal/store"
	"github.com/cortexkb/cortex/internal/term"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "lancedb": "connected"})
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{}})
	})
	fake := httptest.NewServer(mux)
	t.Cleanup(fake.Close)

	client := sidecar.NewClient(fake.URL)
	bus := events.NewBus()
	srv := New(Options{
		SocketPath: filepath.Join(t.TempDir(), "test.sock"),
		Store:      st,
		Manager:    sidecar.NewManager([]string{"cortex-sidecar"}, 9400),
		Client:     client,
		Ptys:       term.NewManager(bus),
		Linker:     autolink.NewLinker(st, client),
		Bus:        bus,
	})
	return srv, st
}

func call(t *testing.T, srv *Server, op string, args interface{}) Response {
	t.Helper()
	var raw json.RawMessage
	if args != nil {
		data, err := json.Marshal(args)
		require.NoError(t, err)
		raw = data
	}
	return srv.dispatch(context.Background(), &Request{Operation: op, Args: raw})
}

func TestDispatchUnknownOperation(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := call(t, srv, "definitely_not_real", nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unknown operation")
}

func TestNoteRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := call(t, srv, OpNoteCreate, map[string]string{"title": "T", "content": "C"})
	require.True(t, resp.Success, resp.Error)

	var note store.NoteRow
	require.NoError(t, json.Unmarshal(resp.Data, &note))
	assert.Equal(t, "T", note.Title)

	resp = call(t, srv, OpNoteList, nil)
	require.True(t, resp.Success, resp.Error)
	var notes []store.NoteRow
	require.NoError(t, json.Unmarshal(resp.Data, &notes))
	require.Len(t, notes, 1)

	resp = call(t, srv, OpNoteGet, map[string]string{"id": note.ID})
	require.True(t, resp.Success, resp.Error)

	resp = call(t, srv, OpNoteDelete, map[string]string{"id": note.ID})
	require.True(t, resp.Success, resp.Error)

	resp = call(t, srv, OpNoteGet, map[string]string{"id": note.ID})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "not found")
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := call(t, srv, OpHealthCheck, nil)
	require.True(t, resp.Success, resp.Error)

	var health HealthStatus
	require.NoError(t, json.Unmarshal(resp.Data, &health))
	assert.Equal(t, "ok", health.Core)
	assert.Equal(t, "ok", health.SQLite)
	assert.Equal(t, "ok", health.Sidecar)
	assert.Equal(t, "connected", health.LanceDB)
}

func TestGetAppStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := call(t, srv, OpGetAppStatus, nil)
	require.True(t, resp.Success)
	var status map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.Equal(t, "stopped", status["sidecar"])
}

func TestUniversalSearchExactTitle(t *testing.T) {
	srv, st := newTestServer(t)
	profileID, _ := st.ActiveProfileID()
	_, err := st.CreateNote("SearchPanel", "the panel", profileID)
	require.NoError(t, err)

	resp := call(t, srv, OpUniversalSearch, map[string]interface{}{"query": "SearchPanel"})
	require.True(t, resp.Success, resp.Error)

	var body struct {
		Results []UniversalSearchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "SearchPanel", body.Results[0].Title)
	// Exact title match, freshly updated.
	assert.GreaterOrEqual(t, body.Results[0].RelevanceScore, 0.95)
}

func TestPtyWriteRejectsBadBase64(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := call(t, srv, OpPtyWrite, map[string]string{"session_id": "s", "data": "!!!not-base64!!!"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "base64")
}

func TestPtyKillUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := call(t, srv, OpPtyKill, map[string]string{"session_id": "ghost"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "not found")
}

func TestPtyCreateRejectsBadCwd(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := call(t, srv, OpPtyCreate, map[string]interface{}{
		"session_id": "s1",
		"cwd":        "/definitely/not/a/real/path",
	})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "invalid cwd")
}

func TestPtyCreateRejectsCwdOutsideWorkspace(t *testing.T) {
	srv, st := newTestServer(t)
	profileID, _ := st.ActiveProfileID()
	require.NoError(t, st.UpdateWatchedDirectories(profileID, []string{"/workspace/project"}))

	outside := t.TempDir()
	resp := call(t, srv, OpPtyCreate, map[string]interface{}{
		"session_id": "s1",
		"cwd":        outside,
	})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "workspace scope")
}

func TestConfigRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := call(t, srv, OpConfigSet, map[string]string{"key": "theme", "value": `"light"`})
	require.True(t, resp.Success, resp.Error)

	resp = call(t, srv, OpConfigGet, map[string]string{"key": "theme"})
	require.True(t, resp.Success)
	var kv map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &kv))
	assert.Equal(t, `"light"`, kv["value"])
}

func TestProfileCommands(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := call(t, srv, OpProfileCreate, map[string]interface{}{
		"name":                "Work",
		"watched_directories": []string{"/work"},
	})
	require.True(t, resp.Success, resp.Error)
	var created store.ProfileRow
	require.NoError(t, json.Unmarshal(resp.Data, &created))

	resp = call(t, srv, OpProfileSetActive, map[string]string{"id": created.ID})
	require.True(t, resp.Success, resp.Error)

	resp = call(t, srv, OpProfileList, nil)
	require.True(t, resp.Success)
	var profiles []store.ProfileRow
	require.NoError(t, json.Unmarshal(resp.Data, &profiles))
	require.Len(t, profiles, 2)

	var activeCount int
	for _, p := range profiles {
		if p.IsActive {
			activeCount++
			assert.Equal(t, "Work", p.Name)
		}
	}
	assert.Equal(t, 1, activeCount)
}

func TestTerminalPersistenceListener(t *testing.T) {
	srv, st := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.StartTerminalPersistence(ctx)

	exit := 0
	cwd := "/home/user"
	dur := int64(42)
	out := "total 0\n"
	srv.bus.Emit(events.TerminalCommandEnd, events.TerminalCommandEndPayload{
		SessionID:  "t1",
		Command:    "ls -la",
		ExitCode:   &exit,
		Cwd:        &cwd,
		DurationMs: &dur,
		Output:     &out,
	})

	profileID, _ := st.ActiveProfileID()
	require.Eventually(t, func() bool {
		cmds, err := st.ListTerminalCommands(profileID, 10)
		return err == nil && len(cmds) == 1
	}, 2*time.Second, 20*time.Millisecond)

	cmds, _ := st.ListTerminalCommands(profileID, 10)
	assert.Equal(t, "ls -la", cmds[0].Command)
	assert.Equal(t, 0, *cmds[0].ExitCode)
	assert.Equal(t, "/home/user", *cmds[0].Cwd)
}
