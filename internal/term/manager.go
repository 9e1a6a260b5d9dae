// Package term manages interactive PTY sessions: shell spawning with
// injected OSC 633 hooks, output demultiplexing and command record
// synthesis.
package term

import (
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"

	"github.com/cortexkb/cortex/internal/events"
	"github.com/cortexkb/cortex/internal/logging"
	"github.com/cortexkb/cortex/internal/osc"
)

const (
	defaultCols = 80
	defaultRows = 24

	readBufferSize   = 4096
	maxCaptureBytes  = 1024 * 1024
	longRunningAfter = 30 * time.Second
)

type session struct {
	id       string
	master   *os.File
	cmd      *exec.Cmd
	shutdown chan struct{}
	writeMu  sync.Mutex
}

// Manager is the keyed set of live PTY sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	bus      *events.Bus
}

// NewManager creates an empty session manager emitting on bus.
func NewManager(bus *events.Bus) *Manager {
	return &Manager{
		sessions: make(map[string]*session),
		bus:      bus,
	}
}

// CreateSession opens a PTY, spawns the shell and starts the reader loop.
// shellCmd nil means the default shell without hooks.
func (m *Manager) CreateSession(id string, cwd string, cols, rows uint16, shellCmd *ShellCommand) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return fmt.Errorf("session '%s' already exists", id)
	}

	if cols == 0 {
		cols = defaultCols
	}
	if rows == 0 {
		rows = defaultRows
	}

	spec := shellCmd
	if spec == nil {
		spec = &ShellCommand{Path: DetectDefaultShell()}
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	if cwd != "" {
		cmd.Dir = cwd
	}
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	master, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		return fmt.Errorf("spawn shell: %w", err)
	}

	sess := &session{
		id:       id,
		master:   master,
		cmd:      cmd,
		shutdown: make(chan struct{}),
	}
	m.sessions[id] = sess

	go m.readLoop(sess)
	return nil
}

// Write sends raw bytes to the session's PTY.
func (m *Manager) Write(id string, data []byte) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session '%s' not found", id)
	}

	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if _, err := sess.master.Write(data); err != nil {
		return fmt.Errorf("write to pty: %w", err)
	}
	return nil
}

// Resize changes the PTY dimensions.
func (m *Manager) Resize(id string, cols, rows uint16) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session '%s' not found", id)
	}

	if err := pty.Setsize(sess.master, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		return fmt.Errorf("resize pty: %w", err)
	}
	return nil
}

// Kill signals the reader, kills the shell and removes the session.
func (m *Manager) Kill(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session '%s' not found", id)
	}

	close(sess.shutdown)
	if sess.cmd.Process != nil {
		_ = sess.cmd.Process.Kill()
	}
	// Closing the master unblocks the reader at its next read.
	_ = sess.master.Close()
	return nil
}

// KillAll tears down every session. Used at shutdown.
func (m *Manager) KillAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	log := logging.Component("term")
	for _, id := range ids {
		if err := m.Kill(id); err != nil {
			log.Error().Err(err).Str("session", id).Msg("failed to kill pty session")
		}
	}
}

// SessionIDs returns the ids of all live sessions.
func (m *Manager) SessionIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// readLoop drains the PTY, feeds the OSC parser, reassembles command
// records and forwards clean output. One goroutine per session.
func (m *Manager) readLoop(sess *session) {
	log := logging.Component("term")
	buf := make([]byte, readBufferSize)
	parser := osc.NewParser()

	var currentCommand string
	var commandStart time.Time
	var commandRunning bool
	var currentCwd *string
	var capture []byte
	var capturing bool

	emitExit := func() {
		_ = sess.cmd.Wait()
		var exitCode *int
		if state := sess.cmd.ProcessState; state != nil {
			if code := state.ExitCode(); code >= 0 {
				exitCode = &code
			}
		}
		m.bus.Emit(events.PtyExit, events.PtyExitPayload{
			SessionID: sess.id,
			ExitCode:  exitCode,
		})
	}

	for {
		select {
		case <-sess.shutdown:
			emitExit()
			return
		default:
		}

		n, err := sess.master.Read(buf)
		if n > 0 {
			res := parser.Parse(buf[:n])

			for _, ev := range res.Events {
				switch ev.Kind {
				case osc.CommandText:
					currentCommand = ev.Text
				case osc.CommandStart:
					commandStart = time.Now()
					commandRunning = true
					capturing = true
					capture = capture[:0]

					m.bus.Emit(events.TerminalCommandStart, events.TerminalCommandStartPayload{
						SessionID: sess.id,
						Command:   currentCommand,
					})

					// Long-running notifier. Scheduled without cancellation;
					// a command finishing sooner still produces this event
					// 30s later and the UI deduplicates.
					cmdText := currentCommand
					time.AfterFunc(longRunningAfter, func() {
						m.bus.Emit(events.TerminalPipelineStatus, events.TerminalPipelineStatusPayload{
							SessionID:  sess.id,
							Command:    cmdText,
							Status:     "running",
							DurationMs: longRunningAfter.Milliseconds(),
						})
					})
				case osc.CommandEnd:
					var durationMs *int64
					if commandRunning {
						ms := time.Since(commandStart).Milliseconds()
						durationMs = &ms
						if ms >= longRunningAfter.Milliseconds() {
							status := "completed"
							if ev.ExitCode == nil || *ev.ExitCode != 0 {
								status = "failed"
							}
							m.bus.Emit(events.TerminalPipelineStatus, events.TerminalPipelineStatusPayload{
								SessionID:  sess.id,
								Command:    currentCommand,
								Status:     status,
								DurationMs: ms,
							})
						}
					}

					var output *string
					if capturing && len(capture) > 0 {
						s := string(capture)
						output = &s
					}

					m.bus.Emit(events.TerminalCommandEnd, events.TerminalCommandEndPayload{
						SessionID:  sess.id,
						Command:    currentCommand,
						ExitCode:   ev.ExitCode,
						Cwd:        currentCwd,
						DurationMs: durationMs,
						Output:     output,
					})

					currentCommand = ""
					commandRunning = false
					capturing = false
					capture = capture[:0]
				case osc.CwdChange:
					path := ev.Path
					currentCwd = &path
				}
			}

			if len(res.Output) > 0 {
				if capturing && len(capture) < maxCaptureBytes {
					capture = append(capture, res.Output...)
					if len(capture) > maxCaptureBytes {
						capture = capture[:maxCaptureBytes]
					}
				}
				m.bus.Emit(events.PtyOutput, events.PtyOutputPayload{
					SessionID: sess.id,
					Data:      base64.StdEncoding.EncodeToString(res.Output),
				})
			}
		}

		if err != nil {
			select {
			case <-sess.shutdown:
			default:
				log.Debug().Err(err).Str("session", sess.id).Msg("pty read ended")
			}
			emitExit()
			_ = sess.master.Close()
			m.mu.Lock()
			if m.sessions[sess.id] == sess {
				delete(m.sessions, sess.id)
			}
			m.mu.Unlock()
			return
		}
	}
}
