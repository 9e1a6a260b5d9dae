// Package sidecar supervises the external embedding/search subprocess and
// provides the HTTP client for its API.
package sidecar

import (
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/cortexkb/cortex/internal/logging"
)

// Status is the manager's view of the subprocess.
type Status string

const (
	StatusStopped   Status = "stopped"
	StatusStarting  Status = "starting"
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

const defaultMaxRestarts = 3

// Manager owns the single sidecar child process.
type Manager struct {
	mu           sync.Mutex
	cmd          *exec.Cmd
	command      []string
	port         int
	restartCount int
	maxRestarts  int
	status       Status
	exited       chan struct{} // closed by the reaper when the child exits
}

// NewManager creates a stopped manager. command is the program plus leading
// args used to launch the sidecar; --host/--port are appended on start.
func NewManager(command []string, port int) *Manager {
	return &Manager{
		command:     command,
		port:        port,
		maxRestarts: defaultMaxRestarts,
		status:      StatusStopped,
	}
}

// BaseURL returns the sidecar's HTTP base URL.
func (m *Manager) BaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", m.port)
}

// Status returns the current state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Start spawns the subprocess and moves to Starting. It does not wait for
// readiness; the health monitor promotes the state later.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.command) == 0 {
		return fmt.Errorf("no sidecar command configured")
	}

	log := logging.Component("sidecar")
	log.Info().Int("port", m.port).Strs("command", m.command).Msg("starting sidecar")

	m.status = StatusStarting

	args := append(append([]string{}, m.command[1:]...),
		"--host", "127.0.0.1",
		"--port", fmt.Sprintf("%d", m.port),
	)
	cmd := exec.Command(m.command[0], args...)
	if err := cmd.Start(); err != nil {
		m.status = StatusStopped
		return fmt.Errorf("spawn sidecar: %w", err)
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	m.cmd = cmd
	m.exited = exited
	log.Info().Int("pid", cmd.Process.Pid).Msg("sidecar process started")
	return nil
}

// Stop terminates and reaps the subprocess. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.cmd != nil && m.cmd.Process != nil {
		log := logging.Component("sidecar")
		log.Info().Int("pid", m.cmd.Process.Pid).Msg("stopping sidecar")
		_ = m.cmd.Process.Kill()
		if m.exited != nil {
			<-m.exited
		}
		m.cmd = nil
		m.exited = nil
	}
	m.status = StatusStopped
}

// IsProcessAlive reports whether the child is still running. Nonblocking.
func (m *Manager) IsProcessAlive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cmd == nil || m.exited == nil {
		return false
	}
	select {
	case <-m.exited:
		return false
	default:
		return true
	}
}

// CanRestart reports whether the restart budget still allows an attempt.
func (m *Manager) CanRestart() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restartCount < m.maxRestarts
}

// Restart stops and respawns the subprocess, consuming one restart.
func (m *Manager) Restart() error {
	m.mu.Lock()
	if m.restartCount >= m.maxRestarts {
		m.mu.Unlock()
		return fmt.Errorf("max restarts (%d) exceeded", m.maxRestarts)
	}
	m.restartCount++
	count, max := m.restartCount, m.maxRestarts
	m.stopLocked()
	m.mu.Unlock()

	restartLog := logging.Component("sidecar")
	restartLog.Warn().
		Int("attempt", count).Int("max", max).Msg("restarting sidecar")
	return m.Start()
}

// MarkHealthy records a passing health check and resets the restart budget.
func (m *Manager) MarkHealthy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusHealthy
	m.restartCount = 0
}

// MarkUnhealthy records a failing health check.
func (m *Manager) MarkUnhealthy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusUnhealthy
}

// BackoffDuration returns the delay before the next restart attempt:
// 1s, 2s, 4s, capped at 8s.
func (m *Manager) BackoffDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	shift := m.restartCount
	if shift > 3 {
		shift = 3
	}
	return time.Duration(1<<shift) * time.Second
}
