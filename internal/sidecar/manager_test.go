package sidecar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerStopped(t *testing.T) {
	m := NewManager([]string{"cortex-sidecar"}, 9400)
	assert.Equal(t, StatusStopped, m.Status())
	assert.False(t, m.IsProcessAlive())
	assert.Equal(t, "http://127.0.0.1:9400", m.BaseURL())
}

func TestStopIdempotent(t *testing.T) {
	m := NewManager([]string{"cortex-sidecar"}, 9400)
	m.Stop()
	m.Stop()
	assert.Equal(t, StatusStopped, m.Status())
}

func TestBackoffDurations(t *testing.T) {
	m := NewManager([]string{"cortex-sidecar"}, 9400)

	// Exponential: 1s, 2s, 4s, then capped at 8s.
	assert.Equal(t, 1*time.Second, m.BackoffDuration())
	m.restartCount = 1
	assert.Equal(t, 2*time.Second, m.BackoffDuration())
	m.restartCount = 2
	assert.Equal(t, 4*time.Second, m.BackoffDuration())
	m.restartCount = 3
	assert.Equal(t, 8*time.Second, m.BackoffDuration())
	m.restartCount = 10
	assert.Equal(t, 8*time.Second, m.BackoffDuration())
}

func TestRestartBudget(t *testing.T) {
	m := NewManager([]string{"cortex-sidecar"}, 9400)

	assert.True(t, m.CanRestart())
	m.restartCount = defaultMaxRestarts - 1
	assert.True(t, m.CanRestart())
	m.restartCount = defaultMaxRestarts
	assert.False(t, m.CanRestart())

	err := m.Restart()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max restarts")
}

func TestMarkHealthyResetsRestartCounter(t *testing.T) {
	m := NewManager([]string{"cortex-sidecar"}, 9400)
	m.restartCount = defaultMaxRestarts
	assert.False(t, m.CanRestart())

	m.MarkHealthy()
	assert.Equal(t, StatusHealthy, m.Status())
	assert.True(t, m.CanRestart())

	m.MarkUnhealthy()
	assert.Equal(t, StatusUnhealthy, m.Status())
	// Unhealthy does not consume the budget.
	assert.True(t, m.CanRestart())
}

func TestStartWithoutCommand(t *testing.T) {
	m := NewManager(nil, 9400)
	err := m.Start()
	require.Error(t, err)
	assert.Equal(t, StatusStopped, m.Status())
}
