package sidecar

import (
	"context"
	"time"

	"github.com/cortexkb/cortex/internal/logging"
)

const (
	monitorGrace  = 3 * time.Second
	monitorPeriod = 10 * time.Second
)

// Monitor probes the sidecar periodically, restarting it with exponential
// backoff when the process dies and tracking health via GET /health.
// It runs until ctx is canceled.
func Monitor(ctx context.Context, manager *Manager, client *Client) {
	log := logging.Component("sidecar-monitor")

	select {
	case <-ctx.Done():
		return
	case <-time.After(monitorGrace):
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(monitorPeriod):
		}

		if !manager.IsProcessAlive() {
			log.Warn().Msg("sidecar process is not alive")
			manager.MarkUnhealthy()

			if manager.CanRestart() {
				backoff := manager.BackoffDuration()
				log.Info().Dur("backoff", backoff).Msg("waiting before restart")
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				if err := manager.Restart(); err != nil {
					log.Error().Err(err).Msg("failed to restart sidecar")
				}
			} else {
				log.Error().Msg("sidecar exceeded max restart attempts")
			}
			continue
		}

		health, err := client.Health(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("sidecar health check failed")
			manager.MarkUnhealthy()
			continue
		}
		if health.Status == "ok" {
			manager.MarkHealthy()
		} else {
			log.Warn().Str("status", health.Status).Msg("sidecar health check returned non-ok")
			manager.MarkUnhealthy()
		}
	}
}
