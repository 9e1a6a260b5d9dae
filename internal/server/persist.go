package server

import (
	"context"

	"github.com/cortexkb/cortex/internal/events"
)

// StartTerminalPersistence observes terminal:command-end events and writes
// them into the terminal_commands table, reading the active profile inline.
// Runs until ctx is canceled.
func (s *Server) StartTerminalPersistence(ctx context.Context) {
	ch, cancel := s.bus.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if ev.Name != events.TerminalCommandEnd {
					continue
				}
				payload, ok := ev.Payload.(events.TerminalCommandEndPayload)
				if !ok || payload.Command == "" {
					continue
				}

				profileID, err := s.store.ActiveProfileID()
				if err != nil || profileID == "" {
					continue
				}
				if _, err := s.store.InsertTerminalCommand(
					profileID, payload.Command, payload.Cwd,
					payload.ExitCode, payload.DurationMs, payload.Output,
				); err != nil {
					s.log.Warn().Err(err).Msg("terminal command persist failed")
				}
			}
		}
	}()
}
