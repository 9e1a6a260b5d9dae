package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/cortexkb/cortex/internal/autolink"
	"github.com/cortexkb/cortex/internal/config"
	"github.com/cortexkb/cortex/internal/events"
	"github.com/cortexkb/cortex/internal/indexer"
	"github.com/cortexkb/cortex/internal/logging"
	"github.com/cortexkb/cortex/internal/server"
	"github.com/cortexkb/cortex/internal/sidecar"
	"github.com/cortexkb/cortex/internal/store"
	"github.com/cortexkb/cortex/internal/term"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the backend daemon",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(dataDirFlag)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create app data dir: %w", err)
	}

	logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		JSONOutput: cfg.LogJSON,
		FilePath:   cfg.LogPath(),
	})
	log := logging.Component("main")
	log.Info().Str("data_dir", cfg.DataDir).Msg("starting cortexd")

	// A second daemon against the same data dir would fight over the
	// writer connection and the socket.
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another cortexd instance is already running for %s", cfg.DataDir)
	}
	defer lock.Unlock()

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer st.Close()
	log.Info().Str("path", cfg.DatabasePath()).Msg("database initialized")

	hookDir, err := term.SetupHookDir(cfg.DataDir)
	if err != nil {
		log.Error().Err(err).Msg("failed to set up shell hooks; terminals run unhooked")
		hookDir = ""
	}

	port := cfg.SidecarPort
	if port == 0 {
		port = st.ConfigInt("sidecar_port", 9400)
	}
	manager := sidecar.NewManager(cfg.SidecarCommand, port)
	if err := manager.Start(); err != nil {
		// Degraded mode: search and ingest surface per-request errors.
		log.Error().Err(err).Msg("failed to start sidecar")
	}
	client := sidecar.NewClient(manager.BaseURL())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	ptys := term.NewManager(bus)
	linker := autolink.NewLinker(st, client)

	watched, err := st.ActiveWatchedDirectories()
	if err != nil {
		log.Warn().Err(err).Msg("could not read watched directories")
	}
	var pipeline *indexer.Pipeline
	if len(watched) > 0 {
		pipeline = indexer.NewPipeline(st, client, bus, watched)
		go func() {
			if err := pipeline.Run(ctx); err != nil {
				log.Error().Err(err).Msg("indexing pipeline stopped")
			}
		}()
	} else {
		log.Info().Msg("no watched directories; indexing pipeline idle")
	}

	go sidecar.Monitor(ctx, manager, client)

	workspaceRoot := ""
	if len(watched) > 0 {
		workspaceRoot = watched[0]
	} else if wd, err := os.Getwd(); err == nil {
		workspaceRoot = wd
	}

	srv := server.New(server.Options{
		SocketPath:    cfg.SocketPath,
		Store:         st,
		Manager:       manager,
		Client:        client,
		Ptys:          ptys,
		Pipeline:      pipeline,
		Linker:        linker,
		Bus:           bus,
		HookDir:       hookDir,
		WorkspaceRoot: workspaceRoot,
	})
	srv.StartTerminalPersistence(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	err = srv.Start(ctx)

	ptys.KillAll()
	manager.Stop()
	log.Info().Msg("cortexd stopped")
	return err
}
