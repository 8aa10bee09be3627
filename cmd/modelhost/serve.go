package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"modelhost/internal/common/fsutil"
	"modelhost/internal/config"
	"modelhost/internal/httpapi"
	"modelhost/internal/manager"
	"modelhost/internal/registry"
	"modelhost/internal/session"
	"modelhost/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(g, cmd.Flags().Changed, os.LookupEnv)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			log, err := stderrLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8080")
	return cmd
}

// workerArgs forwards runtime settings to spawned workers.
func workerArgs(cfg config.Config) []string {
	var args []string
	add := func(flag string, v int) {
		if v > 0 {
			args = append(args, flag, strconv.Itoa(v))
		}
	}
	add("--llama-ctx", cfg.LlamaCtx)
	add("--llama-threads", cfg.LlamaThreads)
	add("--llama-gpu-layers", cfg.LlamaGPULayers)
	if cfg.LogLevel != "" {
		args = append(args, "--log-level", cfg.LogLevel)
	}
	return args
}

func newManager(cfg config.Config, db *store.DB, hist *session.Service, log zerolog.Logger) *manager.Manager {
	return manager.NewWithConfig(manager.ManagerConfig{
		Locator:  db,
		History:  hist,
		Recorder: hist,
		Spawner: &manager.ExecSpawner{
			Args:   workerArgs(cfg),
			Logger: log.With().Str("component", "worker").Logger(),
		},
		Logger:        &log,
		SystemPrompt:  cfg.SystemPrompt,
		MaxQueueDepth: cfg.MaxQueueDepth,
		MaxWait:       cfg.MaxWait.Std(),
		ReadyTimeout:  cfg.ReadyTimeout.Std(),
		InferTimeout:  cfg.InferTimeout.Std(),
		DrainTimeout:  cfg.DrainTimeout.Std(),
		ExitTimeout:   cfg.ExitTimeout.Std(),
	})
}

func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	dataDir, err := fsutil.ResolveDir(cfg.DataDir, true)
	if err != nil {
		return err
	}
	modelsDir, err := fsutil.ResolveDir(cfg.ModelsDir, true)
	if err != nil {
		return err
	}
	db, err := store.Open(dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	found, err := registry.Sync(ctx, db, modelsDir)
	if err != nil {
		log.Warn().Err(err).Str("dir", modelsDir).Msg("model scan failed")
	} else {
		log.Info().Int("models", len(found)).Str("dir", modelsDir).Msg("model scan")
	}

	hist := session.New(db, cfg.HistoryTTL.Std(), log.With().Str("component", "session").Logger())
	defer hist.Close()

	mgr := newManager(cfg, db, hist, log)
	rep := mgr.SanityCheck()
	ev := log.Info()
	if !rep.WorkerFound || !rep.LlamaBuilt {
		ev = log.Warn()
	}
	ev.Bool("llama_built", rep.LlamaBuilt).Bool("worker_found", rep.WorkerFound).
		Str("worker", rep.WorkerCommand).Str("error", rep.Error).Msg("sanity check")

	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(len(cfg.CORSOrigins) > 0, cfg.CORSOrigins, nil, nil)
	httpapi.SetBaseContext(ctx)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(httpapi.Services{Models: mgr, Catalog: db, History: hist}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("data_dir", dataDir).Msg("modelhost listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		if cerr := mgr.Close(); cerr != nil && err == nil {
			err = cerr
		}
		return err
	})
	return g.Wait()
}
