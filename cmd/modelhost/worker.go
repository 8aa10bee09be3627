package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"modelhost/internal/ipc"
	"modelhost/internal/modelrt"
	"modelhost/internal/worker"
)

type workerFlags struct {
	modelID   string
	modelDir  string
	precision string
	logLevel  string
	llama     modelrt.LlamaConfig
}

// newWorkerCmd is the entry point of spawned worker processes. The channel
// to the controller is stdin/stdout; stderr carries logs.
func newWorkerCmd() *cobra.Command {
	f := &workerFlags{}
	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Run one model worker (started by serve)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), f, ipc.NewConn(os.Stdin, os.Stdout, os.Stdin, os.Stdout))
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.modelID, "model-id", "", "Model identifier")
	fl.StringVar(&f.modelDir, "model-dir", "", "Directory holding the model weights")
	fl.StringVar(&f.precision, "precision", "standard", "standard|8bit|4bit")
	fl.StringVar(&f.logLevel, "log-level", "info", "Log level")
	fl.IntVar(&f.llama.ContextSize, "llama-ctx", 0, "llama.cpp context size")
	fl.IntVar(&f.llama.Threads, "llama-threads", 0, "llama.cpp threads")
	fl.IntVar(&f.llama.GPULayers, "llama-gpu-layers", 0, "llama.cpp layers offloaded to GPU")
	_ = cmd.MarkFlagRequired("model-id")
	_ = cmd.MarkFlagRequired("model-dir")
	return cmd
}

// runWorker serves the controller on conn. Bad flags are reported on conn
// as a load error so the controller sees why the worker did not start.
func runWorker(ctx context.Context, f *workerFlags, conn *ipc.Conn) error {
	log, err := stderrLogger(f.logLevel)
	if err != nil {
		return worker.Reject(conn, f.modelID, err)
	}
	precision, err := modelrt.ParsePrecision(f.precision)
	if err != nil {
		log.Error().Err(err).Str("model", f.modelID).Msg("worker load failed")
		return worker.Reject(conn, f.modelID, err)
	}
	// SIGTERM from the controller ends the worker like an Exit message.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, os.Interrupt)
	defer stop()

	err = worker.Run(ctx, worker.Options{
		ModelID:   f.modelID,
		Dir:       f.modelDir,
		Precision: precision,
		Loader:    modelrt.NewLlamaLoader(f.llama),
		Conn:      conn,
		Logger:    log.With().Str("component", "worker").Int("pid", os.Getpid()).Logger(),
	})
	var lerr *worker.LoadError
	if errors.As(err, &lerr) {
		log.Error().Err(err).Msg("worker load failed")
	}
	return err
}
