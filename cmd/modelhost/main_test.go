package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"modelhost/internal/config"
	"modelhost/internal/ipc"
	"modelhost/internal/worker"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestResolveConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(file, []byte("addr: :1111\nlog_level: warn\nmax_wait: 5s\ndata_dir: /from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	env := map[string]string{"MODELHOST_LOG_LEVEL": "debug", "MODELHOST_DATA_DIR": "/from-env"}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	g := &globalFlags{configFile: file, dataDir: "/from-flag", logLevel: "error"}
	changed := func(name string) bool { return name == "data-dir" }

	cfg, err := resolveConfig(g, changed, lookup)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Addr != ":1111" || cfg.MaxWait.Std() != 5*time.Second {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("env must override file: %q", cfg.LogLevel)
	}
	if cfg.DataDir != "/from-flag" {
		t.Fatalf("flag must override env: %q", cfg.DataDir)
	}
	if cfg.ModelsDir != config.Defaults().ModelsDir {
		t.Fatalf("default lost: %q", cfg.ModelsDir)
	}
}

func TestWorkerArgs(t *testing.T) {
	got := workerArgs(config.Config{LlamaCtx: 4096, LlamaGPULayers: 20, LogLevel: "debug"})
	want := "--llama-ctx 4096 --llama-gpu-layers 20 --log-level debug"
	if strings.Join(got, " ") != want {
		t.Fatalf("args=%v", got)
	}
	if len(workerArgs(config.Config{})) != 0 {
		t.Fatalf("zero config must add no args")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(&buf, "warn")
	if err != nil {
		t.Fatal(err)
	}
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("level filter: %q", buf.String())
	}
	if _, err := newLogger(&buf, "loud"); err == nil {
		t.Fatalf("expected invalid level error")
	}
}

func TestModelsAddListRemove(t *testing.T) {
	data := t.TempDir()
	weights := filepath.Join(t.TempDir(), "tiny")
	if err := os.MkdirAll(weights, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(weights, "tiny-Q8_0.gguf"), []byte("gguf"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "models", "add", "tiny", weights, "--name", "Tiny", "--data-dir", data)
	if err != nil {
		t.Fatalf("add: %v (%s)", err, out)
	}
	out, err = run(t, "models", "ls", "--data-dir", data)
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if !strings.Contains(out, "tiny") || !strings.Contains(out, "Tiny") || !strings.Contains(out, weights) || !strings.Contains(out, "true") {
		t.Fatalf("ls output: %q", out)
	}
	if _, err := run(t, "models", "rm", "tiny", "--data-dir", data); err != nil {
		t.Fatalf("rm: %v", err)
	}
	if _, err := run(t, "models", "rm", "tiny", "--data-dir", data); err == nil {
		t.Fatalf("expected error removing unknown model")
	}
	if _, err := run(t, "models", "add", "empty", t.TempDir(), "--data-dir", data); err == nil {
		t.Fatalf("expected error for a directory without weights")
	}
}

func TestModelsScan(t *testing.T) {
	data := t.TempDir()
	models := t.TempDir()
	for _, id := range []string{"a", "b"} {
		dir := filepath.Join(models, id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, id+".gguf"), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	out, err := run(t, "models", "scan", "--data-dir", data, "--models-dir", models)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "registered a") || !strings.Contains(out, "registered b") {
		t.Fatalf("scan output: %q", out)
	}
}

func TestWorkerRequiresModelFlags(t *testing.T) {
	if _, err := run(t, "worker"); err == nil || !strings.Contains(err.Error(), "model-id") {
		t.Fatalf("expected missing flag error, got %v", err)
	}
}

func TestWorkerReportsBadPrecision(t *testing.T) {
	ctrl, wrk := ipc.Pipe()
	defer ctrl.Close()
	f := &workerFlags{modelID: "m1", modelDir: t.TempDir(), precision: "2bit", logLevel: "error"}
	errc := make(chan error, 1)
	go func() { errc <- runWorker(context.Background(), f, wrk) }()

	msg, err := ctrl.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	e, ok := msg.(ipc.Error)
	if !ok || !strings.Contains(e.Detail, "m1") || !strings.Contains(e.Detail, "2bit") {
		t.Fatalf("first message = %#v, want load error", msg)
	}
	if _, err := ctrl.Recv(); err == nil {
		t.Fatalf("channel still open after rejected load")
	}
	var lerr *worker.LoadError
	if err := <-errc; !errors.As(err, &lerr) {
		t.Fatalf("runWorker error = %v, want *worker.LoadError", err)
	}
}
