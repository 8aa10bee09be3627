package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func checkLoaded(t *testing.T, cfg Config) {
	t.Helper()
	if cfg.Addr != ":9999" || cfg.ModelsDir != "/m" || cfg.MaxQueueDepth != 4 || cfg.LlamaGPULayers != 12 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.ReadyTimeout.Std() != 2*time.Minute || cfg.DrainTimeout.Std() != 5*time.Second {
		t.Fatalf("durations: ready=%v drain=%v", cfg.ReadyTimeout.Std(), cfg.DrainTimeout.Std())
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b" {
		t.Fatalf("cors origins: %v", cfg.CORSOrigins)
	}
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nmodels_dir: /m\nmax_queue_depth: 4\nready_timeout: 2m\ndrain_timeout: 5s\nllama_gpu_layers: 12\ncors_origins: [http://a, http://b]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	checkLoaded(t, cfg)
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":9999","models_dir":"/m","max_queue_depth":4,"ready_timeout":"2m","drain_timeout":"5s","llama_gpu_layers":12,"cors_origins":["http://a","http://b"]}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	checkLoaded(t, cfg)
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":9999\"\nmodels_dir=\"/m\"\nmax_queue_depth=4\nready_timeout=\"2m\"\ndrain_timeout=\"5s\"\nllama_gpu_layers=12\ncors_origins=[\"http://a\",\"http://b\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	checkLoaded(t, cfg)
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	p = writeTempFile(t, d, "dur.yaml", "max_wait: soon\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected duration parse error")
	}
}

func TestLoadMalformed(t *testing.T) {
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
	d := t.TempDir()
	for name, body := range map[string]string{
		"bad.yaml": "addr: :8080\n: broken\n",
		"bad.json": `{ "addr": ":8080", "models_dir": }`,
		"bad.toml": "addr=:8080\nmodels_dir\n",
	} {
		p := writeTempFile(t, d, name, body)
		_, err := Load(p)
		if err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
		if !strings.Contains(err.Error(), p) {
			t.Fatalf("%s: error should name the file: %v", name, err)
		}
	}
}

func TestMergeOverlaysNonZero(t *testing.T) {
	base := Defaults()
	got := base.Merge(Config{Addr: ":1", MaxWait: Duration(time.Second), LlamaThreads: 8})
	if got.Addr != ":1" || got.MaxWait.Std() != time.Second || got.LlamaThreads != 8 {
		t.Fatalf("merge: %+v", got)
	}
	if got.LogLevel != "info" || got.HistoryTTL.Std() != 30*time.Minute || got.MaxBodyBytes != 1<<20 {
		t.Fatalf("defaults lost: %+v", got)
	}
}

func TestFromEnv(t *testing.T) {
	env := map[string]string{
		"MODELHOST_ADDR":            ":7070",
		"MODELHOST_CORS_ORIGINS":    " http://a , ,http://b",
		"MODELHOST_MAX_QUEUE_DEPTH": "3",
		"MODELHOST_INFER_TIMEOUT":   "90s",
		"MODELHOST_LLAMA_CTX":       "4096",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }
	cfg, err := FromEnv(lookup)
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.MaxQueueDepth != 3 || cfg.InferTimeout.Std() != 90*time.Second || cfg.LlamaCtx != 4096 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("cors: %v", cfg.CORSOrigins)
	}
	if cfg.DataDir != "" || cfg.ExitTimeout != 0 {
		t.Fatalf("unset vars leaked values: %+v", cfg)
	}

	env["MODELHOST_MAX_QUEUE_DEPTH"] = "lots"
	if _, err := FromEnv(lookup); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := SplitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}
