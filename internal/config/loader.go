package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MODELHOST_ADDR.
const EnvPrefix = "MODELHOST_"

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by Defaults.
type Config struct {
	Addr         string   `json:"addr" yaml:"addr" toml:"addr"`
	DataDir      string   `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	ModelsDir    string   `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	LogLevel     string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	SystemPrompt string   `json:"system_prompt" yaml:"system_prompt" toml:"system_prompt"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	MaxQueueDepth int      `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWait       Duration `json:"max_wait" yaml:"max_wait" toml:"max_wait"`
	ReadyTimeout  Duration `json:"ready_timeout" yaml:"ready_timeout" toml:"ready_timeout"`
	InferTimeout  Duration `json:"infer_timeout" yaml:"infer_timeout" toml:"infer_timeout"`
	DrainTimeout  Duration `json:"drain_timeout" yaml:"drain_timeout" toml:"drain_timeout"`
	ExitTimeout   Duration `json:"exit_timeout" yaml:"exit_timeout" toml:"exit_timeout"`
	HistoryTTL    Duration `json:"history_ttl" yaml:"history_ttl" toml:"history_ttl"`

	LlamaCtx       int `json:"llama_ctx" yaml:"llama_ctx" toml:"llama_ctx"`
	LlamaThreads   int `json:"llama_threads" yaml:"llama_threads" toml:"llama_threads"`
	LlamaGPULayers int `json:"llama_gpu_layers" yaml:"llama_gpu_layers" toml:"llama_gpu_layers"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Addr:         ":8080",
		DataDir:      "~/.modelhost",
		ModelsDir:    "~/.modelhost/models",
		LogLevel:     "info",
		MaxBodyBytes: 1 << 20,
		HistoryTTL:   Duration(30 * time.Minute),
	}
}

// Merge overlays the non-zero fields of o onto c.
func (c Config) Merge(o Config) Config {
	if o.Addr != "" {
		c.Addr = o.Addr
	}
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.ModelsDir != "" {
		c.ModelsDir = o.ModelsDir
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.SystemPrompt != "" {
		c.SystemPrompt = o.SystemPrompt
	}
	if len(o.CORSOrigins) > 0 {
		c.CORSOrigins = o.CORSOrigins
	}
	if o.MaxBodyBytes > 0 {
		c.MaxBodyBytes = o.MaxBodyBytes
	}
	if o.MaxQueueDepth > 0 {
		c.MaxQueueDepth = o.MaxQueueDepth
	}
	for _, d := range []struct{ dst, src *Duration }{
		{&c.MaxWait, &o.MaxWait},
		{&c.ReadyTimeout, &o.ReadyTimeout},
		{&c.InferTimeout, &o.InferTimeout},
		{&c.DrainTimeout, &o.DrainTimeout},
		{&c.ExitTimeout, &o.ExitTimeout},
		{&c.HistoryTTL, &o.HistoryTTL},
	} {
		if *d.src > 0 {
			*d.dst = *d.src
		}
	}
	if o.LlamaCtx > 0 {
		c.LlamaCtx = o.LlamaCtx
	}
	if o.LlamaThreads > 0 {
		c.LlamaThreads = o.LlamaThreads
	}
	if o.LlamaGPULayers > 0 {
		c.LlamaGPULayers = o.LlamaGPULayers
	}
	return c
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv reads MODELHOST_* overrides using lookup (os.LookupEnv in
// production). Only set variables produce non-zero fields.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	var c Config
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var firstErr error
	num := func(name string, set func(int64)) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			return
		}
		set(n)
	}
	dur := func(name string, dst *Duration) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		if err := dst.UnmarshalText([]byte(v)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
	}

	str("ADDR", &c.Addr)
	str("DATA_DIR", &c.DataDir)
	str("MODELS_DIR", &c.ModelsDir)
	str("LOG_LEVEL", &c.LogLevel)
	str("SYSTEM_PROMPT", &c.SystemPrompt)
	var origins string
	str("CORS_ORIGINS", &origins)
	c.CORSOrigins = SplitCSV(origins)
	num("MAX_BODY_BYTES", func(n int64) { c.MaxBodyBytes = n })
	num("MAX_QUEUE_DEPTH", func(n int64) { c.MaxQueueDepth = int(n) })
	dur("MAX_WAIT", &c.MaxWait)
	dur("READY_TIMEOUT", &c.ReadyTimeout)
	dur("INFER_TIMEOUT", &c.InferTimeout)
	dur("DRAIN_TIMEOUT", &c.DrainTimeout)
	dur("EXIT_TIMEOUT", &c.ExitTimeout)
	dur("HISTORY_TTL", &c.HistoryTTL)
	num("LLAMA_CTX", func(n int64) { c.LlamaCtx = int(n) })
	num("LLAMA_THREADS", func(n int64) { c.LlamaThreads = int(n) })
	num("LLAMA_GPU_LAYERS", func(n int64) { c.LlamaGPULayers = int(n) })
	return c, firstErr
}

// SplitCSV splits a comma-separated list, trimming blanks.
func SplitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
