// Package modelrt is the model runtime boundary used by the worker process.
// A Loader turns a model directory into a Model; the Model owns the loaded
// weights and tokenizer until Close.
//
// The real runtime is go-llama.cpp and is only compiled with -tags=llama.
// Default builds get a stub loader that fails with a dependency error.
package modelrt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"modelhost/internal/ipc"
)

// Precision selects the numeric precision the model is loaded with.
type Precision string

const (
	PrecisionStandard Precision = ""
	Precision8Bit     Precision = "8bit"
	Precision4Bit     Precision = "4bit"
)

// ParsePrecision normalizes a user-supplied precision string.
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "full", "fp16", "16bit":
		return PrecisionStandard, nil
	case "8bit", "int8":
		return Precision8Bit, nil
	case "4bit", "int4":
		return Precision4Bit, nil
	}
	return "", fmt.Errorf("unknown precision %q (want standard, 8bit or 4bit)", s)
}

func (p Precision) String() string {
	if p == PrecisionStandard {
		return "standard"
	}
	return string(p)
}

// Options controls one generation.
type Options struct {
	MaxNewTokens int
	Temperature  float32
	TopP         float32
	TopK         int
	// Seed < 0 lets the runtime choose.
	Seed int
	Stop []string
}

// Sample reports whether Options asks for stochastic decoding.
func (o Options) Sample() bool { return o.Temperature > 0 }

// Deterministic returns greedy decoding options.
func Deterministic(maxNewTokens int) Options {
	return Options{MaxNewTokens: maxNewTokens, Temperature: 0, TopK: 1, TopP: 1, Seed: -1}
}

// Sampling returns the stochastic decoding options used for free generation.
func Sampling(maxNewTokens int) Options {
	return Options{MaxNewTokens: maxNewTokens, Temperature: 0.8, TopK: 40, TopP: 0.95, Seed: -1}
}

// Model is a loaded model. Implementations need not be safe for concurrent
// use; the worker calls them from one goroutine.
type Model interface {
	Capabilities() ipc.Capabilities
	// Complete continues prompt and returns only the newly generated text.
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
	// ApplyChatTemplate renders turns with the model's chat template. A nil
	// enableThinking keeps the template's default.
	ApplyChatTemplate(turns []ipc.Turn, enableThinking *bool) (string, error)
	Close() error
}

// Loader loads a model from a local directory.
type Loader interface {
	Load(ctx context.Context, dir string, precision Precision) (Model, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, dir string, precision Precision) (Model, error)

func (f LoaderFunc) Load(ctx context.Context, dir string, precision Precision) (Model, error) {
	return f(ctx, dir, precision)
}

// ErrNoChatTemplate is returned by ApplyChatTemplate on models without one.
var ErrNoChatTemplate = errors.New("model has no chat template")

// dependencyUnavailableError signals that the runtime is not compiled in.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// IsDependencyUnavailable reports whether err means the runtime is missing.
func IsDependencyUnavailable(err error) bool {
	var d dependencyUnavailableError
	return errors.As(err, &d)
}

// LlamaConfig holds process-wide llama.cpp settings.
type LlamaConfig struct {
	ContextSize int
	Threads     int
	GPULayers   int
}

// LlamaBuilt reports whether this binary carries the llama runtime.
func LlamaBuilt() bool { return llamaBuilt }
