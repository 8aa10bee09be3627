//go:build llama

package modelrt

import (
	"context"
	"errors"

	llama "github.com/go-skynet/go-llama.cpp"

	"modelhost/internal/ipc"
)

// llamaBuilt indicates this binary was compiled with real llama support.
const llamaBuilt = true

type llamaLoader struct {
	cfg LlamaConfig
}

// NewLlamaLoader returns a Loader backed by go-llama.cpp.
func NewLlamaLoader(cfg LlamaConfig) Loader {
	return &llamaLoader{cfg: cfg}
}

func (l *llamaLoader) Load(ctx context.Context, dir string, precision Precision) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	weights, err := SelectWeights(dir, precision)
	if err != nil {
		return nil, err
	}
	tmpl, err := LoadChatTemplate(dir)
	if err != nil {
		return nil, err
	}
	mo := []llama.ModelOption{llama.SetContext(zn(l.cfg.ContextSize, 2048))}
	if l.cfg.GPULayers > 0 {
		mo = append(mo, llama.SetGPULayers(l.cfg.GPULayers))
	}
	switch precision {
	case PrecisionStandard:
		mo = append(mo, llama.EnableF16Memory)
	case Precision4Bit:
		mo = append(mo, llama.EnableLowVRAM)
	}
	m, err := llama.New(weights, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaModel{model: m, threads: l.cfg.Threads, tmpl: tmpl}, nil
}

type llamaModel struct {
	model   *llama.LLama
	threads int
	tmpl    *ChatTemplate
}

func (m *llamaModel) Capabilities() ipc.Capabilities { return m.tmpl.Capabilities() }

func (m *llamaModel) ApplyChatTemplate(turns []ipc.Turn, enableThinking *bool) (string, error) {
	return m.tmpl.Render(turns, enableThinking)
}

func (m *llamaModel) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	if m.model == nil {
		return "", errors.New("llama model not initialized")
	}
	m.model.SetTokenCallback(func(string) bool {
		return ctx.Err() == nil
	})
	text, err := m.model.Predict(prompt, predictOptions(opts, m.threads)...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return text, nil
}

func (m *llamaModel) Close() error {
	if m.model != nil {
		m.model.Free()
		m.model = nil
	}
	return nil
}

func predictOptions(o Options, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, o.MaxNewTokens)),
		llama.SetThreads(max(1, threads)),
		llama.SetTopK(zn(o.TopK, llama.DefaultOptions.TopK)),
		llama.SetTopP(zf(o.TopP, llama.DefaultOptions.TopP)),
		llama.SetTemperature(o.Temperature),
	}
	if o.Seed >= 0 {
		po = append(po, llama.SetSeed(o.Seed))
	}
	if len(o.Stop) > 0 {
		po = append(po, llama.SetStopWords(o.Stop...))
	}
	return po
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}
