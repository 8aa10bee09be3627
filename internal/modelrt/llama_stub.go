//go:build !llama

package modelrt

import "context"

// llamaBuilt indicates this binary was compiled with real llama support.
const llamaBuilt = false

type llamaLoader struct{}

// NewLlamaLoader returns a loader that refuses to load anything: this build
// has no llama runtime.
func NewLlamaLoader(LlamaConfig) Loader { return llamaLoader{} }

func (llamaLoader) Load(ctx context.Context, dir string, precision Precision) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, dependencyUnavailableError{msg: "llama support not built (missing 'llama' build tag)"}
}
