package manager

import (
	"os"

	"modelhost/internal/modelrt"
)

// SanityReport describes runtime checks for the worker executable.
type SanityReport struct {
	LlamaBuilt    bool   `json:"llama_built"`
	WorkerFound   bool   `json:"worker_found"`
	WorkerCommand string `json:"worker_command,omitempty"`
	Error         string `json:"error,omitempty"`
}

// SanityCheck validates that workers can be started. It does not mutate
// state and is safe to call at any time. Spawners other than ExecSpawner
// are assumed to work.
func (m *Manager) SanityCheck() SanityReport {
	r := SanityReport{LlamaBuilt: modelrt.LlamaBuilt(), WorkerFound: true}
	es, ok := m.spawner.(*ExecSpawner)
	if !ok {
		return r
	}
	argv, err := es.command()
	if err != nil {
		r.WorkerFound = false
		r.Error = err.Error()
		return r
	}
	r.WorkerCommand = argv[0]
	fi, err := os.Stat(argv[0])
	switch {
	case err != nil:
		r.WorkerFound = false
		r.Error = err.Error()
	case fi.IsDir():
		r.WorkerFound = false
		r.Error = "worker path is a directory"
	}
	return r
}
