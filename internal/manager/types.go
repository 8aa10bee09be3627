package manager

import (
	"context"
	"os"
	"time"

	"modelhost/internal/ipc"
	"modelhost/internal/modelrt"
	"modelhost/pkg/types"
)

// State is the load state of a model identifier.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// loadEntry is the latest load outcome for one model id. attempt ties it to
// the load that wrote it so superseded attempts cannot overwrite it.
type loadEntry struct {
	State   State
	Err     string
	attempt uint64
	updated time.Time
}

// ModelLocator resolves where a model's weights live on local storage. An
// empty path with a nil error means the model has no usable local copy.
type ModelLocator interface {
	ModelDir(ctx context.Context, modelID string) (string, error)
}

// HistorySource supplies prior conversation turns for a session.
type HistorySource interface {
	PriorTurns(ctx context.Context, sessionID, modelID string, share bool) ([]ipc.Turn, error)
}

// Recorder keeps completed conversation exchanges. Remember runs before
// Infer returns so the next prompt of the session sees the exchange;
// Persist runs in the background.
type Recorder interface {
	Remember(ctx context.Context, req types.InferRequest, reply string, at time.Time) error
	Persist(ctx context.Context, req types.InferRequest, reply string, at time.Time) error
}

// WorkerSpec describes the worker to start for one load attempt.
type WorkerSpec struct {
	ModelID   string
	Dir       string
	Precision modelrt.Precision
}

// Process is a running worker process.
type Process interface {
	Pid() int
	Signal(os.Signal) error
	Kill() error
	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}
	// Err is the exit error; valid after Done is closed.
	Err() error
}

// Spawner starts a worker process and returns it together with the
// controller end of its channel.
type Spawner interface {
	Spawn(ctx context.Context, spec WorkerSpec) (Process, *ipc.Conn, error)
}

// SpawnerFunc adapts a function to Spawner.
type SpawnerFunc func(ctx context.Context, spec WorkerSpec) (Process, *ipc.Conn, error)

func (f SpawnerFunc) Spawn(ctx context.Context, spec WorkerSpec) (Process, *ipc.Conn, error) {
	return f(ctx, spec)
}

// workerHandle is the single active worker. Fields below the mutable
// marker are guarded by Manager.mu.
type workerHandle struct {
	modelID   string
	precision modelrt.Precision
	attempt   uint64
	proc      Process
	conn      *workerConn
	startedAt time.Time

	// Queueing primitives
	genCh   chan struct{} // size 1: single in-flight generation
	queueCh chan struct{} // buffered: queue slots

	// closed when the readiness watcher has written its outcome
	watchDone chan struct{}
	// closed when the exit watcher has returned
	exitDone chan struct{}

	// mutable
	ready    bool
	draining bool
	caps     ipc.Capabilities
}

func newWorkerHandle(spec WorkerSpec, attempt uint64, proc Process, conn *workerConn, queueDepth int) *workerHandle {
	return &workerHandle{
		modelID:   spec.ModelID,
		precision: spec.Precision,
		attempt:   attempt,
		proc:      proc,
		conn:      conn,
		startedAt: time.Now(),
		genCh:     make(chan struct{}, 1),
		queueCh:   make(chan struct{}, queueDepth),
		watchDone: make(chan struct{}),
		exitDone:  make(chan struct{}),
	}
}
