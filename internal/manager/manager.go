package manager

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"modelhost/pkg/types"
)

// Manager owns at most one worker process at a time and routes prompts to
// it. All methods are safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	active     *workerHandle
	statuses   map[string]loadEntry
	attempts   uint64
	lastErr    string
	closed     bool
	loadMu     sync.Mutex // serializes Load and Teardown
	opsMu      sync.Mutex
	pending    []loadOp
	loadingOps bool
	opsClosed  bool
	opSeq      uint64
	loadWG     sync.WaitGroup
	recordWG   sync.WaitGroup

	baseCtx context.Context
	cancel  context.CancelFunc

	locator   ModelLocator
	history   HistorySource
	recorder  Recorder
	spawner   Spawner
	publisher EventPublisher
	log       zerolog.Logger

	systemPrompt  string
	maxQueueDepth int
	maxWait       time.Duration
	readyTimeout  time.Duration
	inferTimeout  time.Duration
	drainTimeout  time.Duration
	exitTimeout   time.Duration
	startTime     time.Time
}

// New constructs a Manager with package defaults.
func New(locator ModelLocator) *Manager {
	return NewWithConfig(ManagerConfig{Locator: locator})
}

// Ready reports whether a worker is running and has reported readiness.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active != nil && m.active.ready && !m.active.draining
}

// ActiveModel returns the model id of the running worker, if any.
func (m *Manager) ActiveModel() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return "", false
	}
	return m.active.modelID, true
}

// LoadStatus returns the load state of modelID. ok is false for an id
// that was never requested.
func (m *Manager) LoadStatus(modelID string) (types.ModelLoadStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.statuses[modelID]
	if !ok {
		return types.ModelLoadStatus{}, false
	}
	return types.ModelLoadStatus{ID: modelID, Status: string(e.State), Error: e.Err}, true
}

// LoadStatuses returns the load state of every model id seen so far,
// sorted by id.
func (m *Manager) LoadStatuses() []types.ModelLoadStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadStatusesLocked()
}

func (m *Manager) loadStatusesLocked() []types.ModelLoadStatus {
	out := make([]types.ModelLoadStatus, 0, len(m.statuses))
	for id, e := range m.statuses {
		out = append(out, types.ModelLoadStatus{ID: id, Status: string(e.State), Error: e.Err})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// markLoading starts a new load attempt for modelID.
func (m *Manager) markLoading(modelID string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	m.statuses[modelID] = loadEntry{State: StateLoading, attempt: m.attempts, updated: time.Now()}
	return m.attempts
}

// setStatus records the outcome of attempt. It is a no-op when a newer
// attempt for the same id has started since. Callers hold m.mu.
func (m *Manager) setStatusLocked(modelID string, attempt uint64, st State, msg string) bool {
	e, ok := m.statuses[modelID]
	if ok && e.attempt != attempt {
		return false
	}
	m.statuses[modelID] = loadEntry{State: st, Err: msg, attempt: attempt, updated: time.Now()}
	if st == StateError {
		m.lastErr = msg
	}
	return true
}

func (m *Manager) setStatus(modelID string, attempt uint64, st State, msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setStatusLocked(modelID, attempt, st, msg)
}

// Close stops accepting work, waits for background loads and recorders,
// then tears the active worker down.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	m.opsMu.Lock()
	m.opsClosed = true
	m.opsMu.Unlock()

	m.cancel()
	m.loadWG.Wait()
	err := m.Teardown()
	m.recordWG.Wait()
	return err
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
