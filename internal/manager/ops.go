package manager

import (
	"strconv"
	"time"

	"modelhost/internal/modelrt"
)

// loadOp is one queued RequestLoad.
type loadOp struct {
	id        string
	modelID   string
	precision modelrt.Precision
	attempt   uint64
	queued    time.Time
}

func (m *Manager) nextOpID() string {
	m.opSeq++
	return "op-" + strconv.FormatUint(m.opSeq, 10)
}

// RequestLoad schedules a load of modelID and returns at once with an
// operation id. The model reads as loading from this point on. Requests
// run one after another in arrival order; callers poll LoadStatus.
func (m *Manager) RequestLoad(modelID string, precision modelrt.Precision) (string, error) {
	if modelID == "" {
		return "", badRequestError{msg: "model_id is required"}
	}
	m.opsMu.Lock()
	defer m.opsMu.Unlock()
	if m.opsClosed {
		return "", ErrClosed
	}
	attempt := m.markLoading(modelID)
	op := loadOp{id: m.nextOpID(), modelID: modelID, precision: precision, attempt: attempt, queued: time.Now()}
	m.pending = append(m.pending, op)
	if !m.loadingOps {
		m.loadingOps = true
		m.loadWG.Add(1)
		go m.runLoads()
	}
	m.log.Info().Str("event", "load_requested").Str("op", op.id).Str("model", modelID).Msg("manager")
	return op.id, nil
}

// runLoads drains the pending queue. It exits when the queue is empty.
func (m *Manager) runLoads() {
	defer m.loadWG.Done()
	for {
		m.opsMu.Lock()
		if len(m.pending) == 0 {
			m.loadingOps = false
			m.opsMu.Unlock()
			return
		}
		op := m.pending[0]
		m.pending = m.pending[1:]
		m.opsMu.Unlock()
		m.runLoad(op)
	}
}

func (m *Manager) runLoad(op loadOp) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	if m.baseCtx.Err() != nil {
		m.setStatus(op.modelID, op.attempt, StateError, ErrClosed.Error())
		return
	}
	m.log.Debug().Str("op", op.id).Str("model", op.modelID).Dur("queued", time.Since(op.queued)).Msg("load dequeued")
	m.teardownLocked()
	// Errors are recorded in the status map by startLocked.
	_ = m.startLocked(m.baseCtx, op.modelID, op.attempt, op.precision)
}
