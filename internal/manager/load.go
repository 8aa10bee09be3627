package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"modelhost/internal/modelrt"
)

// Load makes modelID the active model. Any running worker is drained and
// stopped first. Load returns once the new worker has been started; the
// readiness outcome is reported through LoadStatus.
func (m *Manager) Load(ctx context.Context, modelID string, precision modelrt.Precision) error {
	if strings.TrimSpace(modelID) == "" {
		return badRequestError{msg: "model_id is required"}
	}
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	if m.isClosed() {
		return ErrClosed
	}
	m.teardownLocked()
	return m.startLocked(ctx, modelID, m.markLoading(modelID), precision)
}

// startLocked runs one load attempt whose status entry already says
// loading. Callers hold loadMu and have torn down the previous worker.
func (m *Manager) startLocked(ctx context.Context, modelID string, attempt uint64, precision modelrt.Precision) error {
	log := m.log.With().Str("model", modelID).Uint64("attempt", attempt).Logger()
	m.emit(Event{Name: "load_start", ModelID: modelID, Fields: map[string]any{"precision": precision.String(), "attempt": attempt}})

	fail := func(outcome string, err error) error {
		m.setStatus(modelID, attempt, StateError, err.Error())
		loadsTotal.WithLabelValues(outcome).Inc()
		log.Error().Str("event", "load_error").Str("outcome", outcome).Err(err).Msg("manager")
		m.emit(Event{Name: "load_error", ModelID: modelID, Fields: map[string]any{"error": err.Error()}})
		return err
	}

	if m.locator == nil {
		return fail("lookup_error", errors.New("no model locator configured"))
	}
	dir, err := m.locator.ModelDir(ctx, modelID)
	if err != nil {
		return fail("lookup_error", fmt.Errorf("locate model %s: %w", modelID, err))
	}
	if strings.TrimSpace(dir) == "" {
		return fail("not_found", ErrModelNotFound(modelID))
	}

	spec := WorkerSpec{ModelID: modelID, Dir: dir, Precision: precision}
	proc, conn, err := m.spawner.Spawn(ctx, spec)
	if err != nil {
		return fail("spawn_error", fmt.Errorf("spawn worker for %s: %w", modelID, err))
	}

	h := newWorkerHandle(spec, attempt, proc, newWorkerConn(conn), m.maxQueueDepth)
	m.mu.Lock()
	m.active = h
	m.mu.Unlock()
	workerUp.Set(1)
	log.Info().Str("event", "spawned").Int("pid", proc.Pid()).Str("dir", dir).Msg("manager")

	go m.watchReady(h)
	go m.watchExit(h)
	return nil
}
