package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"modelhost/internal/ipc"
	"modelhost/pkg/types"
)

const recordTimeout = 30 * time.Second

// Infer sends one prompt to the active worker and returns the generated
// text. A request for any model other than the active, ready one fails with
// a not-loaded error before touching the worker channel.
func (m *Manager) Infer(ctx context.Context, req types.InferRequest) (string, error) {
	mode := ipc.Mode(req.Mode)
	if mode == "" {
		mode = ipc.ModeConversation
	}
	if !mode.Valid() {
		return "", badRequestError{msg: fmt.Sprintf("unknown mode %q", req.Mode)}
	}
	h := m.servingHandle(req.ModelID)
	if h == nil {
		return "", ErrModelNotLoaded(req.ModelID)
	}

	release, err := m.beginGeneration(ctx, h)
	if err != nil {
		return "", err
	}
	defer release()

	payload := m.buildPayload(ctx, req, mode)
	id := uuid.NewString()
	log := m.log.With().Str("model", h.modelID).Str("id", id).Str("mode", string(mode)).Logger()

	cctx, cancel := context.WithTimeout(ctx, m.inferTimeout)
	defer cancel()
	start := time.Now()
	reply, err := h.conn.call(cctx, ipc.Prompt{ID: id, Payload: payload})
	took := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			inferenceDuration.WithLabelValues("canceled").Observe(took.Seconds())
			return "", ctx.Err()
		}
		inferenceDuration.WithLabelValues("error").Observe(took.Seconds())
		log.Error().Err(err).Dur("took", took).Msg("inference")
		return "", &InferenceError{ModelID: h.modelID, Message: err.Error()}
	}

	switch r := reply.(type) {
	case ipc.Result:
		inferenceDuration.WithLabelValues("ok").Observe(took.Seconds())
		log.Debug().Dur("took", took).Int("chars", len(r.Text)).Msg("inference")
		if mode == ipc.ModeConversation {
			m.record(ctx, req, r.Text)
		}
		return r.Text, nil
	case ipc.Error:
		inferenceDuration.WithLabelValues("error").Observe(took.Seconds())
		log.Warn().Str("detail", r.Detail).Dur("took", took).Msg("inference")
		return "", &InferenceError{ModelID: h.modelID, Message: r.Detail}
	default:
		inferenceDuration.WithLabelValues("error").Observe(took.Seconds())
		return "", &InferenceError{ModelID: h.modelID, Message: fmt.Sprintf("unexpected %s reply", reply.Tag())}
	}
}

// servingHandle returns the active handle when it serves modelID and is
// ready to take prompts.
func (m *Manager) servingHandle(modelID string) *workerHandle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.active
	if h == nil || m.closed || modelID == "" || h.modelID != modelID || !h.ready || h.draining {
		return nil
	}
	if e, ok := m.statuses[modelID]; !ok || e.attempt != h.attempt || e.State != StateReady {
		return nil
	}
	return h
}

// record adds a conversation exchange to the session history and persists
// it in the background.
func (m *Manager) record(ctx context.Context, req types.InferRequest, reply string) {
	if m.recorder == nil || req.SessionID == "" {
		return
	}
	at := time.Now()
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	err := m.recorder.Remember(rctx, req, reply, at)
	cancel()
	if err != nil {
		m.log.Warn().Err(err).Str("session", req.SessionID).Str("model", req.ModelID).Msg("remember history")
	}
	m.recordWG.Add(1)
	go func() {
		defer m.recordWG.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(m.baseCtx), recordTimeout)
		defer cancel()
		if err := m.recorder.Persist(pctx, req, reply, at); err != nil {
			m.log.Error().Err(err).Str("session", req.SessionID).Str("model", req.ModelID).Msg("record history")
		}
	}()
}
