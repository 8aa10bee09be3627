package manager

import (
	"errors"
	"fmt"
	"time"

	"modelhost/internal/ipc"
)

// watchReady waits for the worker's first message and records the load
// outcome.
func (m *Manager) watchReady(h *workerHandle) {
	defer close(h.watchDone)

	timer := time.NewTimer(m.readyTimeout)
	defer timer.Stop()

	select {
	case msg, ok := <-h.conn.first:
		if !ok {
			m.failLoad(h, errors.New("worker exited before reporting ready"))
			return
		}
		switch v := msg.(type) {
		case ipc.Ready:
			m.markReady(h, v.Capabilities)
		case ipc.Error:
			m.failLoad(h, errors.New(v.Detail))
		default:
			m.failLoad(h, fmt.Errorf("unexpected %s message before ready", msg.Tag()))
		}
	case <-timer.C:
		m.failLoad(h, fmt.Errorf("worker not ready after %s", m.readyTimeout))
	}
}

func (m *Manager) markReady(h *workerHandle, caps ipc.Capabilities) {
	m.mu.Lock()
	h.ready = true
	h.caps = caps
	current := m.setStatusLocked(h.modelID, h.attempt, StateReady, "")
	m.mu.Unlock()
	if !current {
		return
	}
	loadsTotal.WithLabelValues("ready").Inc()
	m.log.Info().Str("event", "ready").Str("model", h.modelID).Bool("chat_template", caps.ChatTemplate).
		Bool("thinking", caps.Thinking).Dur("took", time.Since(h.startedAt)).Msg("manager")
	m.emit(Event{Name: "load_ready", ModelID: h.modelID, Fields: map[string]any{"chat_template": caps.ChatTemplate, "thinking": caps.Thinking}})
}

func (m *Manager) failLoad(h *workerHandle, err error) {
	msg := err.Error()
	if t, ok := h.proc.(interface{ StderrTail() string }); ok {
		select {
		case <-h.proc.Done():
			if tail := t.StderrTail(); tail != "" {
				msg += "; stderr tail: " + tail
			}
		case <-time.After(time.Second):
		}
	}
	if !m.setStatus(h.modelID, h.attempt, StateError, msg) {
		return
	}
	loadsTotal.WithLabelValues("worker_error").Inc()
	m.log.Error().Str("event", "load_error").Str("model", h.modelID).Str("error", msg).Msg("manager")
	m.emit(Event{Name: "load_error", ModelID: h.modelID, Fields: map[string]any{"error": msg}})
}

// watchExit notices a ready worker that dies or drops its channel outside
// of teardown. The handle stays active but stops serving, and the model's
// status becomes error until the next load replaces it.
func (m *Manager) watchExit(h *workerHandle) {
	defer close(h.exitDone)
	<-h.watchDone

	var reason string
	select {
	case <-h.proc.Done():
		reason = "worker exited"
		if err := h.proc.Err(); err != nil {
			reason += ": " + err.Error()
		}
	case <-h.conn.stopped:
		reason = "worker channel closed"
		if err := h.conn.readErr(); err != nil {
			reason += ": " + err.Error()
		}
	}

	m.mu.Lock()
	if m.active != h || h.draining || !h.ready {
		m.mu.Unlock()
		return
	}
	h.ready = false
	current := m.setStatusLocked(h.modelID, h.attempt, StateError, reason)
	m.mu.Unlock()
	workerUp.Set(0)
	if !current {
		return
	}
	m.log.Error().Str("event", "worker_lost").Str("model", h.modelID).Int("pid", h.proc.Pid()).Str("error", reason).Msg("manager")
	m.emit(Event{Name: "worker_lost", ModelID: h.modelID, Fields: map[string]any{"error": reason}})
}
