package manager

import (
	"syscall"
	"time"

	"modelhost/internal/ipc"
)

// killGrace bounds the wait after SIGTERM before SIGKILL.
const killGrace = 2 * time.Second

// Teardown drains and stops the active worker, if any. Queued requests get
// up to the drain timeout to finish; new requests are refused meanwhile.
// Calling it with no active worker is a no-op.
func (m *Manager) Teardown() error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	m.teardownLocked()
	return nil
}

func (m *Manager) teardownLocked() {
	m.mu.Lock()
	h := m.active
	if h == nil {
		m.mu.Unlock()
		return
	}
	h.draining = true
	m.mu.Unlock()

	start := time.Now()
	log := m.log.With().Str("model", h.modelID).Int("pid", h.proc.Pid()).Logger()
	m.emit(Event{Name: "teardown_start", ModelID: h.modelID, Fields: map[string]any{"pid": h.proc.Pid()}})

	deadline := time.Now().Add(m.drainTimeout)
	for {
		qlen := len(h.queueCh)
		inflight := len(h.genCh)
		if inflight == 0 && qlen == 0 {
			break
		}
		if time.Now().After(deadline) {
			log.Warn().Str("event", "drain_timeout").Int("inflight", inflight).Int("queue", qlen).Msg("manager")
			m.emit(Event{Name: "drain_timeout", ModelID: h.modelID, Fields: map[string]any{"inflight": inflight, "queue": qlen}})
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	// A worker still loading does not read its input yet, so the send may
	// block until the channel is closed below.
	sent := make(chan error, 1)
	go func() { sent <- h.conn.send(ipc.Exit{}) }()
	stopProcess(h.proc, m.exitTimeout)
	_ = h.conn.close()
	if err := <-sent; err != nil {
		log.Debug().Err(err).Msg("send exit")
	}
	<-h.watchDone
	<-h.exitDone

	m.mu.Lock()
	if m.active == h {
		m.active = nil
	}
	m.mu.Unlock()
	workerUp.Set(0)

	took := time.Since(start)
	teardownDuration.Observe(took.Seconds())
	exitErr := h.proc.Err()
	ev := log.Info().Str("event", "stopped").Dur("took", took)
	if exitErr != nil {
		ev = ev.Str("exit", exitErr.Error())
	}
	ev.Msg("manager")
	m.emit(Event{Name: "teardown_done", ModelID: h.modelID, Fields: map[string]any{"took_ms": took.Milliseconds()}})
}

// stopProcess waits for p to exit after Exit was sent, then escalates to
// SIGTERM and finally SIGKILL.
func stopProcess(p Process, exitTimeout time.Duration) {
	if waitDone(p, exitTimeout) {
		return
	}
	_ = p.Signal(syscall.SIGTERM)
	if waitDone(p, killGrace) {
		return
	}
	_ = p.Kill()
	<-p.Done()
}

func waitDone(p Process, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.Done():
		return true
	case <-t.C:
		return false
	}
}
