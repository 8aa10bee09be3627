package manager

import (
	"time"

	"modelhost/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	resp := types.StatusResponse{
		MaxQueueDepth:  m.maxQueueDepth,
		Loads:          m.loadStatusesLocked(),
		LoadsTotal:     m.attempts,
		LastError:      m.lastErr,
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
	h := m.active
	if h == nil {
		return resp
	}
	resp.ActiveModel = h.modelID
	resp.PID = h.proc.Pid()
	resp.Precision = h.precision.String()
	resp.Draining = h.draining
	resp.QueueLen = len(h.queueCh)
	resp.Inflight = len(h.genCh)
	if e, ok := m.statuses[h.modelID]; ok && e.attempt == h.attempt {
		resp.State = string(e.State)
	}
	if h.ready {
		resp.Capabilities = &types.Capabilities{ChatTemplate: h.caps.ChatTemplate, Thinking: h.caps.Thinking}
	}
	return resp
}
