package manager

import (
	"context"
	"time"
)

// beginGeneration reserves a queue slot and then the single in-flight slot
// on h. Returns a release func to be deferred.
func (m *Manager) beginGeneration(ctx context.Context, h *workerHandle) (func(), error) {
	if m.isDraining(h) {
		return func() {}, ErrModelNotLoaded(h.modelID)
	}
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()
	select {
	case h.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{modelID: h.modelID}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-h.queueCh
		}
	}()
	select {
	case h.genCh <- struct{}{}:
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{modelID: h.modelID}
	}
	// Teardown may have started while we waited.
	if m.isDraining(h) {
		<-h.genCh
		return func() {}, ErrModelNotLoaded(h.modelID)
	}
	acquired = true
	return func() { <-h.genCh; <-h.queueCh }, nil
}

func (m *Manager) isDraining(h *workerHandle) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return h.draining
}
