package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"modelhost/internal/ipc"
)

// errWorkerGone is reported to callers whose reply can no longer arrive.
var errWorkerGone = errors.New("worker channel closed")

// workerConn multiplexes one worker channel. A single reader goroutine owns
// Recv: the first message goes to first, later replies are routed to the
// waiter registered under their correlation id.
type workerConn struct {
	conn  *ipc.Conn
	first chan ipc.Message

	mu      sync.Mutex
	pending map[string]chan ipc.Message
	done    bool
	err     error // why the reader stopped

	stopped chan struct{}
}

func newWorkerConn(c *ipc.Conn) *workerConn {
	wc := &workerConn{
		conn:    c,
		first:   make(chan ipc.Message, 1),
		pending: make(map[string]chan ipc.Message),
		stopped: make(chan struct{}),
	}
	go wc.readLoop()
	return wc
}

func (wc *workerConn) readLoop() {
	var err error
	defer func() {
		wc.mu.Lock()
		wc.done = true
		wc.err = err
		for id, ch := range wc.pending {
			close(ch)
			delete(wc.pending, id)
		}
		wc.mu.Unlock()
		close(wc.stopped)
	}()

	firstSent := false
	defer func() {
		if !firstSent {
			close(wc.first)
		}
	}()

	for {
		var msg ipc.Message
		msg, err = wc.conn.Recv()
		if err != nil {
			return
		}
		if !firstSent {
			wc.first <- msg
			close(wc.first)
			firstSent = true
			continue
		}
		id := replyID(msg)
		if id == "" {
			// Unsolicited message; nothing is waiting for it.
			continue
		}
		wc.mu.Lock()
		ch := wc.pending[id]
		delete(wc.pending, id)
		wc.mu.Unlock()
		if ch != nil {
			ch <- msg
		}
	}
}

func replyID(msg ipc.Message) string {
	switch v := msg.(type) {
	case ipc.Result:
		return v.ID
	case ipc.Error:
		return v.ID
	default:
		return ""
	}
}

// call sends p and waits for the reply carrying p.ID.
func (wc *workerConn) call(ctx context.Context, p ipc.Prompt) (ipc.Message, error) {
	ch := make(chan ipc.Message, 1)
	wc.mu.Lock()
	if wc.done {
		err := wc.err
		wc.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", errWorkerGone, err)
	}
	wc.pending[p.ID] = ch
	wc.mu.Unlock()

	if err := wc.conn.Send(p); err != nil {
		wc.forget(p.ID)
		return nil, fmt.Errorf("send prompt: %w", err)
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("%w: %v", errWorkerGone, wc.readErr())
		}
		return msg, nil
	case <-ctx.Done():
		wc.forget(p.ID)
		return nil, ctx.Err()
	}
}

func (wc *workerConn) forget(id string) {
	wc.mu.Lock()
	delete(wc.pending, id)
	wc.mu.Unlock()
}

func (wc *workerConn) readErr() error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.err
}

// send writes a message without waiting for a reply.
func (wc *workerConn) send(msg ipc.Message) error { return wc.conn.Send(msg) }

// close closes the channel and waits for the reader to stop.
func (wc *workerConn) close() error {
	err := wc.conn.Close()
	<-wc.stopped
	return err
}
