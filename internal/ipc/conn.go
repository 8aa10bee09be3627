package ipc

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("ipc: channel closed")

// Conn is one end of a bidirectional message channel. Send is safe for
// concurrent use; Recv must only be called from a single goroutine.
type Conn struct {
	r       *bufio.Reader
	w       io.Writer
	closers []io.Closer

	wmu    sync.Mutex
	once   sync.Once
	closed atomic.Bool
}

// NewConn builds a channel end that reads messages from r and writes them to
// w. Close closes each of closers in order.
func NewConn(r io.Reader, w io.Writer, closers ...io.Closer) *Conn {
	return &Conn{r: bufio.NewReader(r), w: w, closers: closers}
}

// Send writes one message followed by a newline.
func (c *Conn) Send(m Message) error {
	b, err := Encode(m)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed.Load() {
		return ErrClosed
	}
	_, err = c.w.Write(b)
	return err
}

// Recv blocks until the next message arrives. It returns io.EOF once the
// peer has closed its end cleanly. Blank lines are skipped.
func (c *Conn) Recv() (Message, error) {
	for {
		line, err := c.r.ReadBytes('\n')
		if len(trimLine(line)) > 0 {
			return Decode(line)
		}
		if err != nil {
			return nil, err
		}
	}
}

// Close releases the underlying streams, unblocking a pending Send or
// Recv. It is safe to call more than once.
func (c *Conn) Close() error {
	var first error
	c.once.Do(func() {
		c.closed.Store(true)
		for _, cl := range c.closers {
			if err := cl.Close(); err != nil && first == nil {
				first = err
			}
		}
	})
	return first
}

func trimLine(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r' || b[len(b)-1] == ' ') {
		b = b[:len(b)-1]
	}
	return b
}
