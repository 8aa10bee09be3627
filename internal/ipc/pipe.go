package ipc

import "io"

// Pipe returns two connected in-memory channel ends. Messages sent on one
// are received on the other. Closing either end makes the peer's Recv
// return io.EOF.
func Pipe() (*Conn, *Conn) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	a := NewConn(ar, aw, aw, ar)
	b := NewConn(br, bw, bw, br)
	return a, b
}
