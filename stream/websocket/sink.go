// Package websocket provides a core.EventSink that pushes stream events over
// a gorilla websocket connection, letting a browser render artifact panels
// live while the turn is still running.
package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hupe1980/artifactmesh/core"
)

// DefaultWriteWait bounds how long a single event write may block.
const DefaultWriteWait = 10 * time.Second

// Options configure a websocket Sink.
type Options struct {
	WriteWait time.Duration
}

// Sink writes wire-shaped JSON stream events over a websocket connection.
// Gorilla connections allow one concurrent writer, so writes are serialized
// under a mutex. Order is preserved per the EventSink contract.
type Sink struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	opts   Options
	closed bool
}

// compile-time interface check
var _ core.EventSink = (*Sink)(nil)

// NewSink wraps an established websocket connection.
func NewSink(conn *websocket.Conn, optFns ...func(o *Options)) *Sink {
	opts := Options{WriteWait: DefaultWriteWait}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Sink{conn: conn, opts: opts}
}

// Write implements core.EventSink.
func (s *Sink) Write(ev core.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrSinkClosed
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(ev)
}

// Close sends a close frame and shuts the connection down. Safe to call
// multiple times.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	deadline := time.Now().Add(s.opts.WriteWait)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return s.conn.Close()
}
