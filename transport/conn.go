// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one peer connection: a length-framed byte stream carried over a
// WebSocket binary-message channel. Each WebSocket binary message carries
// exactly one already-length-prefixed frame; Recv decodes it with a fresh
// Reassembler and rejects a message holding any other number of frames.
// Reassembler also serves callers layering this codec over a raw stream.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex

	readTimeout  time.Duration
	writeTimeout time.Duration

	closed bool
}

// newConn wraps an established WebSocket connection.
func newConn(ws *websocket.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{ws: ws, readTimeout: readTimeout, writeTimeout: writeTimeout}
}

// Send frames payload and writes it as one WebSocket binary message.
func (c *Conn) Send(payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("transport: connection closed")
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, payload); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, buf.Bytes())
}

// Recv blocks for the next frame. It returns ErrFrameTooLarge (closing the
// connection is the caller's responsibility, per spec §6) if the peer's
// announced length exceeds MaxFrameSize.
func (c *Conn) Recv() ([]byte, error) {
	if err := c.ws.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return nil, fmt.Errorf("transport: set read deadline: %w", err)
	}
	kind, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if kind != websocket.BinaryMessage {
		return nil, fmt.Errorf("transport: unexpected message kind %d", kind)
	}
	frames, rerr := (&Reassembler{}).Feed(data)
	if rerr != nil {
		return nil, rerr
	}
	if len(frames) != 1 {
		return nil, fmt.Errorf("transport: expected exactly one frame per message, got %d", len(frames))
	}
	return frames[0], nil
}

// Close sends a normal-closure control frame and closes the underlying
// connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.ws.Close()
}

// Dialer opens outbound peer connections.
type Dialer struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

// DefaultDialer returns a Dialer with the teacher's conventional timeouts.
func DefaultDialer() *Dialer {
	return &Dialer{
		HandshakeTimeout: 30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     30 * time.Second,
	}
}

// Dial connects to a peer's WebSocket listener at url.
func (d *Dialer) Dial(ctx context.Context, url string) (*Conn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("transport: dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("transport: dial failed: %w", err)
	}
	return newConn(ws, d.ReadTimeout, d.WriteTimeout), nil
}

// ConnHandler processes one accepted peer connection until it closes.
type ConnHandler func(conn *Conn)

// Server accepts inbound WebSocket peer connections and hands each to a
// ConnHandler, which typically drives a session manager's receive loop
// (spec §4.11).
type Server struct {
	handler  ConnHandler
	upgrader websocket.Upgrader

	readTimeout  time.Duration
	writeTimeout time.Duration

	mu    sync.RWMutex
	conns map[*Conn]bool
}

// NewServer creates a Server that upgrades incoming requests and dispatches
// each connection to handler.
func NewServer(handler ConnHandler) *Server {
	return &Server{
		handler: handler,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Peer identity is authenticated at the handshake layer,
				// not by browser origin; this transport is agent-to-agent.
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		readTimeout:  60 * time.Second,
		writeTimeout: 30 * time.Second,
		conns:        make(map[*Conn]bool),
	}
}

// Handler returns an http.Handler that upgrades connections and runs them
// through the server's ConnHandler until they close.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, fmt.Sprintf("transport: upgrade failed: %v", err), http.StatusBadRequest)
			return
		}
		conn := newConn(ws, s.readTimeout, s.writeTimeout)
		s.track(conn)
		defer s.untrack(conn)
		defer conn.Close()
		s.handler(conn)
	})
}

func (s *Server) track(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = true
}

func (s *Server) untrack(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

// ConnectionCount returns the number of currently tracked connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Close closes every tracked connection.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
	s.conns = make(map[*Conn]bool)
	return nil
}
