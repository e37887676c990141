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

// Package transport implements the wire framing (spec §6) and a
// WebSocket-backed peer connection the session manager's receive loop
// reads frames from (C11).
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize is the largest frame the framing layer accepts; larger
// frames close the connection (spec §6).
const MaxFrameSize = 2_000_000

// ErrFrameTooLarge is returned when a peer announces a frame length
// exceeding MaxFrameSize.
var ErrFrameTooLarge = errors.New("transport: frame exceeds maximum size")

// WriteFrame writes payload to w prefixed by its 4-byte big-endian
// length.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("transport: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("transport: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r. A length exceeding
// MaxFrameSize is reported as ErrFrameTooLarge without reading the
// (unbounded) payload, so the caller can close the connection.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("transport: read frame payload: %w", err)
	}
	return payload, nil
}

// Reassembler incrementally feeds a byte stream (e.g. from a raw
// net.Conn, or a websocket message treated as a stream chunk) into
// complete frames, for transports that don't already preserve message
// boundaries.
type Reassembler struct {
	buf []byte
}

// Feed appends chunk to the internal buffer and returns every complete
// frame it can now extract, leaving any partial trailing frame buffered.
func (r *Reassembler) Feed(chunk []byte) ([][]byte, error) {
	r.buf = append(r.buf, chunk...)

	var frames [][]byte
	for {
		if len(r.buf) < 4 {
			return frames, nil
		}
		length := binary.BigEndian.Uint32(r.buf[:4])
		if length > MaxFrameSize {
			return frames, ErrFrameTooLarge
		}
		total := 4 + int(length)
		if len(r.buf) < total {
			return frames, nil
		}
		frame := make([]byte, length)
		copy(frame, r.buf[4:total])
		frames = append(frames, frame)
		r.buf = r.buf[total:]
	}
}
