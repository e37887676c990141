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
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello peer")
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	oversized := make([]byte, MaxFrameSize+1)
	if err := WriteFrame(&buf, oversized); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrameRejectsOversizedAnnouncedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x7F, 0xFF, 0xFF, 0xFF}) // length far above MaxFrameSize
	if _, err := ReadFrame(&buf); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReassemblerSplitsMultipleFramesAcrossChunks(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteFrame(&buf, []byte("frame-one"))
	_ = WriteFrame(&buf, []byte("frame-two"))
	full := buf.Bytes()

	var r Reassembler
	var allFrames [][]byte
	// feed one byte at a time to exercise partial-frame buffering
	for i := range full {
		frames, err := r.Feed(full[i : i+1])
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		allFrames = append(allFrames, frames...)
	}

	if len(allFrames) != 2 {
		t.Fatalf("expected 2 reassembled frames, got %d", len(allFrames))
	}
	if string(allFrames[0]) != "frame-one" || string(allFrames[1]) != "frame-two" {
		t.Fatalf("unexpected frame contents: %q, %q", allFrames[0], allFrames[1])
	}
}

func TestReassemblerRejectsOversizedAnnouncedLength(t *testing.T) {
	var r Reassembler
	header := []byte{0x7F, 0xFF, 0xFF, 0xFF}
	if _, err := r.Feed(header); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}
