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

// Package wire implements the deterministic, bit-exact binary encoding used
// by every wire-visible structure in the handshake, transcript, and sealed
// box formats: fixed-width little-endian integers, length-prefixed strings
// and byte blobs, optionals, and arrays. Encoding is byte-identical across
// runs and platforms; decoding is strict and rejects trailing bytes or
// out-of-range lengths.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Errors returned by the decoder. Every failure is terminal for the
// current parse; callers never receive a partially-decoded value.
var (
	ErrTruncated    = errors.New("wire: truncated input")
	ErrTrailingData = errors.New("wire: trailing bytes after decoded value")
	ErrLengthRange  = errors.New("wire: length out of range")
	ErrBadBool      = errors.New("wire: invalid bool byte")
)

// Writer accumulates a deterministic byte stream. The zero value is ready
// to use.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with capacity pre-reserved.
func NewWriter(capacityHint int) *Writer {
	return &Writer{buf: make([]byte, 0, capacityHint)}
}

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// PutU8 appends a single byte.
func (w *Writer) PutU8(v uint8) {
	w.buf = append(w.buf, v)
}

// PutU16 appends a little-endian u16.
func (w *Writer) PutU16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// PutU32 appends a little-endian u32.
func (w *Writer) PutU32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// PutU64 appends a little-endian u64.
func (w *Writer) PutU64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// PutI64 appends a little-endian two's-complement i64.
func (w *Writer) PutI64(v int64) {
	w.PutU64(uint64(v))
}

// PutBool appends 0x00 or 0x01.
func (w *Writer) PutBool(v bool) {
	if v {
		w.PutU8(0x01)
	} else {
		w.PutU8(0x00)
	}
}

// PutBytes appends a u32-length-prefixed byte blob.
func (w *Writer) PutBytes(b []byte) {
	w.PutU32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// PutString appends a u32-length-prefixed UTF-8 string.
func (w *Writer) PutString(s string) {
	w.PutBytes([]byte(s))
}

// PutDate appends milliseconds-since-epoch as a little-endian i64.
func (w *Writer) PutDate(epochMillis int64) {
	w.PutI64(epochMillis)
}

// PutOptionalBytes appends a flag byte followed by the blob if present.
func (w *Writer) PutOptionalBytes(b []byte, present bool) {
	w.PutBool(present)
	if present {
		w.PutBytes(b)
	}
}

// PutRaw appends bytes with no length prefix, for fixed-size fields
// (nonces, MACs) whose length is implied by the wire format.
func (w *Writer) PutRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// Reader consumes a deterministic byte stream produced by Writer. Every
// Get* method advances the cursor and returns ErrTruncated if insufficient
// bytes remain.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps data for sequential decoding.
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// Remaining returns the number of unconsumed bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// Finish returns ErrTrailingData if any bytes remain unconsumed. Callers
// MUST invoke this after decoding a top-level typed structure per C1's
// strict-decoder requirement.
func (r *Reader) Finish() error {
	if r.Remaining() != 0 {
		return fmt.Errorf("%w: %d byte(s) remain", ErrTrailingData, r.Remaining())
	}
	return nil
}

func (r *Reader) need(n int) error {
	if n < 0 || r.Remaining() < n {
		return ErrTruncated
	}
	return nil
}

// GetU8 reads a single byte.
func (r *Reader) GetU8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// GetU16 reads a little-endian u16.
func (r *Reader) GetU16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

// GetU32 reads a little-endian u32.
func (r *Reader) GetU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// GetU64 reads a little-endian u64.
func (r *Reader) GetU64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// GetI64 reads a little-endian two's-complement i64.
func (r *Reader) GetI64() (int64, error) {
	v, err := r.GetU64()
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// GetBool reads a single byte, requiring it to be exactly 0x00 or 0x01.
func (r *Reader) GetBool() (bool, error) {
	v, err := r.GetU8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	default:
		return false, ErrBadBool
	}
}

// maxBlobLen bounds u32 length prefixes to avoid a hostile length causing
// an attempted multi-gigabyte allocation before the truncation check runs.
const maxBlobLen = 64 << 20

// GetBytes reads a u32-length-prefixed byte blob.
func (r *Reader) GetBytes() ([]byte, error) {
	n, err := r.GetU32()
	if err != nil {
		return nil, err
	}
	if n > maxBlobLen {
		return nil, fmt.Errorf("%w: declared length %d exceeds maximum", ErrLengthRange, n)
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	v := make([]byte, n)
	copy(v, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return v, nil
}

// GetString reads a u32-length-prefixed UTF-8 string.
func (r *Reader) GetString() (string, error) {
	b, err := r.GetBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetDate reads milliseconds-since-epoch as a little-endian i64.
func (r *Reader) GetDate() (int64, error) {
	return r.GetI64()
}

// GetOptionalBytes reads a flag byte and, if set, a length-prefixed blob.
func (r *Reader) GetOptionalBytes() (value []byte, present bool, err error) {
	present, err = r.GetBool()
	if err != nil {
		return nil, false, err
	}
	if !present {
		return nil, false, nil
	}
	value, err = r.GetBytes()
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// GetRaw reads exactly n bytes with no length prefix, for fixed-size
// fields whose length is implied by the wire format.
func (r *Reader) GetRaw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := make([]byte, n)
	copy(v, r.buf[r.pos:r.pos+n])
	r.pos += n
	return v, nil
}

// maxArrayCount guards against a corrupt u32 count triggering an
// oversized pre-allocation before per-element decoding fails.
const maxArrayCount = 1 << 20

// GetArrayCount reads a u32 array length and range-checks it against
// maxArrayCount, returning ErrLengthRange on overflow.
func (r *Reader) GetArrayCount() (uint32, error) {
	n, err := r.GetU32()
	if err != nil {
		return 0, err
	}
	if n > maxArrayCount {
		return 0, fmt.Errorf("%w: declared count %d exceeds maximum", ErrLengthRange, n)
	}
	return n, nil
}

// PutArrayHeader writes the u32 count prefix for an array<T>; callers
// encode elements themselves via the type-specific Put* methods.
func (w *Writer) PutArrayHeader(count int) {
	if count < 0 || int64(count) > math.MaxUint32 {
		count = 0
	}
	w.PutU32(uint32(count))
}
