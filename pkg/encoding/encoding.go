// Package encoding provides the fixed-width integer primitives used to build
// wire forms of small records. Buffer appends, Cursor consumes. All integers
// are little-endian.
package encoding

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncated is returned by Cursor when fewer bytes remain than the
// requested integer needs.
var ErrTruncated = errors.New("encoding: truncated input")

// Buffer is an append-only byte buffer.
type Buffer struct {
	b []byte
}

// NewBuffer returns a Buffer that appends to dst.
func NewBuffer(dst []byte) *Buffer {
	return &Buffer{b: dst}
}

func (w *Buffer) PutUint32(v uint32) {
	w.b = binary.LittleEndian.AppendUint32(w.b, v)
}

func (w *Buffer) PutUint64(v uint64) {
	w.b = binary.LittleEndian.AppendUint64(w.b, v)
}

// PutBytes appends raw bytes without any length prefix.
func (w *Buffer) PutBytes(p []byte) {
	w.b = append(w.b, p...)
}

// Bytes returns the accumulated bytes. The slice aliases the buffer.
func (w *Buffer) Bytes() []byte { return w.b }

func (w *Buffer) Len() int { return len(w.b) }

func (w *Buffer) Reset() { w.b = w.b[:0] }

// Cursor reads fixed-width integers from a byte slice, advancing past each
// one. A failed read leaves the cursor where it was.
type Cursor struct {
	b   []byte
	off int
}

// NewCursor returns a Cursor positioned at the start of b.
func NewCursor(b []byte) *Cursor {
	return &Cursor{b: b}
}

func (r *Cursor) need(n int) error {
	if rem := len(r.b) - r.off; rem < n {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.off, rem)
	}
	return nil
}

func (r *Cursor) Uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v, nil
}

func (r *Cursor) Uint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.b[r.off:])
	r.off += 8
	return v, nil
}

// Next returns the next n bytes. The returned slice aliases the input.
func (r *Cursor) Next(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	p := r.b[r.off : r.off+n]
	r.off += n
	return p, nil
}

// Offset reports how many bytes have been consumed.
func (r *Cursor) Offset() int { return r.off }

// Remaining reports how many bytes are left.
func (r *Cursor) Remaining() int { return len(r.b) - r.off }

// Rest returns the unconsumed tail without advancing.
func (r *Cursor) Rest() []byte { return r.b[r.off:] }
