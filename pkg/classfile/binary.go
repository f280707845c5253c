package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// reader reads big-endian class file items. The first error sticks; later
// reads return zero values so callers can check once per structure.
type reader struct {
	r   io.Reader
	err error
	buf [8]byte
}

func (r *reader) fill(n int) []byte {
	b := r.buf[:n]
	if r.err != nil {
		clear(b)
		return b
	}
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.err = err
		clear(b)
	}
	return b
}

func (r *reader) u1() uint8  { return r.fill(1)[0] }
func (r *reader) u2() uint16 { return binary.BigEndian.Uint16(r.fill(2)) }
func (r *reader) u4() uint32 { return binary.BigEndian.Uint32(r.fill(4)) }
func (r *reader) u8() uint64 { return binary.BigEndian.Uint64(r.fill(8)) }

// bytes reads a length-prefixed item. The length comes from the file, so it
// is checked against what is left before allocating.
func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if sized, ok := r.r.(interface{ Len() int }); ok {
		if left := sized.Len(); n > left {
			r.err = fmt.Errorf("item of %d bytes with %d left: %w", n, left, io.ErrUnexpectedEOF)
			return nil
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r.r, b); err != nil {
			r.err = err
			return nil
		}
		return b
	}

	// Unknown size: let the buffer grow with the data actually read.
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r.r, int64(n)); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		r.err = err
		return nil
	}
	return buf.Bytes()
}

// writer accumulates big-endian class file items in memory.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) u1(v uint8)   { w.buf.WriteByte(v) }
func (w *writer) u2(v uint16)  { w.buf.Write(binary.BigEndian.AppendUint16(nil, v)) }
func (w *writer) u4(v uint32)  { w.buf.Write(binary.BigEndian.AppendUint32(nil, v)) }
func (w *writer) u8(v uint64)  { w.buf.Write(binary.BigEndian.AppendUint64(nil, v)) }
func (w *writer) raw(b []byte) { w.buf.Write(b) }

func (w *writer) Bytes() []byte { return w.buf.Bytes() }
