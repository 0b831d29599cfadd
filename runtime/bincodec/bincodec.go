// Package bincodec implements the primitive layer of the binary RPC wire
// format: big-endian fixed-width scalars, length-prefixed strings and byte
// blocks, and per-structure presence bitmaps. Generated marshalling code
// composes these primitives; the framing conventions (bitmap first, fields in
// declaration order, u32 counts for collections, u16 variant tags for unions)
// live in the generator.
package bincodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrShortBuffer reports input that ended inside a value.
var ErrShortBuffer = errors.New("bincodec: short buffer")

// Writer accumulates an encoded value. The zero value is ready to use.
type Writer struct {
	buf []byte
}

// Bytes returns the encoded bytes.
func (w *Writer) Bytes() []byte { return w.buf }

// ReserveFlags appends a zeroed presence bitmap covering nFields fields and
// returns its offset for later SetFlag calls.
func (w *Writer) ReserveFlags(nFields int) int {
	pos := len(w.buf)
	w.buf = append(w.buf, make([]byte, flagBytes(nFields))...)
	return pos
}

// SetFlag marks field i present in the bitmap at pos.
func (w *Writer) SetFlag(pos, i int) {
	w.buf[pos+i/8] |= 1 << (i % 8)
}

// WriteBool appends a single boolean byte.
func (w *Writer) WriteBool(b bool) {
	if b {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

// WriteInt8 appends one byte.
func (w *Writer) WriteInt8(v int8) { w.buf = append(w.buf, byte(v)) }

// WriteInt16 appends a big-endian int16.
func (w *Writer) WriteInt16(v int16) { w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v)) }

// WriteInt32 appends a big-endian int32.
func (w *Writer) WriteInt32(v int32) { w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v)) }

// WriteInt64 appends a big-endian int64.
func (w *Writer) WriteInt64(v int64) { w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v)) }

// WriteUint32 appends a big-endian uint32 (collection counts).
func (w *Writer) WriteUint32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }

// WriteUint16 appends a big-endian uint16 (union variant tags).
func (w *Writer) WriteUint16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }

// WriteFloat32 appends IEEE 754 bits.
func (w *Writer) WriteFloat32(v float32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(v))
}

// WriteFloat64 appends IEEE 754 bits.
func (w *Writer) WriteFloat64(v float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// WriteString appends a u32 length prefix and the raw bytes.
func (w *Writer) WriteString(s string) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteBytes appends a u32 length prefix and the raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteTime appends the timestamp as int64 epoch milliseconds.
func (w *Writer) WriteTime(t time.Time) { w.WriteInt64(t.UnixMilli()) }

// Flags is a decoded presence bitmap.
type Flags []byte

// Has reports whether field i is present.
func (f Flags) Has(i int) bool { return f[i/8]&(1<<(i%8)) != 0 }

// Reader consumes an encoded value.
type Reader struct {
	buf []byte
	off int
}

// NewReader wraps b.
func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// Remaining reports how many bytes are left.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) take(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d", ErrShortBuffer, n, r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// ReadFlags consumes the presence bitmap covering nFields fields.
func (r *Reader) ReadFlags(nFields int) (Flags, error) {
	b, err := r.take(flagBytes(nFields))
	if err != nil {
		return nil, err
	}
	return Flags(b), nil
}

// ReadBool consumes one boolean byte.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.take(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// ReadInt8 consumes one byte.
func (r *Reader) ReadInt8() (int8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return int8(b[0]), nil
}

// ReadInt16 consumes a big-endian int16.
func (r *Reader) ReadInt16() (int16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

// ReadInt32 consumes a big-endian int32.
func (r *Reader) ReadInt32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// ReadInt64 consumes a big-endian int64.
func (r *Reader) ReadInt64() (int64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// ReadUint32 consumes a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadUint16 consumes a big-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadFloat32 consumes IEEE 754 bits.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadFloat64 consumes IEEE 754 bits.
func (r *Reader) ReadFloat64() (float64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// ReadString consumes a u32 length prefix and the raw bytes.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBytes consumes a u32 length prefix and returns a copy of the raw bytes.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadTime consumes an int64 epoch-milliseconds timestamp.
func (r *Reader) ReadTime() (time.Time, error) {
	ms, err := r.ReadInt64()
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func flagBytes(nFields int) int { return (nFields + 7) / 8 }
