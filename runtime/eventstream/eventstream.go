// Package eventstream implements the framed message codec used by
// event-stream operations: each frame is a 12-byte prelude (total length,
// headers length, prelude CRC32), a header block, a payload, and a trailing
// CRC32 over the whole frame. Generated per-variant marshallers produce and
// consume Messages; the Encoder/Decoder pair moves them over a byte stream,
// invoking an optional per-frame signing hook.
package eventstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"time"
)

// Well-known header names.
const (
	HeaderMessageType   = ":message-type"
	HeaderEventType     = ":event-type"
	HeaderExceptionType = ":exception-type"
	HeaderContentType   = ":content-type"
)

// Message-type values.
const (
	MessageTypeEvent     = "event"
	MessageTypeException = "exception"
	MessageTypeError     = "error"
)

const (
	preludeLen    = 12
	crcLen        = 4
	maxHeaderName = 255
)

var (
	// ErrChecksum reports a prelude or message CRC mismatch.
	ErrChecksum = errors.New("eventstream: checksum mismatch")
	// ErrTruncated reports an incomplete frame.
	ErrTruncated = errors.New("eventstream: truncated frame")
)

// ValueKind discriminates header values. The set is closed and matches the
// wire type codes.
type ValueKind uint8

const (
	KindBoolTrue  ValueKind = 0
	KindBoolFalse ValueKind = 1
	KindByte      ValueKind = 2
	KindInt16     ValueKind = 3
	KindInt32     ValueKind = 4
	KindInt64     ValueKind = 5
	KindByteArray ValueKind = 6
	KindString    ValueKind = 7
	KindTimestamp ValueKind = 8
	KindUUID      ValueKind = 9
)

// Value is one header value. Exactly the field matching Kind is meaningful.
type Value struct {
	Kind  ValueKind
	Int   int64 // byte / int16 / int32 / int64
	Bytes []byte
	Str   string
	Time  time.Time // millisecond precision on the wire
}

// BoolValue builds a boolean header value.
func BoolValue(b bool) Value {
	if b {
		return Value{Kind: KindBoolTrue}
	}
	return Value{Kind: KindBoolFalse}
}

// StringValue builds a string header value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// Int32Value builds an int32 header value.
func Int32Value(v int32) Value { return Value{Kind: KindInt32, Int: int64(v)} }

// TimestampValue builds a timestamp header value.
func TimestampValue(t time.Time) Value { return Value{Kind: KindTimestamp, Time: t} }

// Header is one name/value pair of a frame's header block.
type Header struct {
	Name  string
	Value Value
}

// Message is one decoded frame.
type Message struct {
	Headers []Header
	Payload []byte
}

// Header returns the named header value, or nil.
func (m *Message) Header(name string) *Value {
	for i := range m.Headers {
		if m.Headers[i].Name == name {
			return &m.Headers[i].Value
		}
	}
	return nil
}

// AddHeader appends a header.
func (m *Message) AddHeader(name string, v Value) {
	m.Headers = append(m.Headers, Header{Name: name, Value: v})
}

// Encode renders the message as one complete frame.
func Encode(m *Message) ([]byte, error) {
	headers, err := encodeHeaders(m.Headers)
	if err != nil {
		return nil, err
	}
	total := preludeLen + len(headers) + len(m.Payload) + crcLen
	buf := make([]byte, 0, total)
	buf = binary.BigEndian.AppendUint32(buf, uint32(total))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(headers)))
	buf = binary.BigEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
	buf = append(buf, headers...)
	buf = append(buf, m.Payload...)
	buf = binary.BigEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
	return buf, nil
}

// Decode parses one complete frame, verifying both checksums.
func Decode(frame []byte) (*Message, error) {
	if len(frame) < preludeLen+crcLen {
		return nil, ErrTruncated
	}
	total := binary.BigEndian.Uint32(frame[0:4])
	headersLen := binary.BigEndian.Uint32(frame[4:8])
	preludeCRC := binary.BigEndian.Uint32(frame[8:12])
	if crc32.ChecksumIEEE(frame[0:8]) != preludeCRC {
		return nil, fmt.Errorf("%w: prelude", ErrChecksum)
	}
	if int(total) != len(frame) {
		return nil, ErrTruncated
	}
	if int(headersLen) > int(total)-preludeLen-crcLen {
		return nil, ErrTruncated
	}
	body := frame[:total-crcLen]
	msgCRC := binary.BigEndian.Uint32(frame[total-crcLen:])
	if crc32.ChecksumIEEE(body) != msgCRC {
		return nil, fmt.Errorf("%w: message", ErrChecksum)
	}
	headers, err := decodeHeaders(frame[preludeLen : preludeLen+headersLen])
	if err != nil {
		return nil, err
	}
	payload := frame[preludeLen+headersLen : total-crcLen]
	return &Message{Headers: headers, Payload: payload}, nil
}

// SignFunc wraps a frame before transmission, e.g. enveloping it in a signed
// outer frame. The identity hook leaves the message untouched.
type SignFunc func(*Message) (*Message, error)

// Encoder writes frames to an underlying stream.
type Encoder struct {
	w    io.Writer
	sign SignFunc
}

// NewEncoder returns an Encoder. sign may be nil.
func NewEncoder(w io.Writer, sign SignFunc) *Encoder {
	return &Encoder{w: w, sign: sign}
}

// Encode signs (when a hook is installed) and writes one frame.
func (e *Encoder) Encode(m *Message) error {
	if e.sign != nil {
		signed, err := e.sign(m)
		if err != nil {
			return fmt.Errorf("eventstream: sign: %w", err)
		}
		m = signed
	}
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = e.w.Write(frame)
	return err
}

// Decoder reads frames from an underlying stream.
type Decoder struct {
	r      io.Reader
	unread *Message
}

// NewDecoder returns a Decoder.
func NewDecoder(r io.Reader) *Decoder { return &Decoder{r: r} }

// Unread pushes one message back; the next Decode returns it. Parsers use
// this when the first frame turns out not to be the initial-response event.
func (d *Decoder) Unread(m *Message) { d.unread = m }

// Decode reads exactly one frame. io.EOF is returned untouched at a clean
// frame boundary; a partial frame yields ErrTruncated.
func (d *Decoder) Decode() (*Message, error) {
	if m := d.unread; m != nil {
		d.unread = nil
		return m, nil
	}
	prelude := make([]byte, preludeLen)
	if _, err := io.ReadFull(d.r, prelude); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, ErrTruncated
	}
	total := binary.BigEndian.Uint32(prelude[0:4])
	if total < preludeLen+crcLen {
		return nil, ErrTruncated
	}
	frame := make([]byte, total)
	copy(frame, prelude)
	if _, err := io.ReadFull(d.r, frame[preludeLen:]); err != nil {
		return nil, ErrTruncated
	}
	return Decode(frame)
}

func encodeHeaders(headers []Header) ([]byte, error) {
	var buf []byte
	for _, h := range headers {
		if len(h.Name) == 0 || len(h.Name) > maxHeaderName {
			return nil, fmt.Errorf("eventstream: invalid header name %q", h.Name)
		}
		buf = append(buf, byte(len(h.Name)))
		buf = append(buf, h.Name...)
		var err error
		if buf, err = appendValue(buf, h.Value); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendValue(buf []byte, v Value) ([]byte, error) {
	buf = append(buf, byte(v.Kind))
	switch v.Kind {
	case KindBoolTrue, KindBoolFalse:
		return buf, nil
	case KindByte:
		return append(buf, byte(v.Int)), nil
	case KindInt16:
		return binary.BigEndian.AppendUint16(buf, uint16(v.Int)), nil
	case KindInt32:
		return binary.BigEndian.AppendUint32(buf, uint32(v.Int)), nil
	case KindInt64:
		return binary.BigEndian.AppendUint64(buf, uint64(v.Int)), nil
	case KindByteArray:
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(v.Bytes)))
		return append(buf, v.Bytes...), nil
	case KindString:
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(v.Str)))
		return append(buf, v.Str...), nil
	case KindTimestamp:
		return binary.BigEndian.AppendUint64(buf, uint64(v.Time.UnixMilli())), nil
	case KindUUID:
		if len(v.Bytes) != 16 {
			return nil, fmt.Errorf("eventstream: uuid value must be 16 bytes")
		}
		return append(buf, v.Bytes...), nil
	}
	return nil, fmt.Errorf("eventstream: unknown header value kind %d", v.Kind)
}

func decodeHeaders(block []byte) ([]Header, error) {
	var headers []Header
	for len(block) > 0 {
		nameLen := int(block[0])
		block = block[1:]
		if nameLen == 0 || len(block) < nameLen+1 {
			return nil, ErrTruncated
		}
		name := string(block[:nameLen])
		block = block[nameLen:]
		v, rest, err := readValue(block)
		if err != nil {
			return nil, err
		}
		block = rest
		headers = append(headers, Header{Name: name, Value: v})
	}
	return headers, nil
}

func readValue(b []byte) (Value, []byte, error) {
	kind := ValueKind(b[0])
	b = b[1:]
	need := func(n int) error {
		if len(b) < n {
			return ErrTruncated
		}
		return nil
	}
	switch kind {
	case KindBoolTrue, KindBoolFalse:
		return Value{Kind: kind}, b, nil
	case KindByte:
		if err := need(1); err != nil {
			return Value{}, nil, err
		}
		return Value{Kind: kind, Int: int64(int8(b[0]))}, b[1:], nil
	case KindInt16:
		if err := need(2); err != nil {
			return Value{}, nil, err
		}
		return Value{Kind: kind, Int: int64(int16(binary.BigEndian.Uint16(b)))}, b[2:], nil
	case KindInt32:
		if err := need(4); err != nil {
			return Value{}, nil, err
		}
		return Value{Kind: kind, Int: int64(int32(binary.BigEndian.Uint32(b)))}, b[4:], nil
	case KindInt64:
		if err := need(8); err != nil {
			return Value{}, nil, err
		}
		return Value{Kind: kind, Int: int64(binary.BigEndian.Uint64(b))}, b[8:], nil
	case KindByteArray, KindString:
		if err := need(2); err != nil {
			return Value{}, nil, err
		}
		n := int(binary.BigEndian.Uint16(b))
		b = b[2:]
		if err := need(n); err != nil {
			return Value{}, nil, err
		}
		if kind == KindString {
			return Value{Kind: kind, Str: string(b[:n])}, b[n:], nil
		}
		out := make([]byte, n)
		copy(out, b[:n])
		return Value{Kind: kind, Bytes: out}, b[n:], nil
	case KindTimestamp:
		if err := need(8); err != nil {
			return Value{}, nil, err
		}
		ms := int64(binary.BigEndian.Uint64(b))
		return Value{Kind: kind, Time: time.UnixMilli(ms).UTC()}, b[8:], nil
	case KindUUID:
		if err := need(16); err != nil {
			return Value{}, nil, err
		}
		out := make([]byte, 16)
		copy(out, b[:16])
		return Value{Kind: kind, Bytes: out}, b[16:], nil
	}
	return Value{}, nil, fmt.Errorf("eventstream: unknown header value kind %d", kind)
}
