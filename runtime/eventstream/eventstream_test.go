package eventstream

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

func sampleMessage() *Message {
	m := &Message{Payload: []byte(`{"At":1398796238}`)}
	m.AddHeader(HeaderMessageType, StringValue(MessageTypeEvent))
	m.AddHeader(HeaderEventType, StringValue("Tick"))
	m.AddHeader(HeaderContentType, StringValue("application/json"))
	return m
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	frame, err := Encode(sampleMessage())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	m, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v := m.Header(HeaderMessageType); v == nil || v.Str != MessageTypeEvent {
		t.Fatalf("message-type header: %+v", v)
	}
	if v := m.Header(HeaderEventType); v == nil || v.Str != "Tick" {
		t.Fatalf("event-type header: %+v", v)
	}
	if string(m.Payload) != `{"At":1398796238}` {
		t.Fatalf("payload: %s", m.Payload)
	}
	if m.Header(":missing") != nil {
		t.Fatalf("missing header must be nil")
	}
}

func TestHeaderValueKindsRoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 100_000_000, time.UTC)
	uuid := bytes.Repeat([]byte{0xAB}, 16)
	m := &Message{}
	m.AddHeader("b1", BoolValue(true))
	m.AddHeader("b0", BoolValue(false))
	m.AddHeader("i8", Value{Kind: KindByte, Int: -3})
	m.AddHeader("i16", Value{Kind: KindInt16, Int: -1000})
	m.AddHeader("i32", Int32Value(-70000))
	m.AddHeader("i64", Value{Kind: KindInt64, Int: 1 << 40})
	m.AddHeader("bin", Value{Kind: KindByteArray, Bytes: []byte{1, 2}})
	m.AddHeader("ts", TimestampValue(at))
	m.AddHeader("id", Value{Kind: KindUUID, Bytes: uuid})

	frame, err := Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Header("b1").Kind != KindBoolTrue || got.Header("b0").Kind != KindBoolFalse {
		t.Fatalf("bool kinds wrong")
	}
	if got.Header("i8").Int != -3 || got.Header("i16").Int != -1000 || got.Header("i32").Int != -70000 || got.Header("i64").Int != 1<<40 {
		t.Fatalf("integer headers wrong: %+v", got.Headers)
	}
	if !bytes.Equal(got.Header("bin").Bytes, []byte{1, 2}) {
		t.Fatalf("byte array wrong")
	}
	if !got.Header("ts").Time.Equal(at) {
		t.Fatalf("timestamp = %v, want %v", got.Header("ts").Time, at)
	}
	if !bytes.Equal(got.Header("id").Bytes, uuid) {
		t.Fatalf("uuid wrong")
	}
}

func TestDecodeDetectsCorruption(t *testing.T) {
	frame, err := Encode(sampleMessage())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	preludeBad := append([]byte(nil), frame...)
	preludeBad[9] ^= 0xFF
	if _, err := Decode(preludeBad); !errors.Is(err, ErrChecksum) {
		t.Fatalf("want prelude checksum error, got %v", err)
	}

	payloadBad := append([]byte(nil), frame...)
	payloadBad[len(payloadBad)-5] ^= 0xFF
	if _, err := Decode(payloadBad); !errors.Is(err, ErrChecksum) {
		t.Fatalf("want message checksum error, got %v", err)
	}

	if _, err := Decode(frame[:10]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("want truncated error, got %v", err)
	}
}

func TestEncodeRejectsBadHeaders(t *testing.T) {
	m := &Message{}
	m.AddHeader("", StringValue("x"))
	if _, err := Encode(m); err == nil {
		t.Fatalf("want error for empty header name")
	}
	m = &Message{}
	m.AddHeader("id", Value{Kind: KindUUID, Bytes: []byte{1}})
	if _, err := Encode(m); err == nil {
		t.Fatalf("want error for short uuid")
	}
}

func TestEncoderSigningHook(t *testing.T) {
	var out bytes.Buffer
	signed := 0
	enc := NewEncoder(&out, func(m *Message) (*Message, error) {
		signed++
		wrapped := &Message{Payload: m.Payload}
		wrapped.Headers = append(wrapped.Headers, m.Headers...)
		wrapped.AddHeader("sig", StringValue("deadbeef"))
		return wrapped, nil
	})
	if err := enc.Encode(sampleMessage()); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if signed != 1 {
		t.Fatalf("sign hook ran %d times", signed)
	}
	m, err := NewDecoder(&out).Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v := m.Header("sig"); v == nil || v.Str != "deadbeef" {
		t.Fatalf("signature header missing: %+v", m.Headers)
	}
}

func TestDecoderStreamsFramesAndUnread(t *testing.T) {
	var stream bytes.Buffer
	enc := NewEncoder(&stream, nil)
	first := sampleMessage()
	second := &Message{Payload: []byte("two")}
	second.AddHeader(HeaderMessageType, StringValue(MessageTypeEvent))
	if err := enc.Encode(first); err != nil {
		t.Fatalf("encode first: %v", err)
	}
	if err := enc.Encode(second); err != nil {
		t.Fatalf("encode second: %v", err)
	}

	dec := NewDecoder(&stream)
	m1, err := dec.Decode()
	if err != nil {
		t.Fatalf("decode first: %v", err)
	}
	dec.Unread(m1)
	again, err := dec.Decode()
	if err != nil || again != m1 {
		t.Fatalf("Unread must replay the same message: %v %v", again, err)
	}
	m2, err := dec.Decode()
	if err != nil || string(m2.Payload) != "two" {
		t.Fatalf("decode second: %s %v", m2.Payload, err)
	}
	if _, err := dec.Decode(); err != io.EOF {
		t.Fatalf("want io.EOF at clean boundary, got %v", err)
	}
}

func TestDecoderPartialFrame(t *testing.T) {
	frame, err := Encode(sampleMessage())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec := NewDecoder(bytes.NewReader(frame[:len(frame)-3]))
	if _, err := dec.Decode(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("want truncated, got %v", err)
	}
}
