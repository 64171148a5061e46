package websocket

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeFrame_Roundtrip(t *testing.T) {
	payload := []byte("hello reactor")
	encoded, err := EncodeFrame(true, OpText, payload, true)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	frame, n, err := DecodeFrame(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame == nil {
		t.Fatal("expected a decoded frame")
	}
	if n != len(encoded) {
		t.Fatalf("expected to consume %d bytes, consumed %d", len(encoded), n)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Fatalf("payload mismatch: got %q want %q", frame.Payload, payload)
	}
	if frame.Opcode != OpText || !frame.Fin {
		t.Fatalf("unexpected frame metadata: %+v", frame)
	}
}

func TestDecodeFrame_Incomplete(t *testing.T) {
	encoded, err := EncodeFrame(true, OpBinary, []byte("partial"), false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	frame, n, err := DecodeFrame(encoded[:len(encoded)-2])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame != nil || n != 0 {
		t.Fatalf("expected incomplete-frame signal, got frame=%v n=%d", frame, n)
	}
}

func TestEncodeFrame_MaskKeyNotFixed(t *testing.T) {
	payload := []byte("same payload every time")
	a, err := EncodeFrame(true, OpText, payload, true)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := EncodeFrame(true, OpText, payload, true)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("two encodings of the same payload produced identical ciphertext; mask key is not random")
	}
}

func TestDecodeFrame_RejectsOversizedPayload(t *testing.T) {
	big := make([]byte, MaxFramePayload+1)
	hdr := []byte{0x82, 0x7F, 0, 0, 0, 0, 0, 0x10, 0, 1}
	raw := append(hdr, big...)
	_, _, err := DecodeFrame(raw)
	if err == nil {
		t.Fatal("expected oversized payload to be rejected")
	}
}

func TestEncodeFrame_Unmasked(t *testing.T) {
	payload := []byte("server frame")
	encoded, err := EncodeFrame(true, OpBinary, payload, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if encoded[1]&0x80 != 0 {
		t.Fatal("expected unmasked frame to have mask bit clear")
	}
	frame, _, err := DecodeFrame(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Fatalf("payload mismatch: got %q want %q", frame.Payload, payload)
	}
}
