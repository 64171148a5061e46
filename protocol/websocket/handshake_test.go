package websocket

import (
	"strings"
	"testing"
)

const sampleRequest = "GET /echo HTTP/1.1\r\n" +
	"Host: example.com\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: Upgrade\r\n" +
	"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
	"Sec-WebSocket-Version: 13\r\n" +
	"Sec-WebSocket-Extensions: permessage-deflate\r\n" +
	"\r\n"

func TestParseHandshake_Valid(t *testing.T) {
	req, n, err := ParseHandshake([]byte(sampleRequest))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req == nil {
		t.Fatal("expected a parsed request")
	}
	if n != len(sampleRequest) {
		t.Fatalf("expected to consume %d bytes, got %d", len(sampleRequest), n)
	}
	if req.Path != "/echo" {
		t.Fatalf("unexpected path: %q", req.Path)
	}
	if req.Key != "dGhlIHNhbXBsZSBub25jZQ==" {
		t.Fatalf("unexpected key: %q", req.Key)
	}
	if !req.PermessageDeflate {
		t.Fatal("expected permessage-deflate to be detected")
	}
}

func TestParseHandshake_Incomplete(t *testing.T) {
	partial := sampleRequest[:len(sampleRequest)-10]
	req, n, err := ParseHandshake([]byte(partial))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req != nil || n != 0 {
		t.Fatalf("expected incomplete signal, got req=%v n=%d", req, n)
	}
}

func TestParseHandshake_RejectsMissingUpgrade(t *testing.T) {
	bad := strings.Replace(sampleRequest, "Upgrade: websocket\r\n", "", 1)
	_, _, err := ParseHandshake([]byte(bad))
	if err == nil {
		t.Fatal("expected missing Upgrade header to be rejected")
	}
}

func TestParseHandshake_RejectsMissingKey(t *testing.T) {
	bad := strings.Replace(sampleRequest, "Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n", "", 1)
	_, _, err := ParseHandshake([]byte(bad))
	if err == nil {
		t.Fatal("expected missing Sec-WebSocket-Key header to be rejected")
	}
}

func TestBuildHandshakeResponse_AcceptKey(t *testing.T) {
	req, _, err := ParseHandshake([]byte(sampleRequest))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	resp := string(BuildHandshakeResponse(req, true))
	// Known-answer test from RFC 6455 §1.3's worked example.
	const want = "Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n"
	if !strings.Contains(resp, want) {
		t.Fatalf("expected response to contain %q, got:\n%s", want, resp)
	}
	if !strings.Contains(resp, "101 Switching Protocols") {
		t.Fatalf("expected a 101 response, got:\n%s", resp)
	}
	if !strings.Contains(resp, "Sec-WebSocket-Extensions: permessage-deflate") {
		t.Fatalf("expected permessage-deflate to be negotiated, got:\n%s", resp)
	}
}

func TestBuildHandshakeResponse_DeclinesDeflateWhenNotAccepted(t *testing.T) {
	req, _, err := ParseHandshake([]byte(sampleRequest))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	resp := string(BuildHandshakeResponse(req, false))
	if strings.Contains(resp, "permessage-deflate") {
		t.Fatalf("did not expect permessage-deflate to be negotiated, got:\n%s", resp)
	}
}
