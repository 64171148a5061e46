//go:build !windows

package websocket

import (
	"net"
	"testing"
	"time"

	"github.com/hiowire/reactor/api"
	"github.com/hiowire/reactor/loop"
	"github.com/hiowire/reactor/socket"
)

func newTestLoop(t *testing.T) *loop.EventLoop {
	t.Helper()
	el, err := loop.New(loop.Config{PollType: api.PollPoll, MaxWaitMs: 50})
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	go el.Loop()
	t.Cleanup(el.Stop)
	return el
}

// dialConnPair connects a socket.TCPSocket (client role) to a raw
// net.Conn peer playing the server side of the frame exchange, so the
// test can hand-craft frames without a second reactor loop.
func dialConnPair(t *testing.T) (*socket.TCPSocket, net.Conn, *loop.EventLoop) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	el := newTestLoop(t)
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	var port uint16
	for _, c := range portStr {
		port = port*10 + uint16(c-'0')
	}

	connected := make(chan error, 1)
	var sock *socket.TCPSocket
	if err := el.Sync(func() {
		sock = socket.New(el)
		if err := sock.Connect(host, port, func(err error) { connected <- err }, 2000); err != nil {
			connected <- err
		}
	}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	select {
	case err := <-connected:
		if err != nil {
			t.Fatalf("connect failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connect never completed")
	}

	var peer net.Conn
	select {
	case peer = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("peer never accepted")
	}
	return sock, peer, el
}

func TestConn_ReceivesUnfragmentedMessage(t *testing.T) {
	sock, peer, el := dialConnPair(t)
	defer peer.Close()

	msgCh := make(chan []byte, 1)
	if err := el.Sync(func() {
		c := NewConn(sock, false, false, nil)
		c.OnMessage = func(opcode Opcode, payload []byte) {
			if opcode == OpText {
				msgCh <- payload
			}
		}
	}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	frame, err := EncodeFrame(true, OpText, []byte("hello from server"), false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := peer.Write(frame); err != nil {
		t.Fatalf("peer write: %v", err)
	}

	select {
	case got := <-msgCh:
		if string(got) != "hello from server" {
			t.Fatalf("unexpected payload: %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message never delivered")
	}
}

func TestConn_ReassemblesFragmentedMessage(t *testing.T) {
	sock, peer, el := dialConnPair(t)
	defer peer.Close()

	msgCh := make(chan []byte, 1)
	if err := el.Sync(func() {
		c := NewConn(sock, false, false, nil)
		c.OnMessage = func(opcode Opcode, payload []byte) { msgCh <- payload }
	}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	part1, _ := EncodeFrame(false, OpText, []byte("hello "), false)
	part2, _ := EncodeFrame(true, OpContinuation, []byte("world"), false)
	if _, err := peer.Write(part1); err != nil {
		t.Fatalf("write part1: %v", err)
	}
	if _, err := peer.Write(part2); err != nil {
		t.Fatalf("write part2: %v", err)
	}

	select {
	case got := <-msgCh:
		if string(got) != "hello world" {
			t.Fatalf("unexpected reassembled payload: %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reassembled message never delivered")
	}
}

func TestConn_AnswersPingWithPong(t *testing.T) {
	sock, peer, el := dialConnPair(t)
	defer peer.Close()

	if err := el.Sync(func() {
		NewConn(sock, false, false, nil)
	}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	ping, _ := EncodeFrame(true, OpPing, []byte("are you there"), false)
	if _, err := peer.Write(ping); err != nil {
		t.Fatalf("peer write: %v", err)
	}

	_ = peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, err := peer.Read(buf)
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	frame, _, err := DecodeFrame(buf[:n])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.Opcode != OpPong || string(frame.Payload) != "are you there" {
		t.Fatalf("expected pong echo, got %+v", frame)
	}
}

func TestConn_WriteMessageMasksClientFrames(t *testing.T) {
	sock, peer, el := dialConnPair(t)
	defer peer.Close()

	var conn *Conn
	if err := el.Sync(func() {
		conn = NewConn(sock, false, false, nil)
	}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := el.Sync(func() {
		if err := conn.WriteMessage(OpBinary, []byte("outbound")); err != nil {
			t.Errorf("write message: %v", err)
		}
	}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	_ = peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, err := peer.Read(buf)
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if buf[1]&0x80 == 0 {
		t.Fatal("expected client-originated frame to be masked")
	}
	frame, _, err := DecodeFrame(buf[:n])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(frame.Payload) != "outbound" {
		t.Fatalf("unexpected payload: %q", frame.Payload)
	}
}

func TestConn_CloseHandshake(t *testing.T) {
	sock, peer, el := dialConnPair(t)
	defer peer.Close()

	closed := make(chan CloseCode, 1)
	if err := el.Sync(func() {
		c := NewConn(sock, false, false, nil)
		c.OnClose = func(code CloseCode, reason string) { closed <- code }
	}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	payload := encodeClosePayload(CloseNormal, "bye")
	closeFrame, _ := EncodeFrame(true, OpClose, payload, false)
	if _, err := peer.Write(closeFrame); err != nil {
		t.Fatalf("peer write: %v", err)
	}

	select {
	case code := <-closed:
		if code != CloseNormal {
			t.Fatalf("expected CloseNormal, got %v", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("close never observed")
	}
}
