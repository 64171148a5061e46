//go:build !windows

package http2

import (
	"net"
	"testing"
	"time"

	"golang.org/x/net/http2"

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

func TestCodec_DecodesPingFrame(t *testing.T) {
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
	if err := <-connected; err != nil {
		t.Fatalf("connect: %v", err)
	}

	var peer net.Conn
	select {
	case peer = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("never accepted")
	}
	defer peer.Close()

	frameCh := make(chan http2.Frame, 1)
	if err := el.Sync(func() {
		codec := NewCodec(sock)
		codec.OnFrame = func(f http2.Frame) { frameCh <- f }
	}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	peerFramer := http2.NewFramer(peer, peer)
	if err := peerFramer.WritePing(false, [8]byte{1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	select {
	case f := <-frameCh:
		ping, ok := f.(*http2.PingFrame)
		if !ok {
			t.Fatalf("expected a PingFrame, got %T", f)
		}
		if ping.Data != [8]byte{1, 2, 3, 4, 5, 6, 7, 8} {
			t.Fatalf("unexpected ping payload: %v", ping.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ping frame never decoded")
	}
}
