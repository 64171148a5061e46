//go:build !windows

package http1

import (
	"net"
	"net/http"
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

func TestCodec_ParsesRequestAndWritesResponse(t *testing.T) {
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

	reqCh := make(chan string, 1)
	if err := el.Sync(func() {
		codec := NewCodec(sock)
		codec.OnRequest = func(req *http.Request, body []byte) {
			reqCh <- req.URL.Path
			_ = codec.WriteResponse(200, http.Header{}, []byte("ok"))
		}
	}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if _, err := peer.Write([]byte("GET /status HTTP/1.1\r\nHost: x\r\n\r\n")); err != nil {
		t.Fatalf("peer write: %v", err)
	}

	select {
	case path := <-reqCh:
		if path != "/status" {
			t.Fatalf("unexpected path: %q", path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("request never parsed")
	}

	_ = peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, err := peer.Read(buf)
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	resp := string(buf[:n])
	if !contains(resp, "200") || !contains(resp, "ok") {
		t.Fatalf("unexpected response: %q", resp)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
