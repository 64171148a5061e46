//go:build !windows

package poller

import (
	"net"
	"testing"

	"github.com/hiowire/reactor/api"
)

func TestPoller_ReportsWriteReadyOnConnectedSocket(t *testing.T) {
	for _, pt := range []api.PollType{api.PollPoll, api.PollSelect} {
		pt := pt
		t.Run(pt.String(), func(t *testing.T) {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				t.Fatal(err)
			}
			defer ln.Close()

			done := make(chan struct{})
			go func() {
				c, err := ln.Accept()
				if err == nil {
					c.Close()
				}
				close(done)
			}()

			conn, err := net.Dial("tcp", ln.Addr().String())
			if err != nil {
				t.Fatal(err)
			}
			defer conn.Close()
			<-done

			sc, err := conn.(*net.TCPConn).SyscallConn()
			if err != nil {
				t.Fatal(err)
			}
			var fd uintptr
			sc.Control(func(f uintptr) { fd = f })

			p, err := New(pt)
			if err != nil {
				t.Fatal(err)
			}
			defer p.Close()

			if err := p.Register(fd, api.EventWrite); err != nil {
				t.Fatal(err)
			}
			ready, err := p.Wait(1000, nil)
			if err != nil {
				t.Fatal(err)
			}
			found := false
			for _, r := range ready {
				if r.Fd == fd && r.Events&api.EventWrite != 0 {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected write-ready event, got %v", ready)
			}
		})
	}
}
