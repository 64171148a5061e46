// File: socket/listener.go
// Author: momentics <momentics@gmail.com>
//
// Listener accepts inbound TCP connections and attaches each one to a
// fresh TCPSocket on a caller-supplied loop.EventLoop, grounded on
// transport/tcp/listener.go's StartTCPListener accept loop. Transient
// accept errors (the same class net.Listener.Accept can return under
// fd exhaustion) are retried with backoff via
// github.com/jbenet/go-temp-err-catcher, replacing the teacher's bare
// "log and continue" with the idiomatic net.Listener retry pattern.

package socket

import (
	"net"
	"time"

	temperrcatcher "github.com/jbenet/go-temp-err-catcher"
	"go.uber.org/zap"

	"github.com/hiowire/reactor/api"
	"github.com/hiowire/reactor/loop"
)

// AcceptHandler receives each newly-attached connection's socket.
type AcceptHandler func(*TCPSocket)

// Listener owns a bound net.Listener and feeds accepted connections to
// one or more loop.EventLoops via AttachFd.
type Listener struct {
	ln      net.Listener
	log     *zap.Logger
	catcher temperrcatcher.TempErrCatcher
	closed  chan struct{}
}

// Listen binds addr ("host:port") and returns a Listener ready to
// Serve. Binding itself stays on net.Listen/net.ListenConfig rather
// than the raw-socket path used by TCPSocket.Connect, since a listening
// socket never enters the CONNECTING state machine.
func Listen(addr string, log *zap.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, api.NewError(api.SockError, "listen failed").WithContext("err", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Listener{ln: ln, log: log, closed: make(chan struct{})}, nil
}

// Addr reports the bound local address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve runs the accept loop until Close is called. Each accepted
// connection is handed to nextLoop to pick which EventLoop attaches it
// (round-robin across a pool, or a constant single loop), then passed
// to handler once AttachFd succeeds.
func (l *Listener) Serve(nextLoop func() *loop.EventLoop, handler AcceptHandler) error {
	backoff := 5 * time.Millisecond
	const maxBackoff = 1 * time.Second
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.closed:
				return nil
			default:
			}
			if l.catcher.IsTemp(err) {
				l.log.Warn("transient accept error, retrying", zap.Error(err), zap.Duration("backoff", backoff))
				time.Sleep(backoff)
				if backoff < maxBackoff {
					backoff *= 2
				}
				continue
			}
			return api.NewError(api.SockError, "accept failed fatally").WithContext("err", err)
		}
		backoff = 5 * time.Millisecond

		tc, ok := conn.(*net.TCPConn)
		if !ok {
			_ = conn.Close()
			continue
		}
		rawConn, err := tc.SyscallConn()
		if err != nil {
			_ = conn.Close()
			continue
		}
		var dupErr error
		var fd int
		err = rawConn.Control(func(rawFd uintptr) {
			fd, dupErr = dupFd(rawFd)
		})
		_ = tc.Close() // original fd/Conn no longer needed once duplicated
		if err != nil || dupErr != nil {
			continue
		}

		sock := New(nextLoop())
		if err := sock.AttachFd(fd); err != nil {
			l.log.Warn("attachFd failed for accepted connection", zap.Error(err))
			_ = closeFd(fd)
			continue
		}
		handler(sock)
	}
}

// Close stops the accept loop and releases the listening socket.
func (l *Listener) Close() error {
	select {
	case <-l.closed:
	default:
		close(l.closed)
	}
	return l.ln.Close()
}
