// File: socket/tcpsocket.go
// Package socket implements the non-blocking TCP socket state machine
// from spec.md §4.5: IDLE -> CONNECTING -> OPEN -> CLOSED, driven by an
// owning loop.EventLoop. Grounded on transport/tcp/listener.go for the
// bind/accept path and on original_source/src/TcpSocketImpl.h for the
// connect/handshake/read/write lifecycle and the destroy-sentinel idiom
// that guards against a user callback freeing the socket mid-dispatch.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package socket

import (
	"net"
	"strconv"
	"sync/atomic"

	"github.com/hiowire/reactor/api"
	"github.com/hiowire/reactor/buffer"
	"github.com/hiowire/reactor/loop"
	"github.com/hiowire/reactor/metrics"
)

// EventCallback mirrors TcpSocketImpl::EventCallback: an error code
// delivered on connect/error completion, nil on success.
type EventCallback func(err error)

// TCPSocket is the core non-blocking socket abstraction: bind, connect,
// attachFd, startSslHandshake, send, receive, pause, resume, close, per
// spec.md §3's TcpSocket data model.
type TCPSocket struct {
	loop *loop.EventLoop

	fd         int
	state      atomic.Int32
	registered bool
	readPaused bool

	bindHost string
	bindPort uint16

	tls         api.TLSAdapter
	tlsRole     api.TLSRole
	handshaking bool

	sendChain *buffer.Chain

	cbConnect EventCallback
	cbRead    func()
	cbWrite   func()
	cbError   EventCallback

	connectTimer *loop.Timer

	metrics *metrics.Registry

	// destroyFlag, when non-nil, is set true by Close() so an in-flight
	// dispatch frame can tell the socket was destroyed underneath it and
	// stop touching its fields. Mirrors destroy_flag_ptr_.
	destroyFlag *bool
}

// New creates an IDLE TCPSocket owned by el. fd is -1 until bind/
// connect/attachFd assigns one.
func New(el *loop.EventLoop) *TCPSocket {
	return &TCPSocket{loop: el, fd: -1, sendChain: buffer.New()}
}

// SetMetrics attaches a metrics.Registry whose counters this socket
// updates on send/receive/open/close. Optional; a nil registry (the
// default) disables collection.
func (s *TCPSocket) SetMetrics(m *metrics.Registry) { s.metrics = m }

// Fd returns the underlying file descriptor, or -1 before one exists.
func (s *TCPSocket) Fd() int { return s.fd }

// State reports the current lifecycle state.
func (s *TCPSocket) State() State { return State(s.state.Load()) }

func (s *TCPSocket) setState(st State) { s.state.Store(int32(st)) }

// SetReadCallback registers the readiness notification invoked when
// data is available to Receive.
func (s *TCPSocket) SetReadCallback(cb func())    { s.cbRead = cb }
func (s *TCPSocket) SetWriteCallback(cb func())   { s.cbWrite = cb }
func (s *TCPSocket) SetErrorCallback(cb EventCallback) { s.cbError = cb }

// Bind records a local address to use on the next Connect. Only valid
// in IDLE state.
func (s *TCPSocket) Bind(host string, port uint16) error {
	if s.State() != StateIdle {
		return api.NewError(api.InvalidState, "bind called outside IDLE state")
	}
	s.bindHost = host
	s.bindPort = port
	return nil
}

// Connect resolves host:port and begins a non-blocking connect,
// transitioning IDLE -> CONNECTING. cb fires exactly once, with a nil
// error on success or a non-nil error on failure/timeout.
func (s *TCPSocket) Connect(host string, port uint16, cb EventCallback, timeoutMs uint32) error {
	if s.State() != StateIdle {
		return api.NewError(api.InvalidState, "connect called outside IDLE state")
	}
	addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return api.NewError(api.Unreachable, "address resolution failed").WithContext("err", err)
	}
	fd, err := newNonblockingSocket(addr.IP.To4() == nil)
	if err != nil {
		return api.NewError(api.SockError, "socket() failed").WithContext("err", err)
	}
	if s.bindHost != "" || s.bindPort != 0 {
		if err := bindSockaddr(fd, s.bindHost, s.bindPort); err != nil {
			_ = closeFd(fd)
			return api.NewError(api.SockError, "bind() failed").WithContext("err", err)
		}
	}
	_ = setNoDelay(fd)

	inProgress, err := connectSockaddr(fd, addr)
	if err != nil {
		_ = closeFd(fd)
		return api.NewError(api.Refused, "connect() failed").WithContext("err", err)
	}

	s.fd = fd
	s.cbConnect = cb
	s.setState(StateConnecting)

	if err := s.loop.RegisterFd(uintptr(fd), api.EventWrite|api.EventError, s.ioReady); err != nil {
		_ = closeFd(fd)
		s.setState(StateClosed)
		return err
	}
	s.registered = true

	if timeoutMs > 0 {
		s.connectTimer = s.loop.CreateTimer(uint64(timeoutMs), loop.OneShot, s.onConnectTimeout)
	}
	if !inProgress {
		// Loopback connects frequently complete synchronously; defer the
		// callback through the loop so it always arrives on the loop
		// thread, never inline with the caller of Connect.
		s.loop.Async(s.onConnect, nil)
	}
	return nil
}

// AttachFd adopts an already-connected fd (typically handed off from an
// accept loop), transitioning directly to OPEN.
func (s *TCPSocket) AttachFd(fd int) error {
	if s.State() != StateIdle {
		return api.NewError(api.InvalidState, "attachFd called outside IDLE state")
	}
	if err := setNonblocking(fd); err != nil {
		return api.NewError(api.SockError, "setNonblock failed").WithContext("err", err)
	}
	_ = setNoDelay(fd)
	s.fd = fd
	s.setState(StateOpen)
	if err := s.loop.RegisterFd(uintptr(fd), api.EventRead, s.ioReady); err != nil {
		return err
	}
	s.registered = true
	if s.metrics != nil {
		s.metrics.SocketsOpened.Inc()
	}
	return nil
}

// DetachFd unregisters the socket from its loop and returns ownership
// of the raw fd to the caller without closing it.
func (s *TCPSocket) DetachFd() (int, error) {
	if s.registered {
		if err := s.loop.UnregisterFd(uintptr(s.fd)); err != nil {
			return -1, err
		}
		s.registered = false
	}
	fd := s.fd
	s.fd = -1
	s.setState(StateClosed)
	return fd, nil
}

// StartSslHandshake begins a TLS handshake over the already-open socket
// using adapter, per api.TLSAdapter. isServer selects TLSServer vs.
// TLSClient role.
func (s *TCPSocket) StartSslHandshake(isServer bool, adapter api.TLSAdapter) error {
	if s.State() != StateOpen {
		return api.NewError(api.InvalidState, "startSslHandshake called outside OPEN state")
	}
	s.tls = adapter
	s.handshaking = true
	s.tlsRole = api.TLSClient
	if isServer {
		s.tlsRole = api.TLSServer
	}
	s.driveHandshake(s.tlsRole)
	return nil
}

// driveHandshake advances the adapter by one step, pulls whatever
// ciphertext it produced (handshake messages, alerts) onto the fd's
// send chain, and flushes. WantRead/WantWrite need no extra action
// beyond that: attemptFlush already arms EventWrite interest whenever
// the chain is non-empty, and read interest stays on throughout.
func (s *TCPSocket) driveHandshake(role api.TLSRole) {
	status, err := s.tls.Handshake(role)
	if err != nil {
		s.handleError(api.NewError(api.SSLError, "handshake failed").WithContext("err", err))
		return
	}
	for _, chunk := range s.tls.PendingOutput() {
		s.sendChain.Append(chunk)
	}
	s.attemptFlush()
	switch status {
	case api.HandshakeDone:
		s.handshaking = false
		if s.cbConnect != nil {
			destroyed := false
			s.withDestroyFlag(&destroyed, func() { s.cbConnect(nil) })
		}
	case api.HandshakeError:
		s.handleError(api.NewError(api.SSLError, "handshake rejected"))
	}
}

// Send accepts plaintext (or, with a TLS adapter installed, data to be
// encrypted first) and queues it for the fd, flushing as much as
// possible immediately and buffering the remainder for the next
// writable notification. Returns the number of bytes accepted, not
// necessarily yet on the wire.
func (s *TCPSocket) Send(data []byte) (int, error) {
	if s.State() != StateOpen {
		return 0, api.ErrInvalidState
	}
	if len(data) == 0 {
		return 0, nil
	}
	if s.tls != nil {
		chunks, err := s.tls.Encrypt(data)
		if err != nil {
			return 0, api.NewError(api.SSLError, "encrypt failed").WithContext("err", err)
		}
		for _, c := range chunks {
			s.sendChain.Append(c)
		}
	} else {
		buf := make([]byte, len(data))
		copy(buf, data)
		s.sendChain.Append(buf)
	}
	s.attemptFlush()
	return len(data), nil
}

// SendIovec writes multiple buffers as one logical send, per
// TcpSocketImpl::send(iovec*, count).
func (s *TCPSocket) SendIovec(bufs [][]byte) (int, error) {
	total := 0
	for _, b := range bufs {
		n, err := s.Send(b)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *TCPSocket) attemptFlush() {
	for s.sendChain.Length() > 0 {
		buf := s.sendChain.ReadPtr()
		n, err := writeFd(s.fd, buf)
		if n > 0 {
			s.sendChain.Advance(n)
			if s.metrics != nil {
				s.metrics.BytesSent.Add(float64(n))
			}
		}
		if err != nil {
			if isWouldBlock(err) {
				s.ensureWriteInterest(true)
				return
			}
			s.handleError(api.NewError(api.SockError, "write failed").WithContext("err", err))
			return
		}
		if n < len(buf) {
			s.ensureWriteInterest(true)
			return
		}
	}
	s.ensureWriteInterest(false)
}

func (s *TCPSocket) ensureWriteInterest(want bool) {
	if !s.registered {
		return
	}
	interest := s.currentInterest()
	if want {
		interest |= api.EventWrite
	}
	_ = s.loop.UpdateFd(uintptr(s.fd), interest)
}

func (s *TCPSocket) currentInterest() api.EventType {
	var ev api.EventType
	if !s.readPaused {
		ev |= api.EventRead
	}
	if s.sendChain.Length() > 0 {
		ev |= api.EventWrite
	}
	return ev
}

// Receive pulls up to len(buf) bytes of plaintext into buf. Returns
// api.ErrAgain when nothing is currently available, and api.ErrClosed
// on a clean peer shutdown (read returned 0) — which also transitions
// the socket to StateClosed and releases its fd/poller registration, so
// a level-triggered backend never sees the now-dead fd as readable
// again. Callers still own telling their own protocol state (OnClose,
// etc.) about the disconnect; they must not call Close again themselves.
func (s *TCPSocket) Receive(buf []byte) (int, error) {
	if s.State() != StateOpen {
		return 0, api.ErrInvalidState
	}
	n, err := readFd(s.fd, buf)
	if err != nil {
		if isWouldBlock(err) {
			return 0, api.ErrAgain
		}
		return 0, api.NewError(api.SockError, "read failed").WithContext("err", err)
	}
	if n == 0 {
		_ = s.Close()
		return 0, api.ErrClosed
	}
	if s.metrics != nil {
		s.metrics.BytesReceived.Add(float64(n))
	}
	if s.tls != nil {
		plain, err := s.tls.Decrypt(buf[:n])
		if err != nil {
			return 0, api.NewError(api.SSLError, "decrypt failed").WithContext("err", err)
		}
		return copy(buf, plain), nil
	}
	return n, nil
}

// Pause suspends read readiness notifications without closing the
// socket, per TcpSocketImpl::suspend.
func (s *TCPSocket) Pause() error {
	s.readPaused = true
	if !s.registered {
		return nil
	}
	return s.loop.UpdateFd(uintptr(s.fd), s.currentInterest())
}

// Resume reverses Pause, per TcpSocketImpl::resume.
func (s *TCPSocket) Resume() error {
	s.readPaused = false
	if !s.registered {
		return nil
	}
	return s.loop.UpdateFd(uintptr(s.fd), s.currentInterest())
}

// Close tears the socket down: CLOSED is terminal and idempotent. If
// called from within one of the socket's own callbacks, it marks the
// enclosing dispatch frame's destroy flag so the frame knows not to
// touch the socket again afterward.
func (s *TCPSocket) Close() error {
	if s.State() == StateClosed {
		return nil
	}
	s.setState(StateClosed)
	if s.destroyFlag != nil {
		*s.destroyFlag = true
	}
	return s.cleanup()
}

func (s *TCPSocket) cleanup() error {
	if s.metrics != nil {
		s.metrics.SocketsClosed.Inc()
	}
	if s.tls != nil {
		_ = s.tls.Shutdown()
	}
	if s.connectTimer != nil {
		s.connectTimer.Cancel()
		s.connectTimer = nil
	}
	var err error
	if s.registered {
		err = s.loop.UnregisterFd(uintptr(s.fd))
		s.registered = false
	}
	if s.fd >= 0 {
		if cerr := closeFd(s.fd); cerr != nil && err == nil {
			err = cerr
		}
		s.fd = -1
	}
	s.sendChain.Reset()
	return err
}

// withDestroyFlag invokes fn with a fresh destroy flag installed,
// restoring whatever flag was previously installed (supports nested
// invocation from within ioReady's own dispatch), mirroring the
// destroy_flag_ptr_ save/restore dance in ioReady/onConnect/onReceive.
func (s *TCPSocket) withDestroyFlag(flag *bool, fn func()) {
	prev := s.destroyFlag
	s.destroyFlag = flag
	fn()
	if !*flag {
		s.destroyFlag = prev
	}
}

func (s *TCPSocket) onConnectTimeout() {
	if s.State() != StateConnecting {
		return
	}
	s.handleError(api.NewError(api.Timeout, "connect timed out"))
}

func (s *TCPSocket) onConnect() {
	if s.State() != StateConnecting {
		return
	}
	if s.connectTimer != nil {
		s.connectTimer.Cancel()
		s.connectTimer = nil
	}
	if err := socketError(s.fd); err != nil {
		s.handleError(api.NewError(api.Refused, "connect failed").WithContext("err", err))
		return
	}
	s.setState(StateOpen)
	_ = s.loop.UpdateFd(uintptr(s.fd), s.currentInterest())
	if s.metrics != nil {
		s.metrics.SocketsOpened.Inc()
	}
	if s.cbConnect != nil {
		destroyed := false
		s.withDestroyFlag(&destroyed, func() { s.cbConnect(nil) })
	}
}

func (s *TCPSocket) onSend() {
	s.attemptFlush()
	if s.State() != StateOpen {
		return
	}
	if s.sendChain.Length() == 0 && s.cbWrite != nil {
		destroyed := false
		s.withDestroyFlag(&destroyed, s.cbWrite)
	}
}

func (s *TCPSocket) onReceive() {
	if s.cbRead != nil {
		destroyed := false
		s.withDestroyFlag(&destroyed, s.cbRead)
	}
}

func (s *TCPSocket) handleError(err error) {
	if s.State() == StateClosed {
		return
	}
	cb := s.cbError
	if s.State() == StateConnecting && s.cbConnect != nil {
		// A connect that fails or times out completes through the
		// Connect callback.
		cb = s.cbConnect
	}
	s.setState(StateClosed)
	_ = s.cleanup()
	if cb != nil {
		cb(err)
	}
}

// ioReady is the ioreg.Dispatch entry point: readiness -> state-machine
// transition, matching TcpSocketImpl::ioReady's dispatch table.
func (s *TCPSocket) ioReady(events api.EventType) {
	switch s.State() {
	case StateClosed:
		return
	case StateConnecting:
		// socketError() inside onConnect surfaces either outcome, so a
		// write-ready and an error-ready wakeup are handled identically.
		s.onConnect()
		return
	}
	if s.handshaking && s.tls != nil {
		if events&api.EventError != 0 {
			s.handleError(api.NewError(api.SockError, "poller reported error during handshake"))
			return
		}
		if events&api.EventRead != 0 {
			buf := make([]byte, 16*1024)
			n, err := readFd(s.fd, buf)
			switch {
			case err != nil && !isWouldBlock(err):
				s.handleError(api.NewError(api.SockError, "read failed during handshake").WithContext("err", err))
				return
			case err == nil && n == 0:
				s.handleError(api.NewError(api.Closed, "peer closed during handshake"))
				return
			case n > 0:
				if _, derr := s.tls.Decrypt(buf[:n]); derr != nil {
					s.handleError(derr)
					return
				}
			}
		}
		s.driveHandshake(s.tlsRole)
		return
	}
	if events&api.EventError != 0 {
		s.handleError(api.NewError(api.SockError, "poller reported error"))
		return
	}
	if events&api.EventWrite != 0 {
		s.onSend()
		if s.State() == StateClosed {
			return
		}
	}
	if events&api.EventRead != 0 {
		s.onReceive()
	}
}
