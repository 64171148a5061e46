// File: tlsadapter/adapter.go
// Package tlsadapter is the default api.TLSAdapter implementation,
// wrapping the standard library's crypto/tls — the one component of
// this module with no grounding anywhere in the example pack (no
// example repo ships a generic, engine-agnostic TLS library; the
// closest candidate, flynn/noise, implements the Noise protocol rather
// than TLS). See DESIGN.md for the corresponding stdlib-use
// justification.
//
// crypto/tls.Conn is built around a blocking net.Conn, while
// api.TLSAdapter models TLS as a push-ciphertext/pull-plaintext step
// function so socket.TCPSocket can drive it from readiness callbacks on
// a single non-blocking loop thread. netBridge below is the seam: a
// net.Conn whose Read/Write are backed by channels, fed and drained by
// Decrypt/Encrypt/Handshake, with the actual crypto/tls.Conn driven by
// one dedicated background goroutine per connection.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tlsadapter

import (
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/hiowire/reactor/api"
)

// Adapter is the default api.TLSAdapter, backed by crypto/tls.
type Adapter struct {
	config *tls.Config
	bridge *netBridge
	conn   *tls.Conn

	mu            sync.Mutex
	started       bool
	handshakeDone chan struct{}
	handshakeErr  error
	readPump      chan []byte
	readPumpErr   error
}

// New creates an Adapter configured by cfg (certificates, ALPN
// protocols, session cache, min version, etc. — the caller's concern,
// not this adapter's).
func New(cfg *tls.Config) *Adapter {
	return &Adapter{config: cfg}
}

// Handshake advances (and, on first call, starts) the handshake.
func (a *Adapter) Handshake(role api.TLSRole) (api.HandshakeStatus, error) {
	a.mu.Lock()
	if !a.started {
		a.started = true
		a.bridge = newNetBridge()
		if role == api.TLSServer {
			a.conn = tls.Server(a.bridge, a.config)
		} else {
			a.conn = tls.Client(a.bridge, a.config)
		}
		a.handshakeDone = make(chan struct{})
		a.readPump = make(chan []byte, 64)
		go a.driveHandshake()
	}
	conn := a.conn
	done := a.handshakeDone
	a.mu.Unlock()

	select {
	case <-done:
		a.mu.Lock()
		err := a.handshakeErr
		a.mu.Unlock()
		if err != nil {
			return api.HandshakeError, err
		}
		go a.pumpReads(conn)
		return api.HandshakeDone, nil
	default:
	}
	if a.bridge.hasPendingOutput() {
		return api.HandshakeWantWrite, nil
	}
	return api.HandshakeWantRead, nil
}

func (a *Adapter) driveHandshake() {
	err := a.conn.Handshake()
	a.mu.Lock()
	a.handshakeErr = err
	a.mu.Unlock()
	close(a.handshakeDone)
}

// pumpReads continuously decrypts from conn into readPump once the
// handshake has completed, so Decrypt can drain plaintext without
// blocking the loop thread on a live crypto/tls.Conn.Read call.
func (a *Adapter) pumpReads(conn *tls.Conn) {
	buf := make([]byte, 16*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			a.readPump <- chunk
		}
		if err != nil {
			a.mu.Lock()
			a.readPumpErr = err
			a.mu.Unlock()
			close(a.readPump)
			return
		}
	}
}

// Decrypt feeds ciphertext into the bridge for the background
// tls.Conn to consume, then drains whatever plaintext is already
// available without blocking.
func (a *Adapter) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) > 0 {
		if !a.bridge.feedInput(ciphertext) {
			return nil, api.ErrAgain
		}
	}
	var out []byte
	for {
		select {
		case chunk, ok := <-a.readPump:
			if !ok {
				a.mu.Lock()
				err := a.readPumpErr
				a.mu.Unlock()
				if err != nil {
					return out, api.NewError(api.SSLError, "tls read failed").WithContext("err", err)
				}
				return out, nil
			}
			out = append(out, chunk...)
		default:
			return out, nil
		}
	}
}

// Encrypt wraps plaintext via the live tls.Conn and returns whatever
// ciphertext the bridge accumulated as a result.
func (a *Adapter) Encrypt(plaintext []byte) ([][]byte, error) {
	if _, err := a.conn.Write(plaintext); err != nil {
		return nil, api.NewError(api.SSLError, "tls write failed").WithContext("err", err)
	}
	return a.bridge.drainOutput(), nil
}

// PendingOutput drains ciphertext the adapter produced on its own
// (handshake messages, alerts) that Encrypt's caller hasn't pulled yet.
func (a *Adapter) PendingOutput() [][]byte {
	if a.bridge == nil {
		return nil
	}
	return a.bridge.drainOutput()
}

// Shutdown sends a TLS close_notify and tears down the bridge.
func (a *Adapter) Shutdown() error {
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.bridge.close()
	return err
}

// ALPNSelected reports the negotiated application protocol, if any.
func (a *Adapter) ALPNSelected() (string, bool) {
	if a.conn == nil {
		return "", false
	}
	proto := a.conn.ConnectionState().NegotiatedProtocol
	return proto, proto != ""
}

// netBridge is a minimal net.Conn whose Read/Write are driven by
// channels rather than a real socket, letting crypto/tls.Conn run on a
// dedicated goroutine while Encrypt/Decrypt feed and drain it from the
// reactor's loop thread without blocking.
type netBridge struct {
	in     chan []byte
	inBuf  []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newNetBridge() *netBridge {
	return &netBridge{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (b *netBridge) feedInput(p []byte) bool {
	cp := make([]byte, len(p))
	copy(cp, p)
	select {
	case b.in <- cp:
		return true
	default:
		return false
	}
}

func (b *netBridge) hasPendingOutput() bool {
	return len(b.out) > 0
}

func (b *netBridge) drainOutput() [][]byte {
	var chunks [][]byte
	for {
		select {
		case c := <-b.out:
			chunks = append(chunks, c)
		default:
			return chunks
		}
	}
}

func (b *netBridge) Read(p []byte) (int, error) {
	if len(b.inBuf) == 0 {
		select {
		case chunk, ok := <-b.in:
			if !ok {
				return 0, net.ErrClosed
			}
			b.inBuf = chunk
		case <-b.closed:
			return 0, net.ErrClosed
		}
	}
	n := copy(p, b.inBuf)
	b.inBuf = b.inBuf[n:]
	return n, nil
}

func (b *netBridge) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	select {
	case b.out <- cp:
		return len(p), nil
	case <-b.closed:
		return 0, net.ErrClosed
	}
}

func (b *netBridge) close() {
	b.once.Do(func() { close(b.closed) })
}

func (b *netBridge) Close() error                       { b.close(); return nil }
func (b *netBridge) LocalAddr() net.Addr                 { return bridgeAddr{} }
func (b *netBridge) RemoteAddr() net.Addr                { return bridgeAddr{} }
func (b *netBridge) SetDeadline(t time.Time) error       { return nil }
func (b *netBridge) SetReadDeadline(t time.Time) error   { return nil }
func (b *netBridge) SetWriteDeadline(t time.Time) error  { return nil }

type bridgeAddr struct{}

func (bridgeAddr) Network() string { return "reactor-tls-bridge" }
func (bridgeAddr) String() string  { return "reactor-tls-bridge" }
