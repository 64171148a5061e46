// File: api/tlsadapter.go
// Author: momentics <momentics@gmail.com>
//
// TLSAdapter is the narrow capability boundary between the socket state
// machine and a pluggable handshake/encrypt/decrypt engine. The core
// never implements TLS itself; it only drives this interface from
// readiness callbacks.

package api

// HandshakeStatus is the result of one TLSAdapter.Handshake step.
type HandshakeStatus int

const (
	HandshakeDone HandshakeStatus = iota
	HandshakeWantRead
	HandshakeWantWrite
	HandshakeError
)

// TLSRole distinguishes which side of the handshake an adapter plays.
type TLSRole int

const (
	TLSClient TLSRole = iota
	TLSServer
)

// TLSAdapter is satisfied by any engine capable of performing a TLS (or
// TLS-like) handshake and subsequently filtering plaintext through an
// encrypted channel. The socket state machine only requires this much;
// the engine itself is external.
type TLSAdapter interface {
	// Handshake advances the handshake state machine by one step,
	// consuming/producing bytes through the adapter's own internal
	// buffering of ciphertext read from/written to the raw fd.
	Handshake(role TLSRole) (HandshakeStatus, error)

	// Decrypt consumes raw ciphertext read from the fd and returns any
	// plaintext it was able to recover. ErrAgain-class results mean
	// more ciphertext is needed.
	Decrypt(ciphertext []byte) (plaintext []byte, err error)

	// Encrypt wraps plaintext into one or more ciphertext chunks ready
	// to write to the fd.
	Encrypt(plaintext []byte) (ciphertext [][]byte, err error)

	// PendingOutput drains any ciphertext the adapter has produced on
	// its own (handshake messages, alerts) that the caller hasn't yet
	// pulled via Encrypt's return value. The socket state machine calls
	// this after every Handshake step and appends whatever it returns
	// to the fd's outbound buffer.
	PendingOutput() [][]byte

	// Shutdown tears down the session (close_notify or equivalent).
	Shutdown() error

	// ALPNSelected returns the negotiated protocol, if any.
	ALPNSelected() (string, bool)
}
