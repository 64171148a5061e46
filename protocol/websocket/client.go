// File: protocol/websocket/client.go
// Author: momentics <momentics@gmail.com>
//
// Client is a companion dialer for tests and examples that need to
// talk to a Conn-based server from the outside. It is deliberately
// built on gorilla/websocket's DefaultDialer rather than this
// package's own Conn: gorilla's Upgrader/Conn pair assumes it owns a
// real net.Conn end to end, which only holds for an external client
// dialing in over the network — never for the server side, where the
// peer connection lives inside socket.TCPSocket's non-blocking model.
// Keeping gorilla scoped to this file avoids a second handshake/framing
// bridge layer on top of the one tlsadapter already builds for TLS.

package websocket

import (
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Client dials a WebSocket server with a real net.Conn underneath, for
// use in tests and example programs exercising a server built on Conn.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to addr (e.g. "ws://127.0.0.1:8080/echo") with timeout.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	if _, err := url.Parse(addr); err != nil {
		return nil, err
	}
	dialer := &websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.Dial(addr, nil)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// WriteMessage sends a single message of the given opcode.
func (c *Client) WriteMessage(opcode Opcode, payload []byte) error {
	return c.conn.WriteMessage(int(opcode), payload)
}

// ReadMessage blocks for the next message.
func (c *Client) ReadMessage() (Opcode, []byte, error) {
	mt, payload, err := c.conn.ReadMessage()
	return Opcode(mt), payload, err
}

// Close sends a close frame and releases the underlying connection.
func (c *Client) Close() error {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}
