// File: protocol/http1/codec.go
// Author: momentics <momentics@gmail.com>
//
// Codec is a minimal non-blocking HTTP/1.1 request/response layer
// driven by socket.TCPSocket's read callback, grounded on
// transport/tcp/listener.go's accumulate-then-parse handling and on
// protocol/websocket/handshake.go's incremental-parse contract. It
// exists to carry the Upgrade: websocket request that
// protocol/websocket's handshake rides in on, plus plain
// request/response exchanges for non-upgraded connections.

package http1

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/hiowire/reactor/api"
	"github.com/hiowire/reactor/socket"
)

// MaxHeaderBytes bounds how many bytes of a request Codec accumulates
// before giving up, guarding against a slow-header-drip resource
// exhaustion attack.
const MaxHeaderBytes = 64 * 1024

// Codec parses incoming requests off sock and lets the caller write
// responses back through it. One Codec handles exactly one connection.
type Codec struct {
	sock *socket.TCPSocket
	buf  []byte

	OnRequest func(req *http.Request, body []byte)
	OnError   func(err error)
}

// NewCodec wraps sock and installs its read callback. The caller must
// not also call sock.SetReadCallback.
func NewCodec(sock *socket.TCPSocket) *Codec {
	c := &Codec{sock: sock}
	sock.SetReadCallback(c.onReadable)
	return c
}

func (c *Codec) onReadable() {
	buf := make([]byte, 16*1024)
	for {
		n, err := c.sock.Receive(buf)
		if err != nil {
			if err == api.ErrAgain {
				return
			}
			if c.OnError != nil && err != api.ErrClosed {
				c.OnError(err)
			}
			return
		}
		if n == 0 {
			return
		}
		c.buf = append(c.buf, buf[:n]...)
		if len(c.buf) > MaxHeaderBytes {
			if c.OnError != nil {
				c.OnError(fmt.Errorf("http1: request exceeds %d bytes without completing", MaxHeaderBytes))
			}
			return
		}
		c.drainRequests()
	}
}

func (c *Codec) drainRequests() {
	for {
		req, body, consumed, err := parseRequest(c.buf)
		if err != nil {
			if c.OnError != nil {
				c.OnError(err)
			}
			return
		}
		if req == nil {
			return
		}
		c.buf = c.buf[consumed:]
		if c.OnRequest != nil {
			c.OnRequest(req, body)
		}
	}
}

// parseRequest returns (nil, nil, 0, nil) when buf doesn't yet hold a
// complete request (headers plus whatever body Content-Length names).
func parseRequest(buf []byte) (*http.Request, []byte, int, error) {
	idx := bytes.Index(buf, []byte("\r\n\r\n"))
	if idx < 0 {
		return nil, nil, 0, nil
	}
	headerEnd := idx + 4
	r := bufio.NewReader(bytes.NewReader(buf[:headerEnd]))
	req, err := http.ReadRequest(r)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("http1: malformed request: %w", err)
	}

	contentLength := 0
	if cl := req.Header.Get("Content-Length"); cl != "" {
		contentLength, err = strconv.Atoi(cl)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("http1: invalid Content-Length: %w", err)
		}
	}
	total := headerEnd + contentLength
	if len(buf) < total {
		return nil, nil, 0, nil
	}
	body := append([]byte(nil), buf[headerEnd:total]...)
	return req, body, total, nil
}

// WriteResponse serializes and sends a plain HTTP/1.1 response.
func (c *Codec) WriteResponse(status int, headers http.Header, body []byte) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	if headers.Get("Content-Length") == "" {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	}
	if err := headers.Write(&b); err != nil {
		return err
	}
	b.WriteString("\r\n")
	if len(body) > 0 {
		if _, err := io.Copy(&b, bytes.NewReader(body)); err != nil {
			return err
		}
	}
	_, err := c.sock.Send(b.Bytes())
	return err
}

// WriteRaw sends pre-built response bytes verbatim — used by the
// WebSocket upgrade path, which builds its own 101 response.
func (c *Codec) WriteRaw(raw []byte) error {
	_, err := c.sock.Send(raw)
	return err
}

// Buffered returns whatever bytes have been accumulated but not yet
// consumed as a complete request — used by an upgrade handler that
// needs to hand the remaining buffer to a different protocol engine
// after a 101 response (e.g. WebSocket data frames arriving in the
// same TCP segment as the handshake).
func (c *Codec) Buffered() []byte { return c.buf }

// Reset clears the accumulated buffer, used after handing control of
// the connection to another protocol engine post-upgrade.
func (c *Codec) Reset() { c.buf = nil }
