// File: protocol/websocket/conn.go
// Author: momentics <momentics@gmail.com>
//
// Conn drives the WebSocket data-framing state machine over a single
// socket.TCPSocket: accumulate raw bytes pulled via Receive, decode
// frames, reassemble fragmented messages, auto-answer ping/close, and
// hand completed text/binary messages to the caller's OnMessage. This
// mirrors protocol/connection.go's recvLoop responsibilities, but
// driven by TCPSocket's read callback instead of a blocking read loop,
// since the reactor core never blocks a goroutine on socket I/O.

package websocket

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
	"go.uber.org/zap"

	"github.com/hiowire/reactor/api"
	"github.com/hiowire/reactor/socket"
)

// CloseCode is a WebSocket close status code per RFC 6455 §7.4.
type CloseCode uint16

const (
	CloseNormal           CloseCode = 1000
	CloseGoingAway        CloseCode = 1001
	CloseProtocolError    CloseCode = 1002
	CloseUnsupportedData  CloseCode = 1003
	CloseMessageTooBig    CloseCode = 1009
	CloseInternalError    CloseCode = 1011
)

// Conn wraps an upgraded socket.TCPSocket with the WebSocket framing
// layer. isServer controls masking direction: servers never mask
// outgoing frames, clients always do, per RFC 6455 §5.1.
type Conn struct {
	sock     *socket.TCPSocket
	isServer bool
	log      *zap.Logger

	recvBuf []byte

	fragOpcode Opcode
	fragBuf    bytes.Buffer
	fragging   bool

	deflate     bool
	flateReader io.ReadCloser
	flateWriter *flate.Writer
	flateInBuf  *bytes.Buffer

	closed bool

	OnMessage func(opcode Opcode, payload []byte)
	OnClose   func(code CloseCode, reason string)
	OnError   func(err error)
}

// NewConn wraps an already-upgraded socket in a Conn and wires its read
// callback. The caller must not install its own SetReadCallback on sock
// afterward — Conn owns that slot.
func NewConn(sock *socket.TCPSocket, isServer bool, deflate bool, log *zap.Logger) *Conn {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Conn{sock: sock, isServer: isServer, deflate: deflate, log: log}
	if deflate {
		c.flateInBuf = &bytes.Buffer{}
		c.flateReader = flate.NewReader(c.flateInBuf)
		fw, _ := flate.NewWriter(nil, flate.DefaultCompression)
		c.flateWriter = fw
	}
	sock.SetReadCallback(c.onReadable)
	sock.SetErrorCallback(c.onSocketError)
	return c
}

func (c *Conn) onSocketError(err error) {
	c.closed = true
	if c.OnError != nil {
		c.OnError(err)
	}
}

// onReadable drains every currently-available byte off the socket,
// decoding as many complete frames as have arrived.
func (c *Conn) onReadable() {
	buf := make([]byte, 16*1024)
	for {
		n, err := c.sock.Receive(buf)
		if err != nil {
			if err == api.ErrAgain {
				break
			}
			if err == api.ErrClosed {
				c.closed = true
				if c.OnClose != nil {
					c.OnClose(CloseGoingAway, "connection closed")
				}
				return
			}
			c.closed = true
			if c.OnError != nil {
				c.OnError(err)
			}
			return
		}
		if n == 0 {
			break
		}
		c.recvBuf = append(c.recvBuf, buf[:n]...)
		c.drainFrames()
		if c.closed {
			return
		}
	}
}

func (c *Conn) drainFrames() {
	for {
		frame, consumed, err := DecodeFrame(c.recvBuf)
		if err != nil {
			c.fail(CloseProtocolError, "frame decode error")
			return
		}
		if frame == nil {
			return
		}
		c.recvBuf = c.recvBuf[consumed:]
		c.handleFrame(frame)
		if c.closed {
			return
		}
	}
}

func (c *Conn) handleFrame(f *Frame) {
	switch f.Opcode {
	case OpPing:
		_ = c.writeControl(OpPong, f.Payload)
		return
	case OpPong:
		return
	case OpClose:
		code, reason := parseClosepayload(f.Payload)
		_ = c.writeControl(OpClose, f.Payload)
		c.closed = true
		_ = c.sock.Close()
		if c.OnClose != nil {
			c.OnClose(code, reason)
		}
		return
	}

	if !f.Fin {
		if !c.fragging {
			c.fragging = true
			c.fragOpcode = f.Opcode
			c.fragBuf.Reset()
		}
		c.fragBuf.Write(f.Payload)
		return
	}

	if c.fragging {
		c.fragBuf.Write(f.Payload)
		payload := append([]byte(nil), c.fragBuf.Bytes()...)
		opcode := c.fragOpcode
		c.fragging = false
		c.fragBuf.Reset()
		c.deliver(opcode, payload)
		return
	}
	c.deliver(f.Opcode, f.Payload)
}

func (c *Conn) deliver(opcode Opcode, payload []byte) {
	if c.deflate {
		inflated, err := c.inflate(payload)
		if err != nil {
			c.fail(CloseInternalError, "decompression failed")
			return
		}
		payload = inflated
	}
	if c.OnMessage != nil {
		c.OnMessage(opcode, payload)
	}
}

func (c *Conn) inflate(payload []byte) ([]byte, error) {
	c.flateInBuf.Reset()
	c.flateInBuf.Write(payload)
	c.flateInBuf.Write([]byte{0x00, 0x00, 0xff, 0xff})
	var out bytes.Buffer
	if _, err := io.Copy(&out, c.flateReader); err != nil && err != io.EOF {
		return nil, err
	}
	return out.Bytes(), nil
}

func (c *Conn) deflateOut(payload []byte) ([]byte, error) {
	var out bytes.Buffer
	c.flateWriter.Reset(&out)
	if _, err := c.flateWriter.Write(payload); err != nil {
		return nil, err
	}
	if err := c.flateWriter.Flush(); err != nil {
		return nil, err
	}
	b := out.Bytes()
	if len(b) >= 4 && bytes.Equal(b[len(b)-4:], []byte{0x00, 0x00, 0xff, 0xff}) {
		b = b[:len(b)-4]
	}
	return b, nil
}

// WriteMessage sends a single unfragmented data frame.
func (c *Conn) WriteMessage(opcode Opcode, payload []byte) error {
	if c.closed {
		return api.ErrClosed
	}
	if c.deflate && (opcode == OpText || opcode == OpBinary) {
		compressed, err := c.deflateOut(payload)
		if err != nil {
			return err
		}
		payload = compressed
	}
	frame, err := EncodeFrame(true, opcode, payload, !c.isServer)
	if err != nil {
		return err
	}
	_, err = c.sock.Send(frame)
	return err
}

func (c *Conn) writeControl(opcode Opcode, payload []byte) error {
	frame, err := EncodeFrame(true, opcode, payload, !c.isServer)
	if err != nil {
		return err
	}
	_, err = c.sock.Send(frame)
	return err
}

// Close sends a close frame with code/reason and tears down the socket.
func (c *Conn) Close(code CloseCode, reason string) error {
	if c.closed {
		return nil
	}
	c.closed = true
	payload := encodeClosePayload(code, reason)
	err := c.writeControl(OpClose, payload)
	_ = c.sock.Close()
	return err
}

func (c *Conn) fail(code CloseCode, reason string) {
	c.log.Warn("websocket protocol violation", zap.String("reason", reason))
	_ = c.Close(code, reason)
	if c.OnError != nil {
		c.OnError(api.NewError(api.ProtoError, reason))
	}
}

func encodeClosePayload(code CloseCode, reason string) []byte {
	out := make([]byte, 2+len(reason))
	out[0] = byte(code >> 8)
	out[1] = byte(code)
	copy(out[2:], reason)
	return out
}

func parseClosepayload(payload []byte) (CloseCode, string) {
	if len(payload) < 2 {
		return CloseNormal, ""
	}
	code := CloseCode(uint16(payload[0])<<8 | uint16(payload[1]))
	return code, string(payload[2:])
}
