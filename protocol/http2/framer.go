// File: protocol/http2/framer.go
// Author: momentics <momentics@gmail.com>
//
// Codec wraps golang.org/x/net/http2's Framer for frame-level HTTP/2
// encode/decode driven by socket.TCPSocket's callbacks. Full stream
// multiplexing and flow control are out of scope (see the repo's
// Non-goals); this layer only gets frames on and off the wire so a
// caller can build a stream layer on top without hand-rolling the
// HTTP/2 binary format.

package http2

import (
	"bytes"
	"errors"

	"golang.org/x/net/http2"

	"github.com/hiowire/reactor/api"
	"github.com/hiowire/reactor/socket"
)

// ClientPreface is the fixed connection preface a client must send
// before any frames, per RFC 7540 §3.5.
const ClientPreface = http2.ClientPreface

// pullReader adapts socket.TCPSocket.Receive to io.Reader so Framer can
// read frames without knowing about the non-blocking socket underneath;
// Read never blocks — it drains whatever is already queued in pending
// and, once pending is empty, returns 0, errNoData, which the Framer's
// caller (pumpFrames) interprets as "try again next readable callback"
// rather than a real error.
type pullReader struct {
	pending bytes.Buffer
}

func (r *pullReader) Read(p []byte) (int, error) {
	if r.pending.Len() == 0 {
		return 0, errNoData
	}
	return r.pending.Read(p)
}

var errNoData = errors.New("http2: no more buffered frame data")

// Codec drives an http2.Framer over sock. OnFrame is invoked once per
// fully-decoded frame; the caller is responsible for building any
// stream/flow-control state on top.
type Codec struct {
	sock   *socket.TCPSocket
	framer *http2.Framer
	reader *pullReader
	out    *bytes.Buffer

	OnFrame func(f http2.Frame)
	OnError func(err error)
}

// NewCodec wraps sock with an http2.Framer and installs the read
// callback that feeds it.
func NewCodec(sock *socket.TCPSocket) *Codec {
	reader := &pullReader{}
	out := &bytes.Buffer{}
	framer := http2.NewFramer(out, reader)
	framer.SetReuseFrames()
	c := &Codec{sock: sock, framer: framer, reader: reader, out: out}
	sock.SetReadCallback(c.onReadable)
	return c
}

func (c *Codec) onReadable() {
	buf := make([]byte, 16*1024)
	for {
		n, err := c.sock.Receive(buf)
		if err != nil {
			if err == api.ErrAgain {
				break
			}
			if c.OnError != nil && err != api.ErrClosed {
				c.OnError(err)
			}
			return
		}
		if n == 0 {
			break
		}
		c.reader.pending.Write(buf[:n])
	}
	c.pumpFrames()
}

func (c *Codec) pumpFrames() {
	for {
		frame, err := c.framer.ReadFrame()
		if err != nil {
			if err == errNoData {
				return
			}
			if c.OnError != nil {
				c.OnError(err)
			}
			return
		}
		if c.OnFrame != nil {
			c.OnFrame(frame)
		}
	}
}

// WriteSettings sends a SETTINGS frame carrying settings (empty when
// none are given), the first frame a compliant HTTP/2 endpoint sends
// after the preface.
func (c *Codec) WriteSettings(settings ...http2.Setting) error {
	if err := c.framer.WriteSettings(settings...); err != nil {
		return err
	}
	return c.flush()
}

// WriteData sends a DATA frame for streamID.
func (c *Codec) WriteData(streamID uint32, endStream bool, data []byte) error {
	if err := c.framer.WriteData(streamID, endStream, data); err != nil {
		return err
	}
	return c.flush()
}

// WritePing sends a PING frame.
func (c *Codec) WritePing(ack bool, data [8]byte) error {
	if err := c.framer.WritePing(ack, data); err != nil {
		return err
	}
	return c.flush()
}

func (c *Codec) flush() error {
	if c.out.Len() == 0 {
		return nil
	}
	buf := append([]byte(nil), c.out.Bytes()...)
	c.out.Reset()
	_, err := c.sock.Send(buf)
	return err
}
