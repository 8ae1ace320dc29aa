package tcp

import (
	"fmt"
	"io"

	"github.com/armon/circbuf"
)

// Conn is the application side of one connection. It is not safe for
// concurrent use: it is only meant to be driven from a Handler, which runs
// on the dispatch loop.
type Conn struct {
	key Key
	// recv holds in-order bytes not yet read by the application. Its size equals
	// the receive window, so it never wraps around.
	recv *circbuf.Buffer
	// pending holds bytes written by the application but not yet sent.
	pending    []byte
	closing    bool
	peerClosed bool
	reset      bool
}

func newConn(key Key, size int) (*Conn, error) {
	buf, err := circbuf.NewBuffer(int64(size))
	if err != nil {
		return nil, err
	}
	return &Conn{
		key:  key,
		recv: buf,
	}, nil
}

func (c *Conn) Key() Key {
	return c.key
}

func (c *Conn) LocalAddr() string {
	return c.key.Local.String()
}

func (c *Conn) RemoteAddr() string {
	return c.key.Remote.String()
}

// Buffered is the number of received bytes waiting to be read.
func (c *Conn) Buffered() int {
	return int(c.recv.TotalWritten())
}

// Read copies buffered bytes into b. It never blocks: it returns 0, nil when
// nothing is buffered and io.EOF once the peer closed its side and every
// byte was read.
func (c *Conn) Read(b []byte) (int, error) {
	if c.reset {
		return 0, ErrConnectionReset
	}
	if c.Buffered() == 0 {
		if c.peerClosed {
			return 0, io.EOF
		}
		return 0, nil
	}
	data := c.recv.Bytes()
	n := copy(b, data)
	remaining := append([]byte(nil), data[n:]...)
	c.recv.Reset()
	if _, err := c.recv.Write(remaining); err != nil {
		return n, err
	}
	return n, nil
}

// Write queues b for transmission. Bytes are sent by the dispatch loop as
// the peer's window allows.
func (c *Conn) Write(b []byte) (int, error) {
	if c.reset {
		return 0, ErrConnectionReset
	}
	if c.closing {
		return 0, fmt.Errorf("%w: write after close", ErrConnectionClosed)
	}
	c.pending = append(c.pending, b...)
	return len(b), nil
}

// Close requests a graceful close. The FIN is sent after all queued bytes.
func (c *Conn) Close() error {
	if c.reset {
		return ErrConnectionReset
	}
	c.closing = true
	return nil
}

func (c *Conn) deliver(data []byte) error {
	if len(data) > int(c.recv.Size())-c.Buffered() {
		return fmt.Errorf("receive buffer overflow: %d bytes", len(data))
	}
	_, err := c.recv.Write(data)
	return err
}

// next removes and returns up to n queued bytes.
func (c *Conn) next(n int) []byte {
	if n > len(c.pending) {
		n = len(c.pending)
	}
	data := c.pending[:n:n]
	c.pending = c.pending[n:]
	return data
}

// Handler is called on the dispatch loop whenever a connection has news:
// it was established, received bytes, or the peer closed its side.
type Handler interface {
	Serve(c *Conn)
}

type HandlerFunc func(c *Conn)

func (f HandlerFunc) Serve(c *Conn) {
	f(c)
}
