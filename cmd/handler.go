package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/terassyi/tuntcp/proto/tcp"
)

func newHandler(name string) (tcp.Handler, error) {
	switch name {
	case "echo":
		return tcp.HandlerFunc(echo), nil
	case "discard":
		return tcp.HandlerFunc(discard), nil
	default:
		return nil, fmt.Errorf("unknown handler %q", name)
	}
}

// echo writes back everything it reads and closes when the peer does.
func echo(c *tcp.Conn) {
	buf := make([]byte, 1024)
	for {
		n, err := c.Read(buf)
		if err == io.EOF {
			c.Close()
			return
		}
		if err != nil {
			logrus.WithField("conn", c.Key().String()).Debug(err)
			return
		}
		if n == 0 {
			return
		}
		if _, err := c.Write(buf[:n]); err != nil {
			logrus.WithField("conn", c.Key().String()).Debug(err)
			return
		}
	}
}

func discard(c *tcp.Conn) {
	buf := make([]byte, 1024)
	for {
		n, err := c.Read(buf)
		if err == io.EOF {
			c.Close()
			return
		}
		if err != nil || n == 0 {
			return
		}
	}
}
