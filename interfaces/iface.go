package interfaces

import (
	"fmt"
	"time"
)

type Iface interface {
	Name() string
	Fd() int
	Recv([]byte) (int, error)
	Send([]byte) (int, error)
	Close() error
	Address() ([4]byte, error)
	// Poll waits up to timeout for a frame to become readable.
	Poll(timeout time.Duration) (bool, error)
}

// New opens the interface name. Only "tun" is supported. packetInfo keeps
// the 4 byte packet information prefix on every frame.
func New(name, typ string, packetInfo bool) (Iface, error) {
	switch typ {
	case "tun":
		return newTunDevice(name, packetInfo)
	default:
		return nil, fmt.Errorf("invalid type %q", typ)
	}
}
