//go:build !linux

package interfaces

import (
	"errors"
	"runtime"
)

var errUnsupported = errors.New("tun devices are only supported on linux, not " + runtime.GOOS)

func newTunDevice(name string, packetInfo bool) (Iface, error) {
	return nil, errUnsupported
}

func Configure(name string, addr, mask [4]byte) error {
	return errUnsupported
}
