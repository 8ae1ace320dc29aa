package interfaces

import (
	"fmt"
	"os"
	"time"

	"github.com/terassyi/tuntcp/ioctl"
	"golang.org/x/sys/unix"
)

const tuntap = "/dev/net/tun"

type tunDevice struct {
	file *os.File
	name string
}

func newTunDevice(name string, packetInfo bool) (*tunDevice, error) {
	name, file, err := openDevice(name, packetInfo)
	if err != nil {
		return nil, err
	}
	return &tunDevice{
		file: file,
		name: name,
	}, nil
}

func (tun *tunDevice) Name() string {
	return tun.name
}

func (tun *tunDevice) Fd() int {
	return int(tun.file.Fd())
}

func (tun *tunDevice) Recv(buf []byte) (int, error) {
	return tun.file.Read(buf)
}

func (tun *tunDevice) Send(buf []byte) (int, error) {
	return tun.file.Write(buf)
}

func (tun *tunDevice) Close() error {
	return tun.file.Close()
}

func (tun *tunDevice) Address() ([4]byte, error) {
	return ioctl.Siocgifaddr(tun.name)
}

func (tun *tunDevice) Poll(timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(tun.Fd()), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, fmt.Errorf("poll error: %w", err)
	}
	return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
}

func openDevice(name string, packetInfo bool) (string, *os.File, error) {
	if len(name) >= unix.IFNAMSIZ {
		return "", nil, fmt.Errorf("name is too long")
	}
	file, err := os.OpenFile(tuntap, os.O_RDWR, 0600)
	if err != nil {
		return "", nil, err
	}
	var flags uint16 = unix.IFF_TUN
	if !packetInfo {
		flags |= unix.IFF_NO_PI
	}
	name, err = ioctl.Tunsetiff(file.Fd(), name, flags)
	if err != nil {
		file.Close()
		return "", nil, err
	}
	return name, file, nil
}

// Configure assigns addr/mask to the interface and brings it up.
func Configure(name string, addr, mask [4]byte) error {
	if err := ioctl.Siocsifaddr(name, addr); err != nil {
		return err
	}
	if err := ioctl.Siocsifnetmask(name, mask); err != nil {
		return err
	}
	flags, err := ioctl.Siocgifflags(name)
	if err != nil {
		return err
	}
	flags |= (unix.IFF_UP | unix.IFF_RUNNING)
	return ioctl.Siocsifflags(name, flags)
}
