package ioctl

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// request opens a throwaway datagram socket for interface ioctls.
func request(ifr *unix.Ifreq, req uint) error {
	soc, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return err
	}
	defer unix.Close(soc)
	return unix.IoctlIfreq(soc, req, ifr)
}

func Siocgifflags(name string) (uint16, error) {
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return 0, err
	}
	if err := request(ifr, unix.SIOCGIFFLAGS); err != nil {
		return 0, fmt.Errorf("SIOCGIFFLAGS %s: %w", name, err)
	}
	return ifr.Uint16(), nil
}

func Siocsifflags(name string, flags uint16) error {
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return err
	}
	ifr.SetUint16(flags)
	if err := request(ifr, unix.SIOCSIFFLAGS); err != nil {
		return fmt.Errorf("SIOCSIFFLAGS %s: %w", name, err)
	}
	return nil
}

func Siocgifaddr(name string) ([4]byte, error) {
	var addr [4]byte
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return addr, err
	}
	if err := request(ifr, unix.SIOCGIFADDR); err != nil {
		return addr, fmt.Errorf("SIOCGIFADDR %s: %w", name, err)
	}
	b, err := ifr.Inet4Addr()
	if err != nil {
		return addr, err
	}
	copy(addr[:], b)
	return addr, nil
}

func Siocsifaddr(name string, addr [4]byte) error {
	return setInet4(name, unix.SIOCSIFADDR, addr)
}

func Siocsifnetmask(name string, mask [4]byte) error {
	return setInet4(name, unix.SIOCSIFNETMASK, mask)
}

func setInet4(name string, req uint, addr [4]byte) error {
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return err
	}
	if err := ifr.SetInet4Addr(addr[:]); err != nil {
		return err
	}
	if err := request(ifr, req); err != nil {
		return fmt.Errorf("ioctl %#x %s: %w", req, name, err)
	}
	return nil
}

// Tunsetiff attaches fd to the tun/tap interface name and returns the name
// the kernel chose.
func Tunsetiff(fd uintptr, name string, flags uint16) (string, error) {
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return "", err
	}
	ifr.SetUint16(flags)
	if err := unix.IoctlIfreq(int(fd), unix.TUNSETIFF, ifr); err != nil {
		return "", fmt.Errorf("TUNSETIFF %s: %w", name, err)
	}
	return ifr.Name(), nil
}
