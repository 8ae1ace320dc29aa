package ipv4

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/terassyi/tuntcp/config"
	"github.com/terassyi/tuntcp/interfaces"
	"github.com/terassyi/tuntcp/logger"
	"github.com/terassyi/tuntcp/packet"
	"github.com/terassyi/tuntcp/proto/tcp"
)

// ErrDeviceIO is returned when the device can not be read or written.
var ErrDeviceIO = errors.New("device i/o error")

// Ipv4 moves frames between the device and the tcp layer. It owns the
// single dispatch loop: every segment and timer is processed on the
// goroutine running Run.
type Ipv4 struct {
	Iface   interfaces.Iface
	Address [4]byte
	Tcp     *tcp.Tcp
	info    bool
	tick    time.Duration
	logger  *logger.Logger
}

func New(iface interfaces.Iface, address [4]byte, t *tcp.Tcp, packetInfo bool, tick time.Duration, debug bool) *Ipv4 {
	return &Ipv4{
		Iface:   iface,
		Address: address,
		Tcp:     t,
		info:    packetInfo,
		tick:    tick,
		logger:  logger.New(debug, "ipv4"),
	}
}

func (ip *Ipv4) Show() {
	ip.logger.With(logrus.Fields{
		"name":        ip.Iface.Name(),
		"address":     net.IP(ip.Address[:]).String(),
		"packet_info": ip.info,
	}).Info("interface")
}

// HandleFrame processes one frame read from the device. Frames that can not
// be decoded or are not addressed to us are dropped; only device errors are
// returned.
func (ip *Ipv4) HandleFrame(frame []byte, now time.Time) error {
	datagram := frame
	if ip.info {
		var err error
		datagram, err = packet.StripInfo(frame)
		if err != nil {
			ip.logger.Debugf("drop frame: %v", err)
			return nil
		}
	}
	seg, err := packet.Decode(datagram)
	if err != nil {
		ip.logger.Debugf("drop datagram: %v", err)
		return nil
	}
	if seg.Dst != ip.Address {
		ip.logger.Debugf("drop %s: not for %s", seg, net.IP(ip.Address[:]))
		return nil
	}
	return ip.send(ip.Tcp.HandleSegment(seg, now))
}

// Tick fires due timers and transmits what they produce.
func (ip *Ipv4) Tick(now time.Time) error {
	return ip.send(ip.Tcp.Tick(now))
}

func (ip *Ipv4) send(segs []*packet.Segment) error {
	for _, seg := range segs {
		b, err := packet.Encode(seg)
		if err != nil {
			ip.logger.Errorf("failed to encode %s: %v", seg, err)
			continue
		}
		if ip.info {
			b = packet.AddInfo(b)
		}
		if _, err := ip.Iface.Send(b); err != nil {
			return fmt.Errorf("%w: send: %v", ErrDeviceIO, err)
		}
		ip.logger.Debugf("send %s", seg)
	}
	return nil
}

// Run is the dispatch loop. It waits at most one tick for a frame, handles
// it and then fires the timers. It returns nil once ctx is done.
func (ip *Ipv4) Run(ctx context.Context) error {
	buf := make([]byte, config.MaxFrameSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		ready, err := ip.Iface.Poll(ip.tick)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceIO, err)
		}
		now := time.Now()
		if ready {
			n, err := ip.Iface.Recv(buf)
			if err != nil {
				return fmt.Errorf("%w: recv: %v", ErrDeviceIO, err)
			}
			if err := ip.HandleFrame(buf[:n], now); err != nil {
				return err
			}
		}
		if err := ip.Tick(now); err != nil {
			return err
		}
	}
}
