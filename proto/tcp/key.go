package tcp

import (
	"net"
	"strconv"

	"github.com/terassyi/tuntcp/packet"
)

type Endpoint struct {
	Addr [4]byte
	Port uint16
}

func (e Endpoint) String() string {
	return net.JoinHostPort(net.IP(e.Addr[:]).String(), strconv.Itoa(int(e.Port)))
}

// Key identifies one connection. It is comparable and used as the map key of
// the connection table; two keys are equal only if both endpoints match.
type Key struct {
	Local  Endpoint
	Remote Endpoint
}

// NewKey derives the key of the connection an inbound segment belongs to.
func NewKey(seg *packet.Segment) Key {
	return Key{
		Local:  Endpoint{Addr: seg.Dst, Port: seg.DstPort},
		Remote: Endpoint{Addr: seg.Src, Port: seg.SrcPort},
	}
}

func (k Key) String() string {
	return k.Local.String() + "<-" + k.Remote.String()
}
