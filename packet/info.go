package packet

import (
	"encoding/binary"
	"fmt"
)

// InfoLength is the size of the packet information prefix a TUN device puts in
// front of every frame unless IFF_NO_PI is set: two flag bytes and an EtherType.
const InfoLength = 4

const etherTypeIPv4 uint16 = 0x0800

// StripInfo removes the packet information prefix and returns the IP datagram.
func StripInfo(frame []byte) ([]byte, error) {
	if len(frame) < InfoLength {
		return nil, fmt.Errorf("%w: frame is too short (%d)", ErrMalformedHeader, len(frame))
	}
	if proto := binary.BigEndian.Uint16(frame[2:4]); proto != etherTypeIPv4 {
		return nil, fmt.Errorf("%w: ethertype 0x%04x", ErrNotIPv4, proto)
	}
	return frame[InfoLength:], nil
}

// AddInfo prepends the packet information prefix for an IPv4 datagram.
func AddInfo(datagram []byte) []byte {
	frame := make([]byte, InfoLength+len(datagram))
	binary.BigEndian.PutUint16(frame[2:4], etherTypeIPv4)
	copy(frame[InfoLength:], datagram)
	return frame
}
