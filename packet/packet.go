package packet

import (
	"errors"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/terassyi/tuntcp/util"
)

var (
	// ErrMalformedHeader is returned when an IPv4 or TCP header can not be parsed
	// or carries a bad checksum.
	ErrMalformedHeader = errors.New("malformed header")
	// ErrNotIPv4 is returned for frames carrying anything but IPv4.
	ErrNotIPv4 = errors.New("not an ipv4 packet")
	// ErrNotTcp is returned for IPv4 datagrams of another transport protocol.
	ErrNotTcp = errors.New("not a tcp segment")
	// ErrFragmented is returned for IPv4 fragments, which are not reassembled.
	ErrFragmented = errors.New("fragmented datagram")
)

const defaultTTL uint8 = 64

// Segment is a decoded TCP segment together with the addresses of the
// IPv4 datagram that carried it.
type Segment struct {
	Src     [4]byte
	Dst     [4]byte
	SrcPort uint16
	DstPort uint16
	Seq     uint32
	Ack     uint32
	Flags   ControlFlag
	Window  uint16
	Urgent  uint16
	// MSS is the value of the maximum segment size option, zero when absent.
	MSS     uint16
	Payload []byte
}

// Len is SEG.LEN: the payload length plus one for each of SYN and FIN.
func (s *Segment) Len() uint32 {
	l := uint32(len(s.Payload))
	if s.Flags.Syn() {
		l++
	}
	if s.Flags.Fin() {
		l++
	}
	return l
}

func (s *Segment) String() string {
	return fmt.Sprintf("%s:%d > %s:%d [%s] seq=%d ack=%d wnd=%d len=%d",
		net.IP(s.Src[:]), s.SrcPort, net.IP(s.Dst[:]), s.DstPort,
		s.Flags, s.Seq, s.Ack, s.Window, len(s.Payload))
}

// Decode parses an IPv4 datagram carrying a TCP segment. Checksums of both
// headers are verified here so that later stages can trust the segment.
func Decode(datagram []byte) (seg *Segment, err error) {
	defer func() {
		if r := recover(); r != nil {
			seg = nil
			err = fmt.Errorf("%w: %v", ErrMalformedHeader, r)
		}
	}()

	ip := &layers.IPv4{}
	if err := ip.DecodeFromBytes(datagram, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("%w: ipv4: %v", ErrMalformedHeader, err)
	}
	if ip.Version != 4 {
		return nil, fmt.Errorf("%w: version %d", ErrNotIPv4, ip.Version)
	}
	headerLength := int(ip.IHL) * 4
	if sum := util.Checksum(datagram[:headerLength], 0); sum != 0 {
		return nil, fmt.Errorf("%w: invalid ipv4 checksum", ErrMalformedHeader)
	}
	if ip.Flags&layers.IPv4MoreFragments != 0 || ip.FragOffset != 0 {
		return nil, fmt.Errorf("%w: id=%d offset=%d", ErrFragmented, ip.Id, ip.FragOffset)
	}
	if ip.Protocol != layers.IPProtocolTCP {
		return nil, fmt.Errorf("%w: protocol %s", ErrNotTcp, ip.Protocol)
	}
	seg = &Segment{}
	copy(seg.Src[:], ip.SrcIP.To4())
	copy(seg.Dst[:], ip.DstIP.To4())

	pseudo := util.PseudoHeaderSum(seg.Src, seg.Dst, uint8(layers.IPProtocolTCP), len(ip.Payload))
	if sum := util.Checksum(ip.Payload, pseudo); sum != 0 {
		return nil, fmt.Errorf("%w: invalid tcp checksum", ErrMalformedHeader)
	}
	tcp := &layers.TCP{}
	if err := tcp.DecodeFromBytes(ip.Payload, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("%w: tcp: %v", ErrMalformedHeader, err)
	}
	seg.SrcPort = uint16(tcp.SrcPort)
	seg.DstPort = uint16(tcp.DstPort)
	seg.Seq = tcp.Seq
	seg.Ack = tcp.Ack
	seg.Flags = flagsOf(tcp)
	seg.Window = tcp.Window
	seg.Urgent = tcp.Urgent
	seg.Payload = tcp.Payload
	for _, op := range tcp.Options {
		if op.OptionType == layers.TCPOptionKindMSS && len(op.OptionData) == 2 {
			seg.MSS = uint16(op.OptionData[0])<<8 | uint16(op.OptionData[1])
		}
	}
	return seg, nil
}

// Encode serializes the segment into an IPv4 datagram with both checksums filled in.
func Encode(seg *Segment) ([]byte, error) {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      defaultTTL,
		Flags:    layers.IPv4DontFragment,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IP(seg.Src[:]),
		DstIP:    net.IP(seg.Dst[:]),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(seg.SrcPort),
		DstPort: layers.TCPPort(seg.DstPort),
		Seq:     seg.Seq,
		Ack:     seg.Ack,
		Window:  seg.Window,
		Urgent:  seg.Urgent,
		FIN:     seg.Flags.Fin(),
		SYN:     seg.Flags.Syn(),
		RST:     seg.Flags.Rst(),
		PSH:     seg.Flags.Psh(),
		ACK:     seg.Flags.Ack(),
		URG:     seg.Flags.Urg(),
		ECE:     seg.Flags.Ece(),
		CWR:     seg.Flags.Cwr(),
	}
	if seg.MSS != 0 {
		tcp.Options = append(tcp.Options, layers.TCPOption{
			OptionType:   layers.TCPOptionKindMSS,
			OptionLength: 4,
			OptionData:   []byte{byte(seg.MSS >> 8), byte(seg.MSS)},
		})
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	if err := gopacket.SerializeLayers(buf, opts, ip, tcp, gopacket.Payload(seg.Payload)); err != nil {
		return nil, fmt.Errorf("failed to serialize segment: %w", err)
	}
	return buf.Bytes(), nil
}

func flagsOf(tcp *layers.TCP) ControlFlag {
	var f ControlFlag
	if tcp.FIN {
		f |= FIN
	}
	if tcp.SYN {
		f |= SYN
	}
	if tcp.RST {
		f |= RST
	}
	if tcp.PSH {
		f |= PSH
	}
	if tcp.ACK {
		f |= ACK
	}
	if tcp.URG {
		f |= URG
	}
	if tcp.ECE {
		f |= ECE
	}
	if tcp.CWR {
		f |= CWR
	}
	return f
}
