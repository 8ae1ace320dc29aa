package packet

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
	"github.com/terassyi/tuntcp/util"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/header"
)

var (
	peerAddr  = [4]byte{1, 2, 3, 4}
	localAddr = [4]byte{10, 0, 0, 1}
)

func synAck() *Segment {
	return &Segment{
		Src:     localAddr,
		Dst:     peerAddr,
		SrcPort: 80,
		DstPort: 9000,
		Seq:     0xfffffff0,
		Ack:     101,
		Flags:   SYN | ACK,
		Window:  1024,
		MSS:     1460,
	}
}

func TestEncodeMatchesGvisorView(t *testing.T) {
	seg := synAck()
	seg.Payload = []byte("hello")
	b, err := Encode(seg)
	require.NoError(t, err)

	ip := header.IPv4(b)
	require.True(t, ip.IsValid(len(b)))
	require.True(t, ip.IsChecksumValid())
	require.Equal(t, header.TCPProtocolNumber, ip.TransportProtocol())
	require.Equal(t, tcpip.AddrFrom4(localAddr), ip.SourceAddress())
	require.Equal(t, tcpip.AddrFrom4(peerAddr), ip.DestinationAddress())

	tcp := header.TCP(ip.Payload())
	require.Equal(t, uint16(80), tcp.SourcePort())
	require.Equal(t, uint16(9000), tcp.DestinationPort())
	require.Equal(t, uint32(0xfffffff0), tcp.SequenceNumber())
	require.Equal(t, uint32(101), tcp.AckNumber())
	require.True(t, tcp.Flags().Contains(header.TCPFlagSyn|header.TCPFlagAck))
	require.Equal(t, uint16(1024), tcp.WindowSize())
	require.Equal(t, uint8(24), tcp.DataOffset())
	require.Equal(t, []byte("hello"), tcp.Payload())
}

func TestDecodeEncoded(t *testing.T) {
	want := synAck()
	want.Payload = []byte("odd")
	b, err := Encode(want)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, want.Src, got.Src)
	require.Equal(t, want.Dst, got.Dst)
	require.Equal(t, want.Seq, got.Seq)
	require.Equal(t, want.Ack, got.Ack)
	require.Equal(t, SYN|ACK, got.Flags)
	require.Equal(t, uint16(1460), got.MSS)
	require.Equal(t, []byte("odd"), got.Payload)
	require.Equal(t, uint32(4), got.Len())
}

func TestDecodeRejectsBadChecksums(t *testing.T) {
	b, err := Encode(synAck())
	require.NoError(t, err)

	ipCorrupt := append([]byte(nil), b...)
	ipCorrupt[8]-- // ttl
	_, err = Decode(ipCorrupt)
	require.ErrorIs(t, err, ErrMalformedHeader)

	tcpCorrupt := append([]byte(nil), b...)
	tcpCorrupt[len(tcpCorrupt)-1] ^= 0xff
	_, err = Decode(tcpCorrupt)
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestDecodeErrors(t *testing.T) {
	t.Run("short", func(t *testing.T) {
		_, err := Decode([]byte{0x45, 0x00})
		require.ErrorIs(t, err, ErrMalformedHeader)
	})
	t.Run("truncated tcp", func(t *testing.T) {
		b, err := Encode(synAck())
		require.NoError(t, err)
		_, err = Decode(b[:30])
		require.ErrorIs(t, err, ErrMalformedHeader)
	})
	t.Run("fragment", func(t *testing.T) {
		b, err := Encode(synAck())
		require.NoError(t, err)
		b[6] = 0x20 // more fragments
		b[10], b[11] = 0, 0
		sum := util.Checksum(b[:20], 0)
		b[10], b[11] = byte(sum>>8), byte(sum)
		_, err = Decode(b)
		require.ErrorIs(t, err, ErrFragmented)
	})
	t.Run("udp", func(t *testing.T) {
		ip := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IP(peerAddr[:]),
			DstIP:    net.IP(localAddr[:]),
		}
		udp := &layers.UDP{SrcPort: 53, DstPort: 53}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		require.NoError(t, gopacket.SerializeLayers(buf, opts, ip, udp, gopacket.Payload("dns")))
		_, err := Decode(buf.Bytes())
		require.ErrorIs(t, err, ErrNotTcp)
	})
}

func TestPacketInformation(t *testing.T) {
	datagram := []byte{0x45, 0x00}
	frame := AddInfo(datagram)
	require.Equal(t, []byte{0x00, 0x00, 0x08, 0x00, 0x45, 0x00}, frame)

	got, err := StripInfo(frame)
	require.NoError(t, err)
	require.Equal(t, datagram, got)

	_, err = StripInfo([]byte{0x00, 0x00, 0x86, 0xdd, 0x60})
	require.ErrorIs(t, err, ErrNotIPv4)
	_, err = StripInfo([]byte{0x00})
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestControlFlagString(t *testing.T) {
	require.Equal(t, "syn|ack", (SYN | ACK).String())
	require.Equal(t, "ack|fin|psh", (FIN | PSH | ACK).String())
	require.Equal(t, "", ControlFlag(0).String())
}
