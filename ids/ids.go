package ids

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
	"github.com/terassyi/tuntcp/logger"
	"github.com/terassyi/tuntcp/packet"
)

// Ids summarizes every frame read from a tun device.
type Ids struct {
	info   bool
	logger *logger.Logger
}

type idsData struct {
	dstIp   string
	srcIp   string
	dstPort int
	srcPort int
	proto   string
	flags   string
	length  int
}

func (d *idsData) fields() logrus.Fields {
	f := logrus.Fields{
		"src":   d.srcIp,
		"dst":   d.dstIp,
		"proto": d.proto,
		"len":   d.length,
	}
	if d.proto == "tcp" || d.proto == "udp" {
		f["sport"] = d.srcPort
		f["dport"] = d.dstPort
	}
	if d.flags != "" {
		f["flags"] = d.flags
	}
	return f
}

func New(packetInfo bool) *Ids {
	return &Ids{
		info:   packetInfo,
		logger: logger.New(true, "ids"),
	}
}

func (i *Ids) Recv(frame []byte) error {
	d, err := i.inspect(frame)
	if err != nil {
		return err
	}
	i.logger.With(d.fields()).Info("recv")
	return nil
}

func (i *Ids) inspect(frame []byte) (*idsData, error) {
	datagram := frame
	if i.info {
		var err error
		datagram, err = packet.StripInfo(frame)
		if err != nil {
			return nil, err
		}
	}
	p := gopacket.NewPacket(datagram, layers.LayerTypeIPv4, gopacket.NoCopy)
	ipLayer, ok := p.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		if errLayer := p.ErrorLayer(); errLayer != nil {
			return nil, fmt.Errorf("%w: %v", packet.ErrMalformedHeader, errLayer.Error())
		}
		return nil, packet.ErrNotIPv4
	}
	data := &idsData{
		dstIp:  ipLayer.DstIP.String(),
		srcIp:  ipLayer.SrcIP.String(),
		length: len(datagram),
	}
	switch ipLayer.Protocol {
	case layers.IPProtocolICMPv4:
		data.proto = "icmp"
	case layers.IPProtocolTCP:
		data.proto = "tcp"
		if tcpLayer, ok := p.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
			data.dstPort = int(tcpLayer.DstPort)
			data.srcPort = int(tcpLayer.SrcPort)
		}
		if seg, err := packet.Decode(datagram); err == nil {
			data.flags = seg.Flags.String()
		}
	case layers.IPProtocolUDP:
		data.proto = "udp"
		if udpLayer, ok := p.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
			data.dstPort = int(udpLayer.DstPort)
			data.srcPort = int(udpLayer.SrcPort)
		}
	default:
		data.proto = "unsupported"
	}
	return data, nil
}
