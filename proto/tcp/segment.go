package tcp

import (
	"github.com/terassyi/tuntcp/packet"
	"gvisor.dev/gvisor/pkg/tcpip/seqnum"
)

// segment builds an outgoing segment of this connection. The advertised
// window is always RCV.WND.
func (cb *controlBlock) segment(seq, ack seqnum.Value, flags packet.ControlFlag, payload []byte) *packet.Segment {
	wnd := cb.rcv.WND
	if wnd > 0xffff {
		wnd = 0xffff
	}
	return &packet.Segment{
		Src:     cb.key.Local.Addr,
		Dst:     cb.key.Remote.Addr,
		SrcPort: cb.key.Local.Port,
		DstPort: cb.key.Remote.Port,
		Seq:     uint32(seq),
		Ack:     uint32(ack),
		Flags:   flags,
		Window:  uint16(wnd),
		Payload: payload,
	}
}

// <SEQ=SND.NXT><ACK=RCV.NXT><CTL=ACK>
func (cb *controlBlock) ack() *packet.Segment {
	return cb.segment(cb.snd.NXT, cb.rcv.NXT, packet.ACK, nil)
}

// <SEQ=ISS><ACK=RCV.NXT><CTL=SYN,ACK>
func (cb *controlBlock) synAck() *packet.Segment {
	seg := cb.segment(cb.snd.ISS, cb.rcv.NXT, packet.SYN|packet.ACK, nil)
	seg.MSS = cb.opts.MSS
	return seg
}

// resetFor builds the reply of a CLOSED endpoint to seg.
//
//	If the ACK bit is off:  <SEQ=0><ACK=SEG.SEQ+SEG.LEN><CTL=RST,ACK>
//	If the ACK bit is on:   <SEQ=SEG.ACK><CTL=RST>
//
// An incoming RST is never answered.
func resetFor(seg *packet.Segment) *packet.Segment {
	if seg.Flags.Rst() {
		return nil
	}
	rst := &packet.Segment{
		Src:     seg.Dst,
		Dst:     seg.Src,
		SrcPort: seg.DstPort,
		DstPort: seg.SrcPort,
	}
	if seg.Flags.Ack() {
		rst.Seq = seg.Ack
		rst.Flags = packet.RST
		return rst
	}
	rst.Ack = uint32(seqnum.Value(seg.Seq).Add(seqnum.Size(seg.Len())))
	rst.Flags = packet.RST | packet.ACK
	return rst
}
