package tcp

import (
	"fmt"

	"gvisor.dev/gvisor/pkg/tcpip/seqnum"
)

// SendSequence is the send sequence space (RFC 793 3.2 figure 4).
//
//	     1         2          3          4
//	----------|----------|----------|----------
//	       SND.UNA    SND.NXT    SND.UNA
//	                            +SND.WND
//
//	1 - old sequence numbers which have been acknowledged
//	2 - sequence numbers of unacknowledged data
//	3 - sequence numbers allowed for new data transmission
//	4 - future sequence numbers which are not yet allowed
type SendSequence struct {
	UNA seqnum.Value // send unacknowladged
	NXT seqnum.Value // send next
	WND seqnum.Size  // send window
	UP  bool         // send urgent pointer
	WL1 seqnum.Value // segment sequence number used for last window update
	WL2 seqnum.Value // segment acknowledgement number used for last window update
	ISS seqnum.Value // initial send sequence number
}

// ReceiveSequence is the receive sequence space (RFC 793 3.2 figure 5).
//
//	    1          2          3
//	----------|----------|----------
//	       RCV.NXT    RCV.NXT
//	                 +RCV.WND
//
//	1 - old sequence numbers which have been acknowledged
//	2 - sequence numbers allowed for new reception
//	3 - future sequence numbers which are not yet allowed
type ReceiveSequence struct {
	NXT seqnum.Value // receive next
	WND seqnum.Size  // receive window
	UP  bool         // receive urgent pointer
	IRS seqnum.Value // initial receive sequence number
}

type ackResult int

const (
	// ackNew acknowledges previously unacknowledged data. SND.UNA advanced.
	ackNew ackResult = iota
	// ackDuplicate acknowledges exactly SND.UNA.
	ackDuplicate
	// ackStale acknowledges something before SND.UNA.
	ackStale
	// ackAhead acknowledges something not yet sent.
	ackAhead
)

func (r ackResult) String() string {
	switch r {
	case ackNew:
		return "new"
	case ackDuplicate:
		return "duplicate"
	case ackStale:
		return "stale"
	case ackAhead:
		return "ahead"
	default:
		return "unknown"
	}
}

func (s *SendSequence) init(iss seqnum.Value) {
	s.ISS = iss
	s.UNA = iss
	s.NXT = iss
}

// Ack processes the acknowledgment field of a segment carrying seq.
// SND.UNA only moves forward for SND.UNA < ack <= SND.NXT. The window is
// taken from the segment only when (seq, ack) is not older than the pair
// recorded at the last window update, so a reordered segment can not bring
// back a stale window.
func (s *SendSequence) Ack(ack, seq seqnum.Value, wnd seqnum.Size) ackResult {
	switch {
	case s.NXT.LessThan(ack):
		return ackAhead
	case ack.LessThan(s.UNA):
		return ackStale
	}
	result := ackDuplicate
	if s.UNA.LessThan(ack) {
		s.UNA = ack
		result = ackNew
	}
	if s.WL1.LessThan(seq) || (s.WL1 == seq && s.WL2.LessThanEq(ack)) {
		s.WND = wnd
		s.WL1 = seq
		s.WL2 = ack
	}
	return result
}

// Send advances SND.NXT after length sequence numbers were transmitted.
func (s *SendSequence) Send(length seqnum.Size) {
	s.NXT = s.NXT.Add(length)
}

// InFlight is the number of sequence numbers sent but not yet acknowledged.
func (s *SendSequence) InFlight() seqnum.Size {
	return s.UNA.Size(s.NXT)
}

// Usable is the number of sequence numbers the peer's window allows us to send now.
func (s *SendSequence) Usable() seqnum.Size {
	end := s.UNA.Add(s.WND)
	if !s.NXT.LessThan(end) {
		return 0
	}
	return s.NXT.Size(end)
}

func (s *SendSequence) String() string {
	return fmt.Sprintf("<snd.una=%d snd.nxt=%d snd.wnd=%d snd.wl1=%d snd.wl2=%d snd.iss=%d>",
		s.UNA, s.NXT, s.WND, s.WL1, s.WL2, s.ISS)
}

// InWindow is the acceptability test of RFC 793 3.3: a segment is acceptable
// if any of its sequence numbers falls into [RCV.NXT, RCV.NXT+RCV.WND).
//
//	Segment Receive  Test
//	Length  Window
//	------- -------  -------------------------------------------
//	   0       0     SEG.SEQ = RCV.NXT
//	   0      >0     RCV.NXT =< SEG.SEQ < RCV.NXT+RCV.WND
//	  >0       0     not acceptable
//	  >0      >0     any byte of the segment inside the window
func (r *ReceiveSequence) InWindow(seq seqnum.Value, length seqnum.Size) bool {
	if length == 0 {
		if r.WND == 0 {
			return seq == r.NXT
		}
		return seq.InWindow(r.NXT, r.WND)
	}
	if r.WND == 0 {
		return false
	}
	// [seq, seq+length) overlaps [RCV.NXT, RCV.NXT+RCV.WND)
	return seq.LessThan(r.NXT.Add(r.WND)) && r.NXT.LessThan(seq.Add(length))
}

// Receive advances RCV.NXT after length sequence numbers were accepted.
func (r *ReceiveSequence) Receive(length seqnum.Size) {
	r.NXT = r.NXT.Add(length)
}

func (r *ReceiveSequence) String() string {
	return fmt.Sprintf("<rcv.nxt=%d rcv.wnd=%d rcv.irs=%d>", r.NXT, r.WND, r.IRS)
}
