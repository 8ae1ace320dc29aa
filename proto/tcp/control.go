package tcp

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/terassyi/tuntcp/logger"
	"github.com/terassyi/tuntcp/packet"
	"gvisor.dev/gvisor/pkg/tcpip/seqnum"
)

// defaultMSS is assumed when the peer's SYN carries no MSS option (RFC 1122 4.2.2.6).
const defaultMSS = 536

type Options struct {
	ReceiveWindow  uint16
	MSS            uint16
	InitialRTO     time.Duration
	MaxRetransmits int
	TimeWait       time.Duration
	UserTimeout    time.Duration
	// ISS chooses the initial send sequence number. Random is used when nil.
	ISS func() uint32
}

func DefaultOptions() Options {
	return Options{
		ReceiveWindow:  1024,
		MSS:            1460,
		InitialRTO:     time.Second,
		MaxRetransmits: 5,
		TimeWait:       time.Minute,
		UserTimeout:    time.Minute,
	}
}

func Random() uint32 {
	return rand.Uint32()
}

// controlBlock is the transmission control block of one connection.
type controlBlock struct {
	key    Key
	state  State
	snd    SendSequence
	rcv    ReceiveSequence
	conn   *Conn
	opts   Options
	logger *logger.Logger

	peerMSS uint16
	finSent bool
	// notify is set when the application has something to look at.
	notify bool

	// SYN+ACK retransmission
	rto          time.Duration
	retries      int
	retransmitAt time.Time
	// deadline of TIME-WAIT
	timeWaitAt time.Time
	// last time SND.UNA moved while something was in flight
	progressAt time.Time
}

func newControlBlock(key Key, opts Options, l *logger.Logger) (*controlBlock, error) {
	conn, err := newConn(key, int(opts.ReceiveWindow))
	if err != nil {
		return nil, err
	}
	cb := &controlBlock{
		key:    key,
		state:  LISTEN,
		conn:   conn,
		opts:   opts,
		logger: l.With(logrus.Fields{"conn": key.String()}),
	}
	cb.rcv.WND = seqnum.Size(opts.ReceiveWindow)
	return cb, nil
}

func (cb *controlBlock) transition(next State) {
	if cb.state == next {
		return
	}
	cb.logger.Debugf("%s -> %s", cb.state, next)
	cb.state = next
}

func (cb *controlBlock) receiveWindow() seqnum.Size {
	return seqnum.Size(int(cb.opts.ReceiveWindow) - cb.conn.Buffered())
}

// HandleSegment runs the "segment arrives" processing of RFC 793 3.9 and
// returns the segments to send in reply. Replies are returned even when err
// is non-nil: err only tells why the segment was (partly) dropped.
func (cb *controlBlock) HandleSegment(seg *packet.Segment, now time.Time) ([]*packet.Segment, error) {
	switch cb.state {
	case CLOSED:
		return nil, ErrConnectionClosed
	case LISTEN:
		return cb.listen(seg, now)
	default:
		return cb.synchronized(seg, now)
	}
}

func (cb *controlBlock) listen(seg *packet.Segment, now time.Time) ([]*packet.Segment, error) {
	// first check rst, then ack; anything but a bare SYN is dropped
	if seg.Flags.Rst() || seg.Flags.Ack() || !seg.Flags.Syn() {
		return nil, fmt.Errorf("%w: [%s] in LISTEN", ErrUnexpectedFlags, seg.Flags)
	}
	seq := seqnum.Value(seg.Seq)
	cb.rcv.IRS = seq
	cb.rcv.NXT = seq.Add(1)
	cb.rcv.WND = cb.receiveWindow()

	iss := cb.opts.ISS
	if iss == nil {
		iss = Random
	}
	cb.snd.init(seqnum.Value(iss()))
	cb.snd.WND = seqnum.Size(seg.Window)
	cb.snd.WL1 = seq
	cb.snd.WL2 = cb.snd.ISS
	cb.peerMSS = seg.MSS
	if cb.peerMSS == 0 {
		cb.peerMSS = defaultMSS
	}

	synAck := cb.synAck()
	cb.snd.Send(1)
	cb.rto = cb.opts.InitialRTO
	cb.retries = 0
	cb.retransmitAt = now.Add(cb.rto)
	cb.transition(SYN_RECVD)
	return []*packet.Segment{synAck}, nil
}

func (cb *controlBlock) synchronized(seg *packet.Segment, now time.Time) ([]*packet.Segment, error) {
	seq := seqnum.Value(seg.Seq)
	flags := seg.Flags
	cb.rcv.WND = cb.receiveWindow()

	// first check sequence number
	if !cb.rcv.InWindow(seq, seqnum.Size(seg.Len())) {
		if flags.Rst() {
			return nil, fmt.Errorf("%w: rst seq=%d %s", ErrOutOfWindow, seg.Seq, cb.rcv.String())
		}
		if cb.state == SYN_RECVD && flags.Syn() && !flags.Ack() && seq == cb.rcv.IRS {
			// the peer did not see our SYN+ACK yet
			return []*packet.Segment{cb.synAck()}, nil
		}
		if cb.state == TIME_WAIT && flags.Fin() {
			cb.timeWaitAt = now.Add(cb.opts.TimeWait)
		}
		err := fmt.Errorf("%w: seq=%d len=%d %s", ErrOutOfWindow, seg.Seq, seg.Len(), cb.rcv.String())
		if flags == packet.ACK && len(seg.Payload) == 0 {
			return nil, err
		}
		// <SEQ=SND.NXT><ACK=RCV.NXT><CTL=ACK>
		return []*packet.Segment{cb.ack()}, err
	}

	// second check the RST bit
	if flags.Rst() {
		cb.reset()
		return nil, ErrConnectionReset
	}

	// fourth check the SYN bit, an in-window SYN is an error
	if flags.Syn() {
		rst := cb.segment(cb.snd.NXT, 0, packet.RST, nil)
		cb.reset()
		return []*packet.Segment{rst}, fmt.Errorf("%w: syn in window", ErrUnexpectedFlags)
	}

	// fifth check the ACK field
	if !flags.Ack() {
		return nil, fmt.Errorf("%w: ack flag is not set", ErrUnexpectedFlags)
	}
	ack := seqnum.Value(seg.Ack)
	wnd := seqnum.Size(seg.Window)
	next := cb.state
	switch cb.state {
	case SYN_RECVD:
		if ack != cb.snd.ISS.Add(1) {
			// <SEQ=SEG.ACK><CTL=RST>
			rst := cb.segment(ack, 0, packet.RST, nil)
			return []*packet.Segment{rst}, fmt.Errorf("%w: ack=%d does not acknowledge syn %s", ErrOutOfWindow, seg.Ack, cb.snd.String())
		}
		cb.snd.Ack(ack, seq, wnd)
		next = ESTABLISHED
		cb.notify = true
	default:
		result := cb.snd.Ack(ack, seq, wnd)
		switch result {
		case ackAhead:
			return []*packet.Segment{cb.ack()}, fmt.Errorf("%w: ack=%d %s", ErrOutOfWindow, seg.Ack, cb.snd.String())
		case ackNew:
			cb.progressAt = now
		}
	}
	finAcked := cb.finSent && cb.snd.UNA == cb.snd.NXT
	switch cb.state {
	case FIN_WAIT1:
		if finAcked && !flags.Fin() {
			next = FIN_WAIT2
		}
	case CLOSING:
		if finAcked {
			cb.enterTimeWait(now)
		}
		return nil, nil
	case LAST_ACK:
		if finAcked {
			cb.transition(CLOSED)
		}
		return nil, nil
	}

	needAck := false
	// sixth check the URG bit
	if flags.Urg() && next.IsReadyRecv() {
		cb.rcv.UP = true
	}

	// seventh process the segment text
	payload := seg.Payload
	if len(payload) > 0 && next.IsReadyRecv() {
		needAck = true
		if seq.LessThan(cb.rcv.NXT) {
			// already received in part
			payload = payload[seq.Size(cb.rcv.NXT):]
			seq = cb.rcv.NXT
		}
		if seq != cb.rcv.NXT {
			cb.transition(next)
			return []*packet.Segment{cb.ack()}, fmt.Errorf("%w: out of order seq=%d %s", ErrOutOfWindow, seg.Seq, cb.rcv.String())
		}
		if room := int(cb.rcv.WND); len(payload) > room {
			payload = payload[:room]
		}
		if err := cb.conn.deliver(payload); err != nil {
			return nil, err
		}
		cb.rcv.Receive(seqnum.Size(len(payload)))
		cb.rcv.WND = cb.receiveWindow()
		cb.notify = true
	}

	// eighth check the FIN bit
	finSeq := seqnum.Value(seg.Seq).Add(seqnum.Size(len(seg.Payload)))
	if flags.Fin() && finSeq == cb.rcv.NXT {
		needAck = true
		cb.rcv.Receive(1)
		cb.conn.peerClosed = true
		cb.notify = true
		switch next {
		case SYN_RECVD, ESTABLISHED:
			next = CLOSE_WAIT
		case FIN_WAIT1:
			if finAcked {
				next = TIME_WAIT
			} else {
				next = CLOSING
			}
		case FIN_WAIT2:
			next = TIME_WAIT
		case TIME_WAIT:
			cb.timeWaitAt = now.Add(cb.opts.TimeWait)
		}
	}

	if next == TIME_WAIT && cb.state != TIME_WAIT {
		cb.enterTimeWait(now)
	} else {
		cb.transition(next)
	}
	if needAck {
		return []*packet.Segment{cb.ack()}, nil
	}
	return nil, nil
}

func (cb *controlBlock) enterTimeWait(now time.Time) {
	cb.timeWaitAt = now.Add(cb.opts.TimeWait)
	cb.transition(TIME_WAIT)
}

// reset discards the connection.
func (cb *controlBlock) reset() {
	cb.conn.reset = true
	cb.conn.pending = nil
	cb.transition(CLOSED)
}

// output sends queued application bytes within the peer's window and the FIN
// once the application closed its side and nothing is left to send.
func (cb *controlBlock) output(now time.Time) []*packet.Segment {
	if !cb.state.IsReadySend() {
		return nil
	}
	// the application may have read since the last segment
	cb.rcv.WND = cb.receiveWindow()
	var out []*packet.Segment
	mss := int(cb.opts.MSS)
	if cb.peerMSS != 0 && int(cb.peerMSS) < mss {
		mss = int(cb.peerMSS)
	}
	for len(cb.conn.pending) > 0 {
		usable := int(cb.snd.Usable())
		if usable == 0 {
			break
		}
		if usable > mss {
			usable = mss
		}
		data := cb.conn.next(usable)
		cb.startProgress(now)
		out = append(out, cb.segment(cb.snd.NXT, cb.rcv.NXT, packet.ACK|packet.PSH, data))
		cb.snd.Send(seqnum.Size(len(data)))
	}
	if cb.conn.closing && len(cb.conn.pending) == 0 && !cb.finSent {
		cb.startProgress(now)
		out = append(out, cb.segment(cb.snd.NXT, cb.rcv.NXT, packet.FIN|packet.ACK, nil))
		cb.snd.Send(1)
		cb.finSent = true
		switch cb.state {
		case ESTABLISHED:
			cb.transition(FIN_WAIT1)
		case CLOSE_WAIT:
			cb.transition(LAST_ACK)
		}
	}
	return out
}

func (cb *controlBlock) startProgress(now time.Time) {
	if cb.snd.InFlight() == 0 {
		cb.progressAt = now
	}
}

// Tick fires the timers that are due at now.
func (cb *controlBlock) Tick(now time.Time) []*packet.Segment {
	switch cb.state {
	case SYN_RECVD:
		if now.Before(cb.retransmitAt) {
			return nil
		}
		if cb.retries >= cb.opts.MaxRetransmits {
			cb.logger.Debugf("handshake abandoned after %d retransmissions", cb.retries)
			cb.transition(CLOSED)
			return nil
		}
		cb.retries++
		cb.rto *= 2
		cb.retransmitAt = now.Add(cb.rto)
		cb.logger.Debugf("retransmit syn|ack (%d/%d)", cb.retries, cb.opts.MaxRetransmits)
		return []*packet.Segment{cb.synAck()}
	case TIME_WAIT:
		if !now.Before(cb.timeWaitAt) {
			cb.transition(CLOSED)
		}
		return nil
	}
	if cb.state.synchronized() && cb.snd.InFlight() > 0 && now.Sub(cb.progressAt) >= cb.opts.UserTimeout {
		cb.logger.Warnf("user timeout: %d bytes unacknowledged", cb.snd.InFlight())
		rst := cb.segment(cb.snd.NXT, 0, packet.RST, nil)
		cb.reset()
		return []*packet.Segment{rst}
	}
	return nil
}
