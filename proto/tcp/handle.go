package tcp

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/terassyi/tuntcp/logger"
	"github.com/terassyi/tuntcp/packet"
	"github.com/terassyi/tuntcp/proto/port"
)

// Tcp demultiplexes inbound segments to their connections. It is driven by a
// single dispatch loop and does no locking of its own.
type Tcp struct {
	table   *Table
	ports   *port.Table
	handler Handler
	opts    Options
	logger  *logger.Logger
}

func New(opts Options, ports *port.Table, handler Handler, debug bool) *Tcp {
	return &Tcp{
		table:   NewTable(),
		ports:   ports,
		handler: handler,
		opts:    opts,
		logger:  logger.New(debug, "tcp"),
	}
}

// HandleSegment processes one inbound segment at now and returns the
// segments to transmit.
func (t *Tcp) HandleSegment(seg *packet.Segment, now time.Time) []*packet.Segment {
	key := NewKey(seg)
	t.logger.Debugf("recv %s", seg)

	cb, ok := t.table.Get(key)
	if !ok {
		if !t.ports.IsBound(int(key.Local.Port)) {
			// nobody listens here: only a SYN is refused with a reset
			if !seg.Flags.Syn() {
				t.logger.Debugf("drop %s: port %d is not bound", seg, key.Local.Port)
				return nil
			}
			if rst := resetFor(seg); rst != nil {
				t.logger.Debugf("reset %s: port %d is not bound", key, key.Local.Port)
				return []*packet.Segment{rst}
			}
			return nil
		}
		// every unseen key starts in LISTEN
		var err error
		cb, err = newControlBlock(key, t.opts, t.logger)
		if err != nil {
			t.logger.Errorf("failed to create connection %s: %v", key, err)
			return nil
		}
		t.table.Insert(cb)
	}

	replies, err := cb.HandleSegment(seg, now)
	if err != nil {
		t.logErr(cb, seg, err)
	}
	t.serve(cb)
	out := cb.output(now)
	if len(out) > 0 {
		// the data segments carry the same acknowledgment
		replies = dropPureAck(replies)
		replies = append(replies, out...)
	}
	t.sweep(cb)
	return replies
}

// Tick fires due timers of every connection and returns the segments to transmit.
func (t *Tcp) Tick(now time.Time) []*packet.Segment {
	var out []*packet.Segment
	t.table.Range(func(cb *controlBlock) bool {
		out = append(out, cb.Tick(now)...)
		t.serve(cb)
		out = append(out, cb.output(now)...)
		t.sweep(cb)
		return true
	})
	return out
}

// State reports the state of the connection identified by key.
func (t *Tcp) State(key Key) (State, bool) {
	cb, ok := t.table.Get(key)
	if !ok {
		return CLOSED, false
	}
	return cb.state, true
}

func (t *Tcp) Conn(key Key) (*Conn, bool) {
	cb, ok := t.table.Get(key)
	if !ok {
		return nil, false
	}
	return cb.conn, true
}

func (t *Tcp) Len() int {
	return t.table.Len()
}

// serve hands the connection to the application when it has news.
// Whatever the handler writes is sent by output.
func (t *Tcp) serve(cb *controlBlock) {
	if !cb.notify || !cb.state.synchronized() || t.handler == nil {
		return
	}
	cb.notify = false
	t.handler.Serve(cb.conn)
}

// sweep removes connections that reached CLOSED and listeners that never
// left LISTEN.
func (t *Tcp) sweep(cb *controlBlock) {
	switch cb.state {
	case CLOSED, LISTEN:
		t.logger.Debugf("delete %s (%s)", cb.key, cb.state)
		t.table.Delete(cb.key)
	}
}

func (t *Tcp) logErr(cb *controlBlock, seg *packet.Segment, err error) {
	l := cb.logger.With(logrus.Fields{"state": cb.state.String()})
	switch {
	case errors.Is(err, ErrConnectionReset):
		l.Infof("connection reset by peer")
	default:
		l.Debugf("drop %s: %v", seg, err)
	}
}

func dropPureAck(segs []*packet.Segment) []*packet.Segment {
	out := segs[:0]
	for _, s := range segs {
		if s.Flags == packet.ACK && len(s.Payload) == 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}
