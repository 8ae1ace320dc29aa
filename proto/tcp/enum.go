package tcp

type State int

const (
	CLOSED      State = 0
	LISTEN      State = 1
	SYN_RECVD   State = 3
	ESTABLISHED State = 4
	FIN_WAIT1   State = 5
	FIN_WAIT2   State = 6
	CLOSING     State = 7
	TIME_WAIT   State = 8
	CLOSE_WAIT  State = 9
	LAST_ACK    State = 10
)

func (s State) String() string {
	switch s {
	case CLOSED:
		return "CLOSED"
	case LISTEN:
		return "LISTEN"
	case SYN_RECVD:
		return "SYN_RECVD"
	case ESTABLISHED:
		return "ESTABLISHED"
	case FIN_WAIT1:
		return "FIN_WAIT1"
	case FIN_WAIT2:
		return "FIN_WAIT2"
	case CLOSING:
		return "CLOSING"
	case TIME_WAIT:
		return "TIME_WAIT"
	case CLOSE_WAIT:
		return "CLOSE_WAIT"
	case LAST_ACK:
		return "LAST_ACK"
	default:
		return "UNKNOWN"
	}
}

// synchronized reports whether the connection has completed the handshake
// and has not been torn down yet.
func (s State) synchronized() bool {
	switch s {
	case ESTABLISHED, FIN_WAIT1, FIN_WAIT2, CLOSING, TIME_WAIT, CLOSE_WAIT, LAST_ACK:
		return true
	default:
		return false
	}
}

// IsReadyRecv reports whether the peer may still send data.
func (s State) IsReadyRecv() bool {
	switch s {
	case ESTABLISHED, FIN_WAIT1, FIN_WAIT2:
		return true
	default:
		return false
	}
}

// IsReadySend reports whether we may still send data.
func (s State) IsReadySend() bool {
	switch s {
	case ESTABLISHED, CLOSE_WAIT:
		return true
	default:
		return false
	}
}
