package tcp

import "errors"

var (
	// ErrOutOfWindow is returned for segments failing the acceptability test
	// or acknowledging something not yet sent.
	ErrOutOfWindow = errors.New("segment out of window")
	// ErrUnexpectedFlags is returned for segments whose control bits make no
	// sense in the current state, such as data in LISTEN.
	ErrUnexpectedFlags = errors.New("unexpected flag combination")
	// ErrConnectionReset is returned once the peer reset the connection.
	ErrConnectionReset = errors.New("connection reset")
	// ErrConnectionClosed is returned when using a connection after close.
	ErrConnectionClosed = errors.New("connection closed")
)
