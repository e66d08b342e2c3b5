package otproto

import (
	"errors"
	"fmt"
	"net/netip"
)

// Sentinel errors for the network task's lifecycle and topology failures.
// Grounded on the source's NetworkError enum (net/mod.rs) and the teacher's
// sentinel-error style in pkg/nspkt (ErrListenerClosed) and pkg/eax
// (ErrVersionRequired).
var (
	// ErrTaskClosed is returned when an action is submitted after the network
	// task's action channel has been closed.
	ErrTaskClosed = errors.New("otproto: network task has ended")

	// ErrTaskPanic is returned when the network task's goroutine terminated
	// abnormally.
	ErrTaskPanic = errors.New("otproto: network task has panicked")

	// ErrLocalIPNotFound is returned when the primary local IPv4 address
	// cannot be determined.
	ErrLocalIPNotFound = errors.New("otproto: local ip address not found")

	// ErrBroadcastAddressNotFound is returned when no local interface with a
	// broadcast address matches the primary local IP.
	ErrBroadcastAddressNotFound = errors.New("otproto: failed to retrieve local broadcast address")
)

// SocketBindError wraps a fatal error encountered while binding or
// configuring the listening socket. The network task terminates after
// reporting it.
type SocketBindError struct {
	Err error
}

func (e *SocketBindError) Error() string {
	return fmt.Sprintf("otproto: failed to create socket: %v (terminating network task)", e.Err)
}

func (e *SocketBindError) Unwrap() error { return e.Err }

// SocketError wraps a non-fatal per-operation socket I/O error. The task
// reports it and continues.
type SocketError struct {
	Err error
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("otproto: socket error: %v", e.Err)
}

func (e *SocketError) Unwrap() error { return e.Err }

// IncorrectMessageError is returned when a peer's packet does not match its
// current OT exchange state (e.g. a Response with no prior Greet sent).
type IncorrectMessageError struct {
	Addr netip.AddrPort
}

func (e *IncorrectMessageError) Error() string {
	return fmt.Sprintf("otproto: received incorrect message from %s for current state", e.Addr)
}
