package otproto

import "net/netip"

// Action is a request the caller submits to the network task.
type Action struct {
	kind actionKind
	addr netip.AddrPort
	m0   UserMessage
	m1   UserMessage
}

type actionKind uint8

const (
	actionBroadcast actionKind = iota
	actionDisconnect
	actionSend
)

// BroadcastAction requests a BroadcastGreet be sent to advertise this host.
func BroadcastAction() Action { return Action{kind: actionBroadcast} }

// DisconnectAction requests a BroadcastBye be sent and the task stopped.
func DisconnectAction() Action { return Action{kind: actionDisconnect} }

// SendAction requests an oblivious transfer of m0/m1 be initiated with addr.
func SendAction(addr netip.AddrPort, m0, m1 UserMessage) Action {
	return Action{kind: actionSend, addr: addr, m0: m0, m1: m1}
}

// IsBroadcast reports whether a is a BroadcastAction.
func (a Action) IsBroadcast() bool { return a.kind == actionBroadcast }

// IsDisconnect reports whether a is a DisconnectAction.
func (a Action) IsDisconnect() bool { return a.kind == actionDisconnect }

// Send returns the destination and candidate messages of a SendAction, and
// whether a is in fact a SendAction.
func (a Action) Send() (addr netip.AddrPort, m0, m1 UserMessage, ok bool) {
	if a.kind != actionSend {
		return netip.AddrPort{}, UserMessage{}, UserMessage{}, false
	}
	return a.addr, a.m0, a.m1, true
}

// EventKind identifies the variant of an Event.
type EventKind uint8

const (
	// EventError reports a non-fatal NetworkError to the caller.
	EventError EventKind = iota
	// EventConnected reports that a peer was discovered or re-discovered.
	EventConnected
	// EventDisconnected reports that a peer announced a BroadcastBye.
	EventDisconnected
	// EventMessage reports a successfully completed oblivious transfer.
	EventMessage
)

// Event is emitted by the network task to the caller.
type Event struct {
	Kind    EventKind
	Err     error
	Peer    Peer
	Addr    netip.AddrPort
	Message string
}

// ErrorEvent wraps err as an Event.
func ErrorEvent(err error) Event {
	return Event{Kind: EventError, Err: err}
}

// ConnectedEvent reports the discovery of peer.
func ConnectedEvent(peer Peer) Event {
	return Event{Kind: EventConnected, Peer: peer}
}

// DisconnectedEvent reports a BroadcastBye from addr.
func DisconnectedEvent(addr netip.AddrPort) Event {
	return Event{Kind: EventDisconnected, Addr: addr}
}

// MessageEvent reports a completed oblivious transfer of message from addr.
func MessageEvent(addr netip.AddrPort, message string) Event {
	return Event{Kind: EventMessage, Addr: addr, Message: message}
}
