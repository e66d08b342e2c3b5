package otproto

import "net/netip"

// Peer is a discovered network participant, identified by socket address and
// optionally a username. Lifetime: created when a greet or response is
// received, or explicitly added by the caller with no name; dropped when a
// disconnect is observed or the caller clears it.
type Peer struct {
	address netip.AddrPort
	name    Username
	named   bool
}

// NewPeer creates a nameless peer at address.
func NewPeer(address netip.AddrPort) Peer {
	return Peer{address: address}
}

// NewNamedPeer creates a peer at address with name.
func NewNamedPeer(address netip.AddrPort, name Username) Peer {
	return Peer{address: address, name: name, named: true}
}

// Address returns the peer's socket address.
func (p Peer) Address() netip.AddrPort {
	return p.address
}

// Name returns the peer's username and whether one is set.
func (p Peer) Name() (Username, bool) {
	return p.name, p.named
}

// Compare orders p against other by address then by name, matching the
// derived Ord on the source Peer.
func (p Peer) Compare(other Peer) int {
	if c := comparePort(p.address, other.address); c != 0 {
		return c
	}
	switch {
	case !p.named && !other.named:
		return 0
	case !p.named:
		return -1
	case !other.named:
		return 1
	default:
		return p.name.Compare(other.name)
	}
}

func comparePort(a, b netip.AddrPort) int {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c
	}
	switch {
	case a.Port() < b.Port():
		return -1
	case a.Port() > b.Port():
		return 1
	default:
		return 0
	}
}

// String formats the peer as "name (ip)" if named, or just the address
// otherwise, matching the source Peer's Display impl.
func (p Peer) String() string {
	if p.named {
		return p.name.String() + " (" + p.address.Addr().String() + ")"
	}
	return p.address.String()
}
