package otproto

import (
	"net/netip"
	"testing"
)

func TestPeerString(t *testing.T) {
	addr := netip.MustParseAddrPort("192.168.1.5:9000")

	nameless := NewPeer(addr)
	if got := nameless.String(); got != "192.168.1.5:9000" {
		t.Errorf("got %q, want %q", got, "192.168.1.5:9000")
	}

	name, err := NewUsername("alice")
	if err != nil {
		t.Fatal(err)
	}
	named := NewNamedPeer(addr, name)
	if got := named.String(); got != "alice (192.168.1.5)" {
		t.Errorf("got %q, want %q", got, "alice (192.168.1.5)")
	}
}

func TestPeerCompareOrdersByAddressThenName(t *testing.T) {
	a1 := netip.MustParseAddrPort("10.0.0.1:1000")
	a2 := netip.MustParseAddrPort("10.0.0.2:1000")

	p1 := NewPeer(a1)
	p2 := NewPeer(a2)
	if p1.Compare(p2) >= 0 {
		t.Error("expected lower address to compare less")
	}

	name, _ := NewUsername("zzz")
	namedAtA1 := NewNamedPeer(a1, name)
	if p1.Compare(namedAtA1) >= 0 {
		t.Error("expected nameless peer to compare less than a named peer at the same address")
	}
	if namedAtA1.Compare(p1) <= 0 {
		t.Error("expected named peer to compare greater than a nameless peer at the same address")
	}
}

func TestPeerNameAccessor(t *testing.T) {
	addr := netip.MustParseAddrPort("10.0.0.1:1000")
	p := NewPeer(addr)
	if _, ok := p.Name(); ok {
		t.Error("nameless peer should report ok=false from Name()")
	}

	name, _ := NewUsername("bob")
	np := NewNamedPeer(addr, name)
	got, ok := np.Name()
	if !ok || got.String() != "bob" {
		t.Errorf("got (%v, %v), want (bob, true)", got, ok)
	}
}
