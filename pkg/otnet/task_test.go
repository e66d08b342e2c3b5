package otnet

import (
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/packetloom/otmp/pkg/otproto"
	"github.com/packetloom/otmp/pkg/otwire"
)

func newTestTask(t *testing.T, name string) (*Task, chan otproto.Action, chan otproto.Event) {
	t.Helper()
	un, err := otproto.NewUsername(name)
	if err != nil {
		t.Fatal(err)
	}
	actions := make(chan otproto.Action, 100)
	events := make(chan otproto.Event, 100)
	task := NewTask(actions, events, un, 0, zerolog.Nop(), nil)
	return task, actions, events
}

func startAndWaitReady(t *testing.T, task *Task) netip.AddrPort {
	t.Helper()
	go task.Run()
	select {
	case addr := <-task.Ready():
		return addr
	case <-time.After(5 * time.Second):
		t.Fatal("task never became ready")
		return netip.AddrPort{}
	}
}

func waitEvent(t *testing.T, events chan otproto.Event) otproto.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return otproto.Event{}
	}
}

func expectNoEvent(t *testing.T, events chan otproto.Event) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("expected no event, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestObliviousTransferEndToEnd drives a full Greet/Response/Data exchange
// between two real tasks over loopback UDP sockets and checks that the
// receiving task recovers one of the two offered messages.
func TestObliviousTransferEndToEnd(t *testing.T) {
	taskA, actionsA, eventsA := newTestTask(t, "alice")
	addrA := startAndWaitReady(t, taskA)
	defer func() { actionsA <- otproto.DisconnectAction() }()

	taskB, actionsB, eventsB := newTestTask(t, "bob")
	addrB := startAndWaitReady(t, taskB)
	defer func() { actionsB <- otproto.DisconnectAction() }()

	m0, _ := otproto.NewUserMessage("zero")
	m1, _ := otproto.NewUserMessage("one")
	actionsA <- otproto.SendAction(addrB, m0, m1)

	ev := waitEvent(t, eventsB)
	if ev.Kind != otproto.EventMessage {
		t.Fatalf("expected EventMessage, got kind %v err %v", ev.Kind, ev.Err)
	}
	if ev.Message != m0.String() && ev.Message != m1.String() {
		t.Fatalf("message %q matches neither offered message", ev.Message)
	}
	if ev.Addr != addrA {
		t.Fatalf("got addr %v, want %v", ev.Addr, addrA)
	}

	expectNoEvent(t, eventsA)
}

// TestUnsolicitedResponseReportsIncorrectMessage checks that a Response
// arriving from a peer the task never greeted is reported as an
// IncorrectMessageError rather than panicking or being silently ignored.
func TestUnsolicitedResponseReportsIncorrectMessage(t *testing.T) {
	taskA, actionsA, eventsA := newTestTask(t, "alice")
	addrA := startAndWaitReady(t, taskA)
	defer func() { actionsA <- otproto.DisconnectAction() }()

	raw, err := net.ListenUDP("udp4", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()

	var point [33]byte
	point[0] = 0x02
	b, err := otwire.Encode(nil, otwire.NewResponse(point))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := raw.WriteToUDPAddrPort(b, addrA); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, eventsA)
	if ev.Kind != otproto.EventError {
		t.Fatalf("expected EventError, got %v", ev.Kind)
	}
	var ime *otproto.IncorrectMessageError
	if !errors.As(ev.Err, &ime) {
		t.Fatalf("expected IncorrectMessageError, got %v", ev.Err)
	}
}

// TestBroadcastDiscoveryAndBye exercises the discovery broadcast round trip
// using an injected loopback "broadcast" address (real LAN broadcast
// addresses aren't available in a test sandbox), followed by a Disconnect
// announcing departure.
func TestBroadcastDiscoveryAndBye(t *testing.T) {
	taskA, actionsA, eventsA := newTestTask(t, "alice")
	addrA := startAndWaitReady(t, taskA)

	taskB, actionsB, eventsB := newTestTask(t, "bob")
	addrB := startAndWaitReady(t, taskB)

	// Point each task's "broadcast" resolution directly at the other's
	// loopback socket, simulating a LAN broadcast domain of just these two
	// hosts.
	taskA.resolveBroadcast = func(uint16) (netip.AddrPort, error) { return addrB, nil }
	taskB.resolveBroadcast = func(uint16) (netip.AddrPort, error) { return addrA, nil }

	actionsA <- otproto.BroadcastAction()

	ev := waitEvent(t, eventsB)
	if ev.Kind != otproto.EventConnected {
		t.Fatalf("expected EventConnected on B, got %v", ev.Kind)
	}
	name, ok := ev.Peer.Name()
	if !ok || name.String() != "alice" {
		t.Fatalf("expected peer named alice, got %v (named=%v)", name, ok)
	}

	// A should also see a Connected event: B auto-replies with a
	// BroadcastResponse.
	evA := waitEvent(t, eventsA)
	if evA.Kind != otproto.EventConnected {
		t.Fatalf("expected EventConnected on A, got %v", evA.Kind)
	}

	actionsB <- otproto.DisconnectAction()
	byeEv := waitEvent(t, eventsA)
	if byeEv.Kind != otproto.EventDisconnected {
		t.Fatalf("expected EventDisconnected on A, got %v", byeEv.Kind)
	}
	if byeEv.Addr != addrB {
		t.Fatalf("got disconnect from %v, want %v", byeEv.Addr, addrB)
	}

	actionsA <- otproto.DisconnectAction()
}

// TestLoopbackByeIsSuppressedButResponseIsNot exercises onPacket directly
// against a fabricated self-address, checking that a looped-back
// BroadcastBye is suppressed (matching BroadcastGreet's treatment) while a
// looped-back BroadcastResponse is still reported unconditionally.
func TestLoopbackByeIsSuppressedButResponseIsNot(t *testing.T) {
	task, _, events := newTestTask(t, "alice")
	task.port = 12345

	self := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), 12345)
	local := map[netip.Addr]struct{}{netip.MustParseAddr("127.0.0.1"): {}}

	bye, err := otwire.Encode(nil, otwire.NewBroadcastBye())
	if err != nil {
		t.Fatal(err)
	}
	task.onPacket(nil, local, self, bye)
	expectNoEvent(t, events)

	name, err := otproto.NewUsername("bob")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := otwire.Encode(nil, otwire.NewBroadcastResponse(name))
	if err != nil {
		t.Fatal(err)
	}
	task.onPacket(nil, local, self, resp)
	ev := waitEvent(t, events)
	if ev.Kind != otproto.EventConnected {
		t.Fatalf("expected EventConnected even from a self-address, got %v", ev.Kind)
	}
}

// TestRepaintInvokedOnEvent checks that the repaint callback fires once for
// every event the task emits.
func TestRepaintInvokedOnEvent(t *testing.T) {
	actions := make(chan otproto.Action, 100)
	events := make(chan otproto.Event, 100)
	un, err := otproto.NewUsername("alice")
	if err != nil {
		t.Fatal(err)
	}

	var calls int
	repainted := make(chan struct{}, 10)
	task := NewTask(actions, events, un, 0, zerolog.Nop(), func() {
		calls++
		repainted <- struct{}{}
	})

	task.onPacket(nil, map[netip.Addr]struct{}{}, netip.AddrPort{}, []byte("not a valid frame"))

	select {
	case <-repainted:
	case <-time.After(time.Second):
		t.Fatal("repaint callback was never invoked")
	}
	if calls != 1 {
		t.Fatalf("repaint called %d times, want 1", calls)
	}
	waitEvent(t, events)
}
