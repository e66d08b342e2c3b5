// Package otnet implements the OTMP network task: the single goroutine that
// owns the UDP socket and the per-peer oblivious transfer state, bridging
// between a caller's Action/Event channels and the wire protocol.
//
// Grounded on the source's net/task.rs select-loop structure (realized here
// as a dedicated goroutine plus a blocking reader goroutine feeding a
// channel, since net.UDPConn has no select-style async read) and the
// teacher's pkg/nspkt.Listener for the bind/broadcast/metrics idiom.
package otnet

import (
	"errors"
	"net"
	"net/netip"
	"sync"

	"github.com/rs/zerolog"

	"github.com/packetloom/otmp/pkg/otcurve"
	"github.com/packetloom/otmp/pkg/otproto"
	"github.com/packetloom/otmp/pkg/otwire"
)

// recvBufferSize is the maximum UDP datagram size the task will read,
// matching the source's fixed 2048-byte buffer.
const recvBufferSize = 2048

type datagram struct {
	addr netip.AddrPort
	data []byte
	err  error
}

// Task owns the UDP socket and per-peer OT exchange state for the lifetime
// of Run. Every field it touches after Run starts is only ever read or
// written from the Run goroutine; the reader goroutine spawned by Run only
// ever sends on the datagram channel, never touching this struct.
type Task struct {
	logger zerolog.Logger
	name   otproto.Username
	port   uint16

	actions <-chan otproto.Action
	events  chan<- otproto.Event

	// repaint is invoked once after every emitted event, to wake a
	// potentially idle UI. It must not block; nil is a valid no-op.
	repaint func()

	Metrics *taskMetrics

	states map[netip.AddrPort]otcurve.MessageState

	// resolveBroadcast resolves the LAN broadcast address for Broadcast and
	// Disconnect actions. Overridable in tests to avoid depending on the
	// test host's actual network interfaces.
	resolveBroadcast func(port uint16) (netip.AddrPort, error)

	ready chan netip.AddrPort

	// monMu guards mon, the set of live debug-monitor subscribers. It is
	// independent of the Run goroutine's single-owner state: subscribers
	// register/unregister from HTTP handler goroutines, so unlike the rest
	// of Task it needs its own lock, mirroring pkg/nspkt.Listener's mon map.
	monMu sync.Mutex
	mon   map[chan<- MonitorPacket]struct{}
}

// NewTask creates a network task that will bind to port, identify itself as
// name, and bridge actions/events with the caller. repaint, if non-nil, is
// called once after every event the task emits, to wake a potentially idle
// UI; it must return promptly, since it runs on the task's own goroutine.
func NewTask(actions <-chan otproto.Action, events chan<- otproto.Event, name otproto.Username, port uint16, logger zerolog.Logger, repaint func()) *Task {
	return &Task{
		logger:           logger,
		name:             name,
		port:             port,
		actions:          actions,
		events:           events,
		repaint:          repaint,
		Metrics:          newTaskMetrics(),
		states:           make(map[netip.AddrPort]otcurve.MessageState),
		resolveBroadcast: broadcastAddr,
		ready:            make(chan netip.AddrPort, 1),
		mon:              make(map[chan<- MonitorPacket]struct{}),
	}
}

// Ready returns a channel receiving the task's bound local address once the
// socket has been created successfully. Useful when binding to port 0 for
// an ephemeral port, and for tests.
func (t *Task) Ready() <-chan netip.AddrPort {
	return t.ready
}

// Run binds the socket and processes actions and inbound packets until the
// action channel is closed, a Disconnect action is handled, or the socket
// fails irrecoverably. It blocks the calling goroutine and should be run in
// its own goroutine by the caller (see pkg/otmp.Host).
func (t *Task) Run() {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: int(t.port)})
	if err != nil {
		t.logger.Warn().Err(err).Msg("unable to create socket")
		t.sendEvent(otproto.ErrorEvent(&otproto.SocketBindError{Err: err}))
		return
	}
	defer conn.Close()

	if err := conn.SetBroadcast(true); err != nil {
		t.logger.Warn().Err(err).Msg("unable to set broadcast")
		t.sendEvent(otproto.ErrorEvent(&otproto.SocketBindError{Err: err}))
		return
	}

	t.logger.Info().Stringer("addr", conn.LocalAddr()).Msg("network task listening")

	if udpAddr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		// t.port may have been 0 (request an ephemeral port); track the
		// port the OS actually bound so isOwnBroadcast's source-port
		// comparison keeps working against loopback traffic.
		t.port = uint16(udpAddr.Port)

		ip := udpAddr.IP
		if ip.IsUnspecified() {
			// Bound to INADDR_ANY; report loopback as a concrete,
			// reachable stand-in (this value is only used for logging
			// and by tests, never for routing production traffic).
			ip = net.IPv4(127, 0, 0, 1)
		}
		if addr, ok := netip.AddrFromSlice(ip.To4()); ok {
			t.ready <- netip.AddrPortFrom(addr, uint16(udpAddr.Port))
		}
	}

	local, err := localAddrSet()
	if err != nil {
		t.logger.Warn().Err(err).Msg("unable to enumerate local addresses for loopback suppression")
		local = map[netip.Addr]struct{}{}
	}

	datagrams := make(chan datagram, 100)
	go t.readLoop(conn, datagrams)

	for {
		select {
		case dg, ok := <-datagrams:
			if !ok {
				return
			}
			if dg.err != nil {
				t.logger.Debug().Err(dg.err).Msg("socket read error")
				t.sendEvent(otproto.ErrorEvent(&otproto.SocketError{Err: dg.err}))
				continue
			}
			t.onPacket(conn, local, dg.addr, dg.data)

		case action, ok := <-t.actions:
			if !ok {
				t.logger.Error().Msg("action channel closed before disconnect")
				return
			}
			if stop := t.onAction(conn, action); stop {
				return
			}
		}
	}
}

// readLoop blocks on ReadFromUDPAddrPort and forwards each datagram (or
// read error) to out, until the socket is closed. It never touches Task's
// per-peer state; that ownership stays exclusively with the Run goroutine,
// per the source's single-select design.
func (t *Task) readLoop(conn *net.UDPConn, out chan<- datagram) {
	defer close(out)
	for {
		buf := make([]byte, recvBufferSize)
		n, addr, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			out <- datagram{err: err}
			continue
		}
		out <- datagram{addr: addr, data: buf[:n]}
	}
}

func (t *Task) onPacket(conn *net.UDPConn, local map[netip.Addr]struct{}, addr netip.AddrPort, data []byte) {
	t.Metrics.rxCount.Inc()
	t.Metrics.rxBytes.Add(len(data))

	msg, err := otwire.Decode(data)
	if err != nil {
		t.Metrics.rxInvalid.Inc()
		t.logger.Debug().Stringer("addr", addr).Err(err).Msg("received malformed packet")
		t.sendEvent(otproto.ErrorEvent(err))
		return
	}
	t.notifyMonitor(true, addr, msg.Type(), len(data))

	switch msg.Type() {
	case otwire.TypeBroadcastGreet:
		if t.isOwnBroadcast(local, addr) {
			return
		}
		peer := otproto.NewNamedPeer(addr, msg.Username())
		t.sendEvent(otproto.ConnectedEvent(peer))
		t.sendTo(conn, addr, otwire.NewBroadcastResponse(t.name))

	case otwire.TypeBroadcastResponse:
		peer := otproto.NewNamedPeer(addr, msg.Username())
		t.sendEvent(otproto.ConnectedEvent(peer))

	case otwire.TypeBroadcastBye:
		if t.isOwnBroadcast(local, addr) {
			return
		}
		delete(t.states, addr)
		t.sendEvent(otproto.DisconnectedEvent(addr))

	case otwire.TypeGreet:
		t.onGreet(conn, addr, msg.Point())

	case otwire.TypeResponse:
		t.onResponse(conn, addr, msg.Point())

	case otwire.TypeData:
		t.onData(addr, msg)
	}
}

func (t *Task) onGreet(conn *net.UDPConn, addr netip.AddrPort, wire [33]byte) {
	point, err := otcurve.Decompress(wire)
	if err != nil {
		t.sendEvent(otproto.ErrorEvent(err))
		return
	}
	response, state, err := otcurve.OnGreeting(point)
	if err != nil {
		t.sendEvent(otproto.ErrorEvent(err))
		return
	}
	t.states[addr] = state
	t.sendTo(conn, addr, otwire.NewResponse(response.Compress()))
}

func (t *Task) onResponse(conn *net.UDPConn, addr netip.AddrPort, wire [33]byte) {
	state, ok := t.states[addr]
	if !ok {
		t.sendEvent(otproto.ErrorEvent(&otproto.IncorrectMessageError{Addr: addr}))
		return
	}
	point, err := otcurve.Decompress(wire)
	if err != nil {
		t.sendEvent(otproto.ErrorEvent(err))
		return
	}
	c0, c1, err := state.OnResponse(point)
	if err != nil {
		t.sendEvent(otproto.ErrorEvent(&otproto.IncorrectMessageError{Addr: addr}))
		return
	}
	delete(t.states, addr)
	t.sendTo(conn, addr, otwire.NewData(c0, c1))
}

func (t *Task) onData(addr netip.AddrPort, msg otwire.Message) {
	state, ok := t.states[addr]
	if !ok {
		t.sendEvent(otproto.ErrorEvent(&otproto.IncorrectMessageError{Addr: addr}))
		return
	}
	c0, c1 := msg.Data()
	message, err := state.OnMessages(c0, c1)
	if err != nil {
		t.sendEvent(otproto.ErrorEvent(&otproto.IncorrectMessageError{Addr: addr}))
		return
	}
	delete(t.states, addr)
	t.Metrics.transfersComplete.Inc()
	t.sendEvent(otproto.MessageEvent(addr, message))
}

// onAction handles a single caller action and reports whether the task
// should stop running.
func (t *Task) onAction(conn *net.UDPConn, action otproto.Action) (stop bool) {
	switch {
	case action.IsBroadcast():
		bc, err := t.resolveBroadcast(t.port)
		if err != nil {
			t.sendEvent(otproto.ErrorEvent(err))
			return false
		}
		t.sendTo(conn, bc, otwire.NewBroadcastGreet(t.name))
		return false

	case action.IsDisconnect():
		bc, err := t.resolveBroadcast(t.port)
		if err != nil {
			t.sendEvent(otproto.ErrorEvent(err))
			return true
		}
		t.sendTo(conn, bc, otwire.NewBroadcastBye())
		return true

	default:
		addr, m0, m1, ok := action.Send()
		if !ok {
			return false
		}
		point, state, err := otcurve.SendMessage(m0, m1)
		if err != nil {
			t.sendEvent(otproto.ErrorEvent(err))
			return false
		}
		t.states[addr] = state
		t.sendTo(conn, addr, otwire.NewGreet(point.Compress()))
		return false
	}
}

func (t *Task) sendTo(conn *net.UDPConn, addr netip.AddrPort, msg otwire.Message) {
	b, err := otwire.Encode(nil, msg)
	if err != nil {
		t.logger.Warn().Err(err).Msg("failed to encode outgoing message")
		return
	}
	n, err := conn.WriteToUDPAddrPort(b, addr)
	if err != nil {
		t.Metrics.txErr.Inc()
		t.logger.Debug().Stringer("addr", addr).Err(err).Msg("failed to send packet")
		t.sendEvent(otproto.ErrorEvent(&otproto.SocketError{Err: err}))
		return
	}
	t.Metrics.txCount.Inc()
	t.Metrics.txBytes.Add(n)
	t.notifyMonitor(false, addr, msg.Type(), n)
}

func (t *Task) sendEvent(ev otproto.Event) {
	if ev.Kind == otproto.EventConnected {
		t.Metrics.peersConnected.Inc()
	} else if ev.Kind == otproto.EventDisconnected {
		t.Metrics.peersDisconnected.Inc()
	}
	select {
	case t.events <- ev:
	default:
		t.logger.Warn().Msg("event channel full, dropping event")
	}
	if t.repaint != nil {
		t.repaint()
	}
}

// isOwnBroadcast reports whether a broadcast packet was actually this host's
// own, looped back by the OS. Grounded on the source's is_own_broadcast
// check: the source port must match this task's bound port AND the source
// address must be one of the host's own local addresses.
func (t *Task) isOwnBroadcast(local map[netip.Addr]struct{}, addr netip.AddrPort) bool {
	if addr.Port() != t.port {
		return false
	}
	_, ok := local[addr.Addr().Unmap()]
	return ok
}
