// Package otmp provides Host, the single entry point a UI or CLI uses to
// join the oblivious transfer chat: it owns the bounded Action/Event
// channels and the dedicated goroutine running the network task, mirroring
// the source's NetworkHost/mpsc-channel bridge with Go channels and a plain
// goroutine in place of a second Tokio runtime on its own OS thread.
package otmp

import (
	"io"
	"net/http"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/packetloom/otmp/pkg/otnet"
	"github.com/packetloom/otmp/pkg/otproto"
)

// actionQueueCapacity bounds the Action/Event channels, matching the
// source's bounded mpsc channels.
const actionQueueCapacity = 100

// Host bridges a caller (UI or CLI event loop) to the network task. The
// network task is the single owner of the socket and per-peer OT state;
// Host only ever communicates with it over channels.
type Host struct {
	mu      sync.Mutex
	closed  bool
	name    otproto.Username
	actions chan otproto.Action
	events  chan otproto.Event
	done    chan struct{}
	task    *otnet.Task

	panicked atomic.Bool
}

// NewHost binds a network task on port under name and starts it in a
// dedicated goroutine, then immediately requests a broadcast to advertise
// this host's presence on the LAN, mirroring the source's NetworkHost
// construction which kicks off discovery right away. repaint, if non-nil,
// is called once after every event the task emits, to wake a potentially
// idle UI; it must return promptly.
func NewHost(name otproto.Username, port uint16, logger zerolog.Logger, repaint func()) *Host {
	actions := make(chan otproto.Action, actionQueueCapacity)
	events := make(chan otproto.Event, actionQueueCapacity)

	task := otnet.NewTask(actions, events, name, port, logger, repaint)

	h := &Host{
		name:    name,
		actions: actions,
		events:  events,
		done:    make(chan struct{}),
		task:    task,
	}

	go func() {
		defer close(h.done)
		defer func() {
			if r := recover(); r != nil {
				h.panicked.Store(true)
				logger.Error().Interface("panic", r).Msg("network task panicked")
			}
		}()
		task.Run()
	}()

	h.actions <- otproto.BroadcastAction()
	return h
}

// Name returns the local display name this host advertises to peers.
func (h *Host) Name() otproto.Username {
	return h.name
}

// WritePrometheus writes the underlying network task's counters in
// Prometheus text format to w, for an optional debug metrics endpoint.
func (h *Host) WritePrometheus(w io.Writer) {
	h.task.Metrics.WritePrometheus(w)
}

// DebugMonitorHandler returns a HTTP handler streaming this host's sent and
// received packet summaries in real time, for an optional debug endpoint.
func (h *Host) DebugMonitorHandler() http.Handler {
	return otnet.DebugMonitorHandler(h.task)
}

// RefreshHosts re-broadcasts a greeting to re-discover peers on the LAN.
func (h *Host) RefreshHosts() error {
	return h.submit(otproto.BroadcastAction())
}

// Send begins an oblivious transfer of m0/m1 to addr: the peer will recover
// exactly one of the two messages, and neither this host nor the peer's
// earlier choice of which is observable by the other side.
func (h *Host) Send(addr netip.AddrPort, m0, m1 otproto.UserMessage) error {
	return h.submit(otproto.SendAction(addr, m0, m1))
}

func (h *Host) submit(a otproto.Action) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return otproto.ErrTaskClosed
	}

	select {
	case h.actions <- a:
		return nil
	case <-h.done:
		return otproto.ErrTaskClosed
	}
}

// Disconnect announces departure to the LAN and shuts down the network
// task, waiting for its goroutine to exit. It is safe to call at most once;
// subsequent calls return ErrTaskClosed.
func (h *Host) Disconnect() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return otproto.ErrTaskClosed
	}
	h.closed = true
	h.mu.Unlock()

	select {
	case h.actions <- otproto.DisconnectAction():
	case <-h.done:
	}
	close(h.actions)
	<-h.done

	if h.panicked.Load() {
		return otproto.ErrTaskPanic
	}
	return nil
}

// PollEvent returns the next pending event and true, or a zero Event and
// false if none is currently available. Callers (a UI redraw loop, or a CLI
// polling on a ticker) call this repeatedly to drain the queue.
func (h *Host) PollEvent() (otproto.Event, bool) {
	select {
	case ev, ok := <-h.events:
		return ev, ok
	default:
		return otproto.Event{}, false
	}
}
