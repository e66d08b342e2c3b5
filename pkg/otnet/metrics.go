package otnet

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// taskMetrics tracks packet and action counters for a running Task, exposed
// as Prometheus text via WritePrometheus. Grounded on the teacher's
// pkg/nspkt.Listener metrics block, adapted from raw atomics to
// VictoriaMetrics/metrics counters since this package doesn't need the
// custom locking nspkt.Listener has around its active socket.
type taskMetrics struct {
	set *metrics.Set

	rxCount   *metrics.Counter
	rxInvalid *metrics.Counter
	rxBytes   *metrics.Counter

	txCount *metrics.Counter
	txErr   *metrics.Counter
	txBytes *metrics.Counter

	peersConnected    *metrics.Counter
	peersDisconnected *metrics.Counter
	transfersComplete *metrics.Counter
}

func newTaskMetrics() *taskMetrics {
	set := metrics.NewSet()
	return &taskMetrics{
		set:               set,
		rxCount:           set.NewCounter(`otmp_rx_count`),
		rxInvalid:         set.NewCounter(`otmp_rx_count{result="invalid"}`),
		rxBytes:           set.NewCounter(`otmp_rx_bytes`),
		txCount:           set.NewCounter(`otmp_tx_count`),
		txErr:             set.NewCounter(`otmp_tx_err_count`),
		txBytes:           set.NewCounter(`otmp_tx_bytes`),
		peersConnected:    set.NewCounter(`otmp_peer_events{type="connected"}`),
		peersDisconnected: set.NewCounter(`otmp_peer_events{type="disconnected"}`),
		transfersComplete: set.NewCounter(`otmp_transfers_total`),
	}
}

// WritePrometheus writes the task's metrics in Prometheus text format to w.
func (m *taskMetrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}
