package otnet

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/netip"

	"github.com/packetloom/otmp/pkg/otwire"
)

// MonitorPacket describes a single sent or received OTMP frame, for the
// debug monitor endpoint. Unlike pkg/nspkt's equivalent it carries no
// decrypted payload: a peer's choice bit must stay unobservable even to
// someone watching this host's own debug output.
type MonitorPacket struct {
	In     bool
	Remote netip.AddrPort
	Type   otwire.Type
	Size   int
}

func (t *Task) notifyMonitor(in bool, addr netip.AddrPort, typ otwire.Type, size int) {
	t.monMu.Lock()
	defer t.monMu.Unlock()
	if len(t.mon) == 0 {
		return
	}
	pkt := MonitorPacket{In: in, Remote: addr, Type: typ, Size: size}
	for c := range t.mon {
		select {
		case c <- pkt:
		default:
		}
	}
}

// Monitor writes sent/received packet summaries to c until ctx is
// cancelled, discarding them if c doesn't have room.
func (t *Task) Monitor(ctx context.Context, c chan<- MonitorPacket) {
	t.monMu.Lock()
	t.mon[c] = struct{}{}
	t.monMu.Unlock()

	<-ctx.Done()

	t.monMu.Lock()
	delete(t.mon, c)
	t.monMu.Unlock()
}

const monitorHTML = `<!DOCTYPE html>
<html>
<head><title>otchatd monitor</title></head>
<body>
<h1>otchatd packet monitor</h1>
<table id="pkts"><thead><tr><th>dir</th><th>remote</th><th>type</th><th>bytes</th></tr></thead><tbody></tbody></table>
<script>
var tbody = document.getElementById("pkts").tBodies[0];
var es = new EventSource(location.href + (location.search ? "&" : "?") + "sse");
es.addEventListener("packet", function(ev) {
	var p = JSON.parse(ev.data);
	var row = tbody.insertRow(0);
	row.insertCell().textContent = p.in ? "in" : "out";
	row.insertCell().textContent = p.remote;
	row.insertCell().textContent = p.type;
	row.insertCell().textContent = p.size;
	while (tbody.rows.length > 200) tbody.deleteRow(tbody.rows.length - 1);
});
</script>
</body>
</html>`

// DebugMonitorHandler returns a HTTP handler that serves a page streaming
// this task's in/out packet summaries in real time via server-sent events.
func DebugMonitorHandler(t *Task) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "private, no-cache, no-store")

		if r.URL.RawQuery != "sse" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			io.WriteString(w, monitorHTML)
			return
		}

		f, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "cannot stream events", http.StatusInternalServerError)
			return
		}

		c := make(chan MonitorPacket, 16)
		go t.Monitor(r.Context(), c)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		e := json.NewEncoder(w)
		for p := range c {
			io.WriteString(w, "event: packet\ndata: ")
			e.Encode(map[string]any{
				"in":     p.In,
				"remote": p.Remote.String(),
				"type":   p.Type.String(),
				"size":   p.Size,
			})
			io.WriteString(w, "\n")
			f.Flush()
		}
	})
}
