// Command otchatd is a line-oriented CLI front end for OTMP: it joins the
// LAN, prints discovered peers and completed transfers, and lets the
// operator initiate an oblivious transfer by typing a peer address and two
// candidate messages.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-envparse"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/packetloom/otmp/pkg/otcfg"
	"github.com/packetloom/otmp/pkg/otmp"
	"github.com/packetloom/otmp/pkg/otproto"
)

var opt struct {
	Help bool
}

func init() {
	pflag.BoolVarP(&opt.Help, "help", "h", false, "Show this help text")
}

func main() {
	pflag.Parse()

	if pflag.NArg() > 1 || opt.Help {
		fmt.Printf("usage: %s [options] [env_file]\n\noptions:\n%s\nnote: if env_file is provided, config from the environment is ignored\n", os.Args[0], pflag.CommandLine.FlagUsages())
		if opt.Help {
			os.Exit(2)
		}
		os.Exit(0)
	}

	var e []string
	if pflag.NArg() == 0 {
		e = os.Environ()
	} else {
		x, err := readEnv(pflag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: read env file: %v\n", err)
			os.Exit(1)
		}
		e = x
	}

	var c otcfg.Config
	if err := c.UnmarshalEnv(e); err != nil {
		fmt.Fprintf(os.Stderr, "error: parse config: %v\n", err)
		os.Exit(1)
	}

	var cw io.Writer = os.Stderr
	if c.LogPretty {
		cw = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	l := zerolog.New(cw).Level(c.LogLevel).With().Timestamp().Logger()

	name, err := otproto.NewUsername(c.Username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid username: %v\n", err)
		os.Exit(1)
	}

	h := otmp.NewHost(name, c.Port, l, nil)

	if addr, ok := c.DebugListenAddrPort(); ok {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			h.WritePrometheus(w)
		})
		mux.Handle("/monitor", h.DebugMonitorHandler())
		go func() {
			l.Info().Stringer("addr", addr).Msg("starting debug listener")
			if err := http.ListenAndServe(addr.String(), mux); err != nil {
				l.Error().Err(err).Msg("debug listener failed")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := make(chan otproto.Event, 1)
	go pollEvents(ctx, h, events)

	fmt.Printf("joined as %q on port %d, type \"help\" for commands\n", name, c.Port)

	input := make(chan string)
	go readLines(input)

	for {
		select {
		case <-ctx.Done():
			if err := h.Disconnect(); err != nil {
				fmt.Fprintf(os.Stderr, "error: disconnect: %v\n", err)
			}
			return

		case ev := <-events:
			printEvent(ev)

		case line, ok := <-input:
			if !ok {
				if err := h.Disconnect(); err != nil {
					fmt.Fprintf(os.Stderr, "error: disconnect: %v\n", err)
				}
				return
			}
			handleCommand(h, line)
		}
	}
}

func pollEvents(ctx context.Context, h *otmp.Host, out chan<- otproto.Event) {
	for {
		if ev, ok := h.PollEvent(); ok {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func printEvent(ev otproto.Event) {
	switch ev.Kind {
	case otproto.EventConnected:
		fmt.Printf("peer connected: %s\n", ev.Peer)
	case otproto.EventDisconnected:
		fmt.Printf("peer disconnected: %s\n", ev.Addr)
	case otproto.EventMessage:
		fmt.Printf("received from %s: %s\n", ev.Addr, ev.Message)
	case otproto.EventError:
		fmt.Fprintf(os.Stderr, "network error: %v\n", ev.Err)
	}
}

func readLines(out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		out <- sc.Text()
	}
}

func handleCommand(h *otmp.Host, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "help":
		fmt.Println("commands: refresh | send <addr> <m0> <m1> | quit")

	case "refresh":
		if err := h.RefreshHosts(); err != nil {
			fmt.Fprintf(os.Stderr, "error: refresh: %v\n", err)
		}

	case "send":
		if len(fields) != 4 {
			fmt.Println("usage: send <addr> <m0> <m1>")
			return
		}
		addr, err := netip.ParseAddrPort(fields[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid address: %v\n", err)
			return
		}
		m0, err := otproto.NewUserMessage(fields[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid m0: %v\n", err)
			return
		}
		m1, err := otproto.NewUserMessage(fields[3])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid m1: %v\n", err)
			return
		}
		if err := h.Send(addr, m0, m1); err != nil {
			fmt.Fprintf(os.Stderr, "error: send: %v\n", err)
		}

	case "quit":
		os.Exit(0)

	default:
		fmt.Printf("unknown command %q, type \"help\" for a list\n", fields[0])
	}
}

func readEnv(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := envparse.Parse(f)
	if err != nil {
		return nil, err
	}

	var r []string
	for k, v := range m {
		r = append(r, k+"="+v)
	}
	return r, nil
}
