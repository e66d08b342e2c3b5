// Package otcfg holds otchatd's configuration, unmarshaled from environment
// variables the same way the teacher's pkg/atlas.Config does, trimmed down
// to the handful of fields this daemon actually needs.
package otcfg

import (
	"fmt"
	"net/netip"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Config contains otchatd's configuration. The env struct tag contains the
// environment variable name and, after an =, the default value if missing
// (empty if the tag has no =).
type Config struct {
	// The username this host advertises to peers. Required.
	Username string `env:"OTCHATD_USERNAME"`

	// The UDP port to listen and broadcast on.
	Port uint16 `env:"OTCHATD_PORT=12345"`

	// The minimum log level (e.g. trace, debug, info, warn, error, fatal).
	LogLevel zerolog.Level `env:"OTCHATD_LOG_LEVEL=info"`

	// Whether to use pretty (console-writer) logs instead of JSON.
	LogPretty bool `env:"OTCHATD_LOG_PRETTY=true"`

	// If set, serves Prometheus metrics and a debug peer monitor on this
	// address (e.g. 127.0.0.1:9090). Disabled if empty.
	DebugAddr string `env:"OTCHATD_DEBUG_ADDR"`
}

// UnmarshalEnv unmarshals an array of "KEY=value" environment variable
// strings into c, setting default values for any not present.
func (c *Config) UnmarshalEnv(es []string) error {
	em := map[string]string{}
	for _, e := range es {
		if strings.HasPrefix(e, "OTCHATD_") {
			if k, v, ok := strings.Cut(e, "="); ok {
				em[k] = v
			}
		}
	}

	cv := reflect.ValueOf(c).Elem()
	for _, ctf := range reflect.VisibleFields(cv.Type()) {
		env, ok := ctf.Tag.Lookup("env")
		if !ok {
			continue
		}

		key, val, _ := strings.Cut(env, "=")
		if v, exists := em[key]; exists {
			val = v
			delete(em, key)
		}

		cvf := cv.FieldByName(ctf.Name)
		switch cvf.Interface().(type) {
		case string:
			cvf.SetString(val)
		case uint16:
			if val == "" {
				cvf.SetUint(0)
			} else if v, err := strconv.ParseUint(val, 10, 16); err == nil {
				cvf.SetUint(v)
			} else {
				return fmt.Errorf("env %s: parse %q: %w", key, val, err)
			}
		case bool:
			if val == "" {
				cvf.SetBool(false)
			} else if v, err := strconv.ParseBool(val); err == nil {
				cvf.SetBool(v)
			} else {
				return fmt.Errorf("env %s: parse %q: %w", key, val, err)
			}
		case zerolog.Level:
			if v, err := zerolog.ParseLevel(val); err == nil {
				cvf.Set(reflect.ValueOf(v))
			} else {
				return fmt.Errorf("env %s: parse %q: %w", key, val, err)
			}
		default:
			return fmt.Errorf("unhandled type %T (%s)", cvf.Interface(), env)
		}
	}
	for key, val := range em {
		if val != "" {
			return fmt.Errorf("unknown environment variable %q", key)
		}
	}
	if c.Username == "" {
		return fmt.Errorf("OTCHATD_USERNAME is required")
	}
	return nil
}

// DebugListenAddrPort parses DebugAddr, returning ok=false if unset.
func (c *Config) DebugListenAddrPort() (addr netip.AddrPort, ok bool) {
	if c.DebugAddr == "" {
		return netip.AddrPort{}, false
	}
	a, err := netip.ParseAddrPort(c.DebugAddr)
	if err != nil {
		return netip.AddrPort{}, false
	}
	return a, true
}
