package tor

import (
	"strconv"
	"strings"

	"golang.org/x/net/proxy"
)

const socksListenersKey = "net/listeners/socks"

// SocksListener is a single "net/listeners/socks" entry the daemon reports,
// already split into the network ("tcp" or "unix") and address dial would
// expect.
type SocksListener struct {
	Network string
	Address string
}

// SocksListeners queries the daemon for its configured SOCKS listeners via
// GETINFO. Grounded on bulb's Conn.SocksPort, generalized from "the first
// listener" to every listener the daemon reports.
func (c *Controller) SocksListeners() ([]SocksListener, error) {
	info, err := c.GetInfo(socksListenersKey)
	if err != nil {
		return nil, err
	}

	raw, ok := info.Get(socksListenersKey)
	if !ok || raw == "" {
		return nil, NewProtocolError("no SOCKS listeners configured")
	}

	var listeners []SocksListener
	for _, entry := range strings.Fields(raw) {
		entry, err := strconv.Unquote(entry)
		if err != nil {
			entry = strings.Trim(entry, `"`)
		}

		if network, addr, ok := strings.Cut(entry, ":"); ok && network == "unix" {
			listeners = append(listeners, SocksListener{"unix", addr})
			continue
		}
		listeners = append(listeners, SocksListener{"tcp", entry})
	}

	if len(listeners) == 0 {
		return nil, NewProtocolError("failed to parse SOCKS listeners")
	}
	return listeners, nil
}

// Dialer returns a proxy.Dialer that routes connections through the
// daemon's first configured SOCKS listener, for callers that want to make
// application traffic flow over the same Tor instance this package is
// controlling.
func (c *Controller) Dialer(auth *proxy.Auth) (proxy.Dialer, error) {
	listeners, err := c.SocksListeners()
	if err != nil {
		return nil, err
	}

	first := listeners[0]
	return proxy.SOCKS5(first.Network, first.Address, auth, proxy.Direct)
}
