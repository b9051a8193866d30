package tor

// The interfaces below sketch the boundary between this package and
// collaborators this package deliberately does not implement: launching a
// Tor process, discovering an authentication cookie without being told its
// path, publishing a hidden service's descriptor, and automatically
// choosing which circuit a stream should ride. A caller wires its own
// implementation of whichever of these it needs; this package only talks
// to an already-running daemon over an already-open control port.

// ProcessLauncher starts and supervises a Tor process, returning the
// control port address a Controller can then dial. This package expects a
// daemon to already be listening; it never starts one itself.
type ProcessLauncher interface {
	// Launch starts a Tor process from the given torrc path and blocks
	// until its control port is accepting connections, returning the
	// network and address to dial.
	Launch(torrcPath string) (network, address string, err error)

	// Shutdown terminates the process previously started by Launch.
	Shutdown() error
}

// CookieFinder locates an authentication cookie file when a daemon's
// PROTOCOLINFO reply omits COOKIEFILE or reports a path this process
// cannot read directly (for instance, a Tor running as a different user
// whose cookie is exposed through a side channel). Authenticate always
// reads the path PROTOCOLINFO reports and never probes for one itself.
type CookieFinder interface {
	// FindCookie returns the authentication cookie bytes for the named
	// method ("COOKIE" or "SAFECOOKIE").
	FindCookie(method string) ([]byte, error)
}

// HiddenServicePublisher uploads a hidden service descriptor to the
// directory ring. This package has no ADD_ONION/DEL_ONION wrappers and
// publishes nothing itself.
type HiddenServicePublisher interface {
	Publish(serviceID string, descriptor []byte) error
}

// StreamAttacher decides which circuit a newly-launched stream should be
// attached to, reacting to StreamEvent notifications with Controller's
// AttachStream. This package delivers the events and exposes the command;
// the policy for choosing a circuit belongs to the caller.
type StreamAttacher interface {
	// SelectCircuit returns the circuit ID a stream destined for target
	// should be attached to.
	SelectCircuit(streamID, target string) (circuitID string, err error)
}
