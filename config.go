package tor

import (
	"time"

	"github.com/btcsuite/btclog"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const (
	// defaultDialTimeout bounds how long dialing the control port may
	// take before DialPort/DialSocketFile give up.
	defaultDialTimeout = 10 * time.Second

	// defaultRequestTimeout bounds how long a single Msg call may wait
	// for its synchronous reply before it is abandoned.
	defaultRequestTimeout = 30 * time.Second

	// defaultDispatchQueueLen is the capacity of the bounded event
	// dispatch queue described in spec.md §5; once full, the oldest
	// queued event is dropped to make room for the newest.
	defaultDispatchQueueLen = 256
)

// config collects every dial-time option a Controller accepts. It is built
// up by applying a caller's DialOptions over the defaults.
type config struct {
	network         string
	address         string
	dialTimeout     time.Duration
	requestTimeout  time.Duration
	password        string
	logger          btclog.Logger
	registry        *prometheus.Registry
	cmdLimiter      *rate.Limiter
	dispatchQueueLn int
}

func defaultConfig() *config {
	return &config{
		network:         "tcp",
		dialTimeout:     defaultDialTimeout,
		requestTimeout:  defaultRequestTimeout,
		dispatchQueueLn: defaultDispatchQueueLen,
	}
}

// DialOption customizes how a Controller dials and authenticates with a
// Tor control port.
type DialOption func(*config)

// WithSocketFile directs the controller to dial a unix domain socket
// instead of the default TCP address.
func WithSocketFile(path string) DialOption {
	return func(c *config) {
		c.network = "unix"
		c.address = path
	}
}

// WithDialTimeout bounds how long the initial connection may take.
func WithDialTimeout(d time.Duration) DialOption {
	return func(c *config) { c.dialTimeout = d }
}

// WithRequestTimeout bounds how long any single synchronous command may
// take to receive its reply.
func WithRequestTimeout(d time.Duration) DialOption {
	return func(c *config) { c.requestTimeout = d }
}

// WithPassword supplies a PASSWORD authentication credential, preferred
// over COOKIE/SAFECOOKIE whenever the daemon advertises it.
func WithPassword(password string) DialOption {
	return func(c *config) { c.password = password }
}

// WithLogger replaces the package-level logger (via UseLogger) when the
// controller is dialed, so it applies to every controller in the process,
// not only this one.
func WithLogger(logger btclog.Logger) DialOption {
	return func(c *config) { c.logger = logger }
}

// WithMetricsRegistry registers this controller's prometheus collectors
// against the given registry. Without it the collectors are still updated
// but are not registered with any registry, the global default included.
func WithMetricsRegistry(reg *prometheus.Registry) DialOption {
	return func(c *config) { c.registry = reg }
}

// WithCommandRateLimit bounds the rate at which commands may be written to
// the control port.
func WithCommandRateLimit(limiter *rate.Limiter) DialOption {
	return func(c *config) { c.cmdLimiter = limiter }
}

// WithDispatchQueueLen overrides the capacity of the bounded event
// dispatch queue.
func WithDispatchQueueLen(n int) DialOption {
	return func(c *config) { c.dispatchQueueLn = n }
}
