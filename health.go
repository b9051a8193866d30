package tor

import (
	"time"

	"github.com/lightningnetwork/lnd/healthcheck"
	"github.com/lightningnetwork/lnd/ticker"
)

// defaultHealthCheckInterval is how often the liveness observation below
// re-runs Controller.Ping once added to a healthcheck.Monitor, and the
// KeepAlive period when none is given.
const defaultHealthCheckInterval = time.Minute

// defaultHealthCheckTimeout bounds how long a single liveness probe may
// take before it is considered failed.
const defaultHealthCheckTimeout = 10 * time.Second

// Ping verifies the control connection is still responsive by sending
// GETINFO version and checking for a reply, independent of the cheaper
// (and potentially stale) IsAlive socket flag.
func (c *Controller) Ping() error {
	_, err := c.GetInfo("version")
	return err
}

// HealthCheckObservation builds an lnd/healthcheck Observation that pings
// this controller's control connection on the given schedule, for
// embedding into a daemon's own healthcheck.Monitor alongside its other
// liveness checks (chain backend, wallet, etc).
func (c *Controller) HealthCheckObservation(interval, timeout, backoff time.Duration, retries int) *healthcheck.Observation {
	if interval <= 0 {
		interval = defaultHealthCheckInterval
	}
	if timeout <= 0 {
		timeout = defaultHealthCheckTimeout
	}

	return healthcheck.NewObservation(
		"tor controller",
		c.Ping,
		interval,
		timeout,
		backoff,
		retries,
	)
}

// KeepAlive runs Ping on the given interval until stop is closed, logging
// (rather than surfacing) any failure so a caller can fire-and-forget it
// alongside a long-lived controller. It ticks on an lnd/ticker it creates
// itself; no other ticker can be passed in.
func (c *Controller) KeepAlive(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = defaultHealthCheckInterval
	}

	t := ticker.New(interval)
	t.Resume()
	defer t.Stop()

	for {
		select {
		case <-t.Ticks():
			if err := c.Ping(); err != nil {
				log.Warnf("keep-alive ping failed: %v", err)
			}
		case <-stop:
			return
		}
	}
}
