package main

import (
	"github.com/coreos/go-systemd/v22/daemon"
)

// notifySystemdReady tells systemd (when torctl was started as a Type=notify
// unit supervising a Tor instance alongside it) that startup, including
// authentication against the control port, has completed. It is a no-op
// outside of systemd, matching daemon.SdNotify's own behavior when
// NOTIFY_SOCKET isn't set.
func notifySystemdReady() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
}

// notifySystemdStopping tells systemd this process is shutting down, so
// any Watchdog timer is cleared before Close runs.
func notifySystemdStopping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}
