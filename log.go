package tor

import (
	"github.com/btcsuite/btclog"
)

// log is the package-level logger used throughout torctrl. It is disabled
// by default; callers that want output should call UseLogger with a logger
// backed by their own application's log backend.
var log btclog.Logger

func init() {
	DisableLog()
}

// DisableLog disables all library log output. Logging is disabled by
// default until UseLogger is called.
func DisableLog() {
	log = btclog.Disabled
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}
