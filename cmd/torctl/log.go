package main

import (
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
	tor "github.com/lightninglabs/torctrl"
)

// logWriter is the rotating file + stdout sink every subsystem logger
// writes through.
type logWriter struct {
	rotator *rotator.Rotator
}

func (w *logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	return w.rotator.Write(p)
}

// initLogRotator opens (creating if necessary) a rotating log file at the
// given path, rotating once it exceeds 10 MiB and keeping the last 3
// rotations, matching lnd's build/logrotate.go defaults.
func initLogRotator(logFile string) (*rotator.Rotator, error) {
	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return nil, err
	}

	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// setupLogging configures torctl's own logger and the torctrl library
// logger to write through the same rotating backend.
func setupLogging(logFile string, level btclog.Level) (*rotator.Rotator, error) {
	r, err := initLogRotator(logFile)
	if err != nil {
		return nil, err
	}

	backend := btclog.NewBackend(&logWriter{r})

	pkgLog := backend.Logger("TORCTL")
	pkgLog.SetLevel(level)
	log = pkgLog

	libLog := backend.Logger("TORCTRL")
	libLog.SetLevel(level)
	tor.UseLogger(libLog)

	return r, nil
}

var log btclog.Logger = btclog.Disabled
