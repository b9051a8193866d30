// Package main implements torctl, a small command-line client for the
// torctrl control-port library: enough to authenticate against a running
// Tor daemon, run a handful of common commands, and watch events.
package main

import (
	"fmt"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/jessevdk/go-flags"
)

type options struct {
	ControlAddr string `long:"control" description:"Tor control port address" default:"127.0.0.1:9051"`
	SocketFile  string `long:"socket" description:"Tor control unix socket path, overrides --control"`
	Password    string `long:"password" description:"control port password, if configured"`
	PromptPassword bool `long:"ask-password" description:"prompt for the control port password on the terminal instead of passing it on the command line"`
	LogFile     string `long:"logfile" description:"path to the rotating log file" default:"torctl.log"`
	Verbose     bool   `long:"verbose" short:"v" description:"enable debug logging"`

	Command struct {
		Args struct {
			Name string   `positional-arg-name:"command" description:"getinfo|getconf|setconf|signal|watch|version"`
			Rest []string `positional-arg-name:"args"`
		} `positional-args:"yes" required:"yes"`
	} `positional-args:"yes"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "torctl:", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			return nil
		}
		return err
	}

	level := btclog.LevelInfo
	if opts.Verbose {
		level = btclog.LevelDebug
	}
	rotator, err := setupLogging(opts.LogFile, level)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer rotator.Close()

	c, err := dialFromOptions(&opts)
	if err != nil {
		return fmt.Errorf("connecting to control port: %w", err)
	}
	defer c.Close()

	if err := c.Authenticate(); err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}

	notifySystemdReady()

	return dispatchCommand(c, opts.Command.Args.Name, opts.Command.Args.Rest)
}
