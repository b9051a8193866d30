package main

import (
	"fmt"
	"os"
	"strings"

	tor "github.com/lightninglabs/torctrl"
	"golang.org/x/term"
)

// dialFromOptions connects to whichever control port the parsed flags
// name, preferring a unix socket when one was given. When neither
// --password nor a cookie-bearing auth method is configured ahead of
// time, the controller still negotiates NONE/COOKIE/SAFECOOKIE on its
// own; a password is only prompted for interactively when the user asks
// for one by passing --ask-password (i.e. PromptPassword is set).
func dialFromOptions(opts *options) (*tor.Controller, error) {
	dialOpts := []tor.DialOption{tor.WithLogger(log)}

	password := opts.Password
	if opts.PromptPassword {
		prompted, err := promptPassword("control port password: ")
		if err != nil {
			return nil, err
		}
		password = prompted
	}
	if password != "" {
		dialOpts = append(dialOpts, tor.WithPassword(password))
	}

	if opts.SocketFile != "" {
		return tor.DialSocketFile(opts.SocketFile, dialOpts...)
	}
	return tor.DialPort(opts.ControlAddr, dialOpts...)
}

// promptPassword reads a password from the controlling terminal without
// echoing it, the way lncli's --stdin wallet-password prompts do.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal, cannot prompt for a password")
	}

	pw, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

// dispatchCommand runs one of torctl's built-in subcommands against an
// authenticated controller.
func dispatchCommand(c *tor.Controller, name string, args []string) error {
	switch name {
	case "getinfo":
		resp, err := c.GetInfo(args...)
		if err != nil {
			return err
		}
		printKeyValues("GETINFO", resp.Values)
		return nil

	case "getconf":
		resp, err := c.GetConf(args...)
		if err != nil {
			return err
		}
		flat := make(map[string]string, len(resp.Values))
		for k, vs := range resp.Values {
			flat[k] = strings.Join(vs, ", ")
		}
		printKeyValues("GETCONF", flat)
		return nil

	case "setconf":
		values := make(map[string]string, len(args))
		for _, kv := range args {
			k, v, _ := strings.Cut(kv, "=")
			values[k] = v
		}
		return c.SetConf(values)

	case "signal":
		if len(args) != 1 {
			return fmt.Errorf("signal requires exactly one argument")
		}
		return c.Signal(strings.ToUpper(args[0]))

	case "version":
		fmt.Println(c.Version())
		return nil

	case "watch":
		return watchEvents(c, args)

	default:
		return fmt.Errorf("unrecognized command %q", name)
	}
}

// watchEvents subscribes to the named event types (or every type, if none
// are given) and prints each as it arrives until interrupted.
func watchEvents(c *tor.Controller, eventTypes []string) error {
	if len(eventTypes) == 0 {
		eventTypes = []string{"*"}
	}

	done := make(chan struct{})
	_, err := c.AddEventListener(func(evt tor.Event) {
		printEvent(evt)
	}, eventTypes...)
	if err != nil {
		return err
	}

	<-done
	return nil
}
