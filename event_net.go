package tor

import (
	"strconv"
	"strings"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn"
)

// ORStatus is the lifecycle status reported by an ORCONN event.
type ORStatus string

// Documented ORStatus values.
const (
	ORNew       ORStatus = "NEW"
	ORLaunched  ORStatus = "LAUNCHED"
	ORConnected ORStatus = "CONNECTED"
	ORFailed    ORStatus = "FAILED"
	ORClosed    ORStatus = "CLOSED"
)

// ORClosureReason explains why an OR connection failed or closed.
type ORClosureReason string

// ORConnEvent is the parsed form of an ORCONN event.
type ORConnEvent struct {
	baseEvent

	Target string
	Status ORStatus
	Reason ORClosureReason
	NCircs int
	ID     string
}

func parseORConnEvent(msg *ReplyMessage, clk clock.Clock) (Event, error) {
	c := firstLineCursor(msg)

	target, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}
	status, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}

	evt := &ORConnEvent{
		baseEvent: baseEvent{"ORCONN", clk.Now(), msg},
		Target:    target,
		Status:    ORStatus(status),
	}

	for {
		key, ok := c.PeekKey()
		if !ok {
			break
		}
		_, value, err := c.PopMapping(false, true)
		if err != nil {
			return nil, err
		}

		switch key {
		case "REASON":
			evt.Reason = ORClosureReason(value)
		case "NCIRCS":
			n, _ := strconv.Atoi(value)
			evt.NCircs = n
		case "ID":
			evt.ID = value
		}
	}

	return evt, nil
}

// BandwidthEvent is the parsed form of a BW event: aggregate bytes
// read/written across the whole connection since the last such event.
type BandwidthEvent struct {
	baseEvent

	BytesRead    int
	BytesWritten int
}

func parseBandwidthEvent(msg *ReplyMessage, clk clock.Clock) (Event, error) {
	c := firstLineCursor(msg)

	read, err := popInt(c)
	if err != nil {
		return nil, err
	}
	written, err := popInt(c)
	if err != nil {
		return nil, err
	}

	return &BandwidthEvent{
		baseEvent:    baseEvent{"BW", clk.Now(), msg},
		BytesRead:    read,
		BytesWritten: written,
	}, nil
}

// GuardType names the kind of guard a GUARD event concerns. Only "ENTRY" is
// currently defined by Tor.
type GuardType string

// GuardStatus is the status change a GUARD event reports.
type GuardStatus string

// Documented GuardStatus values.
const (
	GuardNew     GuardStatus = "NEW"
	GuardDropped GuardStatus = "DROPPED"
	GuardUp      GuardStatus = "UP"
	GuardDown    GuardStatus = "DOWN"
	GuardGood    GuardStatus = "GOOD"
	GuardBad     GuardStatus = "BAD"
)

// GuardEvent is the parsed form of a GUARD event.
type GuardEvent struct {
	baseEvent

	GuardType GuardType
	Name      string
	Status    GuardStatus
}

func parseGuardEvent(msg *ReplyMessage, clk clock.Clock) (Event, error) {
	c := firstLineCursor(msg)

	guardType, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}
	name, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}
	status, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}

	return &GuardEvent{
		baseEvent: baseEvent{"GUARD", clk.Now(), msg},
		GuardType: GuardType(guardType),
		Name:      name,
		Status:    GuardStatus(status),
	}, nil
}

// AddrMapEvent is the parsed form of an ADDRMAP event, reporting a new or
// expired address mapping such as those created by MapAddress.
type AddrMapEvent struct {
	baseEvent

	Hostname    string
	Destination string
	Expiry      string
	Error       string
	Cached      fn.Option[bool]
}

func parseAddrMapEvent(msg *ReplyMessage, clk clock.Clock) (Event, error) {
	c := firstLineCursor(msg)

	hostname, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}
	destination, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}
	expiry, err := c.Pop(c.IsNextQuoted(), true)
	if err != nil {
		return nil, err
	}

	evt := &AddrMapEvent{
		baseEvent:   baseEvent{"ADDRMAP", clk.Now(), msg},
		Hostname:    hostname,
		Destination: destination,
		Expiry:      expiry,
	}

	for {
		key, ok := c.PeekKey()
		if !ok {
			break
		}
		_, value, err := c.PopMapping(false, true)
		if err != nil {
			return nil, err
		}

		switch strings.ToUpper(key) {
		case "ERROR":
			evt.Error = value
		case "CACHED":
			evt.Cached = fn.Some(value == `"YES"` || value == "YES")
		}
	}

	return evt, nil
}

// TimeoutSetType is the kind of update a BUILDTIMEOUT_SET event reports.
type TimeoutSetType string

// Documented TimeoutSetType values.
const (
	TimeoutComputed  TimeoutSetType = "COMPUTED"
	TimeoutReset     TimeoutSetType = "RESET"
	TimeoutSuspended TimeoutSetType = "SUSPENDED"
	TimeoutDiscard   TimeoutSetType = "DISCARD"
	TimeoutResume    TimeoutSetType = "RESUME"
)

// BuildTimeoutSetEvent is the parsed form of a BUILDTIMEOUT_SET event.
type BuildTimeoutSetEvent struct {
	baseEvent

	SetType        TimeoutSetType
	TotalTimes     int
	TimeoutMS      int
	Xm             int
	Alpha          float64
	CutoffQuantile float64
	TimeoutRate    float64
	CloseMS        int
	CloseRate      float64
}

func parseBuildTimeoutSetEvent(msg *ReplyMessage, clk clock.Clock) (Event, error) {
	c := firstLineCursor(msg)

	setType, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}

	evt := &BuildTimeoutSetEvent{
		baseEvent: baseEvent{"BUILDTIMEOUT_SET", clk.Now(), msg},
		SetType:   TimeoutSetType(setType),
	}

	for {
		key, ok := c.PeekKey()
		if !ok {
			break
		}
		_, value, err := c.PopMapping(false, true)
		if err != nil {
			return nil, err
		}

		switch key {
		case "TOTAL_TIMES":
			evt.TotalTimes, _ = strconv.Atoi(value)
		case "TIMEOUT_MS":
			evt.TimeoutMS, _ = strconv.Atoi(value)
		case "XM":
			evt.Xm, _ = strconv.Atoi(value)
		case "ALPHA":
			evt.Alpha, _ = strconv.ParseFloat(value, 64)
		case "CUTOFF_QUANTILE":
			evt.CutoffQuantile, _ = strconv.ParseFloat(value, 64)
		case "TIMEOUT_RATE":
			evt.TimeoutRate, _ = strconv.ParseFloat(value, 64)
		case "CLOSE_MS":
			evt.CloseMS, _ = strconv.Atoi(value)
		case "CLOSE_RATE":
			evt.CloseRate, _ = strconv.ParseFloat(value, 64)
		}
	}

	return evt, nil
}

// ClientsSeenEvent is the parsed form of a CLIENTS_SEEN event, reported by
// bridge relays summarizing the clients that have connected recently.
type ClientsSeenEvent struct {
	baseEvent

	TimeStarted     string
	CountrySummary  map[string]int
	IPVersions      map[string]int
}

func parseCommaCounts(s string) map[string]int {
	out := make(map[string]int)
	if s == "" {
		return out
	}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out
}

func parseClientsSeenEvent(msg *ReplyMessage, clk clock.Clock) (Event, error) {
	c := firstLineCursor(msg)

	evt := &ClientsSeenEvent{
		baseEvent: baseEvent{"CLIENTS_SEEN", clk.Now(), msg},
	}

	for {
		key, ok := c.PeekKey()
		if !ok {
			break
		}
		_, value, err := c.PopMapping(false, true)
		if err != nil {
			return nil, err
		}

		switch key {
		case "TimeStarted":
			evt.TimeStarted = value
		case "CountrySummary":
			evt.CountrySummary = parseCommaCounts(value)
		case "IPVersions":
			evt.IPVersions = parseCommaCounts(value)
		}
	}

	return evt, nil
}

// ConfChangedEvent is the parsed form of a CONF_CHANGED event: a set of
// configuration options that changed, one per subsequent reply line. A
// value-less key means the option was reset to its default.
type ConfChangedEvent struct {
	baseEvent

	Changed map[string]string
	Unset   []string
}

func parseConfChangedEvent(msg *ReplyMessage, clk clock.Clock) (Event, error) {
	evt := &ConfChangedEvent{
		baseEvent: baseEvent{"CONF_CHANGED", clk.Now(), msg},
		Changed:   make(map[string]string),
	}

	for _, line := range msg.Lines()[1:] {
		if line.Divider == DividerEnd && line.Content == "OK" {
			continue
		}
		key, value, ok := strings.Cut(line.Content, "=")
		if !ok {
			evt.Unset = append(evt.Unset, strings.TrimSpace(line.Content))
			continue
		}
		evt.Changed[key] = value
	}

	return evt, nil
}
