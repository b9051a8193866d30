package tor

import (
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn"
)

// CircStatus is the circuit lifecycle status reported by a CIRC event.
// Values beyond the ones Tor documents today still parse; an unrecognized
// value is kept verbatim rather than rejected, per the "enum as open set"
// approach.
type CircStatus string

// Documented CircStatus values, from original_source/stem/__init__.py.
const (
	CircLaunched  CircStatus = "LAUNCHED"
	CircBuilt     CircStatus = "BUILT"
	CircExtended  CircStatus = "EXTENDED"
	CircFailed    CircStatus = "FAILED"
	CircClosed    CircStatus = "CLOSED"
	CircGuardWait CircStatus = "GUARD_WAIT"
)

// CircPurpose is the Tor-internal reason a circuit was built.
type CircPurpose string

// Documented CircPurpose values.
const (
	PurposeGeneral         CircPurpose = "GENERAL"
	PurposeHSClientIntro   CircPurpose = "HS_CLIENT_INTRO"
	PurposeHSClientRend    CircPurpose = "HS_CLIENT_REND"
	PurposeHSServiceIntro  CircPurpose = "HS_SERVICE_INTRO"
	PurposeHSServiceRend   CircPurpose = "HS_SERVICE_REND"
	PurposeTesting         CircPurpose = "TESTING"
	PurposeController      CircPurpose = "CONTROLLER"
	PurposeMeasureTimeout  CircPurpose = "MEASURE_TIMEOUT"
	PurposePathBias        CircPurpose = "PATH_BIAS_TESTING"
)

// CircClosureReason explains why a circuit was torn down or failed.
type CircClosureReason string

// Documented CircClosureReason values.
const (
	ReasonNone               CircClosureReason = "NONE"
	ReasonTorProtocol        CircClosureReason = "TORPROTOCOL"
	ReasonInternal           CircClosureReason = "INTERNAL"
	ReasonRequested          CircClosureReason = "REQUESTED"
	ReasonHibernating        CircClosureReason = "HIBERNATING"
	ReasonResourceLimit      CircClosureReason = "RESOURCELIMIT"
	ReasonConnectFailed      CircClosureReason = "CONNECTFAILED"
	ReasonOrIdentity         CircClosureReason = "OR_IDENTITY"
	ReasonOrConnClosed       CircClosureReason = "OR_CONN_CLOSED"
	ReasonTimeout            CircClosureReason = "TIMEOUT"
	ReasonFinished           CircClosureReason = "FINISHED"
	ReasonDestroyed          CircClosureReason = "DESTROYED"
	ReasonNoSuchService      CircClosureReason = "NOSUCHSERVICE"
	ReasonMeasurementExpired CircClosureReason = "MEASUREMENT_EXPIRED"
)

// CircEventType is the kind of mid-life change a CIRC_MINOR event reports.
type CircEventType string

// Documented CircEventType values.
const (
	CircEventPurposeChanged CircEventType = "PURPOSE_CHANGED"
	CircEventCannibalized   CircEventType = "CANNIBALIZED"
)

// RouterPathEntry is one hop of a circuit's path, as reported in CIRC and
// NS-derived events: a relay fingerprint and, when known, its nickname.
type RouterPathEntry struct {
	Fingerprint string
	Nickname    string
}

func parsePath(s string) []RouterPathEntry {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	path := make([]RouterPathEntry, 0, len(parts))
	for _, p := range parts {
		fp, nick, _ := strings.Cut(p, "=")
		fp = strings.TrimPrefix(fp, "$")
		path = append(path, RouterPathEntry{Fingerprint: fp, Nickname: nick})
	}
	return path
}

// circKnownKeys are the KEY=VALUE fields CIRC/CIRC_MINOR may carry after
// the optional path field; used to tell the path field apart from the
// first keyed field when the path is absent.
var circKnownKeys = map[string]bool{
	"BUILD_FLAGS":   true,
	"PURPOSE":       true,
	"HS_STATE":      true,
	"REND_QUERY":    true,
	"TIME_CREATED":  true,
	"REASON":        true,
	"REMOTE_REASON": true,
	"OLD_PURPOSE":   true,
	"OLD_HS_STATE":  true,
	"SOCKS_USERNAME": true,
	"SOCKS_PASSWORD": true,
}

func parseCircTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, NewProtocolError("invalid TIME_CREATED value: %q", s)
}

// CircuitEvent is the parsed form of a CIRC event.
type CircuitEvent struct {
	baseEvent

	CircuitID    string
	Status       CircStatus
	Path         []RouterPathEntry
	BuildFlags   []string
	Purpose      CircPurpose
	HSState      string
	RendQuery    string
	TimeCreated  fn.Option[time.Time]
	Reason       CircClosureReason
	RemoteReason CircClosureReason
}

// Circuit is a circuit-status entry as returned by GETINFO circuit-status,
// sharing its field shape with CircuitEvent since the wire grammar for a
// status line and a CIRC event body are identical once the event keyword is
// stripped.
type Circuit struct {
	CircuitID    string
	Status       CircStatus
	Path         []RouterPathEntry
	BuildFlags   []string
	Purpose      CircPurpose
	HSState      string
	RendQuery    string
	TimeCreated  fn.Option[time.Time]
	Reason       CircClosureReason
	RemoteReason CircClosureReason
}

// circuitTail holds the optional path and KEY=VALUE fields shared by a CIRC
// event body and a circuit-status entry, following everything after the
// circuit ID and status.
type circuitTail struct {
	Path         []RouterPathEntry
	BuildFlags   []string
	Purpose      CircPurpose
	HSState      string
	RendQuery    string
	TimeCreated  fn.Option[time.Time]
	Reason       CircClosureReason
	RemoteReason CircClosureReason
}

func parseCircuitTail(c *ParsedLineCursor) (circuitTail, error) {
	var t circuitTail

	if key, ok := c.PeekKey(); !ok || !circKnownKeys[key] {
		if !c.IsEmpty() {
			pathStr, err := c.Pop(false, false)
			if err != nil {
				return t, err
			}
			t.Path = parsePath(pathStr)
		}
	}

	for {
		key, ok := c.PeekKey()
		if !ok {
			break
		}

		_, value, err := c.PopMapping(false, true)
		if err != nil {
			return t, err
		}

		switch key {
		case "BUILD_FLAGS":
			t.BuildFlags = strings.Split(value, ",")
		case "PURPOSE":
			t.Purpose = CircPurpose(value)
		case "HS_STATE":
			t.HSState = value
		case "REND_QUERY":
			t.RendQuery = value
		case "TIME_CREATED":
			tm, err := parseCircTimestamp(value)
			if err != nil {
				return t, err
			}
			t.TimeCreated = fn.Some(tm)
		case "REASON":
			t.Reason = CircClosureReason(value)
		case "REMOTE_REASON":
			t.RemoteReason = CircClosureReason(value)
		}
	}

	return t, nil
}

func parseCircEvent(msg *ReplyMessage, clk clock.Clock) (Event, error) {
	c := firstLineCursor(msg)

	circuitID, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}
	status, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}

	tail, err := parseCircuitTail(c)
	if err != nil {
		return nil, err
	}

	return &CircuitEvent{
		baseEvent:    baseEvent{"CIRC", clk.Now(), msg},
		CircuitID:    circuitID,
		Status:       CircStatus(status),
		Path:         tail.Path,
		BuildFlags:   tail.BuildFlags,
		Purpose:      tail.Purpose,
		HSState:      tail.HSState,
		RendQuery:    tail.RendQuery,
		TimeCreated:  tail.TimeCreated,
		Reason:       tail.Reason,
		RemoteReason: tail.RemoteReason,
	}, nil
}

// parseCircuitStatusEntry parses one line of a GETINFO circuit-status reply
// into a Circuit, reusing the same tail grammar as a CIRC event body.
func parseCircuitStatusEntry(line string) (*Circuit, error) {
	c := NewParsedLineCursor(line)

	circuitID, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}
	status, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}

	tail, err := parseCircuitTail(c)
	if err != nil {
		return nil, err
	}

	return &Circuit{
		CircuitID:    circuitID,
		Status:       CircStatus(status),
		Path:         tail.Path,
		BuildFlags:   tail.BuildFlags,
		Purpose:      tail.Purpose,
		HSState:      tail.HSState,
		RendQuery:    tail.RendQuery,
		TimeCreated:  tail.TimeCreated,
		Reason:       tail.Reason,
		RemoteReason: tail.RemoteReason,
	}, nil
}

// CircuitMinorEvent is the parsed form of a CIRC_MINOR event: a change to a
// circuit that doesn't affect its overall status.
type CircuitMinorEvent struct {
	baseEvent

	CircuitID   string
	Event       CircEventType
	Path        []RouterPathEntry
	Purpose     CircPurpose
	OldPurpose  CircPurpose
	HSState     string
	OldHSState  string
}

func parseCircMinorEvent(msg *ReplyMessage, clk clock.Clock) (Event, error) {
	c := firstLineCursor(msg)

	circuitID, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}
	eventType, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}

	evt := &CircuitMinorEvent{
		baseEvent: baseEvent{"CIRC_MINOR", clk.Now(), msg},
		CircuitID: circuitID,
		Event:     CircEventType(eventType),
	}

	if key, ok := c.PeekKey(); !ok || !circKnownKeys[key] {
		if !c.IsEmpty() {
			pathStr, err := c.Pop(false, false)
			if err != nil {
				return nil, err
			}
			evt.Path = parsePath(pathStr)
		}
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
		case "PURPOSE":
			evt.Purpose = CircPurpose(value)
		case "OLD_PURPOSE":
			evt.OldPurpose = CircPurpose(value)
		case "HS_STATE":
			evt.HSState = value
		case "OLD_HS_STATE":
			evt.OldHSState = value
		}
	}

	return evt, nil
}
