package tor

import (
	"strconv"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

// Event is implemented by every parsed asynchronous (6xx) reply. Concrete
// event types embed baseEvent and add their own fields, following the
// "enum as open set" approach of spec.md's Design Notes §9: an event whose
// payload names a value this package doesn't recognize still parses
// successfully, keeping the unrecognized value verbatim in its string-typed
// field instead of failing the whole event.
type Event interface {
	// Type is the control-port event keyword, e.g. "CIRC" or "BW".
	Type() string

	// ArrivedAt is when the event was parsed, read from the clock passed
	// to ParseEvent. The message pump passes none, so for events it
	// delivers this is wall-clock time.
	ArrivedAt() time.Time

	// Raw is the reply message the event was parsed from.
	Raw() *ReplyMessage
}

type baseEvent struct {
	eventType string
	arrivedAt time.Time
	raw       *ReplyMessage
}

func (e baseEvent) Type() string          { return e.eventType }
func (e baseEvent) ArrivedAt() time.Time  { return e.arrivedAt }
func (e baseEvent) Raw() *ReplyMessage    { return e.raw }

// UnrecognizedEvent is returned for any 6xx reply whose keyword this
// package has no specific parser for. The raw message is preserved so
// callers can still act on it.
type UnrecognizedEvent struct {
	baseEvent
}

// eventParser parses an event reply into a concrete Event. It receives the
// whole reply, keyword included (most parsers skip the keyword with
// firstLineCursor, and some read later lines, e.g. NEWCONSENSUS), and the
// clock that stamps ArrivedAt.
type eventParser func(msg *ReplyMessage, clk clock.Clock) (Event, error)

var eventParsers = map[string]eventParser{
	"CIRC":             parseCircEvent,
	"CIRC_MINOR":       parseCircMinorEvent,
	"STREAM":           parseStreamEvent,
	"STREAM_BW":        parseStreamBWEvent,
	"ORCONN":           parseORConnEvent,
	"BW":               parseBandwidthEvent,
	"DEBUG":            parseLogEvent,
	"INFO":             parseLogEvent,
	"NOTICE":           parseLogEvent,
	"WARN":             parseLogEvent,
	"ERR":              parseLogEvent,
	"STATUS_GENERAL":   parseStatusEvent,
	"STATUS_CLIENT":    parseStatusEvent,
	"STATUS_SERVER":    parseStatusEvent,
	"ADDRMAP":          parseAddrMapEvent,
	"BUILDTIMEOUT_SET": parseBuildTimeoutSetEvent,
	"GUARD":            parseGuardEvent,
	"CLIENTS_SEEN":     parseClientsSeenEvent,
	"CONF_CHANGED":     parseConfChangedEvent,
	"NEWDESC":          parseNewDescEvent,
	"NEWCONSENSUS":     parseNetworkStatusEvent,
	"NS":               parseNetworkStatusEvent,
	"AUTHDIR_NEWDESCS": parseAuthDirNewDescsEvent,
}

// ParseEvent dispatches a 6xx ReplyMessage to the parser registered for its
// keyword, falling back to UnrecognizedEvent for anything unknown.
func ParseEvent(msg *ReplyMessage, clk clock.Clock) (Event, error) {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	if len(msg.Lines()) == 0 {
		return nil, NewProtocolError("event message has no lines")
	}

	first := msg.Lines()[0].Content
	keyword, rest := splitFirstField(first)

	parser, ok := eventParsers[keyword]
	if !ok {
		return &UnrecognizedEvent{
			baseEvent{keyword, clk.Now(), msg},
		}, nil
	}

	_ = rest
	return parser(msg, clk)
}

// splitFirstField splits "KEYWORD rest-of-line" into its two halves. For a
// data-bearing line, Content's header and assembled data block are joined
// by "\n" rather than " ", so both separators are recognized and whichever
// comes first wins.
func splitFirstField(s string) (string, string) {
	idx := strings.IndexAny(s, " \n")
	if idx < 0 {
		return s, ""
	}
	return s[:idx], s[idx+1:]
}

// firstLineCursor returns a cursor over the fields following an event's
// keyword on its first line.
func firstLineCursor(msg *ReplyMessage) *ParsedLineCursor {
	_, rest := splitFirstField(msg.Lines()[0].Content)
	return NewParsedLineCursor(rest)
}

// popInt pops the next field from a cursor and parses it as an integer.
// Every current caller (BW/STREAM_BW byte counts) is a counter that the
// protocol never sends negative, so a negative value is rejected here
// rather than at each call site.
func popInt(c *ParsedLineCursor) (int, error) {
	field, err := c.Pop(false, false)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, NewProtocolError("expected an integer field, got %q", field)
	}
	if n < 0 {
		return 0, NewProtocolError("expected a non-negative integer field, got %q", field)
	}
	return n, nil
}

// popOptionalMapping pops a KEY=VALUE mapping only if one is next,
// returning ok=false without consuming anything otherwise.
func popOptionalMapping(c *ParsedLineCursor, key string) (string, bool) {
	if !c.IsNextMapping(key, false, false) {
		return "", false
	}
	_, value, err := c.PopMapping(false, true)
	if err != nil {
		return "", false
	}
	return value, true
}
