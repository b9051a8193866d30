package tor

import (
	"github.com/lightningnetwork/lnd/clock"
)

// StreamStatus is the lifecycle status reported by a STREAM event.
type StreamStatus string

// Documented StreamStatus values.
const (
	StreamNew         StreamStatus = "NEW"
	StreamNewResolve  StreamStatus = "NEWRESOLVE"
	StreamRemap       StreamStatus = "REMAP"
	StreamSentConnect StreamStatus = "SENTCONNECT"
	StreamSentResolve StreamStatus = "SENTRESOLVE"
	StreamSucceeded   StreamStatus = "SUCCEEDED"
	StreamFailed      StreamStatus = "FAILED"
	StreamClosed      StreamStatus = "CLOSED"
	StreamDetached    StreamStatus = "DETACHED"
)

// StreamClosureReason explains why a stream failed or closed.
type StreamClosureReason string

// StreamSource reports whether a REMAP was triggered by cache or exit.
type StreamSource string

// Documented StreamSource values.
const (
	StreamSourceCache StreamSource = "CACHE"
	StreamSourceExit  StreamSource = "EXIT"
)

// StreamPurpose is Tor's internal reason for opening the stream.
type StreamPurpose string

// StreamEvent is the parsed form of a STREAM event.
type StreamEvent struct {
	baseEvent

	StreamID     string
	Status       StreamStatus
	CircuitID    string
	Target       string
	Reason       StreamClosureReason
	RemoteReason StreamClosureReason
	Source       StreamSource
	SourceAddr   string
	Purpose      StreamPurpose
}

var streamKnownKeys = map[string]bool{
	"REASON": true, "REMOTE_REASON": true, "SOURCE": true,
	"SOURCE_ADDR": true, "PURPOSE": true,
}

// Stream is a stream-status entry as returned by GETINFO stream-status,
// sharing its field shape with StreamEvent since the wire grammar for a
// status line and a STREAM event body are identical once the event keyword
// is stripped.
type Stream struct {
	StreamID     string
	Status       StreamStatus
	CircuitID    string
	Target       string
	Reason       StreamClosureReason
	RemoteReason StreamClosureReason
	Source       StreamSource
	SourceAddr   string
	Purpose      StreamPurpose
}

// streamTail holds the KEY=VALUE fields shared by a STREAM event body and a
// stream-status entry, following the stream ID, status, circuit ID, and
// target.
type streamTail struct {
	Reason       StreamClosureReason
	RemoteReason StreamClosureReason
	Source       StreamSource
	SourceAddr   string
	Purpose      StreamPurpose
}

func parseStreamTail(c *ParsedLineCursor) (streamTail, error) {
	var t streamTail

	for {
		key, ok := c.PeekKey()
		if !ok || !streamKnownKeys[key] {
			break
		}
		_, value, err := c.PopMapping(false, true)
		if err != nil {
			return t, err
		}

		switch key {
		case "REASON":
			t.Reason = StreamClosureReason(value)
		case "REMOTE_REASON":
			t.RemoteReason = StreamClosureReason(value)
		case "SOURCE":
			t.Source = StreamSource(value)
		case "SOURCE_ADDR":
			t.SourceAddr = value
		case "PURPOSE":
			t.Purpose = StreamPurpose(value)
		}
	}

	return t, nil
}

func parseStreamEvent(msg *ReplyMessage, clk clock.Clock) (Event, error) {
	c := firstLineCursor(msg)

	streamID, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}
	status, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}
	circuitID, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}
	target, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}

	tail, err := parseStreamTail(c)
	if err != nil {
		return nil, err
	}

	return &StreamEvent{
		baseEvent:    baseEvent{"STREAM", clk.Now(), msg},
		StreamID:     streamID,
		Status:       StreamStatus(status),
		CircuitID:    circuitID,
		Target:       target,
		Reason:       tail.Reason,
		RemoteReason: tail.RemoteReason,
		Source:       tail.Source,
		SourceAddr:   tail.SourceAddr,
		Purpose:      tail.Purpose,
	}, nil
}

// parseStreamStatusEntry parses one line of a GETINFO stream-status reply
// into a Stream, reusing the same tail grammar as a STREAM event body.
func parseStreamStatusEntry(line string) (*Stream, error) {
	c := NewParsedLineCursor(line)

	streamID, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}
	status, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}
	circuitID, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}
	target, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}

	tail, err := parseStreamTail(c)
	if err != nil {
		return nil, err
	}

	return &Stream{
		StreamID:     streamID,
		Status:       StreamStatus(status),
		CircuitID:    circuitID,
		Target:       target,
		Reason:       tail.Reason,
		RemoteReason: tail.RemoteReason,
		Source:       tail.Source,
		SourceAddr:   tail.SourceAddr,
		Purpose:      tail.Purpose,
	}, nil
}

// StreamBandwidthEvent is the parsed form of a STREAM_BW event, reporting
// the bytes read/written by a single stream since the last such event.
type StreamBandwidthEvent struct {
	baseEvent

	StreamID      string
	BytesRead     int
	BytesWritten  int
}

func parseStreamBWEvent(msg *ReplyMessage, clk clock.Clock) (Event, error) {
	c := firstLineCursor(msg)

	streamID, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}
	read, err := popInt(c)
	if err != nil {
		return nil, err
	}
	written, err := popInt(c)
	if err != nil {
		return nil, err
	}

	return &StreamBandwidthEvent{
		baseEvent:    baseEvent{"STREAM_BW", clk.Now(), msg},
		StreamID:     streamID,
		BytesRead:    read,
		BytesWritten: written,
	}, nil
}
