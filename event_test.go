package tor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildEventMessage assembles a single-line 650 event reply the way the
// message pump would see it off the wire.
func buildEventMessage(t *testing.T, content string) *ReplyMessage {
	t.Helper()
	a := newAssembler()
	msg, err := a.Feed("650 " + content)
	require.NoError(t, err)
	require.NotNil(t, msg)
	return msg
}

func TestParseCircEvent(t *testing.T) {
	msg := buildEventMessage(t, "CIRC 10 BUILT $AAAA=relay1,$BBBB=relay2 "+
		"BUILD_FLAGS=NEED_CAPACITY PURPOSE=GENERAL "+
		"TIME_CREATED=2024-01-02T03:04:05.123456")

	evt, err := ParseEvent(msg, nil)
	require.NoError(t, err)

	circ, ok := evt.(*CircuitEvent)
	require.True(t, ok)
	require.Equal(t, "10", circ.CircuitID)
	require.Equal(t, CircBuilt, circ.Status)
	require.Len(t, circ.Path, 2)
	require.Equal(t, "AAAA", circ.Path[0].Fingerprint)
	require.Equal(t, "relay1", circ.Path[0].Nickname)
	require.Equal(t, []string{"NEED_CAPACITY"}, circ.BuildFlags)
	require.Equal(t, PurposeGeneral, circ.Purpose)
	require.True(t, circ.TimeCreated.IsSome())
}

func TestParseCircEventNoPath(t *testing.T) {
	msg := buildEventMessage(t, "CIRC 5 LAUNCHED PURPOSE=GENERAL")

	evt, err := ParseEvent(msg, nil)
	require.NoError(t, err)

	circ, ok := evt.(*CircuitEvent)
	require.True(t, ok)
	require.Empty(t, circ.Path)
	require.Equal(t, PurposeGeneral, circ.Purpose)
}

func TestParseCircMinorEvent(t *testing.T) {
	msg := buildEventMessage(t, "CIRC_MINOR 7 PURPOSE_CHANGED $AAAA=relay1 "+
		"OLD_PURPOSE=GENERAL PURPOSE=MEASURE_TIMEOUT")

	evt, err := ParseEvent(msg, nil)
	require.NoError(t, err)

	minor, ok := evt.(*CircuitMinorEvent)
	require.True(t, ok)
	require.Equal(t, CircEventPurposeChanged, minor.Event)
	require.Equal(t, PurposeGeneral, minor.OldPurpose)
	require.Equal(t, PurposeMeasureTimeout, minor.Purpose)
}

func TestParseStreamEvent(t *testing.T) {
	msg := buildEventMessage(t, "STREAM 14 NEW 0 example.com:443 "+
		"SOURCE_ADDR=127.0.0.1:5000 PURPOSE=USER")

	evt, err := ParseEvent(msg, nil)
	require.NoError(t, err)

	stream, ok := evt.(*StreamEvent)
	require.True(t, ok)
	require.Equal(t, "14", stream.StreamID)
	require.Equal(t, StreamNew, stream.Status)
	require.Equal(t, "example.com:443", stream.Target)
	require.Equal(t, "127.0.0.1:5000", stream.SourceAddr)
}

func TestParseStreamBWEvent(t *testing.T) {
	msg := buildEventMessage(t, "STREAM_BW 14 100 200")

	evt, err := ParseEvent(msg, nil)
	require.NoError(t, err)

	bw, ok := evt.(*StreamBandwidthEvent)
	require.True(t, ok)
	require.Equal(t, 100, bw.BytesRead)
	require.Equal(t, 200, bw.BytesWritten)
}

func TestParseBandwidthEvent(t *testing.T) {
	msg := buildEventMessage(t, "BW 9001 8001")

	evt, err := ParseEvent(msg, nil)
	require.NoError(t, err)

	bw, ok := evt.(*BandwidthEvent)
	require.True(t, ok)
	require.Equal(t, 9001, bw.BytesRead)
	require.Equal(t, 8001, bw.BytesWritten)
}

func TestParseBandwidthEventRejectsNegativeCount(t *testing.T) {
	msg := buildEventMessage(t, "BW -15 25")

	_, err := ParseEvent(msg, nil)
	require.Error(t, err)

	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestParseUnrecognizedEvent(t *testing.T) {
	msg := buildEventMessage(t, "SOME_FUTURE_EVENT foo bar")

	evt, err := ParseEvent(msg, nil)
	require.NoError(t, err)

	_, ok := evt.(*UnrecognizedEvent)
	require.True(t, ok)
	require.Equal(t, "SOME_FUTURE_EVENT", evt.Type())
}

func TestParseGuardEvent(t *testing.T) {
	msg := buildEventMessage(t, "GUARD ENTRY $AAAA=relay1 NEW")

	evt, err := ParseEvent(msg, nil)
	require.NoError(t, err)

	guard, ok := evt.(*GuardEvent)
	require.True(t, ok)
	require.Equal(t, GuardStatus("NEW"), guard.Status)
}

func TestParseCircuitStatusEntry(t *testing.T) {
	circ, err := parseCircuitStatusEntry(
		"10 BUILT $AAAA=relay1,$BBBB=relay2 BUILD_FLAGS=NEED_CAPACITY " +
			"PURPOSE=GENERAL",
	)
	require.NoError(t, err)
	require.Equal(t, "10", circ.CircuitID)
	require.Equal(t, CircBuilt, circ.Status)
	require.Len(t, circ.Path, 2)
	require.Equal(t, PurposeGeneral, circ.Purpose)
}

func TestParseStreamStatusEntry(t *testing.T) {
	stream, err := parseStreamStatusEntry(
		"14 SUCCEEDED 10 example.com:443 PURPOSE=USER",
	)
	require.NoError(t, err)
	require.Equal(t, "14", stream.StreamID)
	require.Equal(t, StreamSucceeded, stream.Status)
	require.Equal(t, "10", stream.CircuitID)
	require.Equal(t, "example.com:443", stream.Target)
	require.Equal(t, StreamPurpose("USER"), stream.Purpose)
}

func TestParseAddrMapEvent(t *testing.T) {
	msg := buildEventMessage(t,
		`ADDRMAP example.com 1.2.3.4 "2024-01-02 03:04:05" CACHED=YES`)

	evt, err := ParseEvent(msg, nil)
	require.NoError(t, err)

	am, ok := evt.(*AddrMapEvent)
	require.True(t, ok)
	require.Equal(t, "example.com", am.Hostname)
	require.Equal(t, "1.2.3.4", am.Destination)
	require.True(t, am.Cached.IsSome())
}
