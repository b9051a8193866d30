package tor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNewDescEvent(t *testing.T) {
	msg := buildEventMessage(t, "NEWDESC $AAAA~relay1 $BBBB~relay2")

	evt, err := ParseEvent(msg, nil)
	require.NoError(t, err)

	nd, ok := evt.(*NewDescEvent)
	require.True(t, ok)
	require.Len(t, nd.Relays, 2)
	require.Equal(t, "AAAA", nd.Relays[0].Fingerprint)
	require.Equal(t, "relay1", nd.Relays[0].Nickname)
}

func TestParseNetworkStatusEvent(t *testing.T) {
	a := newAssembler()
	var msg *ReplyMessage
	for _, l := range []string{
		"650+NEWCONSENSUS",
		"r test7 AAAA BBBB 2024-01-02 03:04:05 1.2.3.4 9001 9030",
		"s Fast Running Valid",
		".",
		"650 OK",
	} {
		m, err := a.Feed(l)
		require.NoError(t, err)
		if m != nil {
			msg = m
		}
	}
	require.NotNil(t, msg)

	evt, err := ParseEvent(msg, nil)
	require.NoError(t, err)

	ns, ok := evt.(*NetworkStatusEvent)
	require.True(t, ok)
	require.Len(t, ns.Document.Routers, 1)
	require.Equal(t, "test7", ns.Document.Routers[0].Nickname)
	require.Equal(t, []string{"Fast", "Running", "Valid"}, ns.Document.Routers[0].Flags)
}

func TestParseAuthDirNewDescsEvent(t *testing.T) {
	a := newAssembler()
	var msg *ReplyMessage
	for _, l := range []string{
		"650+AUTHDIR_NEWDESCS",
		"Action: ACCEPTED",
		"Message: welcome",
		"Descriptor: AAAA",
		".",
		"650 OK",
	} {
		m, err := a.Feed(l)
		require.NoError(t, err)
		if m != nil {
			msg = m
		}
	}
	require.NotNil(t, msg)

	evt, err := ParseEvent(msg, nil)
	require.NoError(t, err)

	ad, ok := evt.(*AuthDirNewDescsEvent)
	require.True(t, ok)
	require.Len(t, ad.Groups, 1)
	require.Equal(t, "Action: ACCEPTED", ad.Groups[0][0])
}
