package tor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func feedAll(t *testing.T, a *assembler, lines ...string) *ReplyMessage {
	t.Helper()
	var msg *ReplyMessage
	for _, l := range lines {
		m, err := a.Feed(l)
		require.NoError(t, err)
		if m != nil {
			msg = m
		}
	}
	require.NotNil(t, msg, "reply never completed")
	return msg
}

func TestAssemblerSingleLine(t *testing.T) {
	a := newAssembler()
	msg := feedAll(t, a, "250 OK")

	require.Equal(t, 250, msg.Code())
	require.Len(t, msg.Lines(), 1)
	require.True(t, msg.IsOk(true))
}

func TestAssemblerMultiLine(t *testing.T) {
	a := newAssembler()
	msg := feedAll(t, a,
		"250-version=0.4.8.1",
		"250-os=Linux",
		"250 OK",
	)

	require.Equal(t, 250, msg.Code())
	require.Len(t, msg.Lines(), 3)
	require.Equal(t, "version=0.4.8.1", msg.Lines()[0].Content)
	require.True(t, msg.IsOk(true))
}

func TestAssemblerDataBlock(t *testing.T) {
	a := newAssembler()
	msg := feedAll(t, a,
		"250+config-text=",
		"ControlPort 9051",
		"..dotted line",
		".",
		"250 OK",
	)

	require.Len(t, msg.Lines(), 2)
	require.Equal(t,
		"config-text=\nControlPort 9051\n.dotted line",
		msg.Lines()[0].Content,
	)
}

func TestAssemblerMixedCodesDoesNotError(t *testing.T) {
	// MAPADDRESS-style replies may legitimately mix a failure code on a
	// mid-reply line with a success code elsewhere.
	a := newAssembler()
	msg := feedAll(t, a,
		"250-1.2.3.4=torhost1.example.onion",
		"512-nonexistent.example=nonexistent.example",
		"250 OK",
	)

	require.Len(t, msg.Lines(), 3)
	require.Equal(t, 250, msg.Lines()[0].Code)
	require.Equal(t, 512, msg.Lines()[1].Code)
	require.Equal(t, 250, msg.Lines()[2].Code)
	require.False(t, msg.IsOk(true))
	require.True(t, msg.IsOk(false))
}

func TestAssemblerMalformedLine(t *testing.T) {
	a := newAssembler()
	_, err := a.Feed("XX")
	require.Error(t, err)
}
