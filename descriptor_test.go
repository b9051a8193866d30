package tor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRouterStatusEntry(t *testing.T) {
	line := "r test7 AAAAAAAAAAAAAAAAAAAAAAAAAAAA BBBBBBBBBBBBBBBBBBBBBBBBBBBB " +
		"2024-01-02 03:04:05 1.2.3.4 9001 9030"

	entry, ok := parseRouterStatusEntry(line)
	require.True(t, ok)
	require.Equal(t, "test7", entry.Nickname)
	require.Equal(t, "AAAAAAAAAAAAAAAAAAAAAAAAAAAA", entry.Fingerprint)
	require.Equal(t, "2024-01-02 03:04:05", entry.Published)
	require.Equal(t, "1.2.3.4", entry.Address)
	require.Equal(t, 9001, entry.ORPort)
	require.Equal(t, 9030, entry.DirPort)
}

func TestParseRouterStatusEntryTooShort(t *testing.T) {
	_, ok := parseRouterStatusEntry("r test7 AAAA")
	require.False(t, ok)
}

func TestParseNetworkStatusDocument(t *testing.T) {
	lines := []string{
		"r test7 AAAA BBBB 2024-01-02 03:04:05 1.2.3.4 9001 9030",
		"s Fast Running Stable Valid",
		"v Tor 0.4.8.1",
		"r test8 CCCC DDDD 2024-01-02 03:05:00 5.6.7.8 9001 9030",
		"s Running Valid",
		"unparseable-document-level-line",
	}

	doc := parseNetworkStatusDocument(lines)
	require.Len(t, doc.Routers, 2)
	require.Equal(t, "test7", doc.Routers[0].Nickname)
	require.Equal(t, []string{"Fast", "Running", "Stable", "Valid"}, doc.Routers[0].Flags)
	require.Equal(t, "Tor 0.4.8.1", doc.Routers[0].Version)
	require.Equal(t, "test8", doc.Routers[1].Nickname)
	require.Equal(t, []string{"Running", "Valid"}, doc.Routers[1].Flags)
	require.Contains(t, doc.UnrecognizedLines, "unparseable-document-level-line")
}

func TestParseServerDescriptor(t *testing.T) {
	text := strings.Join([]string{
		"router test7 1.2.3.4 9001 0 9030",
		"platform Tor 0.4.8.1 on Linux",
		"bandwidth 1000 2000 1500",
		"opt some-unrecognized-line",
	}, "\n")

	desc := parseServerDescriptor(text)
	require.Equal(t, "test7", desc.Nickname)
	require.Equal(t, "1.2.3.4", desc.Address)
	require.Equal(t, 9001, desc.ORPort)
	require.Equal(t, 9030, desc.DirPort)
	require.Equal(t, "Tor 0.4.8.1 on Linux", desc.Platform)
	require.Equal(t, 1000, desc.BandwidthAvg)
	require.Equal(t, 2000, desc.BandwidthBurst)
	require.Equal(t, 1500, desc.BandwidthObserved)
	require.Contains(t, desc.UnrecognizedLines, "opt some-unrecognized-line")
}

func TestSplitDescriptors(t *testing.T) {
	text := strings.Join([]string{
		"router test7 1.2.3.4 9001 0 9030",
		"platform Tor 0.4.8.1 on Linux",
		"router test8 5.6.7.8 9001 0 9030",
		"platform Tor 0.4.8.1 on Linux",
	}, "\n")

	descs := splitDescriptors(text)
	require.Len(t, descs, 2)
	require.True(t, strings.HasPrefix(descs[0], "router test7"))
	require.True(t, strings.HasPrefix(descs[1], "router test8"))
}
