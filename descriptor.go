package tor

import (
	"strconv"
	"strings"
)

// RouterStatusEntry is one relay's entry from a network status document (a
// consensus, a vote, or the router-status lines carried by NEWCONSENSUS/NS
// events), built from the "r", "s" and "v" lines of the directory
// protocol. parseNetworkStatusDocument does not fill this entry's
// UnrecognizedLines: any other line, "w" included, is kept verbatim in the
// enclosing NetworkStatusDocument's UnrecognizedLines instead.
type RouterStatusEntry struct {
	Nickname    string
	Fingerprint string
	Digest      string
	Published   string
	Address     string
	ORPort      int
	DirPort     int
	Flags       []string
	Version     string

	UnrecognizedLines []string
}

// ServerDescriptor is a relay's self-published descriptor, as fetched via
// GETINFO "desc/id/<fp>" or "desc/name/<nickname>". Only the fields
// exercised by this package's event and descriptor-fetch paths are parsed;
// everything else is retained verbatim.
type ServerDescriptor struct {
	Nickname    string
	Fingerprint string
	Address     string
	ORPort      int
	DirPort     int
	Platform    string
	BandwidthAvg, BandwidthBurst, BandwidthObserved int

	UnrecognizedLines []string
}

// NetworkStatusDocument is a (possibly partial) consensus or vote: an
// ordered list of router status entries plus any document-level lines this
// package doesn't otherwise interpret.
type NetworkStatusDocument struct {
	Routers []RouterStatusEntry

	UnrecognizedLines []string
}

// parseServerDescriptor parses the body of a single self-published
// descriptor, as returned in a "desc/id/<fp>" or "desc/all" GETINFO value:
// a "router" line, an optional "platform" line, and an optional "bandwidth"
// line, per the directory protocol's descriptor grammar. Any line this
// parser doesn't recognize is retained verbatim.
func parseServerDescriptor(text string) ServerDescriptor {
	var d ServerDescriptor

	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "router":
			if len(fields) < 6 {
				d.UnrecognizedLines = append(d.UnrecognizedLines, line)
				continue
			}
			d.Nickname = fields[1]
			d.Address = fields[2]
			d.ORPort, _ = strconv.Atoi(fields[3])
			d.DirPort, _ = strconv.Atoi(fields[5])
		case "platform":
			d.Platform = strings.TrimPrefix(line, "platform ")
		case "fingerprint":
			d.Fingerprint = strings.Join(fields[1:], "")
		case "bandwidth":
			if len(fields) < 4 {
				d.UnrecognizedLines = append(d.UnrecognizedLines, line)
				continue
			}
			d.BandwidthAvg, _ = strconv.Atoi(fields[1])
			d.BandwidthBurst, _ = strconv.Atoi(fields[2])
			d.BandwidthObserved, _ = strconv.Atoi(fields[3])
		default:
			d.UnrecognizedLines = append(d.UnrecognizedLines, line)
		}
	}

	return d
}

// splitDescriptors splits a "desc/all"-style multi-descriptor blob into the
// text of each individual descriptor, each beginning with its own "router"
// line.
func splitDescriptors(text string) []string {
	var out []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, "\n"))
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "router ") {
			flush()
		}
		current = append(current, line)
	}
	flush()

	return out
}

// parseRouterStatusEntry parses one "r" line of the form:
//
//	r Nickname Identity Digest Published IP ORPort DirPort
//
// per the directory protocol's router status entry grammar. The Identity
// and Digest fields are base64 (no padding) in the real protocol; this
// parser keeps them as opaque strings since spec.md does not require
// decoding them.
func parseRouterStatusEntry(rLine string) (RouterStatusEntry, bool) {
	fields := strings.Fields(rLine)
	if len(fields) < 9 || fields[0] != "r" {
		return RouterStatusEntry{}, false
	}

	orPort, _ := strconv.Atoi(fields[7])
	dirPort, _ := strconv.Atoi(fields[8])

	return RouterStatusEntry{
		Nickname:    fields[1],
		Fingerprint: fields[2],
		Digest:      fields[3],
		Published:   fields[4] + " " + fields[5],
		Address:     fields[6],
		ORPort:      orPort,
		DirPort:     dirPort,
	}, true
}

// parseNetworkStatusDocument parses the "r"/"s" line groups of a
// NEWCONSENSUS or NS event body into router status entries, tolerating and
// preserving any line it doesn't recognize.
func parseNetworkStatusDocument(lines []string) NetworkStatusDocument {
	doc := NetworkStatusDocument{}

	var current *RouterStatusEntry
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "r "):
			entry, ok := parseRouterStatusEntry(line)
			if !ok {
				doc.UnrecognizedLines = append(doc.UnrecognizedLines, line)
				current = nil
				continue
			}
			doc.Routers = append(doc.Routers, entry)
			current = &doc.Routers[len(doc.Routers)-1]

		case strings.HasPrefix(line, "s ") && current != nil:
			current.Flags = strings.Fields(strings.TrimPrefix(line, "s "))

		case strings.HasPrefix(line, "v ") && current != nil:
			current.Version = strings.TrimPrefix(line, "v ")

		default:
			doc.UnrecognizedLines = append(doc.UnrecognizedLines, line)
		}
	}

	return doc
}
