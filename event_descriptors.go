package tor

import (
	"strings"

	"github.com/lightningnetwork/lnd/clock"
)

// NewDescEvent is the parsed form of a NEWDESC event, naming one or more
// relays whose descriptors just changed.
type NewDescEvent struct {
	baseEvent

	Relays []RouterPathEntry
}

func parseNewDescEvent(msg *ReplyMessage, clk clock.Clock) (Event, error) {
	c := firstLineCursor(msg)

	var relays []RouterPathEntry
	for !c.IsEmpty() {
		entry, err := c.Pop(false, false)
		if err != nil {
			return nil, err
		}
		fp, nick, _ := strings.Cut(strings.TrimPrefix(entry, "$"), "~")
		relays = append(relays, RouterPathEntry{Fingerprint: fp, Nickname: nick})
	}

	return &NewDescEvent{
		baseEvent: baseEvent{"NEWDESC", clk.Now(), msg},
		Relays:    relays,
	}, nil
}

// NetworkStatusEvent is the parsed form of a NEWCONSENSUS or NS event: a
// batch of router status entries, per spec.md §4.7.
type NetworkStatusEvent struct {
	baseEvent

	Document NetworkStatusDocument
}

func parseNetworkStatusEvent(msg *ReplyMessage, clk clock.Clock) (Event, error) {
	// A data-bearing line's Content is its header text (the event
	// keyword) followed by the assembled, dot-unstuffed data block
	// joined with "\n"; everything after the first "\n" is the router
	// status body.
	header, rest, _ := strings.Cut(msg.Lines()[0].Content, "\n")
	keyword, _ := splitFirstField(header)

	var bodyLines []string
	if rest != "" {
		bodyLines = append(bodyLines, strings.Split(rest, "\n")...)
	}
	for _, l := range msg.Lines()[1:] {
		if l.Divider != DividerData {
			continue
		}
		bodyLines = append(bodyLines, strings.Split(l.Content, "\n")...)
	}

	return &NetworkStatusEvent{
		baseEvent: baseEvent{keyword, clk.Now(), msg},
		Document:  parseNetworkStatusDocument(bodyLines),
	}, nil
}

// AuthDescriptorAction is the directory authority's disposition of a newly
// uploaded descriptor, reported by AUTHDIR_NEWDESCS.
type AuthDescriptorAction string

// Documented AuthDescriptorAction values.
const (
	AuthDescAccepted AuthDescriptorAction = "ACCEPTED"
	AuthDescDropped  AuthDescriptorAction = "DROPPED"
	AuthDescRejected AuthDescriptorAction = "REJECTED"
)

// AuthDirNewDescsEvent is the parsed form of an AUTHDIR_NEWDESCS event,
// sent only to directory authorities. Each group starts at an "Action:"
// line and runs up to the next one, whatever its length; this package
// retains each group's raw lines since only authorities act on
// this event and spec.md does not name a richer shape for it.
type AuthDirNewDescsEvent struct {
	baseEvent

	Groups [][]string
}

func parseAuthDirNewDescsEvent(msg *ReplyMessage, clk clock.Clock) (Event, error) {
	// The whole AUTHDIR_NEWDESCS body arrives as a single data-bearing
	// Line: its header ("AUTHDIR_NEWDESCS") followed by a "\n" and the
	// assembled, dot-unstuffed data block, in which each reported
	// descriptor group spans several lines.
	_, rest, _ := strings.Cut(msg.Lines()[0].Content, "\n")

	var lines []string
	if rest != "" {
		lines = strings.Split(rest, "\n")
	}

	var groups [][]string
	var current []string
	for _, l := range lines {
		if strings.HasPrefix(l, "Action:") && len(current) > 0 {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, l)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	return &AuthDirNewDescsEvent{
		baseEvent: baseEvent{"AUTHDIR_NEWDESCS", clk.Now(), msg},
		Groups:    groups,
	}, nil
}
