package tor

import "strings"

// ReplyMessage is one complete Tor control reply: every line up to and
// including its EndReplyLine. Each Line keeps its own status code; the
// assembler does not reject a reply whose lines carry different codes
// (MAPADDRESS reports a failed entry that way).
type ReplyMessage struct {
	code  int
	lines []Line
	raw   string
}

// Code returns the status code of the reply's last line (ordinarily the
// EndReplyLine).
func (m *ReplyMessage) Code() int {
	return m.code
}

// Lines returns every line of the reply, in order.
func (m *ReplyMessage) Lines() []Line {
	return m.lines
}

// Raw returns the unparsed, CRLF-joined text of the reply as it arrived on
// the wire (data block lines still dot-stuffed).
func (m *ReplyMessage) Raw() string {
	return m.raw
}

// IsOk reports whether this reply indicates success. With strict set, every
// line of the reply must carry status 250; otherwise it is enough that at
// least one line does, matching stem's ControlMessage.is_ok, which tolerates
// replies such as asynchronous event echoes that mix a 250 line with
// others.
func (m *ReplyMessage) IsOk(strict bool) bool {
	if len(m.lines) == 0 {
		return false
	}

	if strict {
		for _, l := range m.lines {
			if l.Code != success {
				return false
			}
		}
		return true
	}

	for _, l := range m.lines {
		if l.Code == success {
			return true
		}
	}
	return false
}

// assemblerState is the state of the message assembler state machine of
// spec.md §4.2.
type assemblerState int

const (
	stateIdle assemblerState = iota
	stateMidReply
	stateData
)

// assembler turns a stream of raw CRLF-stripped wire lines into complete
// ReplyMessage values. It is not safe for concurrent use; the message pump
// owns a single assembler per connection and feeds it one line at a time.
type assembler struct {
	state        assemblerState
	code         int
	lines        []Line
	rawLines     []string
	dataDivider  Divider
	dataHeader   string
	dataAccum    []string
}

func newAssembler() *assembler {
	return &assembler{state: stateIdle}
}

// reset clears any partially-assembled reply so the assembler can be reused
// for the next one.
func (a *assembler) reset() {
	a.state = stateIdle
	a.code = 0
	a.lines = nil
	a.rawLines = nil
	a.dataHeader = ""
	a.dataAccum = nil
}

// Feed processes one raw wire line (CRLF already stripped) and returns a
// completed ReplyMessage once an EndReplyLine has been consumed. A nil
// message with a nil error means the reply is still in progress.
func (a *assembler) Feed(raw string) (*ReplyMessage, error) {
	if a.state == stateData {
		return a.feedDataLine(raw)
	}
	return a.feedHeaderLine(raw)
}

func (a *assembler) feedHeaderLine(raw string) (*ReplyMessage, error) {
	code, div, content, err := parseReplyLine(raw)
	if err != nil {
		a.reset()
		return nil, err
	}

	// Most commands keep the same status code across every line of a
	// reply, but some (MAPADDRESS in particular) report a per-entry
	// code on a MidReplyLine when one of several requested operations
	// fails while the others succeed. Each Line retains its own code,
	// so ReplyMessage.Code simply reflects whichever line was read
	// last (ordinarily the EndReplyLine).
	a.code = code
	a.rawLines = append(a.rawLines, raw)

	switch div {
	case DividerEnd:
		a.lines = append(a.lines, Line{code, div, content})
		return a.complete(), nil

	case DividerMid:
		a.lines = append(a.lines, Line{code, div, content})
		a.state = stateMidReply
		return nil, nil

	case DividerData:
		a.dataDivider = div
		a.dataHeader = content
		a.dataAccum = nil
		a.state = stateData
		return nil, nil
	}

	// Unreachable: parseReplyLine already validated div.
	return nil, NewProtocolError("invalid divider in line: %q", raw)
}

func (a *assembler) feedDataLine(raw string) (*ReplyMessage, error) {
	a.rawLines = append(a.rawLines, raw)

	if raw == "." {
		joined := strings.Join(a.dataAccum, "\n")
		content := a.dataHeader
		if joined != "" {
			content += "\n" + joined
		}
		a.lines = append(a.lines, Line{a.code, a.dataDivider, content})
		a.dataAccum = nil
		a.state = stateMidReply
		return nil, nil
	}

	// Dot-stuffing: a line beginning with "." in the data block has an
	// extra leading "." prepended on the wire to disambiguate it from
	// the terminator.
	if strings.HasPrefix(raw, "..") {
		raw = raw[1:]
	}
	a.dataAccum = append(a.dataAccum, raw)
	return nil, nil
}

func (a *assembler) complete() *ReplyMessage {
	msg := &ReplyMessage{
		code:  a.code,
		lines: a.lines,
		raw:   strings.Join(a.rawLines, "\r\n"),
	}
	a.reset()
	return msg
}
