package tor

import "strings"

// ProtocolInfoResponse is the parsed form of a PROTOCOLINFO reply, used
// before authentication to discover the daemon's version and the
// authentication methods it accepts.
type ProtocolInfoResponse struct {
	ProtocolVersion int
	TorVersion      string
	AuthMethods     []string
	CookieFile      string
}

// SupportsAuthMethod reports whether the daemon advertised the given
// authentication method (e.g. "SAFECOOKIE", "HASHEDPASSWORD", "NULL").
func (p *ProtocolInfoResponse) SupportsAuthMethod(method string) bool {
	for _, m := range p.AuthMethods {
		if m == method {
			return true
		}
	}
	return false
}

// ParseProtocolInfo parses a completed PROTOCOLINFO reply.
func ParseProtocolInfo(msg *ReplyMessage) (*ProtocolInfoResponse, error) {
	resp := &ProtocolInfoResponse{}

	for _, line := range msg.Lines() {
		c := NewParsedLineCursor(line.Content)
		first, err := c.Pop(false, false)
		if err != nil {
			continue
		}

		switch first {
		case "PROTOCOLINFO":
			verStr, err := c.Pop(false, false)
			if err == nil {
				var v int
				for _, ch := range verStr {
					if ch < '0' || ch > '9' {
						v = 0
						break
					}
					v = v*10 + int(ch-'0')
				}
				resp.ProtocolVersion = v
			}

		case "AUTH":
			for {
				key, ok := c.PeekKey()
				if !ok {
					break
				}
				_, value, err := c.PopMapping(false, true)
				if err != nil {
					break
				}
				switch key {
				case "METHODS":
					resp.AuthMethods = strings.Split(value, ",")
				case "COOKIEFILE":
					resp.CookieFile = value
				}
			}

		case "VERSION":
			if _, value, err := c.PopMapping(false, true); err == nil {
				resp.TorVersion = value
			}

		case "OK":
			// EndReplyLine, nothing further to parse.
		}
	}

	return resp, nil
}
