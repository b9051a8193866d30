package tor

// SingleLineResponse is the parsed form of a reply expected to contain
// exactly one line, such as the reply to SIGNAL or SETCONF. It is stricter
// than ReplyMessage.IsOk: IsOk(strict) here additionally requires the
// reply to actually be a single line before reporting success.
type SingleLineResponse struct {
	Code    int
	Content string
}

// ParseSingleLine parses a reply expected to be exactly one line.
func ParseSingleLine(msg *ReplyMessage) (*SingleLineResponse, error) {
	lines := msg.Lines()
	if len(lines) != 1 {
		return nil, NewProtocolError(
			"expected a single-line reply, got %d lines", len(lines),
		)
	}

	return &SingleLineResponse{
		Code:    lines[0].Code,
		Content: lines[0].Content,
	}, nil
}

// IsOk reports success. With strict set, the line's content must be
// exactly "OK"; otherwise a 250 status code alone is enough, matching
// stem's tolerance for replies like "250 Reloading configuration...".
func (r *SingleLineResponse) IsOk(strict bool) bool {
	if r.Code != success {
		return false
	}
	if strict {
		return r.Content == "OK"
	}
	return true
}
