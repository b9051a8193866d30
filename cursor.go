package tor

import (
	"strings"
	"sync"
)

// controlEscapes are the backslash escape sequences the control protocol
// recognizes inside quoted values, per spec.md §4.1 and
// original_source/stem/response/__init__.py's CONTROL_ESCAPES table.
var controlEscapes = map[string]byte{
	`\\`: '\\',
	`\"`: '"',
	`\'`: '\'',
	`\r`: '\r',
	`\n`: '\n',
	`\t`: '\t',
}

func unescapeControl(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			if repl, ok := controlEscapes[s[i:i+2]]; ok {
				b.WriteByte(repl)
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// findClosingQuote returns the index within s of the first unescaped '"',
// or -1 if none is found.
func findClosingQuote(s string) int {
	escaped := false
	for i := 0; i < len(s); i++ {
		if escaped {
			escaped = false
			continue
		}
		switch s[i] {
		case '\\':
			escaped = true
		case '"':
			return i
		}
	}
	return -1
}

// ParsedLineCursor walks the space-delimited entries of a single reply
// line's content, handling quoted values and KEY=VALUE mappings. It is
// grounded on stem's ControlLine, which spec.md's distillation summarizes
// but does not fully specify; the cursor is mutex-guarded so the same
// Line's content can be inspected from more than one goroutine (for
// instance, a parser peeking a key before deciding which of several
// sibling parsers should consume it).
type ParsedLineCursor struct {
	mu      sync.Mutex
	content string
}

// NewParsedLineCursor creates a cursor over a line's content (the text
// following the status code and divider).
func NewParsedLineCursor(content string) *ParsedLineCursor {
	return &ParsedLineCursor{content: content}
}

// Remaining returns the not-yet-popped tail of the line.
func (c *ParsedLineCursor) Remaining() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

// IsEmpty reports whether every entry has been popped.
func (c *ParsedLineCursor) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.TrimLeft(c.content, " ") == ""
}

// IsNextQuoted reports whether the next entry is a quoted value.
func (c *ParsedLineCursor) IsNextQuoted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	rest := strings.TrimLeft(c.content, " ")
	return strings.HasPrefix(rest, `"`)
}

// PeekKey returns the key half of the next entry if it looks like a
// KEY=VALUE mapping (an unescaped '=' appears before the next unescaped
// space), without consuming it.
func (c *ParsedLineCursor) PeekKey() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rest := strings.TrimLeft(c.content, " ")
	escaped := false
	for i := 0; i < len(rest); i++ {
		switch {
		case escaped:
			escaped = false
		case rest[i] == '\\':
			escaped = true
		case rest[i] == ' ':
			return "", false
		case rest[i] == '=':
			return rest[:i], true
		}
	}
	return "", false
}

// IsNextMapping reports whether the next entry is a KEY=VALUE mapping for
// the given key. An empty key only checks that some "key=" mapping is
// next.
func (c *ParsedLineCursor) IsNextMapping(key string, quoted, escaped bool) bool {
	peeked, ok := c.PeekKey()
	if !ok {
		return false
	}
	if key != "" && peeked != key {
		return false
	}
	_ = quoted
	_ = escaped
	return true
}

// Pop removes and returns the next space-delimited entry. If quoted, the
// entry must be a double-quoted value (the surrounding quotes are
// stripped); if escaped, backslash escape sequences within the value are
// decoded.
func (c *ParsedLineCursor) Pop(quoted, escaped bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.popLocked(quoted, escaped)
}

func (c *ParsedLineCursor) popLocked(quoted, escaped bool) (string, error) {
	rest := strings.TrimLeft(c.content, " ")
	if rest == "" {
		return "", NewProtocolError("no remaining content to pop")
	}

	var value, remainder string
	if quoted {
		if rest[0] != '"' {
			return "", NewProtocolError(
				"expected a quoted value, got: %q", rest,
			)
		}
		idx := findClosingQuote(rest[1:])
		if idx < 0 {
			return "", NewProtocolError(
				"unterminated quoted value: %q", rest,
			)
		}
		value = rest[1 : 1+idx]
		remainder = rest[1+idx+1:]
	} else {
		idx := strings.IndexByte(rest, ' ')
		if idx < 0 {
			value = rest
			remainder = ""
		} else {
			value = rest[:idx]
			remainder = rest[idx+1:]
		}
	}

	if escaped {
		value = unescapeControl(value)
	}

	c.content = remainder
	return value, nil
}

// PopMapping removes and returns the next KEY=VALUE entry as separate key
// and value strings. Whether the value is quoted is auto-detected by
// inspecting the character following "KEY="; the quoted parameter is
// accepted for symmetry with Pop but is otherwise unused.
func (c *ParsedLineCursor) PopMapping(quoted, escaped bool) (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = quoted

	rest := strings.TrimLeft(c.content, " ")
	c.content = rest

	key, ok := c.peekKeyLocked()
	if !ok {
		return "", "", NewProtocolError(
			"expected a KEY=VALUE mapping, got: %q", rest,
		)
	}

	// Consume "KEY=" before popping the value half with the normal
	// entry-popping rules.
	c.content = c.content[len(key)+1:]
	valueQuoted := strings.HasPrefix(c.content, `"`)

	value, err := c.popLocked(valueQuoted, escaped)
	if err != nil {
		return "", "", err
	}
	return key, value, nil
}

func (c *ParsedLineCursor) peekKeyLocked() (string, bool) {
	rest := c.content
	escaped := false
	for i := 0; i < len(rest); i++ {
		switch {
		case escaped:
			escaped = false
		case rest[i] == '\\':
			escaped = true
		case rest[i] == ' ':
			return "", false
		case rest[i] == '=':
			return rest[:i], true
		}
	}
	return "", false
}
