package tor

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParsedLineCursorPop(t *testing.T) {
	c := NewParsedLineCursor(`foo "bar baz" qux`)

	v, err := c.Pop(false, false)
	require.NoError(t, err)
	require.Equal(t, "foo", v)

	v, err = c.Pop(true, false)
	require.NoError(t, err)
	require.Equal(t, "bar baz", v)

	v, err = c.Pop(false, false)
	require.NoError(t, err)
	require.Equal(t, "qux", v)

	require.True(t, c.IsEmpty())
}

func TestParsedLineCursorPopMapping(t *testing.T) {
	c := NewParsedLineCursor(`NICKNAME=relay1 ADDRESS="1.2.3.4" PORT=9001`)

	key, value, err := c.PopMapping(false, true)
	require.NoError(t, err)
	require.Equal(t, "NICKNAME", key)
	require.Equal(t, "relay1", value)

	key, value, err = c.PopMapping(false, true)
	require.NoError(t, err)
	require.Equal(t, "ADDRESS", key)
	require.Equal(t, "1.2.3.4", value)

	key, value, err = c.PopMapping(false, true)
	require.NoError(t, err)
	require.Equal(t, "PORT", key)
	require.Equal(t, "9001", value)
}

func TestParsedLineCursorEscapes(t *testing.T) {
	c := NewParsedLineCursor(`"line one\nline two"`)

	v, err := c.Pop(true, true)
	require.NoError(t, err)
	require.Equal(t, "line one\nline two", v)
}

func TestPeekKeyDoesNotConsume(t *testing.T) {
	c := NewParsedLineCursor("STATUS=NEW")

	key, ok := c.PeekKey()
	require.True(t, ok)
	require.Equal(t, "STATUS", key)

	// Peeking must not have consumed anything.
	key, value, err := c.PopMapping(false, false)
	require.NoError(t, err)
	require.Equal(t, "STATUS", key)
	require.Equal(t, "NEW", value)
}

// TestPopMappingRoundTrip checks that popping every mapping off a
// synthetically constructed KEY=VALUE line reconstructs the original
// values, for arbitrary alphanumeric keys and values free of spaces/quotes.
func TestPopMappingRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		keyGen := rapid.StringMatching(`[A-Z][A-Z0-9_]{0,8}`)
		valGen := rapid.StringMatching(`[a-zA-Z0-9.:/]{1,12}`)

		n := rapid.IntRange(1, 5).Draw(rt, "n")
		keys := make([]string, n)
		values := make([]string, n)

		var line string
		for i := 0; i < n; i++ {
			keys[i] = keyGen.Draw(rt, "key")
			values[i] = valGen.Draw(rt, "val")
			if i > 0 {
				line += " "
			}
			line += keys[i] + "=" + values[i]
		}

		c := NewParsedLineCursor(line)
		for i := 0; i < n; i++ {
			key, value, err := c.PopMapping(false, false)
			require.NoError(rt, err)
			require.Equal(rt, keys[i], key)
			require.Equal(rt, values[i], value)
		}
		require.True(rt, c.IsEmpty())
	})
}
