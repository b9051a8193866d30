package tor

import (
	"strings"

	"github.com/lightningnetwork/lnd/clock"
)

// LogSeverity is the severity level of a DEBUG/INFO/NOTICE/WARN/ERR log
// event.
type LogSeverity string

// Documented LogSeverity values.
const (
	LogDebug  LogSeverity = "DEBUG"
	LogInfo   LogSeverity = "INFO"
	LogNotice LogSeverity = "NOTICE"
	LogWarn   LogSeverity = "WARN"
	LogErr    LogSeverity = "ERR"
)

// LogEvent is the parsed form of a Tor daemon log message relayed as an
// asynchronous event.
type LogEvent struct {
	baseEvent

	Severity LogSeverity
	Message  string
}

func parseLogEvent(msg *ReplyMessage, clk clock.Clock) (Event, error) {
	keyword, rest := splitFirstField(msg.Lines()[0].Content)

	return &LogEvent{
		baseEvent: baseEvent{keyword, clk.Now(), msg},
		Severity:  LogSeverity(keyword),
		Message:   rest,
	}, nil
}

// StatusType distinguishes which of Tor's three status event streams a
// StatusEvent came from.
type StatusType string

// Documented StatusType values.
const (
	StatusGeneral StatusType = "GENERAL"
	StatusClient  StatusType = "CLIENT"
	StatusServer  StatusType = "SERVER"
)

// StatusEvent is the parsed form of a STATUS_GENERAL/STATUS_CLIENT/
// STATUS_SERVER event: a severity-tagged named action with free-form
// KEY=VALUE arguments, used for notifications like bootstrap progress.
type StatusEvent struct {
	baseEvent

	StatusType StatusType
	Severity   LogSeverity
	Action     string
	Arguments  map[string]string
}

func parseStatusEvent(msg *ReplyMessage, clk clock.Clock) (Event, error) {
	keyword, _ := splitFirstField(msg.Lines()[0].Content)
	statusType := StatusType(strings.TrimPrefix(keyword, "STATUS_"))

	c := firstLineCursor(msg)
	severity, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}
	action, err := c.Pop(false, false)
	if err != nil {
		return nil, err
	}

	evt := &StatusEvent{
		baseEvent:  baseEvent{keyword, clk.Now(), msg},
		StatusType: statusType,
		Severity:   LogSeverity(severity),
		Action:     action,
		Arguments:  make(map[string]string),
	}

	for {
		key, ok := c.PeekKey()
		if !ok {
			break
		}
		_, value, err := c.PopMapping(false, true)
		if err != nil {
			return nil, err
		}
		evt.Arguments[key] = value
	}

	return evt, nil
}
