package logtail

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap/zapcore"
)

// Keys written by the application logger.
const (
	keyTime    = "ts"
	keyLevel   = "level"
	keyLogger  = "logger"
	keyCaller  = "caller"
	keyMessage = "msg"
	keyStack   = "stacktrace"
)

// Entry is one decoded log line.
type Entry struct {
	Time    time.Time
	Level   zapcore.Level
	Logger  string
	Caller  string
	Message string
	Fields  map[string]any
	Raw     string
}

// Parse decodes a JSON log line. Lines that are not JSON objects are
// returned as info entries carrying the raw text, with ok false.
func Parse(line string) (Entry, bool) {
	entry := Entry{Raw: line, Level: zapcore.InfoLevel}
	var obj map[string]any
	if err := json.Unmarshal([]byte(line), &obj); err != nil || obj == nil {
		entry.Message = strings.TrimSpace(line)
		return entry, false
	}

	if ts, ok := obj[keyTime].(string); ok {
		entry.Time = parseTime(ts)
	}
	if lvl, ok := obj[keyLevel].(string); ok {
		if err := entry.Level.UnmarshalText([]byte(lvl)); err != nil {
			entry.Level = zapcore.InfoLevel
		}
	}
	entry.Logger, _ = obj[keyLogger].(string)
	entry.Caller, _ = obj[keyCaller].(string)
	entry.Message, _ = obj[keyMessage].(string)

	for _, k := range []string{keyTime, keyLevel, keyLogger, keyCaller, keyMessage, keyStack} {
		delete(obj, k)
	}
	if len(obj) > 0 {
		entry.Fields = obj
	}
	return entry, true
}

func parseTime(value string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05.000Z0700", time.RFC3339Nano} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// FieldString renders the structured fields as sorted key=value pairs.
func (e Entry) FieldString() string {
	if len(e.Fields) == 0 {
		return ""
	}
	keys := lo.Keys(e.Fields)
	sort.Strings(keys)
	parts := lo.Map(keys, func(k string, _ int) string {
		return fmt.Sprintf("%s=%v", k, e.Fields[k])
	})
	return strings.Join(parts, " ")
}

// Matches reports whether the message, logger or fields contain query,
// ignoring case.
func (e Entry) Matches(query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	for _, s := range []string{e.Message, e.Logger, e.FieldString()} {
		if strings.Contains(strings.ToLower(s), query) {
			return true
		}
	}
	return false
}

// Filter keeps entries at or above minLevel that match query.
func Filter(entries []Entry, minLevel zapcore.Level, query string) []Entry {
	return lo.Filter(entries, func(e Entry, _ int) bool {
		return e.Level >= minLevel && e.Matches(query)
	})
}
