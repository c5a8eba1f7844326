package log

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// JSONFormatter renders one JSON object per line.
type JSONFormatter struct {
	TimestampFormat string
	EnableCaller    bool
}

// Format implements Formatter.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	layout := time.RFC3339
	if f.TimestampFormat != "" {
		layout = f.TimestampFormat
	}

	data := make(map[string]interface{}, len(entry.Fields)+4)
	for k, v := range entry.Fields {
		data[k] = v
	}
	data["timestamp"] = entry.Timestamp.Format(layout)
	data["level"] = entry.Level.String()
	data["message"] = entry.Message
	if f.EnableCaller {
		data["caller"] = entry.Caller
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// TextFormatter renders human-readable lines: "time LVL message key=value ...".
type TextFormatter struct {
	TimestampFormat  string
	EnableCaller     bool
	DisableColors    bool
	DisableTimestamp bool
}

// NewTextFormatter returns a text formatter with a short wall-clock timestamp.
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{TimestampFormat: "15:04:05"}
}

// Format implements Formatter. Fields are sorted so output is stable.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var b strings.Builder

	if !f.DisableTimestamp {
		layout := f.TimestampFormat
		if layout == "" {
			layout = "2006-01-02T15:04:05.000"
		}
		b.WriteString(f.paint(colorDim, entry.Timestamp.Format(layout)))
		b.WriteByte(' ')
	}

	b.WriteString(f.level(entry.Level))
	if f.EnableCaller && entry.Caller != "" {
		b.WriteString(" (" + f.paint(colorDim, entry.Caller) + ")")
	}
	b.WriteByte(' ')
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", f.paint(colorCyan, k), entry.Fields[k])
	}
	b.WriteByte('\n')

	return []byte(b.String()), nil
}

func (f *TextFormatter) paint(color, s string) string {
	if f.DisableColors {
		return s
	}
	return color + s + colorReset
}

func (f *TextFormatter) level(level Level) string {
	tag := level.String()
	if f.DisableColors {
		return tag
	}
	switch level {
	case DebugLevel:
		return colorBlue + "DBG" + colorReset
	case InfoLevel:
		return colorGreen + "INF" + colorReset
	case WarnLevel:
		return colorYellow + "WRN" + colorReset
	case ErrorLevel:
		return colorRed + "ERR" + colorReset
	case FatalLevel:
		return colorRed + "FTL" + colorReset
	default:
		return tag
	}
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[90m"
)
