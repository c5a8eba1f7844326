package log

// RedactedValue replaces the value of a redacted field.
const RedactedValue = "[REDACTED]"

// RedactionHook masks the values of named fields on every entry.
type RedactionHook struct {
	fields map[string]struct{}
}

// NewRedactionHook creates a hook that masks the given field names.
func NewRedactionHook(fields []string) *RedactionHook {
	h := &RedactionHook{fields: make(map[string]struct{}, len(fields))}
	for _, f := range fields {
		h.fields[f] = struct{}{}
	}
	return h
}

// Levels implements Hook.
func (h *RedactionHook) Levels() []Level {
	return []Level{DebugLevel, InfoLevel, WarnLevel, ErrorLevel, FatalLevel}
}

// Fire implements Hook.
func (h *RedactionHook) Fire(entry *Entry) error {
	for k := range entry.Fields {
		if _, ok := h.fields[k]; ok {
			entry.Fields[k] = RedactedValue
		}
	}
	return nil
}
