package envfile

import (
	"bytes"
	"strings"
)

// Render produces file content for s.
//
// With a nil template every key is written as a NAME=value line in order.
// Otherwise the template is kept line for line: each NAME= line whose NAME is
// in s gets its value replaced on every occurrence, comments and unrelated lines pass through,
// and keys the template never mentions are appended at the end.
func Render(s *Snapshot, template []byte) []byte {
	if template == nil {
		var b bytes.Buffer
		for _, k := range s.keys {
			b.WriteString(k + "=" + s.values[k] + "\n")
		}
		return b.Bytes()
	}

	lines := strings.SplitAfter(string(template), "\n")
	seen := make(map[string]bool, len(s.keys))

	var b bytes.Buffer
	for _, line := range lines {
		if line == "" {
			continue
		}
		key, ok := lineKey(line)
		if !ok {
			b.WriteString(line)
			continue
		}
		value, present := s.values[key]
		if !present {
			b.WriteString(line)
			continue
		}
		seen[key] = true

		body := strings.TrimRight(line, "\r\n")
		eol := line[len(body):]
		prefix := body[:strings.Index(body, "=")+1]
		b.WriteString(prefix + value + eol)
	}

	missing := make([]string, 0)
	for _, k := range s.keys {
		if !seen[k] {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		if b.Len() > 0 && !bytes.HasSuffix(b.Bytes(), []byte("\n")) {
			b.WriteByte('\n')
		}
		for _, k := range missing {
			b.WriteString(k + "=" + s.values[k] + "\n")
		}
	}
	return b.Bytes()
}

// lineKey extracts NAME from a "NAME=value" or "export NAME=value" line.
func lineKey(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	trimmed = strings.TrimPrefix(trimmed, "export ")
	idx := strings.Index(trimmed, "=")
	if idx <= 0 {
		return "", false
	}
	key := strings.TrimSpace(trimmed[:idx])
	if ValidateKey(key) != nil {
		return "", false
	}
	return key, true
}

// lineValue returns the raw text after the first '=' of a NAME=value line.
func lineValue(line string) string {
	body := strings.TrimRight(line, "\r\n")
	idx := strings.Index(body, "=")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(body[idx+1:])
}
