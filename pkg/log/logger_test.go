package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyConfig_TextFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := ApplyConfig(&Config{Level: "warn", Format: "text", DisableColors: true}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("compose call failed", Str("service", "n8n"))
	logger.Error("gave up", Err(errors.New("boom")))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN compose call failed service=n8n")
	assert.Contains(t, out, "ERROR gave up error=boom")
	assert.NotContains(t, out, "\033[")
}

func TestApplyConfig_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := ApplyConfig(&Config{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.With(RunID("r-1")).Debug("probe", Int("attempt", 2))

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, "DEBUG", data["level"])
	assert.Equal(t, "probe", data["message"])
	assert.Equal(t, "r-1", data[RunIDKey])
	assert.EqualValues(t, 2, data["attempt"])
	assert.NotContains(t, data, "caller")
}

func TestApplyConfig_InvalidFormat(t *testing.T) {
	_, err := ApplyConfig(&Config{Level: "info", Format: "xml"}, nil)
	assert.ErrorContains(t, err, "invalid log format")
}

func TestRedactionHook(t *testing.T) {
	var buf bytes.Buffer
	logger, err := ApplyConfig(&Config{
		Format:         "text",
		DisableColors:  true,
		RedactedFields: []string{"JWT_SECRET"},
	}, &buf)
	require.NoError(t, err)

	logger.Info("generated", Str("JWT_SECRET", "s3cr3t"), Str("key", "JWT_SECRET"))

	out := buf.String()
	assert.NotContains(t, out, "s3cr3t")
	assert.Contains(t, out, "JWT_SECRET="+RedactedValue)
	assert.Contains(t, out, "key=JWT_SECRET")
}

func TestBaseLogger_KeyValueArgs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := ApplyConfig(&Config{Format: "text", DisableColors: true}, &buf)
	require.NoError(t, err)

	logger.Infof("running", "cmd", "git", "dangling")

	out := buf.String()
	assert.Contains(t, out, "cmd=git")
	assert.Contains(t, out, "arg2=dangling")
}

func TestBaseLogger_ChildDoesNotLeakFields(t *testing.T) {
	var buf bytes.Buffer
	parent, err := ApplyConfig(&Config{Format: "text", DisableColors: true}, &buf)
	require.NoError(t, err)

	child := parent.WithComponent("teardown")
	child.Info("from child")
	parent.Info("from parent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "component=teardown")
	assert.NotContains(t, lines[1], "component=")
}

func TestTextFormatter_SortsFields(t *testing.T) {
	f := &TextFormatter{DisableColors: true, DisableTimestamp: true}
	b, err := f.Format(&Entry{
		Level:     InfoLevel,
		Message:   "m",
		Fields:    Fields{"b": 2, "a": 1},
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, "INFO m a=1 b=2\n", string(b))
}

func TestTestLogger(t *testing.T) {
	logger := NewTestLogger()
	logger.WithComponent("journal").Warnf("slow", "ms", 40)
	logger.Error("failed")

	assert.True(t, logger.AssertLogged(WarnLevel, "slow"))
	assert.Equal(t, 1, logger.CountAt(ErrorLevel))
	assert.Len(t, logger.GetEntries(), 2)
}

func TestContextLogger(t *testing.T) {
	logger := NewTestLogger()
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}
