package log

import (
	"fmt"
	"io"
	"strings"
)

// Config selects the level, format and redaction rules of a logger.
type Config struct {
	Level          string   `yaml:"level" mapstructure:"level"`
	Format         string   `yaml:"format" mapstructure:"format"`
	EnableCaller   bool     `yaml:"enable_caller" mapstructure:"enable_caller"`
	DisableColors  bool     `yaml:"-" mapstructure:"-"`
	RedactedFields []string `yaml:"redacted_fields" mapstructure:"redacted_fields"`
}

// DefaultConfig returns INFO level text logging.
func DefaultConfig() *Config {
	return &Config{Level: "info", Format: "text"}
}

// ApplyConfig builds a logger that writes to w (stderr when nil).
func ApplyConfig(config *Config, w io.Writer) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	options := []LoggerOption{WithLevel(level)}

	switch strings.ToLower(config.Format) {
	case "json":
		options = append(options, WithFormatter(&JSONFormatter{EnableCaller: config.EnableCaller}))
	case "text", "":
		tf := NewTextFormatter()
		tf.EnableCaller = config.EnableCaller
		tf.DisableColors = config.DisableColors
		options = append(options, WithFormatter(tf))
	default:
		return nil, fmt.Errorf("invalid log format: %s", config.Format)
	}

	if w != nil {
		options = append(options, WithOutput(NewConsoleOutput(WithCustomWriter(w))))
	} else {
		options = append(options, WithOutput(NewConsoleOutput(WithStderr())))
	}

	if len(config.RedactedFields) > 0 {
		options = append(options, WithHook(NewRedactionHook(config.RedactedFields)))
	}

	return NewLogger(options...), nil
}

// ParseLevel parses a level name.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}
