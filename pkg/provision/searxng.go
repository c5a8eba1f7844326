package provision

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rzbill/localai/pkg/crypto"
	"github.com/rzbill/localai/pkg/envfile"
)

// ErrBaseSettingsNotFound is returned when the search engine base settings are absent.
var ErrBaseSettingsNotFound = errors.New("searxng base settings not found")

// SearXNGPlaceholder is the secret key value shipped in the base settings.
const SearXNGPlaceholder = "ultrasecretkey"

type searxngSettings struct {
	Server struct {
		SecretKey string `yaml:"secret_key"`
	} `yaml:"server"`
}

// EnsureSearXNGKey copies base to settings when settings is absent and
// replaces the placeholder secret with a fresh 32 byte hex key. It reports
// whether a key was written. Settings that already carry a real key are
// left alone.
func EnsureSearXNGKey(base, settings string) (bool, error) {
	if !envfile.Exists(base) {
		return false, fmt.Errorf("%w: %s", ErrBaseSettingsNotFound, base)
	}
	if !envfile.Exists(settings) {
		data, err := os.ReadFile(base)
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", base, err)
		}
		if err := envfile.WriteFileAtomic(settings, data, 0o644); err != nil {
			return false, err
		}
	}

	data, err := os.ReadFile(settings)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", settings, err)
	}
	if !strings.Contains(string(data), SearXNGPlaceholder) {
		return false, nil
	}

	key, err := crypto.RandomHex(32)
	if err != nil {
		return false, err
	}
	updated := strings.ReplaceAll(string(data), SearXNGPlaceholder, key)

	var parsed searxngSettings
	if err := yaml.Unmarshal([]byte(updated), &parsed); err != nil {
		return false, fmt.Errorf("invalid settings %s: %w", settings, err)
	}

	if err := envfile.WriteFileAtomic(settings, []byte(updated), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
