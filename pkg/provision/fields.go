// Package provision generates the stack snapshot once and keeps its mirrors in sync.
package provision

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rzbill/localai/pkg/crypto"
	"github.com/rzbill/localai/pkg/envfile"
)

// Kind selects how a field value is produced.
type Kind string

const (
	// KindSecret is a random secret containing a letter, a digit and a symbol.
	KindSecret Kind = "secret"
	// KindAlphanumeric is a random secret drawn from letters and digits.
	KindAlphanumeric Kind = "alphanumeric"
	// KindHex is Length random bytes, hex encoded.
	KindHex Kind = "hex"
	// KindRange is a random integer in [Min, Max].
	KindRange Kind = "range"
	// KindFixed is the literal Value.
	KindFixed Kind = "fixed"
	// KindToken is a signed token for Role keyed by the snapshot's signing key.
	KindToken Kind = "token"
)

// FieldSpec describes one generated snapshot entry.
type FieldSpec struct {
	Name   string `yaml:"name" mapstructure:"name"`
	Kind   Kind   `yaml:"kind" mapstructure:"kind"`
	Length int    `yaml:"length,omitempty" mapstructure:"length"`
	Min    int    `yaml:"min,omitempty" mapstructure:"min"`
	Max    int    `yaml:"max,omitempty" mapstructure:"max"`
	Value  string `yaml:"value,omitempty" mapstructure:"value"`
	Role   string `yaml:"role,omitempty" mapstructure:"role"`
}

// TokenOptions controls derived token minting.
type TokenOptions struct {
	Issuer     string        `yaml:"issuer" mapstructure:"issuer"`
	TTL        time.Duration `yaml:"ttl" mapstructure:"ttl"`
	SigningKey string        `yaml:"signing_key" mapstructure:"signing_key"`
}

// DefaultTokenOptions signs with JWT_SECRET for ten years.
func DefaultTokenOptions() TokenOptions {
	return TokenOptions{
		Issuer:     "supabase",
		TTL:        10 * 365 * 24 * time.Hour,
		SigningKey: "JWT_SECRET",
	}
}

// DefaultFields returns the field set of the stack snapshot. The signing key
// precedes the tokens that depend on it.
func DefaultFields() []FieldSpec {
	return []FieldSpec{
		{Name: "N8N_ENCRYPTION_KEY", Kind: KindSecret, Length: 32},
		{Name: "N8N_USER_MANAGEMENT_JWT_SECRET", Kind: KindSecret, Length: 32},
		{Name: "POSTGRES_PASSWORD", Kind: KindAlphanumeric, Length: 48},
		{Name: "POSTGRES_HOST", Kind: KindFixed, Value: "db"},
		{Name: "POSTGRES_PORT", Kind: KindFixed, Value: "5432"},
		{Name: "POSTGRES_DB", Kind: KindFixed, Value: "postgres"},
		{Name: "JWT_SECRET", Kind: KindSecret, Length: 64},
		{Name: "DASHBOARD_USERNAME", Kind: KindFixed, Value: "admin"},
		{Name: "DASHBOARD_PASSWORD", Kind: KindSecret, Length: 32},
		{Name: "POOLER_TENANT_ID", Kind: KindRange, Min: 1000, Max: 9999},
		{Name: "SECRET_KEY_BASE", Kind: KindSecret, Length: 64},
		{Name: "VAULT_ENC_KEY", Kind: KindSecret, Length: 32},
		{Name: "LOGFLARE_LOGGER_BACKEND_API_KEY", Kind: KindSecret, Length: 48},
		{Name: "LOGFLARE_API_KEY", Kind: KindSecret, Length: 48},
		{Name: "ANON_KEY", Kind: KindToken, Role: "anon"},
		{Name: "SERVICE_ROLE_KEY", Kind: KindToken, Role: "service_role"},
	}
}

// SecretFieldNames lists the fields whose values must never be logged.
func SecretFieldNames(fields []FieldSpec) []string {
	var out []string
	for _, f := range fields {
		if f.Kind != KindFixed && f.Kind != KindRange {
			out = append(out, f.Name)
		}
	}
	return out
}

// Validate checks a field list before anything is generated.
func Validate(fields []FieldSpec) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if err := envfile.ValidateKey(f.Name); err != nil {
			return err
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %s", f.Name)
		}
		seen[f.Name] = true

		switch f.Kind {
		case KindSecret:
			if f.Length < 3 {
				return fmt.Errorf("field %s: secret length must be at least 3", f.Name)
			}
		case KindAlphanumeric, KindHex:
			if f.Length < 1 {
				return fmt.Errorf("field %s: length must be positive", f.Name)
			}
		case KindRange:
			if f.Max < f.Min {
				return fmt.Errorf("field %s: invalid range [%d, %d]", f.Name, f.Min, f.Max)
			}
		case KindFixed:
		case KindToken:
			if f.Role == "" {
				return fmt.Errorf("field %s: token requires a role", f.Name)
			}
		default:
			return fmt.Errorf("field %s: unknown kind %q", f.Name, f.Kind)
		}
	}
	return nil
}

func generateValue(f FieldSpec, exclude string, s *envfile.Snapshot, tok TokenOptions, now time.Time) (string, error) {
	switch f.Kind {
	case KindSecret:
		return crypto.StrongSecret(f.Length, exclude)
	case KindAlphanumeric:
		return crypto.Alphanumeric(f.Length)
	case KindHex:
		return crypto.RandomHex(f.Length)
	case KindRange:
		n, err := crypto.RandomIntRange(f.Min, f.Max)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(n), nil
	case KindFixed:
		return f.Value, nil
	case KindToken:
		return MintToken(s.Value(tok.SigningKey), f.Role, tok.Issuer, now, tok.TTL)
	default:
		return "", fmt.Errorf("unknown kind %q", f.Kind)
	}
}
