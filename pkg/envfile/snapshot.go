// Package envfile reads, renders and mirrors NAME=value configuration snapshots.
package envfile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidKey is returned for empty keys or keys containing '=', '#' or whitespace.
	ErrInvalidKey = errors.New("invalid snapshot key")

	// ErrInvalidValue is returned for values containing a line break.
	ErrInvalidValue = errors.New("invalid snapshot value")
)

// Snapshot is an insertion-ordered mapping of variable names to values.
type Snapshot struct {
	keys   []string
	values map[string]string
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{values: make(map[string]string)}
}

// FromPairs builds a snapshot from alternating key, value arguments.
func FromPairs(pairs ...string) (*Snapshot, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("odd number of arguments: %d", len(pairs))
	}
	s := New()
	for i := 0; i < len(pairs); i += 2 {
		if err := s.Set(pairs[i], pairs[i+1]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ValidateKey checks that key can appear on the left side of a NAME=value line.
func ValidateKey(key string) error {
	if key == "" || strings.ContainsAny(key, "=# \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Set stores value under key. A new key is appended to the order; an existing
// key keeps its position.
func (s *Snapshot) Set(key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("%w: %s contains a line break", ErrInvalidValue, key)
	}
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
	return nil
}

// Get returns the value stored under key.
func (s *Snapshot) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Value returns the value under key or the empty string.
func (s *Snapshot) Value(key string) string {
	return s.values[key]
}

// Has reports whether key is present.
func (s *Snapshot) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (s *Snapshot) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of keys.
func (s *Snapshot) Len() int {
	return len(s.keys)
}

// Map returns a copy of the mapping.
func (s *Snapshot) Map() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
