package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	letters     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits      = "0123456789"
	punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// DefaultExclude lists the symbols never emitted into an env file: the XML/shell
// metacharacters, compose interpolation ($), backtick, backslash and the comment marker.
const DefaultExclude = "@<>&'\"$`\\#"

var (
	// ErrSecretTooShort is returned when a strong secret cannot hold one
	// character from every class.
	ErrSecretTooShort = errors.New("secret length must be at least 3")

	// ErrNoSymbols is returned when the exclusion set removes every symbol.
	ErrNoSymbols = errors.New("exclusion set leaves no symbols")
)

// Charset is the alphabet a secret is drawn from, split by class.
type Charset struct {
	Letters string
	Digits  string
	Symbols string
}

// NewCharset returns ASCII letters, digits and punctuation with every character
// in exclude removed.
func NewCharset(exclude string) Charset {
	keep := func(set string) string {
		var b strings.Builder
		for _, c := range set {
			if !strings.ContainsRune(exclude, c) {
				b.WriteRune(c)
			}
		}
		return b.String()
	}
	return Charset{
		Letters: keep(letters),
		Digits:  keep(digits),
		Symbols: keep(punctuation),
	}
}

// Alphabet is the concatenation of all three classes.
func (c Charset) Alphabet() string {
	return c.Letters + c.Digits + c.Symbols
}

// RandomString draws length characters uniformly from alphabet.
func RandomString(length int, alphabet string) (string, error) {
	if length < 0 {
		return "", fmt.Errorf("invalid length %d", length)
	}
	if alphabet == "" {
		return "", errors.New("empty alphabet")
	}

	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// RandomSecret draws a secret over the charset left after exclude.
// No class coverage is enforced.
func RandomSecret(length int, exclude string) (string, error) {
	return RandomString(length, NewCharset(exclude).Alphabet())
}

// Alphanumeric draws a secret from letters and digits only.
func Alphanumeric(length int) (string, error) {
	return RandomString(length, letters+digits)
}

// StrongSecret draws secrets until one contains at least one letter, one digit
// and one symbol. Candidates are rejected whole, so the accepted value stays
// uniform over the qualifying strings.
func StrongSecret(length int, exclude string) (string, error) {
	if length < 3 {
		return "", ErrSecretTooShort
	}
	cs := NewCharset(exclude)
	if cs.Symbols == "" {
		return "", ErrNoSymbols
	}
	alphabet := cs.Alphabet()

	for {
		s, err := RandomString(length, alphabet)
		if err != nil {
			return "", err
		}
		if cs.covers(s) {
			return s, nil
		}
	}
}

func (c Charset) covers(s string) bool {
	return strings.ContainsAny(s, c.Letters) &&
		strings.ContainsAny(s, c.Digits) &&
		strings.ContainsAny(s, c.Symbols)
}
