package crypto

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCharset_Exclusion(t *testing.T) {
	cs := NewCharset(DefaultExclude)
	for _, c := range DefaultExclude {
		assert.NotContains(t, cs.Alphabet(), string(c))
	}
	assert.Len(t, cs.Letters, 52)
	assert.Len(t, cs.Digits, 10)
	assert.NotEmpty(t, cs.Symbols)
}

func TestStrongSecret_ClassCoverage(t *testing.T) {
	cs := NewCharset(DefaultExclude)
	for _, length := range []int{3, 4, 16, 32, 48, 64} {
		for i := 0; i < 50; i++ {
			s, err := StrongSecret(length, DefaultExclude)
			require.NoError(t, err)
			assert.Len(t, s, length)
			assert.True(t, strings.ContainsAny(s, cs.Letters), "no letter in %q", s)
			assert.True(t, strings.ContainsAny(s, cs.Digits), "no digit in %q", s)
			assert.True(t, strings.ContainsAny(s, cs.Symbols), "no symbol in %q", s)
			for _, c := range s {
				assert.True(t, strings.ContainsRune(cs.Alphabet(), c), "unexpected %q", c)
			}
		}
	}
}

func TestStrongSecret_Errors(t *testing.T) {
	_, err := StrongSecret(2, DefaultExclude)
	assert.ErrorIs(t, err, ErrSecretTooShort)

	_, err = StrongSecret(16, punctuation)
	assert.ErrorIs(t, err, ErrNoSymbols)
}

func TestRandomSecret_RespectsExclusion(t *testing.T) {
	s, err := RandomSecret(256, DefaultExclude)
	require.NoError(t, err)
	assert.Len(t, s, 256)
	assert.False(t, strings.ContainsAny(s, DefaultExclude))
}

func TestAlphanumeric(t *testing.T) {
	s, err := Alphanumeric(48)
	require.NoError(t, err)
	assert.Len(t, s, 48)
	assert.False(t, strings.ContainsAny(s, punctuation))
}

func TestRandomString_Validation(t *testing.T) {
	_, err := RandomString(-1, "abc")
	assert.Error(t, err)
	_, err = RandomString(4, "")
	assert.Error(t, err)

	s, err := RandomString(0, "abc")
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestRandomHex(t *testing.T) {
	s, err := RandomHex(32)
	require.NoError(t, err)
	assert.Len(t, s, 64)
	_, err = hex.DecodeString(s)
	assert.NoError(t, err)
}

func TestRandomIntRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		n, err := RandomIntRange(1000, 9999)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1000)
		assert.LessOrEqual(t, n, 9999)
	}
	_, err := RandomIntRange(5, 1)
	assert.Error(t, err)
}
