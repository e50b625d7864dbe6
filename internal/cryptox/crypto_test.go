package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSecret_RoundTrip(t *testing.T) {
	h, err := HashSecret([]byte("s3cret"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(h, "$2"), "expected bcrypt hash, got %q", h)
	assert.NotEqual(t, "s3cret", h)

	assert.True(t, CompareSecret(h, []byte("s3cret")))
	assert.False(t, CompareSecret(h, []byte("S3cret")))
	assert.False(t, CompareSecret(h, nil))
	assert.False(t, CompareSecret("", []byte("s3cret")))
}

func TestHashSecret_Salted(t *testing.T) {
	a, err := HashSecret([]byte("same"))
	require.NoError(t, err)
	b, err := HashSecret([]byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestHashSecret_LongSecrets(t *testing.T) {
	long := strings.Repeat("x", 100)
	h, err := HashSecret([]byte(long))
	require.NoError(t, err)

	assert.True(t, CompareSecret(h, []byte(long)))
	assert.False(t, CompareSecret(h, []byte(long[:72])), "bytes past 72 still count")
	assert.False(t, CompareSecret(h, []byte(long+"x")))
}

func TestEqualConstantTime(t *testing.T) {
	tests := []struct {
		expected, candidate string
		want                bool
	}{
		{"alice", "alice", true},
		{"alice", "Alice", false},
		{"alice", "alice ", false},
		{"alice", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EqualConstantTime(tt.expected, tt.candidate), "%q vs %q", tt.expected, tt.candidate)
	}
}

func TestBurnCompare_DoesNotPanic(t *testing.T) {
	BurnCompare([]byte("anything"))
	BurnCompare(nil)
}
