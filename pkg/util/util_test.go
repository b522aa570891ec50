package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.True(t, CheckPassword("s3cret-pass", hash))
	assert.False(t, CheckPassword("wrong-pass", hash))
	assert.False(t, CheckPassword("s3cret-pass", "not-a-hash"))
}

func TestGenerateUUID(t *testing.T) {
	id := GenerateUUID()
	assert.Len(t, id, 36)
	assert.NotEqual(t, id, GenerateUUID())

	compact := GenerateCompactUUID()
	assert.Len(t, compact, 32)
	assert.NotContains(t, compact, "-")
}

func TestGenerateRandomString(t *testing.T) {
	s := GenerateRandomString(16)
	assert.Len(t, s, 16)
	assert.NotEqual(t, s, GenerateRandomString(16))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "exactly", TruncateString("exactly", 7))
	assert.Equal(t, "long ...", TruncateString("long string here", 8))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
}
