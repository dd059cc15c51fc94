package service

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	secret, err := generateSecret()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(secret, "am_"))
	assert.Len(t, secret, 3+48, "am_ plus 24 random bytes hex-encoded")

	_, err = hex.DecodeString(strings.TrimPrefix(secret, "am_"))
	assert.NoError(t, err)

	// Prefix and last4 displayed in listings come straight off the secret.
	assert.Len(t, secret[:keyPrefixLen], keyPrefixLen)

	other, err := generateSecret()
	require.NoError(t, err)
	assert.NotEqual(t, secret, other)
}
