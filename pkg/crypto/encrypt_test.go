package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestNewEncryptorKeyLength(t *testing.T) {
	_, err := NewEncryptor("short")
	assert.Error(t, err)

	_, err = NewEncryptor(testKey)
	assert.NoError(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	secret := []byte("am_0123456789abcdef0123456789abcdef0123456789abcdef")
	ciphertext, err := enc.Encrypt(secret)
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "am_", "plaintext must not leak")

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, secret, plaintext)

	// A fresh nonce per call means identical plaintexts encrypt differently.
	again, err := enc.Encrypt(secret)
	require.NoError(t, err)
	assert.NotEqual(t, ciphertext, again)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	_, err = enc.Decrypt("not base64!!")
	assert.Error(t, err)

	_, err = enc.Decrypt("c2hvcnQ=") // valid base64, shorter than a nonce
	assert.Error(t, err)

	// Decrypting with a different key must fail authentication.
	other, err := NewEncryptor("ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	ciphertext, err := other.Encrypt([]byte("secret"))
	require.NoError(t, err)
	_, err = enc.Decrypt(ciphertext)
	assert.Error(t, err)
}
