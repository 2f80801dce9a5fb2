package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewAESEncryptor(bytes.Repeat([]byte{0x5a}, 32))
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("9434765919")
	require.NoError(t, err)
	assert.NotEqual(t, "9434765919", ciphertext)

	plain, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "9434765919", plain)
}

func TestEncryptorRejectsBadKey(t *testing.T) {
	_, err := NewAESEncryptor([]byte("short"))
	assert.Error(t, err)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	enc, err := NewAESEncryptor(bytes.Repeat([]byte{0x01}, 32))
	require.NoError(t, err)

	_, err = enc.Decrypt("not base64!!")
	assert.Error(t, err)

	_, err = enc.Decrypt("YWJj") // too short for a nonce
	assert.Error(t, err)
}
