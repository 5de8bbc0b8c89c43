package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreachly/config"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"

	encrypted, err := Encrypt("smtp-secret-password")
	require.NoError(t, err)
	assert.NotEqual(t, "smtp-secret-password", encrypted)

	decrypted, err := Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "smtp-secret-password", decrypted)
}

func TestEncryptEmptyString(t *testing.T) {
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"

	encrypted, err := Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, encrypted)

	decrypted, err := Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, decrypted)
}

func TestDecryptGarbageFails(t *testing.T) {
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"

	_, err := Decrypt("not-base64!!")
	assert.Error(t, err)

	_, err = Decrypt("c2hvcnQ=") // valid base64, shorter than one AES block
	assert.Error(t, err)
}
