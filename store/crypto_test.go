package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	cipher := NewFieldCipher("unit-test-key")

	encrypted, err := cipher.Encrypt("hpp-password-123")
	assert.NoError(t, err)
	assert.NotEqual(t, "hpp-password-123", encrypted)
	assert.False(t, strings.Contains(encrypted, "hpp-password-123"))

	decrypted, err := cipher.Decrypt(encrypted)
	assert.NoError(t, err)
	assert.Equal(t, "hpp-password-123", decrypted)
}

func TestEncryptProducesFreshNonce(t *testing.T) {
	cipher := NewFieldCipher("unit-test-key")

	first, err := cipher.Encrypt("same-value")
	assert.NoError(t, err)
	second, err := cipher.Encrypt("same-value")
	assert.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	encrypted, err := NewFieldCipher("key-one").Encrypt("value")
	assert.NoError(t, err)

	_, err = NewFieldCipher("key-two").Decrypt(encrypted)
	assert.Error(t, err)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	cipher := NewFieldCipher("unit-test-key")

	_, err := cipher.Decrypt("not base64 at all!!!")
	assert.Error(t, err)

	_, err = cipher.Decrypt("c2hvcnQ=")
	assert.Error(t, err)
}
