package secrets

import (
	"encoding/base64"
	"io"
	"testing"

	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestEnvProvider_EncryptionKey(t *testing.T) {
	t.Run("raw 32 byte key is used as-is", func(t *testing.T) {
		raw := "0123456789abcdef0123456789abcdef"
		provider := NewEnvProvider(raw, quietLogger())

		key, err := provider.EncryptionKey()
		require.NoError(t, err)
		assert.Equal(t, []byte(raw), key)
	})

	t.Run("base64 of 32 bytes is decoded", func(t *testing.T) {
		rawKey := make([]byte, 32)
		for i := range rawKey {
			rawKey[i] = byte(i)
		}
		provider := NewEnvProvider(base64.StdEncoding.EncodeToString(rawKey), quietLogger())

		key, err := provider.EncryptionKey()
		require.NoError(t, err)
		assert.Equal(t, rawKey, key)
	})

	t.Run("other values are derived via hash", func(t *testing.T) {
		provider := NewEnvProvider("uma senha qualquer", quietLogger())

		key, err := provider.EncryptionKey()
		require.NoError(t, err)
		assert.Len(t, key, 32)

		// determinístico entre chamadas
		again, err := provider.EncryptionKey()
		require.NoError(t, err)
		assert.Equal(t, key, again)
	})

	t.Run("empty key is a configuration error", func(t *testing.T) {
		provider := NewEnvProvider("", quietLogger())

		_, err := provider.EncryptionKey()
		assert.True(t, models.IsKind(err, models.ErrorKindConfiguration))
	})
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("segredo-a"))
	b := Fingerprint([]byte("segredo-b"))

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Fingerprint([]byte("segredo-a")))
}
