package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_Generate(t *testing.T) {
	codec := NewCodec()

	t.Run("generates verifiable pair", func(t *testing.T) {
		secret, digest, err := codec.Generate(24)

		require.NoError(t, err)
		assert.NotEmpty(t, secret)
		assert.Len(t, digest, 64)
		assert.True(t, codec.Verify(secret, digest))
	})

	t.Run("secrets are unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 100 {
			secret, _, err := codec.Generate(24)
			require.NoError(t, err)
			assert.False(t, seen[secret])
			seen[secret] = true
		}
	})

	t.Run("secret is URL safe", func(t *testing.T) {
		secret, _, err := codec.Generate(24)
		require.NoError(t, err)
		assert.NotContains(t, secret, "+")
		assert.NotContains(t, secret, "/")
		assert.NotContains(t, secret, "=")
	})

	t.Run("rejects entropy below 128 bits", func(t *testing.T) {
		_, _, err := codec.Generate(8)

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEntropyTooLow)
	})
}

func TestCodec_Verify(t *testing.T) {
	codec := NewCodec()

	secret, digest, err := codec.Generate(24)
	require.NoError(t, err)

	t.Run("rejects wrong secret", func(t *testing.T) {
		other, _, err := codec.Generate(24)
		require.NoError(t, err)

		assert.False(t, codec.Verify(other, digest))
	})

	t.Run("rejects tampered digest", func(t *testing.T) {
		assert.False(t, codec.Verify(secret, digest[:len(digest)-1]+"0"))
		assert.False(t, codec.Verify(secret, ""))
	})
}

func TestCodec_GenerateCode(t *testing.T) {
	codec := NewCodec()

	t.Run("produces digits of requested length", func(t *testing.T) {
		for _, length := range []int{4, 6} {
			code, err := codec.GenerateCode(length)

			require.NoError(t, err)
			assert.Len(t, code, length)
			for _, r := range code {
				assert.GreaterOrEqual(t, r, '0')
				assert.LessOrEqual(t, r, '9')
			}
		}
	})

	t.Run("rejects non-positive length", func(t *testing.T) {
		_, err := codec.GenerateCode(0)
		require.Error(t, err)
	})
}
