package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

// MinEntropyBytes is the smallest secret the codec will generate. 16 bytes
// keeps every link token at or above 128 bits of entropy.
const MinEntropyBytes = 16

var ErrEntropyTooLow = errors.New("token entropy below 128 bits")

// Codec turns high-entropy random bytes into URL-safe opaque secrets and
// their storable digests. Only the digest is ever persisted; the secret
// exists in the initiator's response and the outbound message body.
type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

// Generate returns a fresh secret and its SHA-256 digest. The digest is what
// the challenge store keys on; the secret travels to the user and is never
// stored.
func (c *Codec) Generate(entropyBytes int) (secret, digest string, err error) {
	if entropyBytes < MinEntropyBytes {
		return "", "", ErrEntropyTooLow
	}

	raw := make([]byte, entropyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate secret: %w", err)
	}

	secret = base64.RawURLEncoding.EncodeToString(raw)
	return secret, c.Digest(secret), nil
}

// Digest computes the storable one-way digest of a secret.
func (c *Codec) Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the digest of the supplied secret and compares it to the
// stored digest in constant time.
func (c *Codec) Verify(suppliedSecret, storedDigest string) bool {
	computed := c.Digest(suppliedSecret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedDigest)) == 1
}

// GenerateCode returns a short numeric code of the given length for the
// transient OTP path, drawn from crypto/rand.
func (c *Codec) GenerateCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid code length: %d", length)
	}

	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}

	return string(digits), nil
}
