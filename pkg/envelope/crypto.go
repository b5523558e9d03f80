package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/heavenprotocol/publisher/pkg/puberr"
)

const (
	// KeySize is the AES-256 key size in bytes.
	KeySize = 32
	// NonceSize is the standard AES-GCM nonce size (96 bits).
	NonceSize = 12
)

func newAESGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, puberr.Newf(puberr.KindValidation, "PUB-VAL-150",
			"key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, puberr.Wrap(puberr.KindValidation, "PUB-VAL-151", "create cipher", err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under an AES-256-GCM key with a fresh random
// nonce and returns a packed envelope. The data hash covers the plaintext so
// a receiver can verify integrity after decryption; the ciphertext reference
// points at the stored blob the key releases access to.
func Seal(key, plaintext, ciphertextRef []byte) (*Envelope, error) {
	aead, err := newAESGCM(key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, puberr.Wrap(puberr.KindInternal, "PUB-INT-010", "generate nonce", err)
	}

	plainHash := sha256.Sum256(plaintext)
	return &Envelope{
		CiphertextRef: ciphertextRef,
		DataHash:      plainHash[:],
		AlgorithmID:   AlgorithmAESGCM256,
		IV:            iv,
		Payload:       aead.Seal(nil, iv, plaintext, nil),
	}, nil
}

// Open decrypts a sealed envelope and verifies the embedded data hash.
// An authentication failure or hash mismatch is a Protocol error: the
// envelope parsed, but its contents are not what it claims.
func Open(key []byte, env *Envelope) ([]byte, error) {
	if env.AlgorithmID != AlgorithmAESGCM256 {
		return nil, puberr.Newf(puberr.KindProtocol, "PUB-PROTO-010", "unknown algorithm id %d", env.AlgorithmID)
	}
	aead, err := newAESGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, env.IV, env.Payload, nil)
	if err != nil {
		return nil, puberr.Wrap(puberr.KindProtocol, "PUB-PROTO-015", "authentication failed", err)
	}

	plainHash := sha256.Sum256(plaintext)
	if len(env.DataHash) != sha256.Size || plainHash != [sha256.Size]byte(env.DataHash) {
		return nil, puberr.New(puberr.KindProtocol, "PUB-PROTO-016", "data hash mismatch")
	}
	return plaintext, nil
}
