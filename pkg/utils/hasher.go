package utils

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

// Keccak256 returns the legacy Keccak-256 digest of the concatenation of the
// given byte slices. This is the Ethereum-family keccak, not NIST SHA3-256.
func Keccak256(parts ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// Blake3Hash returns the 32-byte BLAKE3 digest of msg.
func Blake3Hash(msg []byte) []byte {
	sum := blake3.Sum256(msg)
	return sum[:]
}

// GetHashFromBytes returns the hex-encoded BLAKE3 digest of msg.
func GetHashFromBytes(msg []byte) string {
	return hex.EncodeToString(Blake3Hash(msg))
}

// LeftPad32 left-zero-pads b to 32 bytes. When b is longer than 32 bytes the
// last 32 bytes are kept, matching the coordinate normalization used by the
// other publisher implementations.
func LeftPad32(b []byte) [32]byte {
	var out [32]byte
	if len(b) >= 32 {
		copy(out[:], b[len(b)-32:])
		return out
	}
	copy(out[32-len(b):], b)
	return out
}

// RightPad32 right-zero-pads b to 32 bytes, truncating to the first 32 bytes
// when longer.
func RightPad32(b []byte) [32]byte {
	var out [32]byte
	if len(b) >= 32 {
		copy(out[:], b[:32])
		return out
	}
	copy(out[:], b)
	return out
}
