package signer

import (
	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/heavenprotocol/publisher/pkg/utils"
)

// OwnerKeySize is the length of a normalized owner public key:
// 0x04 || X(32) || Y(32).
const OwnerKeySize = 65

// NormalizeOwnerKey builds the uncompressed-point owner key from raw
// coordinate bytes. Short coordinates are left-zero-padded to 32 bytes;
// long coordinates keep their last 32 bytes. The truncation mirrors the
// other publisher implementations so every platform emits identical owner
// bytes for the same key.
func NormalizeOwnerKey(x, y []byte) [OwnerKeySize]byte {
	var out [OwnerKeySize]byte
	out[0] = 0x04
	xb := utils.LeftPad32(x)
	yb := utils.LeftPad32(y)
	copy(out[1:33], xb[:])
	copy(out[33:], yb[:])
	return out
}

// OwnerKeyFromPub normalizes a secp256k1 public key.
func OwnerKeyFromPub(pub *secp256k1.PublicKey) [OwnerKeySize]byte {
	var out [OwnerKeySize]byte
	copy(out[:], pub.SerializeUncompressed())
	return out
}

// AddressFromPub derives the 20-byte account address: the last 20 bytes of
// keccak256 over the uncompressed point without its 0x04 prefix.
func AddressFromPub(pub *secp256k1.PublicKey) [20]byte {
	serialized := pub.SerializeUncompressed()
	digest := utils.Keccak256(serialized[1:])
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}
