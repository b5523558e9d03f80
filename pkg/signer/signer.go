// Package signer provides the polymorphic signing backends used to produce
// publish signatures: a raw secp256k1 private key, a platform WebAuthn P-256
// credential, and a remote threshold signer.
//
// Every backend yields the same normalized (r, s, recoveryId) shape so that
// callers never branch on the backend in use.
package signer

import (
	"context"
	"strconv"

	"github.com/heavenprotocol/publisher/pkg/utils"
)

// Signature is the normalized output of every backend.
type Signature struct {
	R [32]byte
	S [32]byte
	// RecoveryID is 27 or 28 after normalization (27+recid). P-256
	// backends have no usable recovery id and always report 27.
	RecoveryID byte
}

// Compact returns the 65-byte r || s || v form used in bundle items.
func (s Signature) Compact() [65]byte {
	var out [65]byte
	copy(out[:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.RecoveryID
	return out
}

// Provider signs a message with one concrete backend. Backend failures are
// Signature-kind errors and are never retried here: the caller owns retry
// policy, since a retry may need a fresh nonce or timestamp.
type Provider interface {
	Sign(ctx context.Context, message []byte) (Signature, error)
}

// personalPrefix is the Ethereum personal-message domain separator.
const personalPrefix = "\x19Ethereum Signed Message:\n"

// PersonalMessageHash returns keccak256 of the personal-message envelope:
// prefix, decimal message length, then the message itself.
func PersonalMessageHash(message []byte) [32]byte {
	return utils.Keccak256(
		[]byte(personalPrefix),
		[]byte(strconv.Itoa(len(message))),
		message,
	)
}

// normalizeRecoveryID maps a 0/1 recovery id into the 27-based convention.
func normalizeRecoveryID(v byte) byte {
	if v == 0 || v == 1 {
		return v + 27
	}
	return v
}
