package signer

import (
	"context"

	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/heavenprotocol/publisher/pkg/puberr"
)

// RawKeySigner signs with an in-process secp256k1 private key. The message
// is wrapped in the personal-message envelope and keccak-hashed before
// signing, matching what a remote verifier recomputes during recovery.
type RawKeySigner struct {
	priv *secp256k1.PrivateKey
}

// NewRawKeySigner wraps a 32-byte private key.
func NewRawKeySigner(keyBytes []byte) (*RawKeySigner, error) {
	if len(keyBytes) != 32 {
		return nil, puberr.Newf(puberr.KindSignature, "PUB-SIG-001",
			"private key must be 32 bytes, got %d", len(keyBytes))
	}
	return &RawKeySigner{priv: secp256k1.PrivKeyFromBytes(keyBytes)}, nil
}

// PublicKey returns the signing key's public key.
func (s *RawKeySigner) PublicKey() *secp256k1.PublicKey {
	return s.priv.PubKey()
}

// Address returns the account address for the signing key.
func (s *RawKeySigner) Address() [20]byte {
	return AddressFromPub(s.priv.PubKey())
}

// Sign implements Provider.
func (s *RawKeySigner) Sign(_ context.Context, message []byte) (Signature, error) {
	digest := PersonalMessageHash(message)

	// Compact form is v || r || s with v already 27-based.
	compact := secpecdsa.SignCompact(s.priv, digest[:], false)
	if len(compact) != 65 {
		return Signature{}, puberr.Newf(puberr.KindSignature, "PUB-SIG-002",
			"unexpected compact signature length %d", len(compact))
	}

	var sig Signature
	sig.RecoveryID = normalizeRecoveryID(compact[0])
	copy(sig.R[:], compact[1:33])
	copy(sig.S[:], compact[33:65])
	return sig, nil
}

// RecoverAddress recovers the signer address from a message and a normalized
// signature, recomputing the personal-message digest the signer used.
func RecoverAddress(message []byte, sig Signature) ([20]byte, error) {
	digest := PersonalMessageHash(message)

	var compact [65]byte
	compact[0] = sig.RecoveryID
	copy(compact[1:33], sig.R[:])
	copy(compact[33:65], sig.S[:])

	pub, _, err := secpecdsa.RecoverCompact(compact[:], digest[:])
	if err != nil {
		return [20]byte{}, puberr.Wrap(puberr.KindSignature, "PUB-SIG-003",
			"recover public key", err)
	}
	return AddressFromPub(pub), nil
}
