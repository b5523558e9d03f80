package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/asn1"
	"math/big"

	"github.com/heavenprotocol/publisher/pkg/puberr"
	"github.com/heavenprotocol/publisher/pkg/utils"
)

// Assertion is the raw result of a platform credential-manager assertion.
type Assertion struct {
	AuthenticatorData []byte
	ClientDataJSON    []byte
	// DERSignature is the ASN.1 DER-encoded P-256 ECDSA signature.
	DERSignature []byte
}

// Authenticator abstracts the platform credential manager. The challenge is
// the message the caller wants signed; platforms typically embed its
// base64url form in clientDataJSON.
type Authenticator interface {
	GetAssertion(ctx context.Context, challenge []byte) (Assertion, error)
}

// WebAuthnSigner signs through a platform P-256 credential. The DER
// signature returned by the platform is parsed into raw (r, s). P-256 has no
// Ethereum-style recovery id, so RecoveryID is fixed at 27 and verifiers
// check against the credential's registered public key instead of recovering
// one.
type WebAuthnSigner struct {
	auth Authenticator
}

func NewWebAuthnSigner(auth Authenticator) *WebAuthnSigner {
	return &WebAuthnSigner{auth: auth}
}

// Sign implements Provider.
func (s *WebAuthnSigner) Sign(ctx context.Context, message []byte) (Signature, error) {
	assertion, err := s.auth.GetAssertion(ctx, message)
	if err != nil {
		return Signature{}, puberr.Wrap(puberr.KindSignature, "PUB-SIG-010",
			"credential manager assertion failed", err)
	}
	r, sc, err := ParseDERSignature(assertion.DERSignature)
	if err != nil {
		return Signature{}, err
	}
	return Signature{R: r, S: sc, RecoveryID: 27}, nil
}

type derSignature struct {
	R *big.Int
	S *big.Int
}

// ParseDERSignature extracts raw 32-byte (r, s) from an ASN.1 DER ECDSA
// signature.
func ParseDERSignature(der []byte) (r, s [32]byte, err error) {
	var parsed derSignature
	rest, err := asn1.Unmarshal(der, &parsed)
	if err != nil {
		return r, s, puberr.Wrap(puberr.KindSignature, "PUB-SIG-011", "malformed DER signature", err)
	}
	if len(rest) != 0 {
		return r, s, puberr.New(puberr.KindSignature, "PUB-SIG-012", "trailing bytes after DER signature")
	}
	if parsed.R == nil || parsed.S == nil || parsed.R.Sign() <= 0 || parsed.S.Sign() <= 0 {
		return r, s, puberr.New(puberr.KindSignature, "PUB-SIG-013", "non-positive DER signature component")
	}
	if parsed.R.BitLen() > 256 || parsed.S.BitLen() > 256 {
		return r, s, puberr.New(puberr.KindSignature, "PUB-SIG-014", "oversized DER signature component")
	}
	return utils.LeftPad32(parsed.R.Bytes()), utils.LeftPad32(parsed.S.Bytes()), nil
}

// AssertionMessage is the byte string a WebAuthn signature actually covers:
// authenticatorData followed by sha256(clientDataJSON).
func AssertionMessage(assertion Assertion) []byte {
	clientHash := sha256.Sum256(assertion.ClientDataJSON)
	msg := make([]byte, 0, len(assertion.AuthenticatorData)+sha256.Size)
	msg = append(msg, assertion.AuthenticatorData...)
	msg = append(msg, clientHash[:]...)
	return msg
}

// VerifyAssertion checks a parsed (r, s) against the credential's registered
// P-256 public key over the assertion message.
func VerifyAssertion(pub *ecdsa.PublicKey, assertion Assertion, sig Signature) bool {
	digest := sha256.Sum256(AssertionMessage(assertion))
	r := new(big.Int).SetBytes(sig.R[:])
	s := new(big.Int).SetBytes(sig.S[:])
	return ecdsa.Verify(pub, digest[:], r, s)
}
