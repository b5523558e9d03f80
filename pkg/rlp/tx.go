package rlp

import (
	"math/big"

	"github.com/heavenprotocol/publisher/pkg/utils"
)

// Call is a single [to, value, input] entry in a transaction's call list.
type Call struct {
	To    []byte
	Value *big.Int
	Input []byte
}

// AccessTuple is an [address, [storageKey...]] entry in the access list.
type AccessTuple struct {
	Address     []byte
	StorageKeys [][]byte
}

// Transaction holds the fields of an account-abstraction chain transaction.
//
// FeePayerSignature stays empty for self-paid transactions and encodes as the
// empty string. KeyAuthorization is the optional trailing item: it is never
// part of the signing payload, and it is appended to the broadcast encoding
// only when present (omitted entirely when absent, not encoded as empty).
// This asymmetry between what gets signed and what gets broadcast is part of
// the protocol and must not be collapsed.
type Transaction struct {
	ChainID        uint64
	MaxPriorityFee *big.Int
	MaxFee         *big.Int
	GasLimit       uint64
	Calls          []Call
	AccessList     []AccessTuple
	NonceKey       *big.Int
	Nonce          uint64
	ValidBefore    uint64
	ValidAfter     uint64
	FeeToken       []byte

	FeePayerSignature []byte
	AAAuthorizations  [][]byte
	KeyAuthorization  []byte
}

// SigningPayload encodes the fields covered by the sender's signature.
func (tx *Transaction) SigningPayload() []byte {
	return AppendList(nil, tx.encodeFields(nil))
}

// SigningHash is the keccak256 digest of the signing payload.
func (tx *Transaction) SigningHash() [32]byte {
	return utils.Keccak256(tx.SigningPayload())
}

// Encode produces the broadcast form: the signing fields, the sender
// signature, and the key authorization when present.
func (tx *Transaction) Encode(signature []byte) []byte {
	payload := tx.encodeFields(nil)
	payload = AppendBytes(payload, signature)
	if tx.KeyAuthorization != nil {
		payload = AppendBytes(payload, tx.KeyAuthorization)
	}
	return AppendList(nil, payload)
}

func (tx *Transaction) encodeFields(dst []byte) []byte {
	dst = AppendUint(dst, tx.ChainID)
	dst = AppendBigInt(dst, tx.MaxPriorityFee)
	dst = AppendBigInt(dst, tx.MaxFee)
	dst = AppendUint(dst, tx.GasLimit)

	var calls []byte
	for _, call := range tx.Calls {
		var c []byte
		c = AppendBytes(c, call.To)
		c = AppendBigInt(c, call.Value)
		c = AppendBytes(c, call.Input)
		calls = AppendList(calls, c)
	}
	dst = AppendList(dst, calls)

	var access []byte
	for _, tuple := range tx.AccessList {
		var keys []byte
		for _, key := range tuple.StorageKeys {
			keys = AppendBytes(keys, key)
		}
		var a []byte
		a = AppendBytes(a, tuple.Address)
		a = AppendList(a, keys)
		access = AppendList(access, a)
	}
	dst = AppendList(dst, access)

	dst = AppendBigInt(dst, tx.NonceKey)
	dst = AppendUint(dst, tx.Nonce)
	dst = AppendUint(dst, tx.ValidBefore)
	dst = AppendUint(dst, tx.ValidAfter)
	dst = AppendBytes(dst, tx.FeeToken)

	// Empty for self-paid transactions; encodes as the empty string.
	dst = AppendBytes(dst, tx.FeePayerSignature)

	var auths []byte
	for _, auth := range tx.AAAuthorizations {
		auths = AppendBytes(auths, auth)
	}
	dst = AppendList(dst, auths)
	return dst
}
