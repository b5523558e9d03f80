package bundle

import (
	"context"

	"github.com/heavenprotocol/publisher/pkg/puberr"
	"github.com/heavenprotocol/publisher/pkg/signer"
	"github.com/heavenprotocol/publisher/pkg/tagcodec"
)

// Build signs the deep-hash message for the given fields and assembles a
// complete item. The provider receives the raw digest bytes; signing always
// happens before the item exists, so a failed signature never leaves a
// half-built item behind.
func Build(ctx context.Context, provider signer.Provider, sigType uint16, owner [signer.OwnerKeySize]byte, target, anchor []byte, tags []tagcodec.Tag, data []byte) (*Item, error) {
	digest, err := SigningMessage(sigType, owner, target, anchor, tags, data)
	if err != nil {
		return nil, err
	}

	sig, err := provider.Sign(ctx, digest[:])
	if err != nil {
		return nil, err
	}

	sigBytes, err := encodeSignature(sigType, sig)
	if err != nil {
		return nil, err
	}

	return &Item{
		SignatureType: sigType,
		Signature:     sigBytes,
		Owner:         owner,
		Target:        target,
		Anchor:        anchor,
		Tags:          tags,
		Data:          data,
	}, nil
}

func encodeSignature(sigType uint16, sig signer.Signature) ([]byte, error) {
	switch sigType {
	case SignatureTypeSecp256k1:
		compact := sig.Compact()
		return compact[:], nil
	case SignatureTypeP256:
		out := make([]byte, 64)
		copy(out[:32], sig.R[:])
		copy(out[32:], sig.S[:])
		return out, nil
	default:
		return nil, puberr.Newf(puberr.KindValidation, "PUB-VAL-140", "unknown signature type %d", sigType)
	}
}
