// Package bundle assembles signed data items in the ANS-104 bundling format:
// the deep-hash signing message, the signed item, and its binary wire form.
//
// Wire integers are little-endian. The encrypted envelope format uses
// big-endian; the two talk to different external verifiers and each must be
// preserved exactly.
package bundle

import (
	"encoding/binary"
	"strconv"

	"github.com/heavenprotocol/publisher/pkg/deephash"
	"github.com/heavenprotocol/publisher/pkg/puberr"
	"github.com/heavenprotocol/publisher/pkg/signer"
	"github.com/heavenprotocol/publisher/pkg/tagcodec"
)

// Signature type identifiers carried in the wire format.
const (
	SignatureTypeSecp256k1 uint16 = 1
	SignatureTypeP256      uint16 = 2
)

const (
	protocolName    = "dataitem"
	protocolVersion = "1"
)

// Item is a single signed data item.
type Item struct {
	SignatureType uint16
	Signature     []byte
	// Owner is always an uncompressed point: 0x04 || X(32) || Y(32).
	Owner [signer.OwnerKeySize]byte
	// Target and Anchor are empty or exactly 32 bytes.
	Target []byte
	Anchor []byte
	Tags   []tagcodec.Tag
	Data   []byte
}

// SigningMessage computes the deep-hash digest covering every field of the
// item-to-be: protocol name and version, signature type, owner, target,
// anchor, encoded tags and payload. Signing this digest makes each field
// unforgeable; any verifier rebuilds the same tree from the wire form.
func SigningMessage(sigType uint16, owner [signer.OwnerKeySize]byte, target, anchor []byte, tags []tagcodec.Tag, data []byte) ([deephash.Size]byte, error) {
	if err := validateOptional32(target, "target"); err != nil {
		return [deephash.Size]byte{}, err
	}
	if err := validateOptional32(anchor, "anchor"); err != nil {
		return [deephash.Size]byte{}, err
	}
	tagBytes, err := tagcodec.Encode(tags)
	if err != nil {
		return [deephash.Size]byte{}, err
	}

	node := deephash.List(
		deephash.Blob([]byte(protocolName)),
		deephash.Blob([]byte(protocolVersion)),
		deephash.Blob([]byte(strconv.Itoa(int(sigType)))),
		deephash.Blob(owner[:]),
		deephash.Blob(target),
		deephash.Blob(anchor),
		deephash.Blob(tagBytes),
		deephash.Blob(data),
	)
	return deephash.Hash(node), nil
}

// Serialize renders the item into its bit-exact wire form.
func (it *Item) Serialize() ([]byte, error) {
	if err := validateOptional32(it.Target, "target"); err != nil {
		return nil, err
	}
	if err := validateOptional32(it.Anchor, "anchor"); err != nil {
		return nil, err
	}
	tagBytes, err := tagcodec.Encode(it.Tags)
	if err != nil {
		return nil, err
	}

	size := 2 + len(it.Signature) + signer.OwnerKeySize + 1 + len(it.Target) + 1 + len(it.Anchor) + 8 + 8 + len(tagBytes) + len(it.Data)
	out := make([]byte, 0, size)

	out = binary.LittleEndian.AppendUint16(out, it.SignatureType)
	out = append(out, it.Signature...)
	out = append(out, it.Owner[:]...)

	out = appendPresence(out, it.Target)
	out = appendPresence(out, it.Anchor)

	out = binary.LittleEndian.AppendUint64(out, uint64(len(it.Tags)))
	out = binary.LittleEndian.AppendUint64(out, uint64(len(tagBytes)))
	out = append(out, tagBytes...)
	out = append(out, it.Data...)
	return out, nil
}

func appendPresence(dst, field []byte) []byte {
	if len(field) == 0 {
		return append(dst, 0)
	}
	dst = append(dst, 1)
	return append(dst, field...)
}

// signatureLength returns the expected signature size for a signature type.
func signatureLength(sigType uint16) (int, error) {
	switch sigType {
	case SignatureTypeSecp256k1:
		return 65, nil
	case SignatureTypeP256:
		return 64, nil
	default:
		return 0, puberr.Newf(puberr.KindValidation, "PUB-VAL-140", "unknown signature type %d", sigType)
	}
}

// Parse decodes a wire-form item. The byte layout is self-delimiting given
// the signature type, so no external framing is needed.
func Parse(data []byte) (*Item, error) {
	r := &reader{data: data}

	sigType := r.uint16le()
	sigLen, err := signatureLength(sigType)
	if err != nil {
		return nil, err
	}

	item := &Item{SignatureType: sigType}
	item.Signature = r.take(sigLen)
	copy(item.Owner[:], r.take(signer.OwnerKeySize))

	if r.byte() == 1 {
		item.Target = r.take(32)
	}
	if r.byte() == 1 {
		item.Anchor = r.take(32)
	}

	tagCount := r.uint64le()
	tagBytesLen := r.uint64le()
	if r.err != nil {
		return nil, r.err
	}
	if tagBytesLen > uint64(len(r.data)-r.off) {
		return nil, puberr.New(puberr.KindValidation, "PUB-VAL-141", "tag bytes exceed item size")
	}

	tags, err := tagcodec.Decode(r.take(int(tagBytesLen)))
	if err != nil {
		return nil, err
	}
	if uint64(len(tags)) != tagCount {
		return nil, puberr.Newf(puberr.KindValidation, "PUB-VAL-142",
			"tag count mismatch: header %d, decoded %d", tagCount, len(tags))
	}
	item.Tags = tags
	item.Data = r.rest()

	if r.err != nil {
		return nil, r.err
	}
	return item, nil
}

type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.data)-r.off < n {
		r.err = puberr.New(puberr.KindValidation, "PUB-VAL-143", "truncated bundle item")
		return nil
	}
	out := r.data[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) byte() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) uint16le() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) uint64le() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) rest() []byte {
	if r.err != nil {
		return nil
	}
	out := r.data[r.off:]
	r.off = len(r.data)
	return out
}

func validateOptional32(field []byte, name string) error {
	if len(field) != 0 && len(field) != 32 {
		return puberr.Newf(puberr.KindValidation, "PUB-VAL-144",
			"%s must be empty or 32 bytes, got %d", name, len(field))
	}
	return nil
}
