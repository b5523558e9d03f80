// Package envelope packs encrypted content into a self-describing binary
// blob: ciphertext reference, integrity hash, symmetric algorithm id, IV and
// the encrypted payload.
//
// The envelope crosses trust boundaries: the party that decrypts it only
// learns the encryption parameters from the envelope itself, after an
// external access-control check has released the key. All integers are
// big-endian; this is deliberate and differs from the bundle item wire
// format, which talks to a different verifier.
package envelope

import (
	"encoding/binary"

	"github.com/heavenprotocol/publisher/pkg/puberr"
)

// Algorithm identifiers.
const (
	AlgorithmAESGCM256 uint8 = 1
)

// Envelope is the decoded form of the binary blob.
type Envelope struct {
	CiphertextRef []byte
	DataHash      []byte
	AlgorithmID   uint8
	IV            []byte
	Payload       []byte
}

// nonceSizeFor returns the expected IV length for a known algorithm.
func nonceSizeFor(algorithmID uint8) (int, error) {
	switch algorithmID {
	case AlgorithmAESGCM256:
		return 12, nil
	default:
		return 0, puberr.Newf(puberr.KindProtocol, "PUB-PROTO-010", "unknown algorithm id %d", algorithmID)
	}
}

// Pack serializes the envelope:
// u32(lenRef) ref u32(lenHash) hash u8(alg) u8(lenIV) iv u32(lenPayload) payload.
func Pack(env *Envelope) ([]byte, error) {
	expected, err := nonceSizeFor(env.AlgorithmID)
	if err != nil {
		return nil, err
	}
	if len(env.IV) != expected {
		return nil, puberr.Newf(puberr.KindProtocol, "PUB-PROTO-011",
			"iv length %d does not match algorithm nonce size %d", len(env.IV), expected)
	}
	if len(env.IV) > 255 {
		return nil, puberr.New(puberr.KindProtocol, "PUB-PROTO-012", "iv exceeds u8 length field")
	}

	size := 4 + len(env.CiphertextRef) + 4 + len(env.DataHash) + 1 + 1 + len(env.IV) + 4 + len(env.Payload)
	out := make([]byte, 0, size)

	out = binary.BigEndian.AppendUint32(out, uint32(len(env.CiphertextRef)))
	out = append(out, env.CiphertextRef...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(env.DataHash)))
	out = append(out, env.DataHash...)
	out = append(out, env.AlgorithmID)
	out = append(out, uint8(len(env.IV)))
	out = append(out, env.IV...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(env.Payload)))
	out = append(out, env.Payload...)
	return out, nil
}

// Unpack parses an envelope, validating every declared length against the
// remaining buffer before consuming it.
func Unpack(data []byte) (*Envelope, error) {
	r := &reader{data: data}

	env := &Envelope{}
	env.CiphertextRef = r.sized()
	env.DataHash = r.sized()
	env.AlgorithmID = r.byte()
	ivLen := int(r.byte())
	env.IV = r.take(ivLen)
	env.Payload = r.sized()

	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(r.data) {
		return nil, puberr.New(puberr.KindProtocol, "PUB-PROTO-013", "trailing bytes after envelope")
	}

	expected, err := nonceSizeFor(env.AlgorithmID)
	if err != nil {
		return nil, err
	}
	if len(env.IV) != expected {
		return nil, puberr.Newf(puberr.KindProtocol, "PUB-PROTO-011",
			"iv length %d does not match algorithm nonce size %d", len(env.IV), expected)
	}
	return env, nil
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
	if n < 0 || len(r.data)-r.off < n {
		r.err = puberr.New(puberr.KindProtocol, "PUB-PROTO-014", "declared length exceeds buffer")
		return nil
	}
	out := r.data[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) byte() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) sized() []byte {
	b := r.take(4)
	if b == nil {
		return nil
	}
	return r.take(int(binary.BigEndian.Uint32(b)))
}
