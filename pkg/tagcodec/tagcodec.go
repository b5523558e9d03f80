// Package tagcodec encodes bundle item tags into the compact length-prefixed
// binary form expected by the storage network.
//
// The format is a zigzag-varint block: a count, then per tag a length-prefixed
// name and value, then a zero terminator. An empty tag list encodes to zero
// bytes.
package tagcodec

import (
	"strings"

	"github.com/heavenprotocol/publisher/pkg/puberr"
)

// Bounds on a single tag list. A decoder must reject anything outside them.
const (
	MaxTags       = 128
	MaxNameBytes  = 1024
	MaxValueBytes = 3072
)

// Tag is a (name, value) string pair attached to a bundle item.
type Tag struct {
	Name  string
	Value string
}

// ValidateTags checks the tag-list invariants: at most MaxTags entries,
// names and values within their byte bounds and non-empty after trimming.
func ValidateTags(tags []Tag) error {
	if len(tags) > MaxTags {
		return puberr.Newf(puberr.KindValidation, "PUB-VAL-101", "too many tags: %d > %d", len(tags), MaxTags)
	}
	for i, tag := range tags {
		if strings.TrimSpace(tag.Name) == "" {
			return puberr.Newf(puberr.KindValidation, "PUB-VAL-102", "tag %d: empty name", i)
		}
		if strings.TrimSpace(tag.Value) == "" {
			return puberr.Newf(puberr.KindValidation, "PUB-VAL-103", "tag %d: empty value", i)
		}
		if len(tag.Name) > MaxNameBytes {
			return puberr.Newf(puberr.KindValidation, "PUB-VAL-104", "tag %d: name exceeds %d bytes", i, MaxNameBytes)
		}
		if len(tag.Value) > MaxValueBytes {
			return puberr.Newf(puberr.KindValidation, "PUB-VAL-105", "tag %d: value exceeds %d bytes", i, MaxValueBytes)
		}
	}
	return nil
}

// Encode serializes a tag list. The empty list encodes to empty bytes.
func Encode(tags []Tag) ([]byte, error) {
	if err := ValidateTags(tags); err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return []byte{}, nil
	}

	buf := appendZigzagVarint(nil, int64(len(tags)))
	for _, tag := range tags {
		buf = appendZigzagVarint(buf, int64(len(tag.Name)))
		buf = append(buf, tag.Name...)
		buf = appendZigzagVarint(buf, int64(len(tag.Value)))
		buf = append(buf, tag.Value...)
	}
	buf = appendZigzagVarint(buf, 0)
	return buf, nil
}

// Decode parses tag bytes produced by Encode. Empty input yields an empty
// list. Negative or out-of-bound lengths are Validation errors.
func Decode(data []byte) ([]Tag, error) {
	if len(data) == 0 {
		return []Tag{}, nil
	}

	count, rest, err := readZigzagVarint(data)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, puberr.New(puberr.KindValidation, "PUB-VAL-110", "negative tag count")
	}
	if count > MaxTags {
		return nil, puberr.Newf(puberr.KindValidation, "PUB-VAL-101", "too many tags: %d > %d", count, MaxTags)
	}

	tags := make([]Tag, 0, count)
	for i := int64(0); i < count; i++ {
		var name, value string
		name, rest, err = readSized(rest, MaxNameBytes, "name")
		if err != nil {
			return nil, err
		}
		value, rest, err = readSized(rest, MaxValueBytes, "value")
		if err != nil {
			return nil, err
		}
		tags = append(tags, Tag{Name: name, Value: value})
	}

	term, rest, err := readZigzagVarint(rest)
	if err != nil {
		return nil, err
	}
	if term != 0 {
		return nil, puberr.New(puberr.KindValidation, "PUB-VAL-111", "missing zero terminator")
	}
	if len(rest) != 0 {
		return nil, puberr.New(puberr.KindValidation, "PUB-VAL-112", "trailing bytes after terminator")
	}
	return tags, nil
}

func readSized(data []byte, max int, field string) (string, []byte, error) {
	n, rest, err := readZigzagVarint(data)
	if err != nil {
		return "", nil, err
	}
	if n < 0 {
		return "", nil, puberr.Newf(puberr.KindValidation, "PUB-VAL-113", "negative %s length", field)
	}
	if n > int64(max) {
		return "", nil, puberr.Newf(puberr.KindValidation, "PUB-VAL-114", "%s exceeds %d bytes", field, max)
	}
	if int64(len(rest)) < n {
		return "", nil, puberr.Newf(puberr.KindValidation, "PUB-VAL-115", "truncated %s", field)
	}
	return string(rest[:n]), rest[n:], nil
}

// appendZigzagVarint writes v zigzag-mapped (v<<1 for non-negatives) as a
// base-128 varint with the continuation bit set on all but the final byte.
func appendZigzagVarint(dst []byte, v int64) []byte {
	u := uint64(v) << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x80 {
		dst = append(dst, byte(u)|0x80)
		u >>= 7
	}
	return append(dst, byte(u))
}

func readZigzagVarint(data []byte) (int64, []byte, error) {
	var u uint64
	var shift uint
	for i := 0; i < len(data); i++ {
		b := data[i]
		if shift > 63 {
			return 0, nil, puberr.New(puberr.KindValidation, "PUB-VAL-116", "varint overflow")
		}
		u |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			v := int64(u >> 1)
			if u&1 != 0 {
				v = ^v
			}
			return v, data[i+1:], nil
		}
		shift += 7
	}
	return 0, nil, puberr.New(puberr.KindValidation, "PUB-VAL-117", "truncated varint")
}
