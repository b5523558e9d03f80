// Package rlp implements the minimal Recursive Length Prefix encoding needed
// to build chain transactions: byte strings, unsigned integers and nested
// lists.
package rlp

import (
	"math/big"

	"github.com/heavenprotocol/publisher/pkg/puberr"
)

const (
	strOffset  = 0x80
	listOffset = 0xc0
	shortLimit = 56
)

// AppendBytes appends the RLP encoding of a byte string to dst.
// A single byte below 0x80 encodes as itself.
func AppendBytes(dst, b []byte) []byte {
	if len(b) == 1 && b[0] < strOffset {
		return append(dst, b[0])
	}
	dst = appendLength(dst, strOffset, len(b))
	return append(dst, b...)
}

// AppendUint appends the RLP encoding of v: the minimal big-endian byte
// representation via the string rule. Zero encodes as the empty string
// (0x80), not as 0x00.
func AppendUint(dst []byte, v uint64) []byte {
	if v == 0 {
		return append(dst, strOffset)
	}
	var buf [8]byte
	n := 0
	for shift := 56; shift >= 0; shift -= 8 {
		b := byte(v >> uint(shift))
		if n == 0 && b == 0 {
			continue
		}
		buf[n] = b
		n++
	}
	return AppendBytes(dst, buf[:n])
}

// AppendBigInt appends the RLP encoding of a non-negative big integer.
// nil and zero both encode as the empty string.
func AppendBigInt(dst []byte, v *big.Int) []byte {
	if v == nil || v.Sign() == 0 {
		return append(dst, strOffset)
	}
	return AppendBytes(dst, v.Bytes())
}

// AppendList wraps already-encoded payload bytes in a list header.
func AppendList(dst, payload []byte) []byte {
	dst = appendLength(dst, listOffset, len(payload))
	return append(dst, payload...)
}

func appendLength(dst []byte, offset byte, length int) []byte {
	if length < shortLimit {
		return append(dst, offset+byte(length))
	}
	var buf [8]byte
	n := 0
	for shift := 56; shift >= 0; shift -= 8 {
		b := byte(uint64(length) >> uint(shift))
		if n == 0 && b == 0 {
			continue
		}
		buf[n] = b
		n++
	}
	dst = append(dst, offset+shortLimit-1+byte(n))
	return append(dst, buf[:n]...)
}

// Item is a decoded RLP value: either a byte string or a list of items.
type Item struct {
	Str    []byte
	List   []Item
	IsList bool
}

// Uint interprets a string item as a big-endian unsigned integer.
func (it Item) Uint() (uint64, error) {
	if it.IsList {
		return 0, puberr.New(puberr.KindValidation, "PUB-VAL-130", "rlp: expected string, got list")
	}
	if len(it.Str) > 8 {
		return 0, puberr.New(puberr.KindValidation, "PUB-VAL-131", "rlp: integer too large")
	}
	var v uint64
	for _, b := range it.Str {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

// Decode parses a single RLP item and returns it with any remaining bytes.
func Decode(data []byte) (Item, []byte, error) {
	if len(data) == 0 {
		return Item{}, nil, puberr.New(puberr.KindValidation, "PUB-VAL-132", "rlp: empty input")
	}

	prefix := data[0]
	switch {
	case prefix < strOffset:
		return Item{Str: data[:1]}, data[1:], nil

	case prefix < strOffset+shortLimit:
		n := int(prefix - strOffset)
		if len(data)-1 < n {
			return Item{}, nil, puberr.New(puberr.KindValidation, "PUB-VAL-133", "rlp: truncated string")
		}
		if n == 1 && data[1] < strOffset {
			return Item{}, nil, puberr.New(puberr.KindValidation, "PUB-VAL-134", "rlp: non-canonical single byte")
		}
		return Item{Str: data[1 : 1+n]}, data[1+n:], nil

	case prefix < listOffset:
		n, rest, err := readLongLength(data[1:], int(prefix-strOffset-shortLimit+1))
		if err != nil {
			return Item{}, nil, err
		}
		if len(rest) < n {
			return Item{}, nil, puberr.New(puberr.KindValidation, "PUB-VAL-133", "rlp: truncated string")
		}
		return Item{Str: rest[:n]}, rest[n:], nil

	case prefix < listOffset+shortLimit:
		n := int(prefix - listOffset)
		if len(data)-1 < n {
			return Item{}, nil, puberr.New(puberr.KindValidation, "PUB-VAL-135", "rlp: truncated list")
		}
		items, err := decodeListPayload(data[1 : 1+n])
		if err != nil {
			return Item{}, nil, err
		}
		return Item{List: items, IsList: true}, data[1+n:], nil

	default:
		n, rest, err := readLongLength(data[1:], int(prefix-listOffset-shortLimit+1))
		if err != nil {
			return Item{}, nil, err
		}
		if len(rest) < n {
			return Item{}, nil, puberr.New(puberr.KindValidation, "PUB-VAL-135", "rlp: truncated list")
		}
		items, err := decodeListPayload(rest[:n])
		if err != nil {
			return Item{}, nil, err
		}
		return Item{List: items, IsList: true}, rest[n:], nil
	}
}

func readLongLength(data []byte, lenOfLen int) (int, []byte, error) {
	if len(data) < lenOfLen {
		return 0, nil, puberr.New(puberr.KindValidation, "PUB-VAL-136", "rlp: truncated length")
	}
	if data[0] == 0 {
		return 0, nil, puberr.New(puberr.KindValidation, "PUB-VAL-137", "rlp: leading zero in length")
	}
	var n uint64
	for _, b := range data[:lenOfLen] {
		n = n<<8 | uint64(b)
	}
	if n < shortLimit {
		return 0, nil, puberr.New(puberr.KindValidation, "PUB-VAL-138", "rlp: non-canonical long length")
	}
	rest := data[lenOfLen:]
	if n > uint64(len(rest)) {
		return 0, nil, puberr.New(puberr.KindValidation, "PUB-VAL-136", "rlp: truncated length")
	}
	return int(n), rest, nil
}

func decodeListPayload(data []byte) ([]Item, error) {
	items := []Item{}
	for len(data) > 0 {
		item, rest, err := Decode(data)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		data = rest
	}
	return items, nil
}
