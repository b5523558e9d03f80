package tagcodec

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/heavenprotocol/publisher/pkg/puberr"
)

func TestEncodeEmptyList(t *testing.T) {
	out, err := Encode(nil)
	if err != nil {
		t.Fatalf("encode nil: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("empty list must encode to empty bytes, got %x", out)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := [][]Tag{
		{},
		{{Name: "Content-Type", Value: "audio/mpeg"}},
		{{Name: "App-Name", Value: "heaven"}, {Name: "App-Version", Value: "1.0.0"}},
		{{Name: "n", Value: strings.Repeat("v", MaxValueBytes)}},
		{{Name: strings.Repeat("n", MaxNameBytes), Value: "v"}},
	}

	// A full-size list exercises the multi-byte varint count path.
	var full []Tag
	for i := 0; i < MaxTags; i++ {
		full = append(full, Tag{Name: fmt.Sprintf("tag-%d", i), Value: fmt.Sprintf("value-%d", i)})
	}
	cases = append(cases, full)

	for i, tags := range cases {
		enc, err := Encode(tags)
		if err != nil {
			t.Fatalf("case %d: encode: %v", i, err)
		}
		dec, err := Decode(enc)
		if err != nil {
			t.Fatalf("case %d: decode: %v", i, err)
		}
		if len(tags) == 0 && len(dec) == 0 {
			continue
		}
		if !reflect.DeepEqual(dec, tags) {
			t.Fatalf("case %d: round trip mismatch:\n got %+v\nwant %+v", i, dec, tags)
		}
	}
}

func TestEncodeRejectsInvalidTags(t *testing.T) {
	tooMany := make([]Tag, MaxTags+1)
	for i := range tooMany {
		tooMany[i] = Tag{Name: "n", Value: "v"}
	}

	cases := []struct {
		name string
		tags []Tag
	}{
		{"too many", tooMany},
		{"empty name", []Tag{{Name: "  ", Value: "v"}}},
		{"empty value", []Tag{{Name: "n", Value: ""}}},
		{"oversized name", []Tag{{Name: strings.Repeat("n", MaxNameBytes+1), Value: "v"}}},
		{"oversized value", []Tag{{Name: "n", Value: strings.Repeat("v", MaxValueBytes+1)}}},
	}
	for _, tc := range cases {
		if _, err := Encode(tc.tags); !puberr.IsKind(err, puberr.KindValidation) {
			t.Fatalf("%s: expected Validation error, got %v", tc.name, err)
		}
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	valid, err := Encode([]Tag{{Name: "n", Value: "v"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	cases := []struct {
		name string
		data []byte
	}{
		{"truncated varint", []byte{0x80}},
		{"negative count", appendZigzagVarint(nil, -1)},
		{"oversized count", appendZigzagVarint(nil, MaxTags+1)},
		{"truncated name", append(appendZigzagVarint(nil, 1), appendZigzagVarint(nil, 5)...)},
		{"negative name length", append(appendZigzagVarint(nil, 1), appendZigzagVarint(nil, -3)...)},
		{"trailing bytes", append(append([]byte(nil), valid...), 0x00)},
		{"missing terminator", valid[:len(valid)-1]},
	}
	for _, tc := range cases {
		if _, err := Decode(tc.data); !puberr.IsKind(err, puberr.KindValidation) {
			t.Fatalf("%s: expected Validation error, got %v", tc.name, err)
		}
	}
}

func TestVarintEncoding(t *testing.T) {
	// zigzag(1) = 2, single byte; zigzag(64) = 128, two bytes.
	if got := appendZigzagVarint(nil, 1); len(got) != 1 || got[0] != 0x02 {
		t.Fatalf("zigzag(1) = %x", got)
	}
	if got := appendZigzagVarint(nil, 64); len(got) != 2 || got[0] != 0x80 || got[1] != 0x01 {
		t.Fatalf("zigzag(64) = %x", got)
	}

	for _, v := range []int64{0, 1, 63, 64, 127, 128, 1024, 3072} {
		enc := appendZigzagVarint(nil, v)
		dec, rest, err := readZigzagVarint(enc)
		if err != nil || dec != v || len(rest) != 0 {
			t.Fatalf("varint round trip %d: dec=%d rest=%d err=%v", v, dec, len(rest), err)
		}
	}
}
