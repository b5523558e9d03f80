// Package contentid derives the deterministic 32-byte identifiers that
// address and dedupe published tracks.
//
// The derivation is pure and must be stable across every publisher
// implementation: the same metadata always yields the same track id, and the
// same (track, owner) pair always yields the same content id.
package contentid

import (
	"strings"

	"github.com/heavenprotocol/publisher/pkg/puberr"
	"github.com/heavenprotocol/publisher/pkg/utils"
)

// TrackKind selects how the 32-byte track payload was produced.
type TrackKind uint8

const (
	// KindExternalMusicID wraps a provider-assigned music identifier.
	KindExternalMusicID TrackKind = 1
	// KindExternalAssetID wraps an on-chain asset address.
	KindExternalAssetID TrackKind = 2
	// KindMetadataHash hashes normalized (title, artist, album).
	KindMetadataHash TrackKind = 3
)

// TrackMetadata is the input to track id derivation. Identifier precedence
// is strict: ExternalMusicID wins over ExternalAssetID, which wins over the
// metadata triple.
type TrackMetadata struct {
	Title  string
	Artist string
	Album  string

	// ExternalMusicID is a provider-assigned id, used verbatim when set.
	ExternalMusicID string
	// ExternalAssetID is a 20-byte asset address.
	ExternalAssetID []byte
}

// DeriveTrackID computes keccak(kind || payload32) with the payload chosen
// by identifier precedence. Kind 3 requires a non-empty title and artist.
func DeriveTrackID(meta TrackMetadata) ([32]byte, error) {
	kind, payload, err := trackPayload(meta)
	if err != nil {
		return [32]byte{}, err
	}
	return utils.Keccak256([]byte{byte(kind)}, payload[:]), nil
}

// DeriveContentID computes keccak(trackID || ownerAddress).
func DeriveContentID(trackID [32]byte, owner [20]byte) [32]byte {
	return utils.Keccak256(trackID[:], owner[:])
}

func trackPayload(meta TrackMetadata) (TrackKind, [32]byte, error) {
	if meta.ExternalMusicID != "" {
		// Raw id bytes, right-padded to 32.
		return KindExternalMusicID, utils.RightPad32([]byte(meta.ExternalMusicID)), nil
	}
	if len(meta.ExternalAssetID) > 0 {
		// Address left-zero-padded to 32.
		return KindExternalAssetID, utils.LeftPad32(meta.ExternalAssetID), nil
	}

	title := Normalize(meta.Title)
	artist := Normalize(meta.Artist)
	if title == "" || artist == "" {
		return 0, [32]byte{}, puberr.New(puberr.KindValidation, "PUB-VAL-120",
			"metadata-derived track id requires title and artist")
	}
	album := Normalize(meta.Album)

	payload := utils.Keccak256([]byte(title), []byte(artist), []byte(album))
	return KindMetadataHash, payload, nil
}

// Normalize lowercases, trims and collapses internal whitespace so that
// cosmetic differences in metadata do not change the derived id.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
