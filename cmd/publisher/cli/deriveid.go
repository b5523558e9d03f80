package cli

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heavenprotocol/publisher/pkg/contentid"
)

var deriveOwner string

var deriveIDCmd = &cobra.Command{
	Use:   "derive-id",
	Short: "Derive the track and content ids without publishing",
	RunE: func(cmd *cobra.Command, args []string) error {
		track, err := trackFromFlags()
		if err != nil {
			return err
		}
		trackID, err := contentid.DeriveTrackID(track)
		if err != nil {
			return err
		}
		fmt.Printf("track id:   %s\n", hex.EncodeToString(trackID[:]))

		if deriveOwner != "" {
			ownerBytes, err := hex.DecodeString(strings.TrimPrefix(deriveOwner, "0x"))
			if err != nil || len(ownerBytes) != 20 {
				return fmt.Errorf("owner must be a 20-byte hex address")
			}
			var owner [20]byte
			copy(owner[:], ownerBytes)
			cid := contentid.DeriveContentID(trackID, owner)
			fmt.Printf("content id: %s\n", hex.EncodeToString(cid[:]))
		}
		return nil
	},
}

func init() {
	deriveIDCmd.Flags().StringVar(&publishTitle, "title", "", "track title")
	deriveIDCmd.Flags().StringVar(&publishArtist, "artist", "", "track artist")
	deriveIDCmd.Flags().StringVar(&publishAlbum, "album", "", "track album")
	deriveIDCmd.Flags().StringVar(&publishMusicID, "music-id", "", "provider-assigned music id")
	deriveIDCmd.Flags().StringVar(&publishAssetID, "asset-id", "", "on-chain asset address (hex)")
	deriveIDCmd.Flags().StringVar(&deriveOwner, "owner", "", "owner address (hex) for content id derivation")

	rootCmd.AddCommand(deriveIDCmd)
}
