package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heavenprotocol/publisher/pkg/contentid"
	"github.com/heavenprotocol/publisher/pkg/logtrace"
	"github.com/heavenprotocol/publisher/pkg/signer"
	"github.com/heavenprotocol/publisher/pkg/tagcodec"
	"github.com/heavenprotocol/publisher/pkg/upload"
	"github.com/heavenprotocol/publisher/sdk/config"
	"github.com/heavenprotocol/publisher/sdk/publish"
)

var (
	publishFile    string
	publishLabel   string
	publishTitle   string
	publishArtist  string
	publishAlbum   string
	publishMusicID string
	publishAssetID string
	publishTags    []string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Sign, upload and register a content file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		logtrace.Setup("publisher", cfg.Logging.Debug)

		payload, err := os.ReadFile(publishFile)
		if err != nil {
			return fmt.Errorf("read payload: %w", err)
		}
		tags, err := parseTags(publishTags)
		if err != nil {
			return err
		}
		track, err := trackFromFlags()
		if err != nil {
			return err
		}

		publisher, err := buildPublisher(cfg)
		if err != nil {
			return err
		}

		res, err := publisher.Publish(context.Background(), publish.Request{
			Label:   publishLabel,
			Payload: payload,
			Tags:    tags,
			Track:   track,
		})
		if err != nil {
			return err
		}

		fmt.Printf("content id: %s\n", hex.EncodeToString(res.ContentID[:]))
		fmt.Printf("upload id:  %s\n", res.UploadID)
		fmt.Printf("locator:    %s\n", res.Locator)
		if res.TxHash != "" {
			fmt.Printf("tx hash:    %s\n", res.TxHash)
		}
		return nil
	},
}

func buildPublisher(cfg config.Config) (*publish.Publisher, error) {
	raw, err := loadRawSigner(cfg.Signer.KeyFile)
	if err != nil {
		return nil, err
	}

	pcfg := publish.Config{
		Signer:   raw,
		Owner:    signer.OwnerKeyFromPub(raw.PublicKey()),
		Address:  raw.Address(),
		Uploader: upload.New(cfg.Gateway.Endpoint, nil),
		ChainID:  cfg.Chain.ChainID,
	}
	if cfg.Chain.RPCEndpoint != "" {
		pcfg.Broadcaster = newRPCBroadcaster(cfg.Chain.RPCEndpoint)
	}
	return publish.New(pcfg)
}

func loadRawSigner(keyFile string) (*signer.RawKeySigner, error) {
	raw, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	keyHex := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x"))
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("decode key file: %w", err)
	}
	return signer.NewRawKeySigner(key)
}

func parseTags(pairs []string) ([]tagcodec.Tag, error) {
	var tags []tagcodec.Tag
	for _, pair := range pairs {
		name, value, found := strings.Cut(pair, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("tag %q must be name=value", pair)
		}
		tags = append(tags, tagcodec.Tag{Name: name, Value: value})
	}
	return tags, nil
}

func trackFromFlags() (contentid.TrackMetadata, error) {
	track := contentid.TrackMetadata{
		Title:           publishTitle,
		Artist:          publishArtist,
		Album:           publishAlbum,
		ExternalMusicID: publishMusicID,
	}
	if publishAssetID != "" {
		asset, err := hex.DecodeString(strings.TrimPrefix(publishAssetID, "0x"))
		if err != nil {
			return contentid.TrackMetadata{}, fmt.Errorf("decode asset id: %w", err)
		}
		track.ExternalAssetID = asset
	}
	return track, nil
}

func init() {
	publishCmd.Flags().StringVar(&publishFile, "file", "", "payload file to publish")
	publishCmd.Flags().StringVar(&publishLabel, "label", "", "registration label")
	publishCmd.Flags().StringVar(&publishTitle, "title", "", "track title")
	publishCmd.Flags().StringVar(&publishArtist, "artist", "", "track artist")
	publishCmd.Flags().StringVar(&publishAlbum, "album", "", "track album")
	publishCmd.Flags().StringVar(&publishMusicID, "music-id", "", "provider-assigned music id")
	publishCmd.Flags().StringVar(&publishAssetID, "asset-id", "", "on-chain asset address (hex)")
	publishCmd.Flags().StringArrayVar(&publishTags, "tag", nil, "metadata tag as name=value (repeatable)")
	_ = publishCmd.MarkFlagRequired("file")
	_ = publishCmd.MarkFlagRequired("label")

	rootCmd.AddCommand(publishCmd)
}
