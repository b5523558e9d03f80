// Package config loads the publisher SDK configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the publisher SDK and CLI.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	Chain   ChainConfig   `yaml:"chain"`
	Signer  SignerConfig  `yaml:"signer"`
	Publish PublishConfig `yaml:"publish"`
	Logging LoggingConfig `yaml:"logging"`
}

// GatewayConfig points at the storage gateway uploads go to.
type GatewayConfig struct {
	Endpoint              string `yaml:"endpoint"`
	UploadDeadlineSeconds int    `yaml:"upload_deadline_seconds"`
}

// ChainConfig identifies the chain registrations are broadcast to.
type ChainConfig struct {
	RPCEndpoint string `yaml:"rpc_endpoint"`
	ChainID     uint64 `yaml:"chain_id"`
}

// SignerConfig selects and parameterizes the signature backend.
type SignerConfig struct {
	// Type is one of "raw", "remote".
	Type string `yaml:"type"`
	// KeyFile holds a hex-encoded 32-byte secp256k1 scalar (raw signer).
	KeyFile string `yaml:"key_file"`
	// RemoteEndpoint is the threshold signing service URL (remote signer).
	RemoteEndpoint string `yaml:"remote_endpoint"`
}

// PublishConfig tunes the publish orchestrator.
type PublishConfig struct {
	ReplayWindowSeconds int `yaml:"replay_window_seconds"`
}

type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the configuration used when a field is absent from
// the YAML file.
func DefaultConfig() Config {
	return Config{
		Gateway: GatewayConfig{
			UploadDeadlineSeconds: 30,
		},
		Signer: SignerConfig{
			Type: "raw",
		},
		Publish: PublishConfig{
			ReplayWindowSeconds: 300,
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults and validates the
// result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the cross-field constraints the YAML schema cannot express.
func (c Config) Validate() error {
	if c.Gateway.Endpoint == "" {
		return fmt.Errorf("gateway.endpoint is required")
	}
	if c.Gateway.UploadDeadlineSeconds <= 0 {
		return fmt.Errorf("gateway.upload_deadline_seconds must be positive")
	}
	if c.Publish.ReplayWindowSeconds <= 0 {
		return fmt.Errorf("publish.replay_window_seconds must be positive")
	}
	switch c.Signer.Type {
	case "raw":
		if c.Signer.KeyFile == "" {
			return fmt.Errorf("signer.key_file is required for the raw signer")
		}
	case "remote":
		if c.Signer.RemoteEndpoint == "" {
			return fmt.Errorf("signer.remote_endpoint is required for the remote signer")
		}
	default:
		return fmt.Errorf("signer.type %q is not supported", c.Signer.Type)
	}
	return nil
}
