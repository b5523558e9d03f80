package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "publisher.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
gateway:
  endpoint: https://gateway.example
signer:
  type: raw
  key_file: /tmp/key.hex
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://gateway.example", cfg.Gateway.Endpoint)
	assert.Equal(t, 30, cfg.Gateway.UploadDeadlineSeconds)
	assert.Equal(t, 300, cfg.Publish.ReplayWindowSeconds)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
gateway:
  endpoint: https://gateway.example
  upload_deadline_seconds: 5
publish:
  replay_window_seconds: 60
signer:
  type: remote
  remote_endpoint: https://signer.example
chain:
  rpc_endpoint: https://rpc.example
  chain_id: 4217
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Gateway.UploadDeadlineSeconds)
	assert.Equal(t, 60, cfg.Publish.ReplayWindowSeconds)
	assert.Equal(t, "remote", cfg.Signer.Type)
	assert.Equal(t, uint64(4217), cfg.Chain.ChainID)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]string{
		"missing gateway endpoint": `
signer:
  type: raw
  key_file: /tmp/key.hex
`,
		"raw signer without key file": `
gateway:
  endpoint: https://gateway.example
signer:
  type: raw
`,
		"remote signer without endpoint": `
gateway:
  endpoint: https://gateway.example
signer:
  type: remote
`,
		"unknown signer type": `
gateway:
  endpoint: https://gateway.example
signer:
  type: hsm
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
