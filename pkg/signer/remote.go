package signer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/heavenprotocol/publisher/pkg/authcache"
	"github.com/heavenprotocol/publisher/pkg/puberr"
	"github.com/heavenprotocol/publisher/pkg/utils"
)

const remoteSignTimeout = 30 * time.Second

// RemoteSigner delegates signing to a threshold-signer service whose private
// key never leaves the signer network. Requests are authorized by a cached
// AuthContext; the result is normalized to the same shape as RawKeySigner.
type RemoteSigner struct {
	endpoint string
	client   *http.Client
	cache    *authcache.Cache
	creds    authcache.CredentialKey
	factory  authcache.Factory
}

func NewRemoteSigner(endpoint string, client *http.Client, cache *authcache.Cache, creds authcache.CredentialKey, factory authcache.Factory) *RemoteSigner {
	if client == nil {
		client = &http.Client{Timeout: remoteSignTimeout}
	}
	return &RemoteSigner{
		endpoint: endpoint,
		client:   client,
		cache:    cache,
		creds:    creds,
		factory:  factory,
	}
}

type remoteSignRequest struct {
	Digest   string `json:"digest"`
	Identity string `json:"identity"`
}

type remoteSignResponse struct {
	R     string `json:"r"`
	S     string `json:"s"`
	RecID byte   `json:"recid"`
}

// Sign implements Provider. Any failure, including transport failures, is a
// Signature error: the caller decides whether to retry with a fresh message.
func (s *RemoteSigner) Sign(ctx context.Context, message []byte) (Signature, error) {
	authCtx, err := s.cache.GetOrCreate(ctx, s.creds, s.factory)
	if err != nil {
		return Signature{}, puberr.Wrap(puberr.KindSignature, "PUB-SIG-030",
			"obtain auth context", err)
	}

	digest := PersonalMessageHash(message)
	body, err := json.Marshal(remoteSignRequest{
		Digest:   hex.EncodeToString(digest[:]),
		Identity: authCtx.IdentityKey,
	})
	if err != nil {
		return Signature{}, puberr.Wrap(puberr.KindSignature, "PUB-SIG-031", "marshal sign request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return Signature{}, puberr.Wrap(puberr.KindSignature, "PUB-SIG-032", "build sign request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Signature{}, puberr.Wrap(puberr.KindSignature, "PUB-SIG-033", "remote signer unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Signature{}, puberr.Newf(puberr.KindSignature, "PUB-SIG-034",
			"remote signer refused: status %d: %s", resp.StatusCode, string(detail))
	}

	var parsed remoteSignResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Signature{}, puberr.Wrap(puberr.KindSignature, "PUB-SIG-035", "decode sign response", err)
	}
	return normalizeRemote(parsed)
}

func normalizeRemote(resp remoteSignResponse) (Signature, error) {
	r, err := hex.DecodeString(resp.R)
	if err != nil {
		return Signature{}, puberr.Wrap(puberr.KindSignature, "PUB-SIG-036", "decode r", err)
	}
	sBytes, err := hex.DecodeString(resp.S)
	if err != nil {
		return Signature{}, puberr.Wrap(puberr.KindSignature, "PUB-SIG-036", "decode s", err)
	}
	if len(r) == 0 || len(r) > 32 || len(sBytes) == 0 || len(sBytes) > 32 {
		return Signature{}, puberr.New(puberr.KindSignature, "PUB-SIG-037",
			fmt.Sprintf("signature component out of range: r=%d s=%d bytes", len(r), len(sBytes)))
	}
	return Signature{
		R:          utils.LeftPad32(r),
		S:          utils.LeftPad32(sBytes),
		RecoveryID: normalizeRecoveryID(resp.RecID),
	}, nil
}
