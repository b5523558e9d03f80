// Package publish orchestrates the full content publication flow: replay
// guarding, register-message signing, bundle assembly, gateway upload and
// on-chain registration. Steps are strictly sequential within one task;
// independent tasks may run concurrently.
package publish

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/heavenprotocol/publisher/pkg/authcache"
	"github.com/heavenprotocol/publisher/pkg/bundle"
	"github.com/heavenprotocol/publisher/pkg/contentid"
	"github.com/heavenprotocol/publisher/pkg/logtrace"
	"github.com/heavenprotocol/publisher/pkg/puberr"
	"github.com/heavenprotocol/publisher/pkg/rlp"
	"github.com/heavenprotocol/publisher/pkg/signer"
	"github.com/heavenprotocol/publisher/pkg/tagcodec"
	"github.com/heavenprotocol/publisher/pkg/upload"
	"github.com/heavenprotocol/publisher/sdk/event"
	"github.com/heavenprotocol/publisher/sdk/log"
)

// Step names the stages of a publish task, in execution order.
type Step string

const (
	StepSign      Step = "sign"
	StepUpload    Step = "upload"
	StepBroadcast Step = "broadcast"
)

const (
	defaultReplayWindow   = 5 * time.Minute
	defaultUploadDeadline = 30 * time.Second
	defaultGasLimit       = 400_000
)

// Uploader is the storage-gateway dependency. *upload.Orchestrator
// satisfies it.
type Uploader interface {
	UploadWithRetry(ctx context.Context, payload []byte, tags []tagcodec.Tag, deadline time.Duration, policy backoff.BackOff) (upload.Receipt, error)
}

// Broadcaster submits an encoded registration transaction to the chain and
// returns its hash. The chain client is an external collaborator.
type Broadcaster interface {
	Broadcast(ctx context.Context, rawTx []byte) (string, error)
}

// Config wires a Publisher's collaborators. Signer, Owner, Address and
// Uploader are required; everything else is optional.
type Config struct {
	Signer  signer.Provider
	Owner   [signer.OwnerKeySize]byte
	Address [20]byte

	Uploader    Uploader
	Broadcaster Broadcaster

	// Auth gates signing behind an authorization context when all three
	// fields are set.
	Auth        *authcache.Cache
	Credentials *authcache.CredentialKey
	AuthFactory authcache.Factory

	Bus    *event.Bus
	Logger log.Logger

	ChainID  uint64
	Registry [20]byte
	GasLimit uint64

	ReplayWindow   time.Duration
	UploadDeadline time.Duration
	// Backoff mints a fresh retry policy per upload attempt; nil uses the
	// orchestrator default.
	Backoff func() backoff.BackOff
}

// Request describes one publication.
type Request struct {
	// Label identifies the registration namespace. Part of the signed
	// message; must not contain the template delimiter.
	Label string

	Payload []byte
	Tags    []tagcodec.Tag
	Track   contentid.TrackMetadata

	// TimestampMs and Nonce form the replay guard. Zero values are filled
	// with the current time and a fresh nonce.
	TimestampMs int64
	Nonce       string
}

// Result is the outcome of a completed publish task.
type Result struct {
	TaskID    string
	TrackID   [32]byte
	ContentID [32]byte
	Signature signer.Signature
	UploadID  string
	Locator   string
	TxHash    string
}

// Publisher runs publish tasks. Construct once via New and share.
type Publisher struct {
	cfg    Config
	logger log.Logger

	// nonces is the replay ledger: a nonce is consumed on first use and
	// stays consumed for twice the freshness window.
	nonces *gocache.Cache

	now func() time.Time
}

func New(cfg Config) (*Publisher, error) {
	if cfg.Signer == nil {
		return nil, puberr.New(puberr.KindInternal, "PUB-INT-030", "publisher requires a signer")
	}
	if cfg.Uploader == nil {
		return nil, puberr.New(puberr.KindInternal, "PUB-INT-031", "publisher requires an uploader")
	}
	if cfg.ReplayWindow <= 0 {
		cfg.ReplayWindow = defaultReplayWindow
	}
	if cfg.UploadDeadline <= 0 {
		cfg.UploadDeadline = defaultUploadDeadline
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = defaultGasLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Publisher{
		cfg:    cfg,
		logger: logger,
		nonces: gocache.New(2*cfg.ReplayWindow, cfg.ReplayWindow),
		now:    time.Now,
	}, nil
}

// RegisterMessage renders the signed registration template. Field order and
// the ':' delimiter are part of the protocol; a remote verifier recomputes
// this exact byte string before address recovery.
func RegisterMessage(label string, address [20]byte, timestampMs int64, nonce string) []byte {
	return []byte(fmt.Sprintf("heaven:register:%s:0x%s:%d:%s",
		label, hex.EncodeToString(address[:]), timestampMs, nonce))
}

// Publish runs one task end to end. For resumable flows use Begin and
// Resume instead and persist the State between attempts.
func (p *Publisher) Publish(ctx context.Context, req Request) (Result, error) {
	st, err := p.Begin(req)
	if err != nil {
		return Result{}, err
	}
	return p.Resume(ctx, st)
}

// Begin validates the request, enforces the replay guard and derives the
// content identity. It performs no network calls.
func (p *Publisher) Begin(req Request) (*State, error) {
	if req.Label == "" {
		return nil, puberr.New(puberr.KindValidation, "PUB-VAL-010", "label is required")
	}
	if strings.Contains(req.Label, ":") {
		return nil, puberr.New(puberr.KindValidation, "PUB-VAL-011", "label must not contain ':'")
	}
	if len(req.Payload) == 0 {
		return nil, puberr.New(puberr.KindValidation, "PUB-VAL-012", "payload is required")
	}
	if err := tagcodec.ValidateTags(req.Tags); err != nil {
		return nil, err
	}

	now := p.now()
	if req.TimestampMs == 0 {
		req.TimestampMs = now.UnixMilli()
	}
	if req.Nonce == "" {
		req.Nonce = uuid.NewString()
	}

	age := now.Sub(time.UnixMilli(req.TimestampMs))
	if age > p.cfg.ReplayWindow || age < -p.cfg.ReplayWindow {
		return nil, puberr.Newf(puberr.KindReplay, "PUB-REPLAY-001",
			"timestamp %d outside freshness window", req.TimestampMs)
	}
	if err := p.nonces.Add(req.Nonce, struct{}{}, gocache.DefaultExpiration); err != nil {
		return nil, puberr.Newf(puberr.KindReplay, "PUB-REPLAY-002",
			"nonce %q already consumed", req.Nonce)
	}

	trackID, err := contentid.DeriveTrackID(req.Track)
	if err != nil {
		return nil, err
	}

	st := &State{
		TaskID:      uuid.NewString(),
		Label:       req.Label,
		TimestampMs: req.TimestampMs,
		Nonce:       req.Nonce,
		Payload:     req.Payload,
		Tags:        req.Tags,
		TrackID:     trackID,
		ContentID:   contentid.DeriveContentID(trackID, p.cfg.Address),
	}

	p.emit(event.NewEvent(event.PublishStarted, st.TaskID, event.EventData{
		event.KeyLabel:     st.Label,
		event.KeyAddress:   "0x" + hex.EncodeToString(p.cfg.Address[:]),
		event.KeyContentID: hex.EncodeToString(st.ContentID[:]),
		event.KeyNonce:     st.Nonce,
	}))
	return st, nil
}

// Resume runs the task's remaining steps in order. Completed steps are
// never re-executed: broadcasting in particular is irreversible and runs at
// most once per task even across repeated Resume calls.
func (p *Publisher) Resume(ctx context.Context, st *State) (Result, error) {
	ctx = logtrace.CtxWithCorrelationID(ctx, st.TaskID)

	if st.Signed || st.Uploaded {
		p.emit(event.NewEvent(event.PublishResumed, st.TaskID, event.EventData{
			event.KeyStep: string(st.nextStep()),
		}))
	}

	if !st.Signed {
		if err := p.runSign(ctx, st); err != nil {
			return Result{}, p.fail(st, StepSign, err)
		}
	}
	if !st.Uploaded {
		if err := p.runUpload(ctx, st); err != nil {
			return Result{}, p.fail(st, StepUpload, err)
		}
	}
	if !st.BroadcastDone {
		if err := p.runBroadcast(ctx, st); err != nil {
			// Upload already succeeded; hand the caller enough to
			// resume without re-uploading.
			partial := &puberr.PartialFailure{
				UploadID: st.Receipt.ID,
				Step:     string(StepBroadcast),
				Cause:    err,
			}
			return Result{}, p.fail(st, StepBroadcast, partial)
		}
	}

	p.emit(event.NewEvent(event.PublishCompleted, st.TaskID, event.EventData{
		event.KeyUploadID: st.Receipt.ID,
		event.KeyTxHash:   st.TxHash,
	}))
	p.logger.Info(ctx, "publish completed",
		"taskID", st.TaskID,
		"uploadID", st.Receipt.ID,
		"txHash", st.TxHash,
	)

	return Result{
		TaskID:    st.TaskID,
		TrackID:   st.TrackID,
		ContentID: st.ContentID,
		Signature: st.MessageSignature,
		UploadID:  st.Receipt.ID,
		Locator:   st.Receipt.Locator,
		TxHash:    st.TxHash,
	}, nil
}

func (p *Publisher) runSign(ctx context.Context, st *State) error {
	if p.cfg.Auth != nil && p.cfg.Credentials != nil && p.cfg.AuthFactory != nil {
		if _, err := p.cfg.Auth.GetOrCreate(ctx, *p.cfg.Credentials, p.cfg.AuthFactory); err != nil {
			return err
		}
	}

	st.Message = RegisterMessage(st.Label, p.cfg.Address, st.TimestampMs, st.Nonce)
	sig, err := p.cfg.Signer.Sign(ctx, st.Message)
	if err != nil {
		return err
	}
	st.MessageSignature = sig
	st.Signed = true

	p.emit(event.NewEvent(event.SignCompleted, st.TaskID, event.EventData{
		event.KeyLabel: st.Label,
	}))
	return nil
}

func (p *Publisher) runUpload(ctx context.Context, st *State) error {
	item, err := bundle.Build(ctx, p.cfg.Signer, bundle.SignatureTypeSecp256k1,
		p.cfg.Owner, nil, nil, st.Tags, st.Payload)
	if err != nil {
		return err
	}
	wire, err := item.Serialize()
	if err != nil {
		return err
	}

	var policy backoff.BackOff
	if p.cfg.Backoff != nil {
		policy = p.cfg.Backoff()
	}

	p.emit(event.NewEvent(event.UploadStarted, st.TaskID, event.EventData{
		event.KeyBytesTotal: len(wire),
	}))
	started := p.now()

	receipt, err := p.cfg.Uploader.UploadWithRetry(ctx, wire, st.Tags, p.cfg.UploadDeadline, policy)
	if err != nil {
		p.emit(event.NewEvent(event.UploadFailed, st.TaskID, event.EventData{
			event.KeyError: err.Error(),
		}))
		return err
	}
	st.Receipt = receipt
	st.Uploaded = true

	p.emit(event.NewEvent(event.UploadCompleted, st.TaskID, event.EventData{
		event.KeyUploadID:       receipt.ID,
		event.KeyLocator:        receipt.Locator,
		event.KeyElapsedSeconds: p.now().Sub(started).Seconds(),
	}))
	return nil
}

func (p *Publisher) runBroadcast(ctx context.Context, st *State) error {
	if p.cfg.Broadcaster == nil {
		st.BroadcastDone = true
		return nil
	}

	tx := p.registrationTx(st)
	digest := tx.SigningHash()
	sig, err := p.cfg.Signer.Sign(ctx, digest[:])
	if err != nil {
		return err
	}
	compact := sig.Compact()

	txHash, err := p.cfg.Broadcaster.Broadcast(ctx, tx.Encode(compact[:]))
	if err != nil {
		p.emit(event.NewEvent(event.BroadcastFailed, st.TaskID, event.EventData{
			event.KeyError:    err.Error(),
			event.KeyUploadID: st.Receipt.ID,
		}))
		return err
	}
	st.TxHash = txHash
	st.BroadcastDone = true

	p.emit(event.NewEvent(event.BroadcastCompleted, st.TaskID, event.EventData{
		event.KeyTxHash: txHash,
	}))
	return nil
}

// registrationTx binds the content identity, the register signature and the
// upload id into one on-chain call.
func (p *Publisher) registrationTx(st *State) *rlp.Transaction {
	compact := st.MessageSignature.Compact()

	input := make([]byte, 0, 32+32+65+len(st.Receipt.ID))
	input = append(input, st.ContentID[:]...)
	input = append(input, st.TrackID[:]...)
	input = append(input, compact[:]...)
	input = append(input, []byte(st.Receipt.ID)...)

	return &rlp.Transaction{
		ChainID:  p.cfg.ChainID,
		GasLimit: p.cfg.GasLimit,
		Calls: []rlp.Call{{
			To:    p.cfg.Registry[:],
			Input: input,
		}},
		// Parallel nonce lane derived from the content id, so unrelated
		// registrations never contend on one sequence.
		NonceKey: new(big.Int).SetBytes(st.ContentID[:8]),
	}
}

func (p *Publisher) fail(st *State, step Step, err error) error {
	p.emit(event.NewEvent(event.PublishFailed, st.TaskID, event.EventData{
		event.KeyStep:  string(step),
		event.KeyError: err.Error(),
	}))
	p.logger.Error(context.Background(), "publish failed",
		"taskID", st.TaskID,
		"step", string(step),
		"error", err.Error(),
	)
	return err
}

func (p *Publisher) emit(e event.Event) {
	if p.cfg.Bus != nil {
		p.cfg.Bus.Publish(e)
	}
}
