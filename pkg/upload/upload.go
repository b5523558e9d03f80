// Package upload transfers opaque blobs to a content-addressed storage
// gateway and normalizes the gateway's heterogeneous response shapes into a
// canonical upload id.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/cosmos/btcutil/base58"
	gocache "github.com/patrickmn/go-cache"

	"github.com/heavenprotocol/publisher/pkg/logtrace"
	"github.com/heavenprotocol/publisher/pkg/puberr"
	"github.com/heavenprotocol/publisher/pkg/tagcodec"
	"github.com/heavenprotocol/publisher/pkg/utils"
)

const (
	// maxErrorDetail caps how much of a failure body is kept as detail.
	maxErrorDetail = 4096

	// Dedup entries outlive any reasonable retry loop but not a process.
	dedupTTL      = 10 * time.Minute
	dedupSweep    = time.Minute
	locatorScheme = "ar://"
)

// Receipt is the canonical result of a successful upload.
type Receipt struct {
	ID      string
	Locator string
}

// Orchestrator posts payloads to one storage gateway. Construct once and
// share; the embedded dedup cache is safe for concurrent use.
type Orchestrator struct {
	endpoint string
	client   *http.Client

	// dedup maps payload fingerprint to Receipt. A slow upload that
	// succeeds after its caller timed out lands here, so the caller's
	// retry returns the existing receipt instead of double-submitting.
	dedup *gocache.Cache
}

func New(endpoint string, client *http.Client) *Orchestrator {
	if client == nil {
		client = http.DefaultClient
	}
	return &Orchestrator{
		endpoint: endpoint,
		client:   client,
		dedup:    gocache.New(dedupTTL, dedupSweep),
	}
}

// Upload races one transfer attempt against the deadline. On expiry the
// caller gets a timeout error and the in-flight call is abandoned, not
// force-cancelled: it may still succeed, in which case its receipt is kept
// for the next attempt with the same payload.
func (o *Orchestrator) Upload(ctx context.Context, payload []byte, tags []tagcodec.Tag, deadline time.Duration) (Receipt, error) {
	if err := tagcodec.ValidateTags(tags); err != nil {
		return Receipt{}, err
	}

	key := base58.Encode(utils.Blake3Hash(payload))
	if cached, ok := o.dedup.Get(key); ok {
		return cached.(Receipt), nil
	}

	fields := logtrace.Fields{
		logtrace.FieldMethod:  "Upload",
		logtrace.FieldPayload: key,
	}
	logtrace.Info(ctx, "upload attempt started", fields)

	type result struct {
		receipt Receipt
		err     error
	}
	resultCh := make(chan result, 1)

	// Detach the transfer from the caller's cancellation: the request may
	// already have had side effects server-side.
	go func(ctx context.Context) {
		receipt, err := o.doUpload(ctx, payload, tags)
		if err == nil {
			o.dedup.SetDefault(key, receipt)
		}
		resultCh <- result{receipt: receipt, err: err}
	}(context.WithoutCancel(ctx))

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		if res.err != nil {
			fields[logtrace.FieldError] = res.err.Error()
			logtrace.Error(ctx, "upload attempt failed", fields)
			return Receipt{}, res.err
		}
		logtrace.Info(ctx, "upload attempt succeeded", fields)
		return res.receipt, nil

	case <-timer.C:
		logtrace.Warn(ctx, "upload attempt deadlined", fields)
		return Receipt{}, puberr.NewTimeout("PUB-NET-001", "upload deadline expired")

	case <-ctx.Done():
		return Receipt{}, puberr.Wrap(puberr.KindNetwork, "PUB-NET-004", "upload cancelled", ctx.Err())
	}
}

func (o *Orchestrator) doUpload(ctx context.Context, payload []byte, tags []tagcodec.Tag) (Receipt, error) {
	req, err := o.buildRequest(ctx, payload, tags)
	if err != nil {
		return Receipt{}, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return Receipt{}, puberr.Wrap(puberr.KindNetwork, "PUB-NET-003", "transport failure", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Receipt{}, puberr.Wrap(puberr.KindNetwork, "PUB-NET-003", "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := body
		if len(detail) > maxErrorDetail {
			detail = detail[:maxErrorDetail]
		}
		return Receipt{}, puberr.NewNetwork("PUB-NET-002", resp.StatusCode, string(detail))
	}

	id, err := ExtractUploadID(body)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{ID: id, Locator: locatorScheme + id}, nil
}

func (o *Orchestrator) buildRequest(ctx context.Context, payload []byte, tags []tagcodec.Tag) (*http.Request, error) {
	if len(tags) == 0 {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, puberr.Wrap(puberr.KindInternal, "PUB-INT-020", "build request", err)
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		return req, nil
	}

	// Metadata-tagged uploads go as multipart form data.
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "payload.bin")
	if err != nil {
		return nil, puberr.Wrap(puberr.KindInternal, "PUB-INT-020", "build multipart", err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, puberr.Wrap(puberr.KindInternal, "PUB-INT-020", "write multipart", err)
	}

	tagJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, puberr.Wrap(puberr.KindInternal, "PUB-INT-020", "marshal tags", err)
	}
	if err := writer.WriteField("tags", string(tagJSON)); err != nil {
		return nil, puberr.Wrap(puberr.KindInternal, "PUB-INT-020", "write tags field", err)
	}
	if err := writer.Close(); err != nil {
		return nil, puberr.Wrap(puberr.KindInternal, "PUB-INT-020", "close multipart", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, &buf)
	if err != nil {
		return nil, puberr.Wrap(puberr.KindInternal, "PUB-INT-020", "build request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

type idFields struct {
	ID            string `json:"id"`
	DataItemSnake string `json:"dataitem_id"`
	DataItemCamel string `json:"dataitemId"`
}

type uploadResponse struct {
	idFields
	Result idFields `json:"result"`
}

// ExtractUploadID pulls the canonical upload id out of a success body.
// Different storage backends name the field differently; the precedence
// chain below is a deliberate tolerance layer and must stay a full chain of
// fallbacks: id, dataitem_id, dataitemId, then the same three under result.
func ExtractUploadID(body []byte) (string, error) {
	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", puberr.Wrap(puberr.KindProtocol, "PUB-PROTO-001", "malformed success response", err)
	}

	for _, candidate := range []string{
		parsed.ID, parsed.DataItemSnake, parsed.DataItemCamel,
		parsed.Result.ID, parsed.Result.DataItemSnake, parsed.Result.DataItemCamel,
	} {
		if candidate != "" {
			return candidate, nil
		}
	}
	return "", puberr.New(puberr.KindProtocol, "PUB-PROTO-002", "success response carries no upload id")
}
