package upload

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/heavenprotocol/publisher/pkg/puberr"
	"github.com/heavenprotocol/publisher/pkg/tagcodec"
)

// DefaultBackoff is the policy used when callers have no opinion: capped
// exponential with a hard ceiling on total elapsed time.
func DefaultBackoff() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 45 * time.Second
	return policy
}

// UploadWithRetry drives Upload under the given backoff policy. Only
// retryable network failures are retried; validation, protocol and 4xx
// responses surface immediately.
func (o *Orchestrator) UploadWithRetry(ctx context.Context, payload []byte, tags []tagcodec.Tag, deadline time.Duration, policy backoff.BackOff) (Receipt, error) {
	if policy == nil {
		policy = DefaultBackoff()
	}

	var receipt Receipt
	operation := func() error {
		result, err := o.Upload(ctx, payload, tags, deadline)
		if err != nil {
			if puberr.IsRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		receipt = result
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}
