package syncengine

import (
	"context"
	"time"

	"codeforge/internal/errs"
)

// maxSearchRetries bounds the exponential backoff applied to search-store
// writes during ingest (§4.D "Failure semantics").
const maxSearchRetries = 3

// retrySearchWrite retries fn up to maxSearchRetries times with exponential
// backoff while the failure is transient, per §4.D's search-store
// consistency guarantee. On exhaustion the error is returned so the caller
// can schedule a background reconciliation instead of failing the sync.
func retrySearchWrite(ctx context.Context, fn func() error) error {
	var err error
	backoff := 50 * time.Millisecond
	for attempt := 0; attempt < maxSearchRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !errs.IsRetryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
