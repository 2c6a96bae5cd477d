package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/docsync/internal/workitem"
	"github.com/dgallion1/docsync/internal/workstore"
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *workstore.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

// retry calls fn up to MaxRetries times while it fails with a retryable
// error, sleeping backoff(attempt) in between.
func retry[T any](ctx context.Context, log *slog.Logger, backoff func(int) time.Duration, op string, fn func() (T, error)) (T, error) {
	var out T
	var err error
	for attempt := range MaxRetries {
		out, err = fn()
		if err == nil || !IsRetryable(err) || attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable workstore error", "op", op, "attempt", attempt, "error", err)
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
	return out, err
}

// retryingFetcher retries transient failures of a bulk fetch.
type retryingFetcher struct {
	next    workitem.Fetcher
	log     *slog.Logger
	backoff func(int) time.Duration
}

func (f retryingFetcher) FetchItems(ctx context.Context, ids []int, fields []string) (map[int]workitem.WorkItem, error) {
	return retry(ctx, f.log, f.backoff, "fetch_items", func() (map[int]workitem.WorkItem, error) {
		return f.next.FetchItems(ctx, ids, fields)
	})
}
