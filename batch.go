package dynaq

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// BatchResult reports the outcome of a bulk mutation. Succeeded holds the
// raw items that were written or deleted. Failed holds the caller's
// original inputs whose guard condition was not met; inputs that failed
// for any other reason surface through the returned error instead.
type BatchResult struct {
	Succeeded []Item
	Failed    []any
}

const (
	maxWriteBatchSize    = 25
	maxWriteBatchRetries = 5
)

// BackoffFunc returns the duration to wait before retry attempt n.
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff returns a capped exponential backoff with full jitter.
// Wait time is rand(0, min(cap, base * multiplier^attempt)).
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
func ExponentialBackoff(base time.Duration, multiplier float64, cap time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		factor := 1.0
		for i := 0; i < attempt; i++ {
			factor *= multiplier
		}
		backoff := time.Duration(float64(base) * factor)
		if backoff > cap {
			backoff = cap
		}
		return time.Duration(rand.Int64N(int64(backoff)))
	}
}

// defaultBackoff is [ExponentialBackoff] with 50ms base, 2x multiplier, 5s cap.
var defaultBackoff = ExponentialBackoff(50*time.Millisecond, 2.0, 5*time.Second)

// batchWrite flushes write requests in store-sized chunks, feeding
// unprocessed items back in with backoff until they drain or the retry
// limit is hit.
func (t *Table) batchWrite(ctx context.Context, reqs []types.WriteRequest) error {
	for len(reqs) > 0 {
		n := min(len(reqs), maxWriteBatchSize)
		pending := reqs[:n]
		reqs = reqs[n:]

		for attempt := 0; len(pending) > 0; attempt++ {
			out, err := t.ddb.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{t.def.Name: pending},
			})
			if err != nil {
				return fmt.Errorf("batch write failed: %w", err)
			}
			pending = out.UnprocessedItems[t.def.Name]
			if len(pending) == 0 {
				break
			}
			if attempt >= maxWriteBatchRetries {
				return fmt.Errorf("batch write incomplete: %d items unprocessed after %d retries", len(pending), attempt)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(defaultBackoff(attempt)):
			}
		}
	}
	return nil
}
