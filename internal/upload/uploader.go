package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yang-kun-long/insight-ingest/internal/metrics"
)

// Default tuning. Exposed through config; the values mirror the backend's
// expectations.
const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 400 * time.Millisecond
)

// PutFunc uploads the raw bytes of one segment. Implementations must honor
// the context.
type PutFunc func(ctx context.Context, index int, data []byte) error

// Uploader transfers a payload as fixed-size segments with bounded
// concurrency. One permanently failed segment fails the whole upload.
type Uploader struct {
	PartSize    int64
	Concurrency int
	Attempts    int           // total tries per segment
	RetryDelay  time.Duration // fixed delay between tries
	OnProgress  func(acked, total int)
	Logger      *zap.Logger
}

// Upload sends every segment of payload not already in skip. Indices are
// dense 1..N. Progress is reported after each acknowledgment as acked/N and
// reaches N/N only when all segments are acknowledged. A cancelled context
// aborts in-flight requests and returns the context error unwrapped so
// callers can tell cancellation from failure.
func (u *Uploader) Upload(ctx context.Context, payload io.ReaderAt, size int64, put PutFunc, skip map[int]bool) error {
	logger := u.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if u.PartSize <= 0 {
		return fmt.Errorf("invalid part size %d", u.PartSize)
	}
	total := SegmentCount(size, u.PartSize)
	if total == 0 {
		return nil
	}

	attempts := u.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	delay := u.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	// Shared FIFO queue of pending indices. A channel receive is the
	// pop-and-claim: each index is delivered to exactly one worker.
	pending := make(chan int, total)
	acked := 0
	for i := 1; i <= total; i++ {
		if skip[i] {
			acked++
			continue
		}
		pending <- i
	}
	close(pending)

	var mu sync.Mutex
	if acked > 0 {
		u.report(acked, total)
	}
	if acked == total {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var firstErr error
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	workers := u.Concurrency
	if workers < 1 {
		workers = 1
	}
	if remaining := total - acked; workers > remaining {
		workers = remaining
	}

	logger.Debug("starting segment upload",
		zap.Int("total", total),
		zap.Int("skipped", acked),
		zap.Int("workers", workers),
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				// Never claim a new index once cancellation fired.
				select {
				case <-ctx.Done():
					fail(ctx.Err())
					return
				default:
				}

				index, ok := <-pending
				if !ok {
					return
				}

				if err := u.uploadSegment(ctx, payload, size, index, put, attempts, delay, logger); err != nil {
					fail(err)
					return
				}

				// Report under the lock so acked/N observations stay
				// strictly non-decreasing across workers.
				mu.Lock()
				acked++
				u.report(acked, total)
				mu.Unlock()
				metrics.SegmentsUploadedTotal.Inc()
			}
		}()
	}
	wg.Wait()

	return firstErr
}

// uploadSegment reads one segment's byte range and uploads it, retrying
// transient failures up to the attempt budget.
func (u *Uploader) uploadSegment(ctx context.Context, payload io.ReaderAt, size int64, index int, put PutFunc, attempts int, delay time.Duration, logger *zap.Logger) error {
	offset, length := SegmentRange(index, size, u.PartSize)
	buf := make([]byte, length)
	if n, err := payload.ReadAt(buf, offset); err != nil && !(errors.Is(err, io.EOF) && int64(n) == length) {
		return fmt.Errorf("read segment %d: %w", index, err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = put(ctx, index, buf)
		if lastErr == nil {
			metrics.SegmentUploadDuration.Observe(time.Since(start).Seconds())
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		logger.Debug("segment upload attempt failed",
			zap.Int("index", index),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)

		if attempt < attempts {
			metrics.SegmentRetriesTotal.Inc()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("segment %d failed after %d attempts: %w", index, attempts, lastErr)
}

func (u *Uploader) report(acked, total int) {
	if u.OnProgress != nil {
		u.OnProgress(acked, total)
	}
}
