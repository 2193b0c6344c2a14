package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retrying retries transient provider failures with exponential backoff.
// Client errors (4xx other than 429) and refused prompts are not retried.
type Retrying struct {
	next       Completer
	maxElapsed time.Duration
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
}

func NewRetrying(next Completer, maxElapsed time.Duration, logger *slog.Logger) *Retrying {
	r := &Retrying{next: next, maxElapsed: maxElapsed, logger: logger}
	r.newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = r.maxElapsed
		return b
	}
	return r
}

func (r *Retrying) Complete(ctx context.Context, prompt string) (string, error) {
	var (
		text     string
		attempts int
	)
	op := func() error {
		attempts++
		out, err := r.next.Complete(ctx, prompt)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && !se.Retryable() {
				return backoff.Permanent(err)
			}
			if errors.Is(err, ErrRefused) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			r.logger.Warn("completion attempt failed", "attempt", attempts, "error", err)
			return err
		}
		text = out
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(r.newBackOff(), ctx)); err != nil {
		return "", err
	}
	return text, nil
}
