// Package llm defines the prompt-in, text-out contract shared by every model
// provider, plus the retry and cache wrappers layered over it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Completer turns a prompt into free-form completion text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Func adapts a plain function to Completer.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ErrEmptyCompletion is returned by providers when the model answered with no
// text at all.
var ErrEmptyCompletion = errors.New("empty completion")

// ErrRefused is returned by providers when the model declined the prompt.
// Repeating the same prompt gets the same answer, so it is never retried.
var ErrRefused = errors.New("prompt refused")

// StatusError is an HTTP-level failure reported by a provider.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// Retryable reports whether repeating the request could succeed.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// UpstreamError wraps a failed model call with the provider and the pipeline
// step that issued it.
type UpstreamError struct {
	Provider string
	Op       string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
