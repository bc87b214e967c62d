package provider

import (
	"context"
	"errors"
)

// Sentinel errors for provider operations.
var (
	// ErrRateLimit indicates the provider returned a rate limit response.
	ErrRateLimit = errors.New("provider rate limited")

	// ErrContextLength indicates the request exceeded the model's context window.
	ErrContextLength = errors.New("context length exceeded")

	// ErrProviderDown indicates the provider is temporarily unavailable.
	ErrProviderDown = errors.New("provider unavailable")

	// ErrAuthentication indicates the provider rejected the credentials.
	ErrAuthentication = errors.New("provider authentication failed")

	// ErrEmptyResponse indicates the provider answered without any text.
	ErrEmptyResponse = errors.New("empty response from provider")

	// ErrRetriesExhausted wraps the last error once every attempt has failed.
	ErrRetriesExhausted = errors.New("generation retries exhausted")
)

// IsRetryable reports whether the error is transient and the request
// can be retried after a delay.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderDown)
}

// isCancellation reports whether err comes from the caller's context rather
// than from the provider.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
