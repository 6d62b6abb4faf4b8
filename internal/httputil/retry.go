// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the provider clients:
// 429 backoff, upstream status classification and JSON round trips.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// HTTP 429 responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const defaultMaxRetries = 3

// RetryOptions tunes DoWithRetryOptions.
type RetryOptions struct {
	// MaxRetries is the number of 429 retries; 0 means 3.
	MaxRetries int
	// MinBackoff is the floor for every wait between attempts.
	MinBackoff time.Duration
	// BeforeAttempt runs before every attempt, the first included. A
	// non-nil error aborts the request.
	BeforeAttempt func(ctx context.Context) error
}

// DoWithRetry executes an HTTP request and retries on HTTP 429 (Too Many
// Requests) with exponential backoff starting at RetryBaseDelay and doubling
// each attempt. A Retry-After header in seconds overrides the computed delay.
//
// When maxRetries is 0 the default (3) is used. Requests with a body are
// replayed through req.GetBody, so callers must build them with
// http.NewRequestWithContext and a rewindable reader. After exhausting
// retries the last 429 response is returned so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	return DoWithRetryOptions(ctx, client, req, RetryOptions{MaxRetries: maxRetries})
}

// DoWithRetryOptions is DoWithRetry with a backoff floor and a hook that
// gates every attempt, for sources with a request-rate limit.
func DoWithRetryOptions(ctx context.Context, client *http.Client, req *http.Request, opts RetryOptions) (*http.Response, error) {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			attemptReq.Body = body
		}

		if opts.BeforeAttempt != nil {
			if err := opts.BeforeAttempt(ctx); err != nil {
				return nil, err
			}
		}
		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		backoff := retryAfter(resp)
		if backoff <= 0 {
			backoff = time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		}
		backoff = max(backoff, opts.MinBackoff)

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// retryAfter parses a Retry-After header expressed in whole seconds.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	var secs int
	if _, err := fmt.Sscanf(v, "%d", &secs); err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
