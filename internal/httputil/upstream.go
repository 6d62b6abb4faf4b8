// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/papermap/pkg/types"
)

// maxErrorBody bounds how much of an error response is kept in StatusError.
const maxErrorBody = 512

// StatusError reports a non-2xx response from an upstream provider. It
// matches types.ErrUpstreamUnavailable under errors.Is.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned HTTP %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is(err, types.ErrUpstreamUnavailable) succeed.
func (e *StatusError) Unwrap() error { return types.ErrUpstreamUnavailable }

// CheckStatus returns a *StatusError for non-2xx responses. The body is read
// (bounded) but not closed; the caller still owns resp.Body.
func CheckStatus(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       string(bytes.TrimSpace(body)),
	}
}

// Unavailable wraps a transport-level failure so it classifies as
// types.ErrUpstreamUnavailable.
func Unavailable(provider string, err error) error {
	return fmt.Errorf("%w: %s request: %v", types.ErrUpstreamUnavailable, provider, err)
}

// PostJSON marshals in, POSTs it with the given headers (429-aware), and
// decodes a 2xx JSON response into out.
func PostJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, maxRetries int, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := DoWithRetry(ctx, client, req, maxRetries)
	if err != nil {
		return Unavailable(provider, err)
	}
	defer resp.Body.Close()

	if err := CheckStatus(provider, resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", types.ErrUpstreamUnavailable, provider, err)
	}
	return nil
}
