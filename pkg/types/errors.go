// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// Error taxonomy shared by every stage. Operations wrap these with context
// (fmt.Errorf("%w: ...")) and callers test with errors.Is.
var (
	// ErrValidation rejects a request before any work starts.
	ErrValidation = errors.New("invalid request")

	// ErrUpstreamUnavailable reports an unreachable or failing provider.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInsufficientData reports too few inputs for the requested computation.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNotFound reports an unknown identifier, such as a parse job id.
	ErrNotFound = errors.New("not found")
)
