package ai

import "errors"

// ErrNotConfigured indicates no model credential is present; the tier is
// skipped rather than attempted.
var ErrNotConfigured = errors.New("ai client not configured")

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrMalformedOutput indicates the model returned text that could not be
// parsed into the required JSON shape.
var ErrMalformedOutput = errors.New("ai output not parseable")
