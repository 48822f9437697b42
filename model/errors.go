package model

import (
	"errors"

	"github.com/ruteri/tee-model-workload/envelope"
	"github.com/ruteri/tee-model-workload/interfaces"
)

var (
	// ErrModelNotLoaded is returned by Predict when no model has been decrypted.
	ErrModelNotLoaded = errors.New("model not loaded")

	// ErrEmptyModel is returned when a decrypted model buffer holds no bytes.
	ErrEmptyModel = errors.New("empty model")

	// ErrTooFewTokens is returned when a model buffer has fewer than NumTokens tokens.
	ErrTooFewTokens = errors.New("too few tokens")

	// ErrTooManyTokens is returned when a model buffer has more than NumTokens tokens.
	ErrTooManyTokens = errors.New("too many tokens")

	// ErrEmptyToken is returned for consecutive, leading or trailing separators.
	ErrEmptyToken = errors.New("empty token")

	// ErrInvalidNumericToken is returned when a token is not a finite decimal number.
	ErrInvalidNumericToken = errors.New("invalid numeric token")
)

// Error codes reported to API callers.
const (
	CodeMalformedEnvelope    = "malformed_envelope"
	CodeInvalidKeySize       = "invalid_key_size"
	CodeAuthenticationFailed = "authentication_failed"
	CodeAllocationFailed     = "allocation_failed"
	CodeModelNotLoaded       = "model_not_loaded"
	CodeEmptyModel           = "empty_model"
	CodeTooFewTokens         = "too_few_tokens"
	CodeTooManyTokens        = "too_many_tokens"
	CodeEmptyToken           = "empty_token"
	CodeInvalidNumericToken  = "invalid_numeric_token"
	CodeModelNotFound        = "model_not_found"
	CodeInternal             = "internal_error"
)

var codes = []struct {
	err  error
	code string
}{
	{envelope.ErrMalformedEnvelope, CodeMalformedEnvelope},
	{envelope.ErrInvalidKeySize, CodeInvalidKeySize},
	{envelope.ErrAuthenticationFailed, CodeAuthenticationFailed},
	{envelope.ErrAllocationFailed, CodeAllocationFailed},
	{ErrModelNotLoaded, CodeModelNotLoaded},
	{ErrEmptyModel, CodeEmptyModel},
	{ErrTooFewTokens, CodeTooFewTokens},
	{ErrTooManyTokens, CodeTooManyTokens},
	{ErrEmptyToken, CodeEmptyToken},
	{ErrInvalidNumericToken, CodeInvalidNumericToken},
	{interfaces.ErrContentNotFound, CodeModelNotFound},
}

// Code maps err to the code string of its sentinel. Unknown errors map to
// CodeInternal, and a nil error to the empty string.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
