package envelope

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEnvelope is returned when a wrapped secret is too short to hold a nonce and a tag.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrInvalidKeySize is returned when a wrapping key is not exactly KeySize bytes.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrAuthenticationFailed is returned when the authentication tag does not verify.
	// The plaintext is discarded and never surfaced.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrAllocationFailed is returned when a locked plaintext buffer cannot be allocated.
	ErrAllocationFailed = errors.New("allocation failed")

	// ErrUnsupportedAEAD is returned for unknown AEAD names.
	ErrUnsupportedAEAD = errors.New("unsupported AEAD")

	// ErrEmptyPlaintext is returned when sealing an empty plaintext, which
	// would produce an envelope no unwrapper accepts.
	ErrEmptyPlaintext = errors.New("empty plaintext")
)

// Stage identifies which envelope of the two-stage recovery failed.
type Stage string

const (
	StageDEK   Stage = "dek"
	StageModel Stage = "model"
)

// StageError reports the recovery stage an unwrap error occurred in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("unwrap %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
