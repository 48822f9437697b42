package model

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// NumTokens is the token count of a model buffer: eight weights and a threshold.
const NumTokens = NumFeatures + 1

const separator = ' '

// TokenError reports the position of a malformed token. The token text is
// model content and is deliberately absent.
type TokenError struct {
	Index int
	Err   error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token %d: %v", e.Index, e.Err)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// Parse reads "w0 w1 w2 w3 w4 w5 w6 w7 threshold" from a decrypted model buffer.
//
// One trailing line terminator is tolerated. Tokens are separated by exactly
// one space; empty tokens are rejected rather than collapsed.
func Parse(buf []byte) (Weights, float64, error) {
	buf = trimLineTerminator(buf)
	if len(buf) == 0 {
		return Weights{}, 0, fmt.Errorf("%w: empty buffer", ErrTooFewTokens)
	}
	tokens := bytes.Split(buf, []byte{separator})

	if err := validateTokens(tokens); err != nil {
		return Weights{}, 0, err
	}

	var values [NumTokens]float64
	for i, tok := range tokens {
		if !isDecimal(tok) {
			return Weights{}, 0, &TokenError{Index: i, Err: ErrInvalidNumericToken}
		}
		v, err := strconv.ParseFloat(string(tok), 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			return Weights{}, 0, &TokenError{Index: i, Err: ErrInvalidNumericToken}
		}
		values[i] = v
	}

	var w [NumFeatures]float64
	copy(w[:], values[:NumFeatures])
	return Weights(fromValues(w)), values[NumFeatures], nil
}

// validateTokens enforces the strict tokenization of model buffers:
// exactly NumTokens tokens, none of them empty.
func validateTokens(tokens [][]byte) error {
	for i, tok := range tokens {
		if len(tok) == 0 {
			return &TokenError{Index: i, Err: ErrEmptyToken}
		}
	}

	switch {
	case len(tokens) < NumTokens:
		return fmt.Errorf("%w: got %d, want %d", ErrTooFewTokens, len(tokens), NumTokens)
	case len(tokens) > NumTokens:
		return fmt.Errorf("%w: got %d, want %d", ErrTooManyTokens, len(tokens), NumTokens)
	}
	return nil
}

func trimLineTerminator(buf []byte) []byte {
	if bytes.HasSuffix(buf, []byte("\r\n")) {
		return buf[:len(buf)-2]
	}
	return bytes.TrimSuffix(buf, []byte("\n"))
}

// isDecimal reports whether tok only uses decimal float syntax. It keeps
// hex floats, "Inf" and "NaN" out of ParseFloat.
func isDecimal(tok []byte) bool {
	for _, c := range tok {
		switch {
		case c >= '0' && c <= '9':
		case c == '.', c == '-', c == '+', c == 'e', c == 'E':
		default:
			return false
		}
	}
	return true
}
