package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ruteri/tee-model-workload/envelope"
	"github.com/ruteri/tee-model-workload/interfaces"
	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{nil, ""},
		{envelope.ErrMalformedEnvelope, CodeMalformedEnvelope},
		{&envelope.StageError{Stage: envelope.StageDEK, Err: envelope.ErrAuthenticationFailed}, CodeAuthenticationFailed},
		{fmt.Errorf("%w: 12 bytes", envelope.ErrAllocationFailed), CodeAllocationFailed},
		{envelope.ErrInvalidKeySize, CodeInvalidKeySize},
		{ErrModelNotLoaded, CodeModelNotLoaded},
		{ErrEmptyModel, CodeEmptyModel},
		{&TokenError{Index: 3, Err: ErrEmptyToken}, CodeEmptyToken},
		{fmt.Errorf("%w: got 3, want 9", ErrTooFewTokens), CodeTooFewTokens},
		{ErrTooManyTokens, CodeTooManyTokens},
		{&TokenError{Index: 1, Err: ErrInvalidNumericToken}, CodeInvalidNumericToken},
		{fmt.Errorf("fetch model: %w", interfaces.ErrContentNotFound), CodeModelNotFound},
		{errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, Code(tt.err), "%v", tt.err)
	}
}
