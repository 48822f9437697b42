package envelope

import (
	"log/slog"

	"github.com/awnumar/memguard"
)

// RecoverModel opens the DEK envelope with swk, then opens the model envelope
// with the recovered DEK and returns the model plaintext.
//
// The DEK is destroyed before RecoverModel returns, whatever the outcome.
// If the DEK envelope fails, the model envelope is left untouched. The caller
// keeps ownership of swk.
func (u *Unwrapper) RecoverModel(wrappedModel, wrappedDEK WrappedSecret, swk []byte) (*memguard.LockedBuffer, error) {
	dek, err := u.Unwrap(wrappedDEK, swk)
	if err != nil {
		return nil, &StageError{Stage: StageDEK, Err: err}
	}
	defer dek.Destroy()

	if dek.Size() != KeySize {
		u.log.Warn("Recovered DEK has unexpected size", slog.Int("size", dek.Size()))
		return nil, &StageError{Stage: StageDEK, Err: ErrInvalidKeySize}
	}

	model, err := u.Unwrap(wrappedModel, dek.Bytes())
	if err != nil {
		return nil, &StageError{Stage: StageModel, Err: err}
	}

	u.log.Info("Recovered model plaintext",
		slog.String("aead", u.aead.Name()),
		slog.Int("size", model.Size()))

	return model, nil
}
