package envelope

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"

	"github.com/awnumar/memguard"
)

// WrappedSecret is an envelope: [nonce (12)][ciphertext (N)][tag (16)].
type WrappedSecret []byte

// Split returns views of the nonce, ciphertext and tag.
// It fails with ErrMalformedEnvelope when the envelope holds no ciphertext.
func (w WrappedSecret) Split() (nonce, ciphertext, tag []byte, err error) {
	if len(w) <= Overhead {
		return nil, nil, nil, ErrMalformedEnvelope
	}
	return w[:NonceSize], w[NonceSize : len(w)-TagSize], w[len(w)-TagSize:], nil
}

// Allocator returns a locked buffer of exactly size bytes.
type Allocator func(size int) (*memguard.LockedBuffer, error)

// SecureAllocator allocates plaintext buffers in memguard-protected memory.
func SecureAllocator(size int) (*memguard.LockedBuffer, error) {
	buf := memguard.NewBuffer(size)
	if !buf.IsAlive() || buf.Size() != size {
		buf.Destroy()
		return nil, ErrAllocationFailed
	}
	return buf, nil
}

// Unwrapper opens wrapped secrets with a single AEAD.
type Unwrapper struct {
	aead  AEAD
	alloc Allocator
	log   *slog.Logger
}

// NewUnwrapper creates an Unwrapper using aead and locked-memory allocation.
func NewUnwrapper(aead AEAD, log *slog.Logger) *Unwrapper {
	if log == nil {
		log = slog.Default()
	}
	return &Unwrapper{
		aead:  aead,
		alloc: SecureAllocator,
		log:   log,
	}
}

// WithAllocator returns a copy of the Unwrapper using alloc for plaintext buffers.
func (u *Unwrapper) WithAllocator(alloc Allocator) *Unwrapper {
	return &Unwrapper{
		aead:  u.aead,
		alloc: alloc,
		log:   u.log,
	}
}

// AEAD returns the primitive envelopes are opened with.
func (u *Unwrapper) AEAD() AEAD {
	return u.aead
}

// Unwrap opens wrapped with key and returns the plaintext in a locked buffer
// owned by the caller.
//
// The length check happens before the key is inspected, and no AEAD call is
// made for a malformed envelope. On authentication failure the buffer is
// destroyed and only ErrAuthenticationFailed is returned.
func (u *Unwrapper) Unwrap(wrapped WrappedSecret, key []byte) (*memguard.LockedBuffer, error) {
	nonce, ciphertext, tag, err := wrapped.Split()
	if err != nil {
		return nil, err
	}

	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	plaintext, err := u.alloc(len(ciphertext))
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes", ErrAllocationFailed, len(ciphertext))
	}

	if err := u.aead.Open(plaintext.Bytes(), key, nonce, ciphertext, tag); err != nil {
		plaintext.Destroy()
		u.log.Debug("Envelope authentication failed",
			slog.String("aead", u.aead.Name()),
			slog.Int("size", len(wrapped)))
		return nil, ErrAuthenticationFailed
	}

	u.log.Debug("Unwrapped envelope",
		slog.String("aead", u.aead.Name()),
		slog.Int("size", len(ciphertext)))

	return plaintext, nil
}

// Seal wraps plaintext under key with a fresh random nonce.
func Seal(aead AEAD, plaintext, key []byte) (WrappedSecret, error) {
	return SealWithReader(aead, rand.Reader, plaintext, key)
}

// SealWithReader is Seal with an explicit nonce source.
func SealWithReader(aead AEAD, random io.Reader, plaintext, key []byte) (WrappedSecret, error) {
	if len(plaintext) == 0 {
		return nil, ErrEmptyPlaintext
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	out := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := io.ReadFull(random, out); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed, err := aead.Seal(out, key, out[:NonceSize], plaintext)
	if err != nil {
		return nil, err
	}
	return WrappedSecret(sealed), nil
}
