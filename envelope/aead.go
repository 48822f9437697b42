package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the size of SWKs and DEKs in bytes.
	KeySize = 32
	// NonceSize is the size of the envelope nonce in bytes.
	NonceSize = 12
	// TagSize is the size of the authentication tag in bytes.
	TagSize = 16
	// Overhead is the fixed number of non-ciphertext bytes in an envelope.
	Overhead = NonceSize + TagSize
)

// AEAD is the authenticated-decryption primitive envelopes are built on.
// Implementations use empty associated data.
type AEAD interface {
	// Name returns the AEAD identifier, e.g. "aes-256-gcm".
	Name() string

	// Open verifies tag and decrypts ciphertext into dst, which must be
	// exactly len(ciphertext) bytes. On failure dst is zeroed and
	// ErrAuthenticationFailed is returned.
	Open(dst, key, nonce, ciphertext, tag []byte) error

	// Seal encrypts plaintext and appends ciphertext|tag to dst.
	Seal(dst, key, nonce, plaintext []byte) ([]byte, error)
}

// AEADByName resolves a configured AEAD name.
func AEADByName(name string) (AEAD, error) {
	switch name {
	case "", AESGCM{}.Name():
		return AESGCM{}, nil
	case ChaCha20Poly1305{}.Name():
		return ChaCha20Poly1305{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAEAD, name)
	}
}

// AESGCM is AES-256 in Galois/Counter Mode.
type AESGCM struct{}

func (AESGCM) Name() string { return "aes-256-gcm" }

func (a AESGCM) Open(dst, key, nonce, ciphertext, tag []byte) error {
	gcm, err := newGCM(key)
	if err != nil {
		return err
	}
	return openInto(gcm, dst, nonce, ciphertext, tag)
}

func (a AESGCM) Seal(dst, key, nonce, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(dst, nonce, plaintext, nil), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// ChaCha20Poly1305 is the RFC 8439 AEAD.
type ChaCha20Poly1305 struct{}

func (ChaCha20Poly1305) Name() string { return "chacha20-poly1305" }

func (c ChaCha20Poly1305) Open(dst, key, nonce, ciphertext, tag []byte) error {
	aead, err := newChaCha(key)
	if err != nil {
		return err
	}
	return openInto(aead, dst, nonce, ciphertext, tag)
}

func (c ChaCha20Poly1305) Seal(dst, key, nonce, plaintext []byte) ([]byte, error) {
	aead, err := newChaCha(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(dst, nonce, plaintext, nil), nil
}

func newChaCha(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return aead, nil
}

// openInto runs a stdlib-shaped AEAD over separate ciphertext and tag and
// leaves the plaintext in dst.
func openInto(aead cipher.AEAD, dst, nonce, ciphertext, tag []byte) error {
	if len(dst) != len(ciphertext) || len(nonce) != aead.NonceSize() || len(tag) != aead.Overhead() {
		clear(dst)
		return ErrAuthenticationFailed
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	out, err := aead.Open(dst[:0], nonce, sealed, nil)
	if err != nil {
		clear(dst)
		return ErrAuthenticationFailed
	}

	// Open reuses dst when its capacity allows; copy otherwise.
	if len(out) > 0 && &out[0] != &dst[0] {
		copy(dst, out)
		clear(out)
	}
	return nil
}
