// Package envelope recovers sealed model material from wrapped-secret envelopes.
//
// A wrapped secret is an opaque byte buffer with a fixed layout:
//
//	[nonce (12 bytes)][ciphertext (N bytes)][tag (16 bytes)]
//
// The total length is N + 28 and must exceed 28. The ciphertext is produced
// by a 256-bit AEAD with empty associated data. Two AEADs are supported:
//
//   - AES-256-GCM (default, "aes-256-gcm")
//   - ChaCha20-Poly1305 ("chacha20-poly1305")
//
// # Two-Stage Recovery
//
// A model is delivered together with a wrapped data-encryption key (DEK).
// The DEK envelope is opened with the session wrapping key (SWK) supplied by
// the host, and the model envelope is then opened with the recovered DEK:
//
//	swk ──Unwrap──▶ dek ──Unwrap──▶ model plaintext
//
// The DEK lives only inside RecoverModel and is destroyed on every exit path.
// If the DEK envelope fails to open, the model envelope is never handed to
// the AEAD.
//
// # Memory Handling
//
// Every plaintext returned by this package lives in a memguard LockedBuffer
// (guard pages, mlock, wiping on Destroy). Callers own returned buffers and
// must call Destroy once they are done. Plaintext, keys and tags are never
// logged.
//
// # Errors
//
//   - ErrMalformedEnvelope: buffer not longer than the fixed 28-byte overhead
//   - ErrInvalidKeySize: key is not 32 bytes
//   - ErrAuthenticationFailed: tag verification failed
//   - ErrAllocationFailed: the locked plaintext buffer could not be allocated
//
// Errors from RecoverModel are wrapped in *StageError naming the failing
// stage; errors.Is still matches the sentinels above.
package envelope
