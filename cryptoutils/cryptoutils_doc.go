// Package cryptoutils provides the asymmetric half of model provisioning:
// transporting the session wrapping key (SWK) into the workload, and binding
// the workload's envelope key to a TEE quote.
//
// # Envelope key
//
// At start-up the workload holds a P-256 EnvelopeKey, either freshly generated
// or loaded from a PEM file. Operators fetch its public key, seal the SWK to
// it with SealToPublicKey and submit the result as wrapped_swk. The workload
// recovers the SWK with OpenSessionKey into a memguard locked buffer.
//
// The scheme is ECIES:
//
//   - ECDH on NIST P-256 with a fresh ephemeral key per seal
//   - SHA-256 of the shared x coordinate as the AES-256-GCM key
//   - a random 12-byte IV
//
// # Sealed format
//
//	[ephemeral key length (2 bytes)][ephemeral key][iv (12 bytes)][ciphertext|tag]
//
// Where:
//   - Ephemeral key length: uint16 in big-endian format
//   - Ephemeral key: uncompressed curve point
//   - IV: 12-byte nonce for AES-GCM
//   - Ciphertext: The encrypted data with GCM authentication tag
//
// Failures map onto the envelope sentinels: a truncated or unparsable input
// is envelope.ErrMalformedEnvelope, a failed tag is
// envelope.ErrAuthenticationFailed and a recovered key that is not 32 bytes
// is envelope.ErrInvalidKeySize.
//
// # Attestation
//
// AttestationProvider produces a quote over 64 bytes of report data.
// ReportDataForKey derives them from the envelope public key and a verifier
// nonce, so a relying party that verifies the quote (VerifyDCAPAttestation for
// TDX) knows the key it seals to lives inside the measured workload, and that
// the quote was produced for its own challenge rather than replayed.
//
// Providers:
//
//   - DCAPAttestationProvider: local TDX quote via configfs-tsm or the guest device
//   - RemoteAttestationProvider: HTTP quote provider service
//   - DummyAttestationProvider: placeholder quotes for development
package cryptoutils
