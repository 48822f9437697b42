package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"github.com/ruteri/tee-model-workload/envelope"
)

const (
	gcmNonceSize = 12
	gcmTagSize   = 16
)

var (
	// ErrInvalidPublicKey is returned for PEM input that is not a P-256 public key.
	ErrInvalidPublicKey = errors.New("invalid envelope public key")

	// ErrInvalidPrivateKey is returned for PEM input that is not a P-256 private key.
	ErrInvalidPrivateKey = errors.New("invalid envelope private key")
)

// EnvelopeKey is the workload's key agreement key. Operators seal the session
// wrapping key to its public half so the SWK never crosses the wire in clear.
type EnvelopeKey struct {
	priv   *ecdsa.PrivateKey
	ecdh   *ecdh.PrivateKey
	pubPEM []byte
}

// NewEnvelopeKey generates a fresh P-256 envelope key.
func NewEnvelopeKey() (*EnvelopeKey, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate envelope key: %w", err)
	}
	return newEnvelopeKey(priv)
}

// ParseEnvelopeKey loads an "EC PRIVATE KEY" PEM block.
func ParseEnvelopeKey(privateKeyPEM []byte) (*EnvelopeKey, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, fmt.Errorf("%w: failed to decode PEM", ErrInvalidPrivateKey)
	}

	priv, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	if priv.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: curve %s", ErrInvalidPrivateKey, priv.Curve.Params().Name)
	}
	return newEnvelopeKey(priv)
}

func newEnvelopeKey(priv *ecdsa.PrivateKey) (*EnvelopeKey, error) {
	ecdhKey, err := priv.ECDH()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	return &EnvelopeKey{
		priv:   priv,
		ecdh:   ecdhKey,
		pubPEM: pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}),
	}, nil
}

// PublicKeyPEM returns the PKIX public key in PEM form.
func (k *EnvelopeKey) PublicKeyPEM() []byte {
	return append([]byte{}, k.pubPEM...)
}

// MarshalPEM returns the private key as an "EC PRIVATE KEY" PEM block.
func (k *EnvelopeKey) MarshalPEM() ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(k.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}

// OpenSessionKey decrypts a session wrapping key sealed with SealToPublicKey.
// The key is returned in a locked buffer owned by the caller.
func (k *EnvelopeKey) OpenSessionKey(sealed []byte) (*memguard.LockedBuffer, error) {
	buf, err := k.open(sealed)
	if err != nil {
		return nil, err
	}
	if buf.Size() != envelope.KeySize {
		buf.Destroy()
		return nil, envelope.ErrInvalidKeySize
	}
	return buf, nil
}

func (k *EnvelopeKey) open(sealed []byte) (*memguard.LockedBuffer, error) {
	if len(sealed) < 2 {
		return nil, envelope.ErrMalformedEnvelope
	}

	// [ephemeral key length (2)][ephemeral key][iv (12)][ciphertext|tag]
	pointLen := int(binary.BigEndian.Uint16(sealed[0:2]))
	if len(sealed) <= 2+pointLen+gcmNonceSize+gcmTagSize {
		return nil, envelope.ErrMalformedEnvelope
	}

	ephemeral, err := ecdh.P256().NewPublicKey(sealed[2 : 2+pointLen])
	if err != nil {
		return nil, envelope.ErrMalformedEnvelope
	}

	aead, err := k.sharedAEAD(ephemeral)
	if err != nil {
		return nil, err
	}

	ivStart := 2 + pointLen
	iv := sealed[ivStart : ivStart+gcmNonceSize]
	ciphertext := sealed[ivStart+gcmNonceSize:]

	plaintext, err := envelope.SecureAllocator(len(ciphertext) - gcmTagSize)
	if err != nil {
		return nil, err
	}

	out, err := aead.Open(plaintext.Bytes()[:0], iv, ciphertext, nil)
	if err != nil {
		plaintext.Destroy()
		return nil, envelope.ErrAuthenticationFailed
	}
	if &out[0] != &plaintext.Bytes()[0] {
		copy(plaintext.Bytes(), out)
		memguard.WipeBytes(out)
	}
	return plaintext, nil
}

func (k *EnvelopeKey) sharedAEAD(peer *ecdh.PublicKey) (cipher.AEAD, error) {
	secret, err := k.ecdh.ECDH(peer)
	if err != nil {
		return nil, envelope.ErrMalformedEnvelope
	}
	return sharedSecretAEAD(secret)
}

// SealToPublicKey encrypts data to a PEM public key with ECIES: ECDH on P-256,
// SHA-256 of the shared x coordinate as AES-256-GCM key, and a fresh ephemeral
// key per call.
func SealToPublicKey(publicKeyPEM []byte, data []byte) ([]byte, error) {
	return SealToPublicKeyWithReader(rand.Reader, publicKeyPEM, data)
}

// SealToPublicKeyWithReader is SealToPublicKey with an explicit randomness source.
func SealToPublicKeyWithReader(random io.Reader, publicKeyPEM []byte, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, envelope.ErrEmptyPlaintext
	}

	peer, err := parsePublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}

	ephemeral, err := ecdh.P256().GenerateKey(random)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	secret, err := ephemeral.ECDH(peer)
	if err != nil {
		return nil, fmt.Errorf("failed to derive shared secret: %w", err)
	}
	aead, err := sharedSecretAEAD(secret)
	if err != nil {
		return nil, err
	}

	point := ephemeral.PublicKey().Bytes()
	out := make([]byte, 2+len(point)+gcmNonceSize, 2+len(point)+gcmNonceSize+len(data)+gcmTagSize)
	binary.BigEndian.PutUint16(out[0:2], uint16(len(point)))
	copy(out[2:], point)

	iv := out[2+len(point):]
	if _, err := io.ReadFull(random, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	return aead.Seal(out, iv, data, nil), nil
}

func parsePublicKey(publicKeyPEM []byte) (*ecdh.PublicKey, error) {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, fmt.Errorf("%w: failed to decode PEM", ErrInvalidPublicKey)
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok || ecdsaPub.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: not a P-256 key", ErrInvalidPublicKey)
	}

	ecdhPub, err := ecdsaPub.ECDH()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return ecdhPub, nil
}

func sharedSecretAEAD(secret []byte) (cipher.AEAD, error) {
	key := sha256.Sum256(secret)
	memguard.WipeBytes(secret)
	defer memguard.WipeBytes(key[:])

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}
