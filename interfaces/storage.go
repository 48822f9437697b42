package interfaces

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ContentID is the SHA-256 hash of a stored artifact.
type ContentID [32]byte

// NewContentIDFromBytes converts a raw 32-byte hash into a ContentID.
func NewContentIDFromBytes(source []byte) (ContentID, error) {
	if len(source) != 32 {
		return ContentID{}, errors.New("invalid ContentID conversion from bytes: incorrect length")
	}

	var id ContentID
	copy(id[:], source)
	return id, nil
}

// NewContentIDFromHex parses a 64-character hex string, with or without 0x.
func NewContentIDFromHex(source string) (ContentID, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return ContentID{}, errors.New("invalid content ID length: hex string must be 64 characters")
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return ContentID{}, fmt.Errorf("invalid hex format: %w", err)
	}
	return NewContentIDFromBytes(raw)
}

// ComputeID calculates the content ID of data.
func ComputeID(data []byte) ContentID {
	return ContentID(sha256.Sum256(data))
}

// String returns hex representation.
func (id ContentID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first 8 bytes in hex, for logs.
func (id ContentID) Short() string {
	return hex.EncodeToString(id[:8])
}

// Bytes returns raw 32-byte hash.
func (id ContentID) Bytes() []byte {
	return id[:]
}

// Equal compares two content IDs.
func (id ContentID) Equal(other ContentID) bool {
	return bytes.Equal(id[:], other[:])
}

// ContentType indicates storage namespace.
type ContentType int

const (
	// ModelType for wrapped models
	ModelType ContentType = iota
	// KeyType for wrapped data-encryption keys
	KeyType
)

// String returns type name.
func (ct ContentType) String() string {
	switch ct {
	case ModelType:
		return "model"
	case KeyType:
		return "key"
	default:
		return "unknown"
	}
}

// Dir returns the directory or key prefix backends store the type under.
func (ct ContentType) Dir() string {
	switch ct {
	case ModelType:
		return "models"
	case KeyType:
		return "keys"
	default:
		return "unknown"
	}
}

// StorageBackendLocation is a backend URI: [scheme]://[auth@]host[:port][/path][?params]
type StorageBackendLocation string

// NewStorageBackendLocation validates uri and returns it as a location.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "file", "s3", "ipfs", "vault":
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}
	return StorageBackendLocation(uri), nil
}

// Scheme returns the lowercased URI scheme, or "" when unparsable.
func (loc StorageBackendLocation) Scheme() string {
	parsed, err := url.Parse(string(loc))
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Scheme)
}

var (
	// ErrContentNotFound is returned when requested content cannot be found in the storage backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrContentMismatch is returned when fetched bytes do not hash to the requested content ID.
	ErrContentMismatch = errors.New("content does not match its ID")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// StorageBackend provides content-addressed storage of wrapped artifacts.
type StorageBackend interface {
	// Fetch retrieves data by content ID and type. The returned bytes hash to id.
	Fetch(ctx context.Context, id ContentID, contentType ContentType) ([]byte, error)

	// Store saves data and returns its content ID.
	Store(ctx context.Context, data []byte, contentType ContentType) (ContentID, error)

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// StorageBackendFactory creates storage backends.
type StorageBackendFactory interface {
	// StorageBackendFor creates backend from URI.
	// Supports file://, s3://, ipfs://, vault://
	StorageBackendFor(locationURI StorageBackendLocation) (StorageBackend, error)

	// CreateMultiBackend creates aggregated storage backend.
	CreateMultiBackend(locationURIs []StorageBackendLocation) (StorageBackend, error)
}

// VerifyContent returns ErrContentMismatch unless data hashes to id.
func VerifyContent(id ContentID, data []byte) error {
	if ComputeID(data) != id {
		return fmt.Errorf("%w: %s", ErrContentMismatch, id.Short())
	}
	return nil
}
