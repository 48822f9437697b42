// Package interfaces defines the types and contracts shared between the
// workload's storage layer and its consumers.
//
// # Storage Interfaces
//
// StorageBackend: Provides content-addressed storage for wrapped models and
// wrapped data-encryption keys across multiple backend types (file, S3, IPFS,
// Vault).
//
// StorageBackendFactory: Creates storage backends from URI strings and manages
// multi-backend configurations for redundant storage.
//
// # Types
//
//   - ContentID: 32-byte SHA-256 hash of the wrapped bytes
//   - ContentType: namespace of an artifact (ModelType, KeyType)
//   - StorageBackendLocation: backend URI
//
// # Error Types
//
//   - ErrContentNotFound: Content not found in the storage system
//   - ErrContentMismatch: Fetched bytes do not hash to the requested ID
//   - ErrBackendUnavailable: Storage backend is not accessible
//   - ErrInvalidLocationURI: Storage location URI is malformed
package interfaces
