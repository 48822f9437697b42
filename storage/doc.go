// Package storage provides content-addressed storage for wrapped model
// artifacts with pluggable backends.
//
// Wrapped models and wrapped data encryption keys are identified by the
// SHA-256 hash of their bytes and kept in separate namespaces per
// interfaces.ContentType. Only ciphertext is ever stored; a backend never sees
// a key that opens what it holds.
//
// # Storage URI Format
//
// Backends are created from URIs by StorageBackendFactory:
//
//   - file:///var/lib/workload/artifacts
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=us-west-2&endpoint=minio:9000&path_style=true
//   - ipfs://ipfs.example.com:5001/tee-model-workload?timeout=30s
//   - vault://[TOKEN@]vault.example.com:8200/secret/workload?tls=false
//
// # Layout
//
//   - File: {dir}/models/{id} and {dir}/keys/{id}, written atomically
//   - S3: {prefix}/models/{id}, anonymous reads without credentials
//   - IPFS: MFS files at {root}/models/{id}, so lookups stay keyed by SHA-256
//   - Vault: KV v2 secrets {mount}/data/{path}/models/{id} holding base64 content
//
// # Integrity
//
// Every Fetch verifies the hash of the retrieved bytes against the requested
// ID and fails with interfaces.ErrContentMismatch otherwise, so a backend
// cannot substitute one artifact for another.
//
// # Multiple Backends
//
// MultiStorageBackend fetches from the first available backend that has the
// content and stores into all of them:
//
//	factory := storage.NewStorageBackendFactory(logger)
//	backend, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
//	    "file:///var/lib/workload/artifacts",
//	    "s3://models/prod?region=eu-west-1",
//	})
//	id, err := backend.Store(ctx, wrappedModel, interfaces.ModelType)
//	data, err := backend.Fetch(ctx, id, interfaces.ModelType)
package storage
