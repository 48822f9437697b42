/*
Package httpserver serves the workload API over HTTP.

The Handler exposes the model manager: decrypting a delivered model,
classifying feature vectors with it and resetting it. Wrapped artifacts may be
given inline or by content ID, in which case they are fetched from the
configured storage backend. The session wrapping key may be given raw or
sealed to the workload envelope key, whose public half is served together
with an attestation quote binding it to the TEE.

# Endpoints

  - POST /api/v1/model/decrypt - Decrypt and load a model
  - POST /api/v1/model/execute - Classify a feature vector
  - POST /api/v1/model/reset - Destroy the loaded model
  - GET /api/v1/model/status - Model state
  - GET /api/v1/envelope-key - PEM envelope public key
  - GET /api/attested/quote?nonce={hex} - Attestation quote over the envelope key and nonce
  - GET /version - Build version
  - GET /livez - Liveness check
  - GET /readyz - Readiness check
  - GET /drain - Gracefully mark server as not ready
  - GET /undrain - Mark server as ready
  - /debug - pprof, when enabled

Errors are JSON bodies {"error": "...", "code": "..."}; see package api for
the codes and their status.

# Usage

	manager := model.NewManager(envelope.NewUnwrapper(envelope.AESGCM{}, logger), logger)
	handler := httpserver.NewHandler(manager, backend, envelopeKey, attestation, logger)
	server, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               ":8080",
		Log:                      logger,
		GracefulShutdownDuration: 30 * time.Second,
	}, handler)
	if err != nil {
		return err
	}
	server.RunInBackground()
*/
package httpserver
