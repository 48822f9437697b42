package httpserver

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ruteri/tee-model-workload/api"
	"github.com/ruteri/tee-model-workload/common"
	"github.com/ruteri/tee-model-workload/cryptoutils"
	"github.com/ruteri/tee-model-workload/envelope"
	"github.com/ruteri/tee-model-workload/interfaces"
	"github.com/ruteri/tee-model-workload/model"
	"github.com/ruteri/tee-model-workload/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = "1 1 1 1 1 1 1 1 4"

type testArtifacts struct {
	swk          []byte
	wrappedDEK   []byte
	wrappedModel []byte
}

type testEnv struct {
	router      http.Handler
	manager     *model.Manager
	backend     *storage.FileBackend
	envelopeKey *cryptoutils.EnvelopeKey
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, envelope.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func sealArtifacts(t *testing.T, plaintext string) testArtifacts {
	t.Helper()
	swk := randomKey(t)
	dek := randomKey(t)

	wrappedModel, err := envelope.Seal(envelope.AESGCM{}, []byte(plaintext), dek)
	require.NoError(t, err)
	wrappedDEK, err := envelope.Seal(envelope.AESGCM{}, dek, swk)
	require.NoError(t, err)

	return testArtifacts{swk: swk, wrappedDEK: wrappedDEK, wrappedModel: wrappedModel}
}

func newTestEnv(t *testing.T, withStorage bool) *testEnv {
	t.Helper()
	logger := testLogger()

	var backend *storage.FileBackend
	var artifactStorage interfaces.StorageBackend
	if withStorage {
		var err error
		backend, err = storage.NewFileBackend(t.TempDir(), logger)
		require.NoError(t, err)
		artifactStorage = backend
	}

	envelopeKey, err := cryptoutils.NewEnvelopeKey()
	require.NoError(t, err)

	manager := model.NewManager(envelope.NewUnwrapper(envelope.AESGCM{}, logger), logger)
	t.Cleanup(func() { manager.Reset() })

	handler := NewHandler(manager, artifactStorage, envelopeKey, cryptoutils.DummyAttestationProvider{}, logger)
	srv, err := New(&HTTPServerConfig{Log: logger}, handler)
	require.NoError(t, err)

	return &testEnv{
		router:      srv.getRouter(),
		manager:     manager,
		backend:     backend,
		envelopeKey: envelopeKey,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Code
}

func predictBody(v model.FeatureVector) api.PredictRequest {
	return api.NewPredictRequest(v)
}

func TestHandleDecrypt_Lifecycle(t *testing.T) {
	env := newTestEnv(t, false)
	a := sealArtifacts(t, testModel)

	rr := env.do(t, http.MethodGet, "/api/v1/model/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"state":"empty"}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/v1/model/decrypt", api.DecryptRequest{
		WrappedModel: a.wrappedModel,
		WrappedDEK:   a.wrappedDEK,
		SWK:          a.swk,
	})
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/api/v1/model/status", nil)
	assert.JSONEq(t, `{"state":"loaded"}`, rr.Body.String())

	// All features at their divisors normalize to 1: dot 8 > 4.
	rr = env.do(t, http.MethodPost, "/api/v1/model/execute", predictBody(model.Divisors))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"high_risk":1}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/v1/model/execute", predictBody(model.FeatureVector{}))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"high_risk":0}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/v1/model/reset", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/v1/model/execute", predictBody(model.Divisors))
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, model.CodeModelNotLoaded, errorCode(t, rr))

	// Reset is idempotent.
	rr = env.do(t, http.MethodPost, "/api/v1/model/reset", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestHandleDecrypt_Errors(t *testing.T) {
	a := sealArtifacts(t, testModel)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{
			name:   "wrong swk",
			body:   api.DecryptRequest{WrappedModel: a.wrappedModel, WrappedDEK: a.wrappedDEK, SWK: randomKey(t)},
			status: http.StatusUnprocessableEntity,
			code:   model.CodeAuthenticationFailed,
		},
		{
			name:   "short dek envelope",
			body:   api.DecryptRequest{WrappedModel: a.wrappedModel, WrappedDEK: a.wrappedDEK[:10], SWK: a.swk},
			status: http.StatusBadRequest,
			code:   model.CodeMalformedEnvelope,
		},
		{
			name:   "short swk",
			body:   api.DecryptRequest{WrappedModel: a.wrappedModel, WrappedDEK: a.wrappedDEK, SWK: a.swk[:16]},
			status: http.StatusBadRequest,
			code:   model.CodeInvalidKeySize,
		},
		{
			name:   "missing swk",
			body:   api.DecryptRequest{WrappedModel: a.wrappedModel, WrappedDEK: a.wrappedDEK},
			status: http.StatusBadRequest,
			code:   api.CodeInvalidRequest,
		},
		{
			name:   "model given twice",
			body:   api.DecryptRequest{WrappedModel: a.wrappedModel, ModelID: strings.Repeat("00", 32), WrappedDEK: a.wrappedDEK, SWK: a.swk},
			status: http.StatusBadRequest,
			code:   api.CodeInvalidRequest,
		},
		{
			name:   "unknown field",
			body:   `{"wrapped_model":"AA==","wrapped_dek":"AA==","swk":"AA==","extra":1}`,
			status: http.StatusBadRequest,
			code:   api.CodeInvalidRequest,
		},
		{
			name:   "not json",
			body:   "not json",
			status: http.StatusBadRequest,
			code:   api.CodeInvalidRequest,
		},
		{
			name:   "id without storage",
			body:   api.DecryptRequest{ModelID: strings.Repeat("00", 32), WrappedDEK: a.wrappedDEK, SWK: a.swk},
			status: http.StatusBadRequest,
			code:   CodeNotConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)

			rr := env.do(t, http.MethodPost, "/api/v1/model/decrypt", tt.body)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rr))
			assert.False(t, env.manager.IsLoaded())
		})
	}
}

func TestHandleDecrypt_FailureKeepsLoadedModel(t *testing.T) {
	env := newTestEnv(t, false)
	a := sealArtifacts(t, testModel)

	rr := env.do(t, http.MethodPost, "/api/v1/model/decrypt", api.DecryptRequest{
		WrappedModel: a.wrappedModel, WrappedDEK: a.wrappedDEK, SWK: a.swk,
	})
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/v1/model/decrypt", api.DecryptRequest{
		WrappedModel: a.wrappedModel, WrappedDEK: a.wrappedDEK, SWK: randomKey(t),
	})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/v1/model/execute", predictBody(model.Divisors))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"high_risk":1}`, rr.Body.String())
}

func TestHandleDecrypt_FromStorage(t *testing.T) {
	env := newTestEnv(t, true)
	a := sealArtifacts(t, testModel)
	ctx := context.Background()

	modelID, err := env.backend.Store(ctx, a.wrappedModel, interfaces.ModelType)
	require.NoError(t, err)
	dekID, err := env.backend.Store(ctx, a.wrappedDEK, interfaces.KeyType)
	require.NoError(t, err)

	rr := env.do(t, http.MethodPost, "/api/v1/model/decrypt", api.DecryptRequest{
		ModelID: modelID.String(),
		DEKID:   dekID.String(),
		SWK:     a.swk,
	})
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	assert.True(t, env.manager.IsLoaded())
}

func TestHandleDecrypt_StorageErrors(t *testing.T) {
	env := newTestEnv(t, true)
	a := sealArtifacts(t, testModel)

	missing := interfaces.ComputeID([]byte("missing"))
	rr := env.do(t, http.MethodPost, "/api/v1/model/decrypt", api.DecryptRequest{
		ModelID:    missing.String(),
		WrappedDEK: a.wrappedDEK,
		SWK:        a.swk,
	})
	require.Equal(t, http.StatusNotFound, rr.Code, rr.Body.String())
	assert.Equal(t, model.CodeModelNotFound, errorCode(t, rr))

	rr = env.do(t, http.MethodPost, "/api/v1/model/decrypt", api.DecryptRequest{
		ModelID:    "not-hex",
		WrappedDEK: a.wrappedDEK,
		SWK:        a.swk,
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, api.CodeInvalidRequest, errorCode(t, rr))
}

func TestHandleDecrypt_WrappedSWK(t *testing.T) {
	env := newTestEnv(t, false)
	a := sealArtifacts(t, testModel)

	rr := env.do(t, http.MethodGet, "/api/v1/envelope-key", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, env.envelopeKey.PublicKeyPEM(), rr.Body.Bytes())

	wrappedSWK, err := cryptoutils.SealToPublicKey(rr.Body.Bytes(), a.swk)
	require.NoError(t, err)

	rr = env.do(t, http.MethodPost, "/api/v1/model/decrypt", api.DecryptRequest{
		WrappedModel: a.wrappedModel,
		WrappedDEK:   a.wrappedDEK,
		WrappedSWK:   wrappedSWK,
	})
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	assert.True(t, env.manager.IsLoaded())

	// A session key sealed to another envelope key does not open.
	other, err := cryptoutils.NewEnvelopeKey()
	require.NoError(t, err)
	wrappedSWK, err = cryptoutils.SealToPublicKey(other.PublicKeyPEM(), a.swk)
	require.NoError(t, err)

	rr = env.do(t, http.MethodPost, "/api/v1/model/decrypt", api.DecryptRequest{
		WrappedModel: a.wrappedModel,
		WrappedDEK:   a.wrappedDEK,
		WrappedSWK:   wrappedSWK,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, model.CodeAuthenticationFailed, errorCode(t, rr))
}

func TestHandleExecute_Errors(t *testing.T) {
	env := newTestEnv(t, false)
	a := sealArtifacts(t, "1 2 3")

	// Parsing is deferred to prediction, so a malformed model loads.
	rr := env.do(t, http.MethodPost, "/api/v1/model/decrypt", api.DecryptRequest{
		WrappedModel: a.wrappedModel, WrappedDEK: a.wrappedDEK, SWK: a.swk,
	})
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/v1/model/execute", predictBody(model.Divisors))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, model.CodeTooFewTokens, errorCode(t, rr))

	rr = env.do(t, http.MethodPost, "/api/v1/model/execute", `{"pregnancies": 1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, api.CodeInvalidRequest, errorCode(t, rr))
}

func TestHandleQuote(t *testing.T) {
	env := newTestEnv(t, false)
	nonce := []byte("verifier challenge")

	rr := env.do(t, http.MethodGet, "/api/attested/quote?nonce="+hex.EncodeToString(nonce), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, string(cryptoutils.DummyAttestation), rr.Header().Get(AttestationTypeHeader))

	// The dummy provider echoes the report data it was asked to attest.
	reportData, err := cryptoutils.ReportDataForKey(env.envelopeKey.PublicKeyPEM(), nonce)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("dummy attestation %x", reportData), rr.Body.String())
	assert.Contains(t, rr.Body.String(), hex.EncodeToString(nonce))

	// Another nonce yields another quote.
	other := env.do(t, http.MethodGet, "/api/attested/quote?nonce=00", nil)
	require.Equal(t, http.StatusOK, other.Code)
	assert.NotEqual(t, rr.Body.String(), other.Body.String())

	// Without a nonce the report data carries only the key digest.
	rr = env.do(t, http.MethodGet, "/api/attested/quote", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	reportData, err = cryptoutils.ReportDataForKey(env.envelopeKey.PublicKeyPEM(), nil)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("dummy attestation %x", reportData), rr.Body.String())
}

func TestHandleQuote_InvalidNonce(t *testing.T) {
	env := newTestEnv(t, false)

	for _, nonce := range []string{"not-hex", strings.Repeat("ab", cryptoutils.MaxNonceSize+1)} {
		rr := env.do(t, http.MethodGet, "/api/attested/quote?nonce="+nonce, nil)
		require.Equal(t, http.StatusBadRequest, rr.Code, nonce)
		assert.Equal(t, api.CodeInvalidRequest, errorCode(t, rr))
	}
}

func TestHandleQuote_NotConfigured(t *testing.T) {
	logger := testLogger()
	manager := model.NewManager(envelope.NewUnwrapper(envelope.AESGCM{}, logger), logger)
	srv, err := New(&HTTPServerConfig{Log: logger}, NewHandler(manager, nil, nil, nil, logger))
	require.NoError(t, err)
	router := srv.getRouter()

	for _, path := range []string{"/api/attested/quote", "/api/v1/envelope-key"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
	}
}

func TestHandleVersion(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp api.VersionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, common.Version, resp.Version)
}

func TestStatusForCode(t *testing.T) {
	tests := map[string]int{
		model.CodeMalformedEnvelope:    http.StatusBadRequest,
		model.CodeInvalidKeySize:       http.StatusBadRequest,
		model.CodeAuthenticationFailed: http.StatusUnprocessableEntity,
		model.CodeAllocationFailed:     http.StatusInternalServerError,
		model.CodeModelNotLoaded:       http.StatusConflict,
		model.CodeEmptyModel:           http.StatusUnprocessableEntity,
		model.CodeInvalidNumericToken:  http.StatusUnprocessableEntity,
		model.CodeModelNotFound:        http.StatusNotFound,
		model.CodeInternal:             http.StatusInternalServerError,
	}
	for code, status := range tests {
		assert.Equal(t, status, statusForCode(code), code)
	}
}
