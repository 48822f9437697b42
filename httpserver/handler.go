package httpserver

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/awnumar/memguard"
	"github.com/ruteri/tee-model-workload/api"
	"github.com/ruteri/tee-model-workload/common"
	"github.com/ruteri/tee-model-workload/cryptoutils"
	"github.com/ruteri/tee-model-workload/interfaces"
	"github.com/ruteri/tee-model-workload/model"
)

const (
	// AttestationTypeHeader names the attestation mechanism of a quote.
	AttestationTypeHeader = "X-Flashbots-Attestation-Type"

	// maxBodySize caps request bodies without model payloads (1MB).
	maxBodySize = 1024 * 1024

	// maxModelBodySize caps decrypt requests, which may carry a wrapped model.
	maxModelBodySize = 64 * maxBodySize

	// CodeStorageError is reported when a referenced artifact cannot be fetched.
	CodeStorageError = "storage_error"

	// CodeNotConfigured is reported for endpoints whose backing component is
	// not configured on this workload.
	CodeNotConfigured = "not_configured"
)

// RequestError provides structured error information for HTTP responses.
// It includes both an HTTP status code and the underlying error.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Code is the API error code. Defaults to the model code of Err.
	Code string

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// statusForCode maps model error codes to HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case model.CodeMalformedEnvelope, model.CodeInvalidKeySize, api.CodeInvalidRequest:
		return http.StatusBadRequest
	case model.CodeModelNotFound:
		return http.StatusNotFound
	case model.CodeModelNotLoaded:
		return http.StatusConflict
	case model.CodeAuthenticationFailed, model.CodeEmptyModel, model.CodeTooFewTokens,
		model.CodeTooManyTokens, model.CodeEmptyToken, model.CodeInvalidNumericToken:
		return http.StatusUnprocessableEntity
	case CodeStorageError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Handler serves the model endpoints of the workload.
type Handler struct {
	manager     *model.Manager
	storage     interfaces.StorageBackend
	envelopeKey *cryptoutils.EnvelopeKey
	attestation cryptoutils.AttestationProvider
	log         *slog.Logger
}

// NewHandler creates a new HTTP request handler with the specified dependencies.
//
// Parameters:
//   - manager: Model manager owning the decrypted model
//   - storage: Backend for artifacts referenced by content ID, may be nil
//   - envelopeKey: Key wrapped session keys are sealed to, may be nil
//   - attestation: Quote provider for the envelope key, may be nil
//   - log: Structured logger for operational insights
func NewHandler(manager *model.Manager, storage interfaces.StorageBackend, envelopeKey *cryptoutils.EnvelopeKey, attestation cryptoutils.AttestationProvider, log *slog.Logger) *Handler {
	return &Handler{
		manager:     manager,
		storage:     storage,
		envelopeKey: envelopeKey,
		attestation: attestation,
		log:         log,
	}
}

// HandleDecrypt recovers a model from its envelopes and loads it.
//
// URL format: POST /api/v1/model/decrypt
//
// Request body: api.DecryptRequest
//
// Response: 204 on success. A failed decryption leaves any previously loaded
// model in place.
func (h *Handler) HandleDecrypt(w http.ResponseWriter, r *http.Request) {
	var req api.DecryptRequest
	if err := decodeJSON(w, r, maxModelBodySize, &req); err != nil {
		h.writeError(w, err)
		return
	}
	defer memguard.WipeBytes(req.SWK)

	if err := req.Validate(); err != nil {
		h.writeError(w, err)
		return
	}

	wrappedModel, err := h.resolveArtifact(r.Context(), req.WrappedModel, req.ModelID, interfaces.ModelType)
	if err != nil {
		h.writeError(w, err)
		return
	}

	wrappedDEK, err := h.resolveArtifact(r.Context(), req.WrappedDEK, req.DEKID, interfaces.KeyType)
	if err != nil {
		h.writeError(w, err)
		return
	}

	swk := req.SWK
	if len(req.WrappedSWK) > 0 {
		if h.envelopeKey == nil {
			h.writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Code: CodeNotConfigured, Err: errors.New("no envelope key configured")})
			return
		}
		buf, err := h.envelopeKey.OpenSessionKey(req.WrappedSWK)
		if err != nil {
			h.writeError(w, err)
			return
		}
		defer buf.Destroy()
		swk = buf.Bytes()
	}

	if err := h.manager.Decrypt(wrappedModel, wrappedDEK, swk); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleExecute classifies a feature vector with the loaded model.
//
// URL format: POST /api/v1/model/execute
//
// Request body: api.PredictRequest
//
// Response: api.PredictResponse
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req api.PredictRequest
	if err := decodeJSON(w, r, maxBodySize, &req); err != nil {
		h.writeError(w, err)
		return
	}

	input, err := req.FeatureVector()
	if err != nil {
		h.writeError(w, err)
		return
	}

	prediction, err := h.manager.Predict(input)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, api.PredictResponse{HighRisk: prediction})
}

// HandleReset destroys the loaded model. Resetting an empty workload succeeds.
//
// URL format: POST /api/v1/model/reset
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Reset(); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStatus reports whether a model is loaded.
//
// URL format: GET /api/v1/model/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, api.StatusResponse{State: h.manager.State().String()})
}

// HandleEnvelopeKey returns the PEM public key session keys are sealed to.
//
// URL format: GET /api/v1/envelope-key
func (h *Handler) HandleEnvelopeKey(w http.ResponseWriter, r *http.Request) {
	if h.envelopeKey == nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusNotFound, Code: CodeNotConfigured, Err: errors.New("no envelope key configured")})
		return
	}

	w.Header().Set("Content-Type", "application/x-pem-file")
	w.WriteHeader(http.StatusOK)
	w.Write(h.envelopeKey.PublicKeyPEM())
}

// HandleQuote returns an attestation quote whose report data commits to the
// envelope public key and the verifier nonce.
//
// URL format: GET /api/attested/quote?nonce={hex, at most 32 bytes}
//
// Response headers:
//   - X-Flashbots-Attestation-Type: Type of the returned quote
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	if h.envelopeKey == nil || h.attestation == nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusNotFound, Code: CodeNotConfigured, Err: errors.New("no attestation configured")})
		return
	}

	nonce, err := hex.DecodeString(r.URL.Query().Get("nonce"))
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: nonce must be hex", api.ErrInvalidRequest))
		return
	}
	reportData, err := cryptoutils.ReportDataForKey(h.envelopeKey.PublicKeyPEM(), nonce)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: %v", api.ErrInvalidRequest, err))
		return
	}

	quote, err := h.attestation.Attest(r.Context(), reportData)
	if err != nil {
		h.log.Error("Failed to produce attestation", "err", err)
		h.writeError(w, &RequestError{StatusCode: http.StatusInternalServerError, Code: model.CodeInternal, Err: errors.New("could not produce attestation")})
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set(AttestationTypeHeader, string(h.attestation.AttestationType()))
	w.WriteHeader(http.StatusOK)
	w.Write(quote)
}

// HandleVersion returns the build version.
//
// URL format: GET /version
func (h *Handler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, api.VersionResponse{Version: common.Version})
}

// resolveArtifact returns inline bytes, or fetches the artifact by content ID.
func (h *Handler) resolveArtifact(ctx context.Context, inline []byte, idHex string, contentType interfaces.ContentType) ([]byte, error) {
	if len(inline) > 0 {
		return inline, nil
	}

	if h.storage == nil {
		return nil, &RequestError{StatusCode: http.StatusBadRequest, Code: CodeNotConfigured, Err: errors.New("no storage backend configured")}
	}

	id, err := interfaces.NewContentIDFromHex(idHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %s id: %v", api.ErrInvalidRequest, contentType, err)
	}

	data, err := h.storage.Fetch(ctx, id, contentType)
	if err != nil {
		if errors.Is(err, interfaces.ErrContentNotFound) {
			return nil, &RequestError{StatusCode: http.StatusNotFound, Code: model.CodeModelNotFound,
				Err: fmt.Errorf("%s %s not found", contentType, id.Short())}
		}
		h.log.Error("Failed to fetch artifact", "err", err,
			slog.String("type", contentType.String()),
			slog.String("id", id.String()))
		return nil, &RequestError{StatusCode: http.StatusBadGateway, Code: CodeStorageError,
			Err: fmt.Errorf("could not fetch %s %s", contentType, id.Short())}
	}
	return data, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return &RequestError{StatusCode: http.StatusRequestEntityTooLarge, Code: api.CodeInvalidRequest,
				Err: fmt.Errorf("request body exceeds %d bytes", maxBytesErr.Limit)}
		}
		return fmt.Errorf("%w: %v", api.ErrInvalidRequest, err)
	}
	return nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var status int
	var code string

	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		status, code = reqErr.StatusCode, reqErr.Code
		if code == "" {
			code = model.Code(reqErr.Err)
		}
	case errors.Is(err, api.ErrInvalidRequest):
		status, code = http.StatusBadRequest, api.CodeInvalidRequest
	default:
		code = model.Code(err)
		status = statusForCode(code)
	}

	message := err.Error()
	if status == http.StatusInternalServerError && code == model.CodeInternal {
		h.log.Error("Request failed", "err", err)
		message = "internal server error"
	}

	h.writeJSON(w, status, api.ErrorResponse{Error: message, Code: code})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
