package workloadclient

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ruteri/tee-model-workload/api"
	"github.com/ruteri/tee-model-workload/model"
)

// maxResponseSize caps response bodies read by the client.
const maxResponseSize = 1024 * 1024

// Error is a non-2xx response from the workload.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("workload returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("workload returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Client calls the workload HTTP API.
type Client struct {
	BaseURL string
	Client  *http.Client
}

// New creates a Client for the workload at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  http.DefaultClient,
	}
}

// Decrypt submits wrapped artifacts for decryption.
func (c *Client) Decrypt(ctx context.Context, req *api.DecryptRequest) error {
	return c.do(ctx, http.MethodPost, "/api/v1/model/decrypt", req, nil)
}

// Predict classifies input with the loaded model.
func (c *Client) Predict(ctx context.Context, input model.FeatureVector) (model.Prediction, error) {
	var resp api.PredictResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/model/execute", api.NewPredictRequest(input), &resp); err != nil {
		return model.Negative, err
	}
	return resp.HighRisk, nil
}

// Reset clears the loaded model.
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/model/reset", nil, nil)
}

// Status returns the model state ("empty" or "loaded").
func (c *Client) Status(ctx context.Context) (string, error) {
	var resp api.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/model/status", nil, &resp); err != nil {
		return "", err
	}
	return resp.State, nil
}

// EnvelopeKey returns the PEM public key session keys are sealed to.
func (c *Client) EnvelopeKey(ctx context.Context) ([]byte, error) {
	return c.raw(ctx, "/api/v1/envelope-key")
}

// Quote returns the attestation quote over the envelope key and nonce.
func (c *Client) Quote(ctx context.Context, nonce []byte) ([]byte, error) {
	path := "/api/attested/quote"
	if len(nonce) > 0 {
		path += "?nonce=" + hex.EncodeToString(nonce)
	}
	return c.raw(ctx, path)
}

func (c *Client) raw(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("could not read workload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("could not read workload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("could not parse workload response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not request workload: %w", err)
	}
	return resp, nil
}

func responseError(status int, body []byte) error {
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Code != "" {
		return &Error{StatusCode: status, Code: errResp.Code, Message: errResp.Error}
	}
	return &Error{StatusCode: status, Message: strings.TrimSpace(string(body))}
}
