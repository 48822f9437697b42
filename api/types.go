package api

import (
	"errors"
	"fmt"

	"github.com/ruteri/tee-model-workload/model"
)

// ErrInvalidRequest is returned for request bodies that fail validation.
var ErrInvalidRequest = errors.New("invalid request")

// CodeInvalidRequest is the error code of ErrInvalidRequest.
const CodeInvalidRequest = "invalid_request"

// DecryptRequest is the body of POST /api/v1/model/decrypt.
//
// Each artifact is given either inline or by reference: wrapped_model or
// model_id, wrapped_dek or dek_id, swk or wrapped_swk. Byte fields are
// base64 in JSON, IDs are hex content IDs of the wrapped bytes.
type DecryptRequest struct {
	WrappedModel []byte `json:"wrapped_model,omitempty"`
	ModelID      string `json:"model_id,omitempty"`

	WrappedDEK []byte `json:"wrapped_dek,omitempty"`
	DEKID      string `json:"dek_id,omitempty"`

	// SWK is the raw 32-byte session wrapping key.
	SWK []byte `json:"swk,omitempty"`
	// WrappedSWK is the SWK sealed to the workload envelope key.
	WrappedSWK []byte `json:"wrapped_swk,omitempty"`
}

// Validate checks that exactly one source is given for every artifact.
func (r *DecryptRequest) Validate() error {
	if err := exactlyOne("wrapped_model", len(r.WrappedModel) > 0, "model_id", r.ModelID != ""); err != nil {
		return err
	}
	if err := exactlyOne("wrapped_dek", len(r.WrappedDEK) > 0, "dek_id", r.DEKID != ""); err != nil {
		return err
	}
	return exactlyOne("swk", len(r.SWK) > 0, "wrapped_swk", len(r.WrappedSWK) > 0)
}

func exactlyOne(a string, hasA bool, b string, hasB bool) error {
	if hasA == hasB {
		return fmt.Errorf("%w: exactly one of %s and %s is required", ErrInvalidRequest, a, b)
	}
	return nil
}

// PredictRequest is the body of POST /api/v1/model/execute. Every feature is
// required.
type PredictRequest struct {
	Pregnancies              *float64 `json:"pregnancies"`
	Glucose                  *float64 `json:"glucose"`
	BloodPressure            *float64 `json:"blood_pressure"`
	SkinThickness            *float64 `json:"skin_thickness"`
	Insulin                  *float64 `json:"insulin"`
	BMI                      *float64 `json:"bmi"`
	DiabetesPedigreeFunction *float64 `json:"diabetes_pedigree_function"`
	Age                      *float64 `json:"age"`
}

// NewPredictRequest fills a request from a feature vector.
func NewPredictRequest(v model.FeatureVector) PredictRequest {
	return PredictRequest{
		Pregnancies:              &v.Pregnancies,
		Glucose:                  &v.Glucose,
		BloodPressure:            &v.BloodPressure,
		SkinThickness:            &v.SkinThickness,
		Insulin:                  &v.Insulin,
		BMI:                      &v.BMI,
		DiabetesPedigreeFunction: &v.DiabetesPedigreeFunction,
		Age:                      &v.Age,
	}
}

// FeatureVector returns the features, failing on the first missing one.
func (r *PredictRequest) FeatureVector() (model.FeatureVector, error) {
	fields := []struct {
		name string
		v    *float64
	}{
		{"pregnancies", r.Pregnancies},
		{"glucose", r.Glucose},
		{"blood_pressure", r.BloodPressure},
		{"skin_thickness", r.SkinThickness},
		{"insulin", r.Insulin},
		{"bmi", r.BMI},
		{"diabetes_pedigree_function", r.DiabetesPedigreeFunction},
		{"age", r.Age},
	}
	for _, f := range fields {
		if f.v == nil {
			return model.FeatureVector{}, fmt.Errorf("%w: missing feature %s", ErrInvalidRequest, f.name)
		}
	}

	return model.FeatureVector{
		Pregnancies:              *r.Pregnancies,
		Glucose:                  *r.Glucose,
		BloodPressure:            *r.BloodPressure,
		SkinThickness:            *r.SkinThickness,
		Insulin:                  *r.Insulin,
		BMI:                      *r.BMI,
		DiabetesPedigreeFunction: *r.DiabetesPedigreeFunction,
		Age:                      *r.Age,
	}, nil
}

// PredictResponse is the body returned by POST /api/v1/model/execute.
type PredictResponse struct {
	HighRisk model.Prediction `json:"high_risk"`
}

// StatusResponse is the body returned by GET /api/v1/model/status.
type StatusResponse struct {
	State string `json:"state"`
}

// VersionResponse is the body returned by GET /version.
type VersionResponse struct {
	Version string `json:"version"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
