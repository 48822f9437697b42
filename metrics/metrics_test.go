package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruteri/tee-model-workload/envelope"
	"github.com/ruteri/tee-model-workload/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := NewModelObserver("test", reg)
	require.NoError(t, err)

	o.OnDecrypt(nil)
	o.OnDecrypt(&envelope.StageError{Stage: envelope.StageDEK, Err: envelope.ErrAuthenticationFailed})
	o.OnDecrypt(envelope.ErrAuthenticationFailed)
	o.OnPredict(model.Positive, nil)
	o.OnPredict(model.Negative, nil)
	o.OnPredict(model.Negative, model.ErrModelNotLoaded)
	o.OnReset()
	o.OnState(model.Loaded)

	assert.Equal(t, 1.0, testutil.ToFloat64(o.decrypts.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(o.decrypts.WithLabelValues(model.CodeAuthenticationFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.predictions.WithLabelValues("positive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.predictions.WithLabelValues("negative")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.predictions.WithLabelValues(model.CodeModelNotLoaded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.resets))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.loaded))

	o.OnState(model.Empty)
	assert.Equal(t, 0.0, testutil.ToFloat64(o.loaded))

	o.OnDecrypt(errors.New("unexpected"))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.decrypts.WithLabelValues(model.CodeInternal)))
}

func TestModelObserver_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewModelObserver("test", reg)
	require.NoError(t, err)

	_, err = NewModelObserver("test", reg)
	assert.Error(t, err)
}

func TestMetricsServer_Handler(t *testing.T) {
	srv, err := New("tee-model-workload", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Equal(t, "tee_model_workload", srv.Namespace())

	o, err := NewModelObserver(srv.Namespace(), srv.Registry())
	require.NoError(t, err)
	o.OnReset()

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "tee_model_workload_model_reset_total 1")
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
