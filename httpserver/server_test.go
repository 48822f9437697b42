package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/drain", nil)
	assert.JSONEq(t, `{"status":"draining"}`, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/drain", nil)
	assert.JSONEq(t, `{"status":"already draining"}`, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = env.do(t, http.MethodGet, "/undrain", nil)
	assert.JSONEq(t, `{"status":"ready"}`, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestPprofDisabledByDefault(t *testing.T) {
	env := newTestEnv(t, false)

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
