package common

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger_JSON(t *testing.T) {
	var out bytes.Buffer
	log := SetupLogger(&LoggingOpts{
		JSON:    true,
		Service: "workload",
		Version: "v1.2.3",
		Output:  &out,
	})

	log.Debug("hidden")
	log.Info("visible", "size", 42)

	var record map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &record))
	assert.Equal(t, "visible", record["msg"])
	assert.Equal(t, "workload", record["service"])
	assert.Equal(t, "v1.2.3", record["version"])
	assert.Equal(t, float64(42), record["size"])
}

func TestSetupLogger_Debug(t *testing.T) {
	var out bytes.Buffer
	log := SetupLogger(&LoggingOpts{Debug: true, Output: &out})

	log.Debug("shown")
	assert.Contains(t, out.String(), "level=DEBUG")
	assert.Contains(t, out.String(), "msg=shown")
	assert.NotContains(t, out.String(), "service=")
}
