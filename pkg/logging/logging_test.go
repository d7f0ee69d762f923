package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup("json", "debug", &buf))
	t.Cleanup(func() { _ = Setup("text", "info", os.Stderr) })

	log.WithFields(log.Fields{"cluster": "do-tor1", "workload": "model-test-a"}).Debug("classified")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "do-tor1", entry["cluster"])
	assert.Equal(t, "model-test-a", entry["workload"])
	assert.Equal(t, "debug", entry["level"])
}

func TestSetupRejectsUnknown(t *testing.T) {
	assert.Error(t, Setup("xml", "info", nil))
	assert.Error(t, Setup("text", "loud", nil))
}
