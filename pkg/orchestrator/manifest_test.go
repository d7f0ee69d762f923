package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoDocs = `# rendered by model-deploy
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: model-test-7
---
apiVersion: v1
kind: Service
metadata:
  name: model-test-7
`

func TestSplitManifest(t *testing.T) {
	docs, err := SplitManifest([]byte(twoDocs))
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "Deployment", docs[0].Kind)
	assert.Equal(t, "model-test-7", docs[0].Name)
	assert.Equal(t, "Service", docs[1].Kind)
}

func TestSplitManifestErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"empty", ""},
		{"missing name", "apiVersion: v1\nkind: Service\nmetadata: {}\n"},
		{"missing kind", "apiVersion: v1\nmetadata:\n  name: x\n"},
		{"not yaml", "kind: [unclosed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SplitManifest([]byte(tt.manifest))
			assert.Error(t, err)
		})
	}
}
