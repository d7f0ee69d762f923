package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opscart/model-ops/pkg/models"
	"github.com/opscart/model-ops/pkg/tmpl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const template = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: model-test-${identifier}
spec:
  template:
    spec:
      containers:
      - name: vllm
        args: ["--model", "$modelname", "--price", "$$0"]
---
apiVersion: v1
kind: Service
metadata:
  name: model-test-${identifier}
`

type fakeOrchestrator struct {
	applied  [][]byte
	scaled   map[string]int32
	applyErr error
}

func (f *fakeOrchestrator) ListWorkloads(context.Context, string, string) ([]models.WorkloadDescriptor, error) {
	return nil, nil
}

func (f *fakeOrchestrator) Scale(_ context.Context, _ string, name string, replicas int32) error {
	if f.scaled == nil {
		f.scaled = map[string]int32{}
	}
	f.scaled[name] = replicas
	return nil
}

func (f *fakeOrchestrator) Delete(context.Context, string, models.ResourceKind, string) error {
	return nil
}

func (f *fakeOrchestrator) Apply(_ context.Context, _ string, manifest []byte) error {
	f.applied = append(f.applied, manifest)
	return f.applyErr
}

func (f *fakeOrchestrator) Name() string { return "fake" }

func TestRender(t *testing.T) {
	out, err := Render(template, "42", "Qwen/Qwen3-8B")
	require.NoError(t, err)

	assert.Contains(t, string(out), "name: model-test-42")
	assert.Contains(t, string(out), `"--model", "Qwen/Qwen3-8B"`)
	assert.Contains(t, string(out), `"$0"`)
}

func TestRenderErrors(t *testing.T) {
	_, err := Render(template, "", "m")
	assert.Error(t, err)

	_, err = Render("name: $cluster", "42", "m")
	var missing *tmpl.MissingKeyError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "cluster", missing.Key)
}

func TestRenderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployment-test-template.yaml")
	require.NoError(t, os.WriteFile(path, []byte(template), 0o644))

	out, err := RenderFile(path, "7", "llama")
	require.NoError(t, err)
	assert.Contains(t, string(out), "model-test-7")

	_, err = RenderFile(filepath.Join(t.TempDir(), "missing.yaml"), "7", "llama")
	assert.Error(t, err)
}

func TestDeploy(t *testing.T) {
	orch := &fakeOrchestrator{}
	manifest, err := Render(template, "42", "llama")
	require.NoError(t, err)

	docs, err := NewDeployer(orch, "do-tor1").Deploy(context.Background(), manifest)
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "Deployment", docs[0].Kind)
	assert.Equal(t, "Service", docs[1].Kind)
	assert.Equal(t, [][]byte{manifest}, orch.applied)
}

func TestDeployInvalidManifestNotApplied(t *testing.T) {
	orch := &fakeOrchestrator{}

	_, err := NewDeployer(orch, "").Deploy(context.Background(), []byte("apiVersion: v1\nkind: Service\n"))
	assert.Error(t, err)
	assert.Empty(t, orch.applied)
}

func TestDeployApplyFailure(t *testing.T) {
	orch := &fakeOrchestrator{applyErr: &models.CommandFailure{Command: []string{"kubectl", "apply"}, ExitCode: 1}}
	manifest, err := Render(template, "42", "llama")
	require.NoError(t, err)

	_, err = NewDeployer(orch, "").Deploy(context.Background(), manifest)
	var failure *models.CommandFailure
	assert.True(t, errors.As(err, &failure))
}

func TestScale(t *testing.T) {
	orch := &fakeOrchestrator{}
	d := NewDeployer(orch, "do-tor1")

	require.NoError(t, d.Scale(context.Background(), "model-test-42", 0))
	assert.Equal(t, int32(0), orch.scaled["model-test-42"])

	assert.ErrorIs(t, d.Scale(context.Background(), "model-test-42", -1), ErrNegativeReplicas)
}

func TestShippedTemplate(t *testing.T) {
	manifest, err := RenderFile("../../config/deployment-test-template.yaml", "42", "Qwen/Qwen3-8B")
	require.NoError(t, err)

	orch := &fakeOrchestrator{}
	docs, err := NewDeployer(orch, "").Deploy(context.Background(), manifest)
	require.NoError(t, err)

	require.Len(t, docs, 3)
	for _, d := range docs {
		assert.Equal(t, "model-test-42", d.Name)
	}
	assert.Equal(t, []string{"Deployment", "Service", "Ingress"}, []string{docs[0].Kind, docs[1].Kind, docs[2].Kind})
}
