// Package deploy renders test model manifests and drives them through an
// orchestrator.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/opscart/model-ops/pkg/orchestrator"
	"github.com/opscart/model-ops/pkg/tmpl"
	log "github.com/sirupsen/logrus"
)

// ErrNegativeReplicas is returned for a scale below zero
var ErrNegativeReplicas = errors.New("replicas must be >= 0")

// Render fills the identifier and modelname placeholders of template
func Render(template, id, model string) ([]byte, error) {
	if id == "" || model == "" {
		return nil, fmt.Errorf("both id and model are required")
	}
	out, err := tmpl.Substitute(template, map[string]string{
		"identifier": id,
		"modelname":  model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	return []byte(out), nil
}

// RenderFile renders the template stored at path
func RenderFile(path, id, model string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return Render(string(b), id, model)
}

type Deployer struct {
	orch        orchestrator.Orchestrator
	kubeContext string
}

// NewDeployer targets kubeContext, or the current context when empty
func NewDeployer(orch orchestrator.Orchestrator, kubeContext string) *Deployer {
	return &Deployer{orch: orch, kubeContext: kubeContext}
}

// Deploy validates manifest and applies it. Nothing is applied when any
// document lacks a kind or a name.
func (d *Deployer) Deploy(ctx context.Context, manifest []byte) ([]orchestrator.Document, error) {
	docs, err := orchestrator.SplitManifest(manifest)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	logger := log.WithFields(log.Fields{"cluster": d.kubeContext, "driver": d.orch.Name()})
	for _, doc := range docs {
		logger.WithFields(log.Fields{"kind": doc.Kind, "workload": doc.Name}).Info("applying")
	}
	if err := d.orch.Apply(ctx, d.kubeContext, manifest); err != nil {
		logger.WithError(err).Error("apply failed")
		return docs, err
	}
	logger.WithField("objects", len(docs)).Info("applied")
	return docs, nil
}

// Scale sets the replica count of a deployment
func (d *Deployer) Scale(ctx context.Context, name string, replicas int) error {
	if replicas < 0 {
		return ErrNegativeReplicas
	}
	entry := log.WithFields(log.Fields{"cluster": d.kubeContext, "workload": name, "replicas": replicas})
	if err := d.orch.Scale(ctx, d.kubeContext, name, int32(replicas)); err != nil {
		entry.WithError(err).Error("scale failed")
		return err
	}
	entry.Info("scaled")
	return nil
}
