package orchestrator

import (
	"context"

	"github.com/opscart/model-ops/pkg/models"
)

// Orchestrator is the cluster control surface. Every call is addressed to
// one kube context.
type Orchestrator interface {
	// ListWorkloads returns the deployments whose name starts with prefix
	ListWorkloads(ctx context.Context, kubeContext, prefix string) ([]models.WorkloadDescriptor, error)
	Scale(ctx context.Context, kubeContext, name string, replicas int32) error
	// Delete removes one resource. A resource that is already gone is not an error.
	Delete(ctx context.Context, kubeContext string, kind models.ResourceKind, name string) error
	Apply(ctx context.Context, kubeContext string, manifest []byte) error
	Name() string
}
