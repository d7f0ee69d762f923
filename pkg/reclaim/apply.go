package reclaim

import (
	"context"
	"fmt"

	"github.com/opscart/model-ops/pkg/models"
	"github.com/opscart/model-ops/pkg/orchestrator"
	log "github.com/sirupsen/logrus"
)

// ScaleIdle scales every scale_to_zero decision to zero replicas, in order.
// The first failure stops the remaining scale-downs and is returned.
func ScaleIdle(ctx context.Context, orch orchestrator.Orchestrator, kubeContext string, decisions []models.ReclaimDecision, logger *log.Entry) (int, error) {
	scaled := 0
	for _, d := range decisions {
		if d.Action != models.ActionScaleToZero {
			continue
		}

		entry := logger.WithField("workload", d.WorkloadName)
		entry.Info("scaling to zero")
		if err := orch.Scale(ctx, kubeContext, d.WorkloadName, 0); err != nil {
			entry.WithError(err).Error("scale failed, stopping mutations for this cluster")
			return scaled, fmt.Errorf("failed to scale down %s in %s: %w", d.WorkloadName, kubeContext, err)
		}
		entry.Info("scaled to zero")
		scaled++
	}
	return scaled, nil
}

// DeleteStale deletes the deployment, service and ingress of every named
// workload. Each kind is attempted regardless of the others.
func DeleteStale(ctx context.Context, orch orchestrator.Orchestrator, kubeContext string, names []string, logger *log.Entry) []models.DeleteOutcome {
	outcomes := make([]models.DeleteOutcome, 0, len(names)*len(models.StaleResourceKinds))
	for _, name := range names {
		for _, kind := range models.StaleResourceKinds {
			entry := logger.WithFields(log.Fields{"workload": name, "kind": kind})
			entry.Info("deleting")

			err := orch.Delete(ctx, kubeContext, kind, name)
			if err != nil {
				entry.WithError(err).Error("delete failed")
			} else {
				entry.Info("deleted")
			}
			outcomes = append(outcomes, models.DeleteOutcome{WorkloadName: name, Kind: kind, Err: err})
		}
	}
	return outcomes
}
