package cost

import (
	"context"
	"fmt"

	"github.com/opscart/model-ops/pkg/models"
	"github.com/opscart/model-ops/pkg/storage"
	log "github.com/sirupsen/logrus"
)

// Status is what happened to one usage record
type Status string

const (
	StatusUpdated  Status = "updated"
	StatusPlanned  Status = "planned"
	StatusNoGPU    Status = "skipped_no_gpu"
	StatusNoTokens Status = "skipped_no_tokens"
	StatusFailed   Status = "failed"
)

type Result struct {
	Usage  models.TokenUsage
	GPU    *models.GPUHourCost
	Cost   *models.ProviderCost
	Status Status
	Err    error
}

type Summary struct {
	RunID     string
	EventDate string
	DryRun    bool
	Results   []Result
	Unmatched []models.UnmatchedCost
}

func (s *Summary) Count(status Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Failed reports whether any update or pricing lookup failed
func (s *Summary) Failed() bool {
	return s.Count(StatusFailed) > 0
}

// Reconciler recomputes provider mil costs for one day
type Reconciler struct {
	usage  storage.UsageStore
	prices storage.PriceStore
	dryRun bool
	runID  string
}

func NewReconciler(usage storage.UsageStore, prices storage.PriceStore, dryRun bool, runID string) *Reconciler {
	return &Reconciler{usage: usage, prices: prices, dryRun: dryRun, runID: runID}
}

// Run processes every matched record of eventDate. A provider with more
// than one pricing row aborts the run, since its cost is ambiguous.
func (r *Reconciler) Run(ctx context.Context, eventDate string) (*Summary, error) {
	logger := log.WithFields(log.Fields{"run_id": r.runID, "event_date": eventDate})
	summary := &Summary{RunID: r.runID, EventDate: eventDate, DryRun: r.dryRun}

	matched, unmatched, err := r.usage.MatchedUsage(ctx, eventDate)
	if err != nil {
		return summary, fmt.Errorf("failed to load usage: %w", err)
	}
	summary.Unmatched = unmatched
	logger.WithFields(log.Fields{"matched": len(matched), "unmatched": len(unmatched)}).Info("loaded usage")

	for _, usage := range matched {
		entry := logger.WithField("provider_id", usage.ID)

		gpus, err := r.prices.GPUCostsByCluster(ctx, usage.ID)
		if err != nil {
			entry.WithError(err).Error("pricing lookup failed")
			summary.Results = append(summary.Results, Result{Usage: usage, Status: StatusFailed, Err: err})
			continue
		}
		if len(gpus) > 1 {
			return summary, fmt.Errorf("gpu pricing for %s is not unique: %d rows", usage.ID, len(gpus))
		}
		if len(gpus) == 0 {
			entry.Warn("no gpu pricing, skipping")
			summary.Results = append(summary.Results, Result{Usage: usage, Status: StatusNoGPU})
			continue
		}

		result := r.reconcile(ctx, usage, gpus[0], entry)
		summary.Results = append(summary.Results, result)
	}

	logger.WithFields(log.Fields{
		"updated": summary.Count(StatusUpdated),
		"planned": summary.Count(StatusPlanned),
		"skipped": summary.Count(StatusNoGPU) + summary.Count(StatusNoTokens),
		"failed":  summary.Count(StatusFailed),
	}).Info("reconciliation finished")
	return summary, nil
}

func (r *Reconciler) reconcile(ctx context.Context, usage models.TokenUsage, gpu models.GPUHourCost, entry *log.Entry) Result {
	result := Result{Usage: usage, GPU: &gpu}

	cost, err := Compute(usage, gpu)
	if err != nil {
		entry.WithError(err).Error("cannot derive unit cost")
		result.Status = StatusNoTokens
		result.Err = err
		return result
	}
	result.Cost = &cost

	entry = entry.WithFields(log.Fields{
		"gpu_daily_cost":  cost.GPUDailyCost,
		"input_cost_mil":  cost.InputCostMil,
		"output_cost_mil": cost.OutputCostMil,
	})
	if r.dryRun {
		entry.Info("dry run, not updating")
		result.Status = StatusPlanned
		return result
	}

	if err := r.prices.UpdateProviderCost(ctx, cost); err != nil {
		entry.WithError(err).Error("update failed")
		result.Status = StatusFailed
		result.Err = err
		return result
	}
	entry.Info("updated")
	result.Status = StatusUpdated
	return result
}
