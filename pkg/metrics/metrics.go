// Package metrics collects per-run job metrics and pushes them to a
// Prometheus Pushgateway. Batch jobs exit before a scrape could happen, so
// every run gets its own registry.
package metrics

import (
	"fmt"
	"time"

	"github.com/opscart/model-ops/pkg/cost"
	"github.com/opscart/model-ops/pkg/models"
	"github.com/opscart/model-ops/pkg/reclaim"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "modelops"

type Run struct {
	registry *prometheus.Registry

	Decisions       *prometheus.CounterVec
	Deletes         *prometheus.CounterVec
	ScaleFailures   *prometheus.CounterVec
	NamingErrors    *prometheus.CounterVec
	ClustersSkipped *prometheus.CounterVec
	CostRecords     *prometheus.CounterVec
	LastRun         prometheus.Gauge
	Duration        prometheus.Gauge
}

func NewRun() *Run {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Run{
		registry: reg,
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reclaim_decisions_total",
			Help:      "Reclaim decisions per cluster and action",
		}, []string{"cluster", "action"}),
		Deletes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reclaim_deletes_total",
			Help:      "Stale resource deletions per cluster, kind and result",
		}, []string{"cluster", "kind", "result"}),
		ScaleFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reclaim_scale_failures_total",
			Help:      "Scale-downs that failed and stopped a cluster",
		}, []string{"cluster"}),
		NamingErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reclaim_naming_errors_total",
			Help:      "Metric samples whose label could not be correlated",
		}, []string{"cluster"}),
		ClustersSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reclaim_skipped_total",
			Help:      "Clusters or idle scans skipped because a backend failed",
		}, []string{"cluster", "stage"}),
		CostRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_records_total",
			Help:      "Provider cost records per result",
		}, []string{"result"}),
		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the job finished",
		}),
		Duration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
	}
}

func (r *Run) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveReclaim records the outcome of a reclaim run
func (r *Run) ObserveReclaim(report *reclaim.Report) {
	for i := range report.Clusters {
		cr := &report.Clusters[i]
		cluster := cr.Cluster.Context

		if cr.InventoryErr != nil {
			r.ClustersSkipped.WithLabelValues(cluster, "inventory").Inc()
			continue
		}
		if cr.MetricsErr != nil {
			r.ClustersSkipped.WithLabelValues(cluster, "metrics").Inc()
		}
		for _, d := range cr.Decisions {
			r.Decisions.WithLabelValues(cluster, string(d.Action)).Inc()
		}
		for _, o := range cr.Deletes {
			r.Deletes.WithLabelValues(cluster, string(o.Kind), result(o)).Inc()
		}
		if cr.ScaleErr != nil {
			r.ScaleFailures.WithLabelValues(cluster).Inc()
		}
		if n := len(cr.NamingErrors); n > 0 {
			r.NamingErrors.WithLabelValues(cluster).Add(float64(n))
		}
	}
	r.Duration.Set(report.Duration.Seconds())
}

// ObserveCost records the outcome of a cost reconciliation
func (r *Run) ObserveCost(summary *cost.Summary) {
	for _, res := range summary.Results {
		r.CostRecords.WithLabelValues(string(res.Status)).Inc()
	}
	if n := len(summary.Unmatched); n > 0 {
		r.CostRecords.WithLabelValues("unmatched").Add(float64(n))
	}
}

func result(o models.DeleteOutcome) string {
	if o.Succeeded() {
		return "success"
	}
	return "failure"
}

// Push replaces the job's metrics on the gateway
func (r *Run) Push(gatewayURL, job string, finished time.Time) error {
	r.LastRun.Set(float64(finished.Unix()))
	if err := push.New(gatewayURL, job).Gatherer(r.registry).Push(); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
