package reclaim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opscart/model-ops/pkg/config"
	"github.com/opscart/model-ops/pkg/datasource"
	"github.com/opscart/model-ops/pkg/models"
	"github.com/opscart/model-ops/pkg/orchestrator"
	"github.com/opscart/model-ops/pkg/tmpl"
	"github.com/prometheus/common/model"
	log "github.com/sirupsen/logrus"
)

// Engine runs one reclaim pass over the configured clusters
type Engine struct {
	cfg    *config.Config
	source datasource.DataSource
	orch   orchestrator.Orchestrator
	namer  BaseNamer
	match  Matcher
	now    func() time.Time
	runID  string
}

type Option func(*Engine)

// WithClock overrides the time source used for staleness
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithMatcher(m Matcher) Option {
	return func(e *Engine) { e.match = m }
}

func WithBaseNamer(n BaseNamer) Option {
	return func(e *Engine) { e.namer = n }
}

func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}

func NewEngine(cfg *config.Config, source datasource.DataSource, orch orchestrator.Orchestrator, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		source: source,
		orch:   orch,
		namer:  BaseName,
		match:  SubstringMatch,
		now:    time.Now,
		runID:  uuid.New().String(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ClusterReport is what happened in one cluster
type ClusterReport struct {
	Cluster      models.ClusterTarget
	Workloads    int
	Excluded     []string
	Decisions    []models.ReclaimDecision
	NamingErrors []error
	InventoryErr error
	MetricsErr   error
	ScaleErr     error
	Scaled       int
	Deletes      []models.DeleteOutcome
}

// Count returns how many decisions carry action a
func (c *ClusterReport) Count(a models.Action) int {
	n := 0
	for _, d := range c.Decisions {
		if d.Action == a {
			n++
		}
	}
	return n
}

func (c *ClusterReport) DeleteFailures() int {
	n := 0
	for _, o := range c.Deletes {
		if !o.Succeeded() {
			n++
		}
	}
	return n
}

// Report is the outcome of a run
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	DryRun   bool
	Clusters []ClusterReport
}

// Failed reports whether any mutating command failed
func (r *Report) Failed() bool {
	for i := range r.Clusters {
		if r.Clusters[i].ScaleErr != nil || r.Clusters[i].DeleteFailures() > 0 {
			return true
		}
	}
	return false
}

// Run processes the clusters in order. It never stops early: failures are
// recorded on the cluster's report.
func (e *Engine) Run(ctx context.Context) *Report {
	report := &Report{
		RunID:   e.runID,
		Started: e.now(),
		DryRun:  e.cfg.DryRun,
	}

	logger := log.WithField("run_id", e.runID)
	logger.WithFields(log.Fields{
		"clusters": len(e.cfg.Clusters),
		"driver":   e.orch.Name(),
		"dry_run":  e.cfg.DryRun,
	}).Info("reclaim run started")

	for _, target := range e.cfg.Clusters {
		report.Clusters = append(report.Clusters, e.runCluster(ctx, target, logger))
	}

	report.Duration = e.now().Sub(report.Started)
	logger.WithFields(log.Fields{
		"failed":   report.Failed(),
		"duration": report.Duration.String(),
	}).Info("reclaim run finished")
	return report
}

func (e *Engine) runCluster(ctx context.Context, target models.ClusterTarget, runLogger *log.Entry) ClusterReport {
	cr := ClusterReport{Cluster: target}
	logger := runLogger.WithFields(log.Fields{"cluster": target.Context, "vendor": target.Vendor})

	workloads, err := e.orch.ListWorkloads(ctx, target.Context, e.cfg.WorkloadPrefix)
	if err != nil {
		logger.WithError(err).Error("inventory unavailable, skipping cluster")
		cr.InventoryErr = err
		return cr
	}
	cr.Workloads = len(workloads)

	candidates := make([]models.WorkloadDescriptor, 0, len(workloads))
	names := make([]string, 0, len(workloads))
	for _, w := range workloads {
		if Excluded(w.Name, e.cfg.Exclude) {
			logger.WithField("workload", w.Name).Info("excluded")
			cr.Excluded = append(cr.Excluded, w.Name)
			continue
		}
		candidates = append(candidates, w)
		names = append(names, w.Name)
	}

	idle := e.scanIdle(ctx, target, names, logger, &cr)

	stale := make(map[string]bool)
	for _, name := range ClassifyStale(candidates, e.cfg.StaleAfter(), e.now()) {
		stale[name] = true
	}

	for _, name := range names {
		d, ok := idle[name]
		if !ok {
			d = models.ReclaimDecision{WorkloadName: name, Action: models.ActionNone, Reason: "no demand data"}
		}
		if stale[name] {
			d = models.ReclaimDecision{
				WorkloadName: name,
				Action:       models.ActionDelete,
				Reason:       fmt.Sprintf("no ready replicas for over %d days", e.cfg.StaleDays),
			}
		}
		logger.WithFields(log.Fields{"workload": name, "action": d.Action}).Info(d.Reason)
		cr.Decisions = append(cr.Decisions, d)
	}

	if e.cfg.DryRun {
		logger.WithFields(log.Fields{
			"scale_to_zero": cr.Count(models.ActionScaleToZero),
			"delete":        cr.Count(models.ActionDelete),
		}).Info("dry run, no changes made")
		return cr
	}

	cr.Scaled, cr.ScaleErr = ScaleIdle(ctx, e.orch, target.Context, cr.Decisions, logger)
	if cr.ScaleErr != nil {
		return cr
	}

	var toDelete []string
	for _, d := range cr.Decisions {
		if d.Action == models.ActionDelete {
			toDelete = append(toDelete, d.WorkloadName)
		}
	}
	cr.Deletes = DeleteStale(ctx, e.orch, target.Context, toDelete, logger)
	return cr
}

// scanIdle queries demand and classifies names. A metrics failure yields no
// decisions, which leaves every workload untouched by the idle path.
func (e *Engine) scanIdle(ctx context.Context, target models.ClusterTarget, names []string, logger *log.Entry, cr *ClusterReport) map[string]models.ReclaimDecision {
	expr, err := e.Query(target)
	if err != nil {
		logger.WithError(err).Error("cannot build demand query, skipping idle scan")
		cr.MetricsErr = err
		return nil
	}

	logger.WithField("query", expr).Debug("querying demand")
	samples, err := e.source.QueryVector(ctx, expr, e.cfg.EntityLabel)
	if err != nil {
		logger.WithError(err).Warn("no demand data, skipping idle scan")
		cr.MetricsErr = err
		return nil
	}

	demand, namingErrs := Correlate(samples, e.namer)
	for _, nerr := range namingErrs {
		logger.WithError(nerr).Error("cannot correlate sample")
	}
	cr.NamingErrors = namingErrs

	decisions := make(map[string]models.ReclaimDecision, len(names))
	for _, d := range Classify(names, demand, nil, e.match) {
		decisions[d.WorkloadName] = d
	}
	return decisions
}

// Query renders the demand expression for one cluster
func (e *Engine) Query(target models.ClusterTarget) (string, error) {
	return tmpl.Substitute(e.cfg.QueryTemplate, map[string]string{
		"prefix": e.cfg.WorkloadPrefix,
		"vendor": target.Vendor,
		"window": model.Duration(e.cfg.Lookback).String(),
	})
}
