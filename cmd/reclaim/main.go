package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/opscart/model-ops/pkg/config"
	"github.com/opscart/model-ops/pkg/datasource"
	"github.com/opscart/model-ops/pkg/logging"
	"github.com/opscart/model-ops/pkg/metrics"
	"github.com/opscart/model-ops/pkg/orchestrator"
	"github.com/opscart/model-ops/pkg/reclaim"
	"github.com/opscart/model-ops/pkg/reporter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	dryRun      bool
	exactMatch  bool
	showSummary bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Scale idle model workloads to zero and delete stale ones",
		Long: `Queries request counts per pod for each configured cluster, scales
workloads that served no requests in the lookback window to zero replicas,
and deletes workloads that have had no ready replicas for longer than
stale_days together with their service and ingress.`,
		SilenceUsage: true,
		RunE:         runReclaim,
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log decisions without scaling or deleting")
	rootCmd.Flags().BoolVar(&exactMatch, "exact-match", false, "Correlate demand to workloads by exact name instead of substring")
	rootCmd.Flags().BoolVar(&showSummary, "summary", true, "Print a summary table when done")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runReclaim(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = dryRun
	}
	if err := cfg.ValidateReclaim(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logging.Setup(cfg.Log.Format, cfg.Log.Level, os.Stderr); err != nil {
		return err
	}

	source, err := datasource.NewPrometheusSource(datasource.Config{
		PrometheusURL: cfg.PrometheusURL,
		Timeout:       cfg.QueryTimeout,
	})
	if err != nil {
		return err
	}
	if !source.IsAvailable(context.Background()) {
		log.WithField("url", cfg.PrometheusURL).Warn("prometheus unreachable, idle scans will be skipped")
	}
	orch, err := orchestrator.New(cfg)
	if err != nil {
		return err
	}

	opts := []reclaim.Option{}
	if exactMatch {
		opts = append(opts, reclaim.WithMatcher(reclaim.ExactMatch))
	}
	engine := reclaim.NewEngine(cfg, source, orch, opts...)

	report := engine.Run(context.Background())

	if showSummary {
		reporter.RenderReclaimTable(report, os.Stdout)
	}

	if cfg.PushgatewayURL != "" {
		m := metrics.NewRun()
		m.ObserveReclaim(report)
		if err := m.Push(cfg.PushgatewayURL, "reclaim", time.Now()); err != nil {
			log.WithField("run_id", report.RunID).WithError(err).Warn("metrics not pushed")
		}
	}

	if report.Failed() {
		return fmt.Errorf("reclaim run %s: one or more mutating commands failed", report.RunID)
	}
	return nil
}
