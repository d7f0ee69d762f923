package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opscart/model-ops/pkg/config"
	"github.com/opscart/model-ops/pkg/cost"
	"github.com/opscart/model-ops/pkg/datasource"
	"github.com/opscart/model-ops/pkg/logging"
	"github.com/opscart/model-ops/pkg/metrics"
	"github.com/opscart/model-ops/pkg/models"
	"github.com/opscart/model-ops/pkg/reporter"
	"github.com/opscart/model-ops/pkg/storage"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	eventDate    string
	dryRun       bool
	reportFormat string
	reportOutput string

	// gpu-hours
	gpuJob      string
	gpuPodRegex string
	startDay    string
	endDay      string
	utcOffset   string

	// gpu-price
	priceModel   string
	priceCluster string
	priceCards   int
	priceValue   float64
	minPrice     float64
	maxPrice     float64

	cfg *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cost-reconcile",
		Short: "Recompute provider cost per million tokens",
		Long: `Joins the day's token usage from the reporting database with the GPU
hourly price of each provider and writes the input and output cost per
million tokens back to the pricing database.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		RunE:              runReconcile,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	rootCmd.Flags().StringVar(&eventDate, "date", "", "Event date YYYY-MM-DD (default: yesterday)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute costs without updating the database")
	rootCmd.Flags().StringVar(&reportFormat, "report-format", "table", "Report format: table, csv")
	rootCmd.Flags().StringVar(&reportOutput, "report-output", "", "Write the report to this file instead of stdout")

	gpuHoursCmd := &cobra.Command{
		Use:   "gpu-hours",
		Short: "Count GPU card-hours of matching pods over a date range",
		RunE:  runGPUHours,
	}
	gpuHoursCmd.Flags().StringVar(&gpuJob, "job", cost.DefaultGPUJob, "DCGM exporter job label")
	gpuHoursCmd.Flags().StringVar(&gpuPodRegex, "pod-regex", cost.DefaultGPUPodRegex, "Pod regex")
	gpuHoursCmd.Flags().StringVar(&startDay, "start", "", "Start day YYYY-MM-DD (required)")
	gpuHoursCmd.Flags().StringVar(&endDay, "end", "", "End day YYYY-MM-DD (default: day after start)")
	gpuHoursCmd.Flags().StringVar(&utcOffset, "utc-offset", "+08:00", "UTC offset the days start at")
	_ = gpuHoursCmd.MarkFlagRequired("start")

	tablesCmd := &cobra.Command{
		Use:   "tables",
		Short: "List tables of the pricing database",
		RunE:  runTables,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the pricing tables if missing",
		RunE:  runMigrate,
	}

	priceCmd := &cobra.Command{
		Use:   "gpu-price",
		Short: "Manage GPU hourly prices",
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a GPU price row",
		RunE:  runPriceAdd,
	}
	addCmd.Flags().StringVar(&priceModel, "model", "", "GPU model")
	addCmd.Flags().StringVar(&priceCluster, "cluster", "", "Provider cost id the GPUs serve")
	addCmd.Flags().IntVar(&priceCards, "cards", 1, "Number of cards")
	addCmd.Flags().Float64Var(&priceValue, "price", 0, "Price per card-hour")
	_ = addCmd.MarkFlagRequired("model")
	_ = addCmd.MarkFlagRequired("cluster")
	_ = addCmd.MarkFlagRequired("price")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List GPU prices",
		RunE:  runPriceList,
	}
	listCmd.Flags().StringVar(&priceModel, "model", "", "Only this GPU model")
	listCmd.Flags().Float64Var(&minPrice, "min-price", 0, "Minimum price")
	listCmd.Flags().Float64Var(&maxPrice, "max-price", 0, "Maximum price")

	importCmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import GPU prices from a model,cluster,card_num,price CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  runPriceImport,
	}

	priceCmd.AddCommand(addCmd, listCmd, importCmd)
	rootCmd.AddCommand(gpuHoursCmd, tablesCmd, migrateCmd, priceCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return logging.Setup(cfg.Log.Format, cfg.Log.Level, os.Stderr)
}

func openPriceStore(ctx context.Context) (*storage.PostgresStore, error) {
	if cfg.Database.PostgresDSN == "" {
		return nil, fmt.Errorf("DATABASE_POSTGRES_DSN must be set")
	}
	return storage.NewPostgresStore(ctx, cfg.Database.PostgresDSN)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateCost(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = dryRun
	}

	date := cost.DefaultEventDate(time.Now())
	if eventDate != "" {
		var err error
		if date, err = cost.ParseEventDate(eventDate); err != nil {
			return err
		}
	}

	rep, err := reporter.New(reporter.ReportFormat(reportFormat))
	if err != nil {
		return err
	}

	ctx := context.Background()
	usage, err := storage.NewMySQLStore(ctx, cfg.Database.MySQLDSN)
	if err != nil {
		return err
	}
	defer usage.Close()

	prices, err := openPriceStore(ctx)
	if err != nil {
		return err
	}
	defer prices.Close()

	runID := uuid.New().String()
	summary, runErr := cost.NewReconciler(usage, prices, cfg.DryRun, runID).Run(ctx, date)

	if err := writeReport(rep, rep.Generate(summary)); err != nil {
		log.WithField("run_id", runID).WithError(err).Error("report not written")
	}

	if cfg.PushgatewayURL != "" {
		m := metrics.NewRun()
		m.ObserveCost(summary)
		if err := m.Push(cfg.PushgatewayURL, "cost-reconcile", time.Now()); err != nil {
			log.WithField("run_id", runID).WithError(err).Warn("metrics not pushed")
		}
	}

	if runErr != nil {
		return runErr
	}
	if summary.Failed() {
		return fmt.Errorf("cost run %s: %d record(s) failed", runID, summary.Count(cost.StatusFailed))
	}
	return nil
}

func writeReport(rep *reporter.Reporter, report *reporter.Report) error {
	if reportOutput == "" {
		return rep.Write(report, os.Stdout)
	}
	f, err := os.Create(reportOutput)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()
	if err := rep.Write(report, f); err != nil {
		return err
	}
	log.WithField("path", reportOutput).Info("report written")
	return nil
}

func runGPUHours(cmd *cobra.Command, args []string) error {
	zone, err := time.Parse("-07:00", utcOffset)
	if err != nil {
		return fmt.Errorf("invalid --utc-offset %q", utcOffset)
	}
	loc := zone.Location()

	start, err := time.ParseInLocation("2006-01-02", startDay, loc)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	end := start.AddDate(0, 0, 1)
	if endDay != "" {
		if end, err = time.ParseInLocation("2006-01-02", endDay, loc); err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}
	}

	source, err := datasource.NewPrometheusSource(datasource.Config{
		PrometheusURL: cfg.PrometheusURL,
		Timeout:       cfg.QueryTimeout,
	})
	if err != nil {
		return err
	}

	samples, total, err := cost.CardHours(context.Background(), source, cost.CardHoursQuery{
		Job:      gpuJob,
		PodRegex: gpuPodRegex,
		Start:    start,
		End:      end,
		Step:     time.Hour,
	})
	if err != nil {
		return err
	}
	reporter.RenderTimeSamples(samples, total, os.Stdout)
	return nil
}

func runTables(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := openPriceStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	tables, err := store.ListTables(ctx)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		fmt.Println("No tables found in the database.")
		return nil
	}
	fmt.Println(strings.Join(tables, "\n"))
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := openPriceStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	log.Info("schema up to date")
	return nil
}

func runPriceAdd(cmd *cobra.Command, args []string) error {
	if priceCards <= 0 || priceValue < 0 {
		return fmt.Errorf("--cards must be positive and --price non-negative")
	}
	ctx := context.Background()
	store, err := openPriceStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	row := models.GPUHourCost{Model: priceModel, Cluster: priceCluster, CardNum: priceCards, Price: priceValue}
	if err := store.InsertGPUHourCost(ctx, row); err != nil {
		return err
	}
	log.WithFields(log.Fields{"model": row.Model, "cluster": row.Cluster, "cards": row.CardNum}).Info("gpu price added")
	return nil
}

func runPriceList(cmd *cobra.Command, args []string) error {
	filter := storage.GPUPriceFilter{Model: priceModel}
	if cmd.Flags().Changed("min-price") {
		filter.MinPrice = &minPrice
	}
	if cmd.Flags().Changed("max-price") {
		filter.MaxPrice = &maxPrice
	}

	ctx := context.Background()
	store, err := openPriceStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	costs, err := store.QueryGPUPrices(ctx, filter)
	if err != nil {
		return err
	}
	reporter.RenderGPUPrices(costs, os.Stdout)
	return nil
}

func runPriceImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	costs, err := storage.ReadGPUHourCosts(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	ctx := context.Background()
	store, err := openPriceStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.BatchInsertGPUHourCosts(ctx, costs); err != nil {
		return err
	}
	log.WithField("rows", len(costs)).Info("gpu prices imported")
	return nil
}
