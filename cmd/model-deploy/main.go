package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/opscart/model-ops/pkg/config"
	"github.com/opscart/model-ops/pkg/deploy"
	"github.com/opscart/model-ops/pkg/logging"
	"github.com/opscart/model-ops/pkg/orchestrator"
	"github.com/opscart/model-ops/pkg/reporter"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	kubeContext  string
	modelID      string
	modelName    string
	templatePath string
	renderOnly   bool
	prefix       string
	replicas     int

	cfg  *config.Config
	orch orchestrator.Orchestrator
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "model-deploy",
		Short:             "Deploy, list and scale test model workloads",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&kubeContext, "context", "", "Kube context (default: deploy.context, then the current context)")

	deployCmd := &cobra.Command{
		Use:   "deploy",
		Short: "Render the deployment template and apply it",
		RunE:  runDeploy,
	}
	deployCmd.Flags().StringVar(&modelID, "id", "", "Identifier substituted for $identifier")
	deployCmd.Flags().StringVar(&modelName, "model", "", "Model substituted for $modelname")
	deployCmd.Flags().StringVar(&templatePath, "template", "", "Template path (default: deploy.template)")
	deployCmd.Flags().BoolVar(&renderOnly, "render-only", false, "Print the rendered manifest without applying it")
	_ = deployCmd.MarkFlagRequired("id")
	_ = deployCmd.MarkFlagRequired("model")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List deployments whose name starts with a prefix",
		RunE:  runList,
	}
	listCmd.Flags().StringVar(&prefix, "prefix", "", "Name prefix (default: workload_prefix)")

	scaleCmd := &cobra.Command{
		Use:   "scale <name>",
		Short: "Scale a deployment",
		Args:  cobra.ExactArgs(1),
		RunE:  runScale,
	}
	scaleCmd.Flags().IntVar(&replicas, "replicas", 0, "Replica count, >= 0")
	_ = scaleCmd.MarkFlagRequired("replicas")

	rootCmd.AddCommand(deployCmd, listCmd, scaleCmd)

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
	if err := logging.Setup(cfg.Log.Format, cfg.Log.Level, os.Stderr); err != nil {
		return err
	}
	if kubeContext == "" {
		kubeContext = cfg.Deploy.Context
	}
	orch, err = orchestrator.New(cfg)
	return err
}

func runDeploy(cmd *cobra.Command, args []string) error {
	if templatePath == "" {
		templatePath = cfg.Deploy.Template
	}
	manifest, err := deploy.RenderFile(templatePath, modelID, modelName)
	if err != nil {
		return err
	}
	if renderOnly {
		_, err := os.Stdout.Write(manifest)
		return err
	}

	docs, err := deploy.NewDeployer(orch, kubeContext).Deploy(context.Background(), manifest)
	if err != nil {
		return err
	}
	for _, d := range docs {
		fmt.Printf("%s/%s applied\n", d.Kind, d.Name)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	if prefix == "" {
		prefix = cfg.WorkloadPrefix
	}
	workloads, err := orch.ListWorkloads(context.Background(), kubeContext, prefix)
	if err != nil {
		return err
	}
	if len(workloads) == 0 {
		fmt.Printf("No deployments starting with '%s' found.\n", prefix)
		return nil
	}
	reporter.RenderWorkloads(workloads, time.Now(), os.Stdout)
	return nil
}

func runScale(cmd *cobra.Command, args []string) error {
	return deploy.NewDeployer(orch, kubeContext).Scale(context.Background(), args[0], replicas)
}
