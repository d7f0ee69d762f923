package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/opscart/model-ops/pkg/models"
	"github.com/spf13/viper"
)

const (
	DriverKubectl   = "kubectl"
	DriverClientset = "client-go"
)

// DefaultQueryTemplate counts finished requests per pod over the lookback window
const DefaultQueryTemplate = `increase(vllm:e2e_request_latency_seconds_count{pod=~"${prefix}.*",vendor="${vendor}"}[${window}])`

// Config holds application configuration
type Config struct {
	// Prometheus
	PrometheusURL string        `mapstructure:"prometheus_url"`
	QueryTimeout  time.Duration `mapstructure:"query_timeout"`
	Lookback      time.Duration `mapstructure:"lookback"`
	QueryTemplate string        `mapstructure:"query_template"`
	EntityLabel   string        `mapstructure:"entity_label"`

	// Reclaim
	WorkloadPrefix string                 `mapstructure:"workload_prefix"`
	Namespace      string                 `mapstructure:"namespace"`
	Clusters       []models.ClusterTarget `mapstructure:"clusters"`
	Exclude        []string               `mapstructure:"exclude"`
	StaleDays      int                    `mapstructure:"stale_days"`
	DryRun         bool                   `mapstructure:"dry_run"`

	// Orchestration
	Driver     string `mapstructure:"driver"`
	Kubectl    string `mapstructure:"kubectl"`
	Kubeconfig string `mapstructure:"kubeconfig"`

	PushgatewayURL string `mapstructure:"pushgateway_url"`

	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Deploy   DeployConfig   `mapstructure:"deploy"`
}

type LogConfig struct {
	Format string `mapstructure:"format"` // text, json
	Level  string `mapstructure:"level"`
}

type DatabaseConfig struct {
	MySQLDSN    string `mapstructure:"mysql_dsn"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type DeployConfig struct {
	Template string `mapstructure:"template"`
	Context  string `mapstructure:"context"`
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	return &Config{
		PrometheusURL:  "http://localhost:9090",
		QueryTimeout:   10 * time.Second,
		Lookback:       time.Hour,
		QueryTemplate:  DefaultQueryTemplate,
		EntityLabel:    "pod",
		WorkloadPrefix: "model-test",
		Namespace:      "default",
		StaleDays:      60,
		Driver:         DriverKubectl,
		Kubectl:        "kubectl",
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Deploy: DeployConfig{
			Template: "./config/deployment-test-template.yaml",
		},
	}
}

// Load reads defaults, then the optional config file, then the environment.
// An empty path reads no file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, NewConfig())

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database.postgres_dsn", "DATABASE_POSTGRES_DSN", "DATABASE_URL")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("prometheus_url", d.PrometheusURL)
	v.SetDefault("query_timeout", d.QueryTimeout)
	v.SetDefault("lookback", d.Lookback)
	v.SetDefault("query_template", d.QueryTemplate)
	v.SetDefault("entity_label", d.EntityLabel)
	v.SetDefault("workload_prefix", d.WorkloadPrefix)
	v.SetDefault("namespace", d.Namespace)
	v.SetDefault("clusters", []map[string]string{})
	v.SetDefault("exclude", []string{})
	v.SetDefault("stale_days", d.StaleDays)
	v.SetDefault("dry_run", d.DryRun)
	v.SetDefault("driver", d.Driver)
	v.SetDefault("kubectl", d.Kubectl)
	v.SetDefault("kubeconfig", d.Kubeconfig)
	v.SetDefault("pushgateway_url", d.PushgatewayURL)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("database.mysql_dsn", d.Database.MySQLDSN)
	v.SetDefault("database.postgres_dsn", d.Database.PostgresDSN)
	v.SetDefault("deploy.template", d.Deploy.Template)
	v.SetDefault("deploy.context", d.Deploy.Context)
}

// StaleAfter is the age past which an empty workload is deleted
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleDays) * 24 * time.Hour
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive")
	}
	if c.Driver != DriverKubectl && c.Driver != DriverClientset {
		return fmt.Errorf("driver must be %s or %s, got %q", DriverKubectl, DriverClientset, c.Driver)
	}
	if c.Driver == DriverKubectl && c.Kubectl == "" {
		return fmt.Errorf("kubectl path must be set for the kubectl driver")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ValidateReclaim checks the fields the reclaim job needs
func (c *Config) ValidateReclaim() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.PrometheusURL == "" {
		return fmt.Errorf("PROMETHEUS_URL must be set")
	}
	if len(c.Clusters) == 0 {
		return fmt.Errorf("at least one cluster must be configured")
	}
	for i, cl := range c.Clusters {
		if cl.Context == "" || cl.Vendor == "" {
			return fmt.Errorf("cluster %d: context and vendor are required", i)
		}
	}
	if c.StaleDays < 1 {
		return fmt.Errorf("stale days must be at least 1")
	}
	if c.Lookback < time.Minute {
		return fmt.Errorf("lookback must be at least 1 minute")
	}
	if c.WorkloadPrefix == "" {
		return fmt.Errorf("workload prefix must be set")
	}
	return nil
}

// ValidateCost checks the fields the cost reconciliation job needs
func (c *Config) ValidateCost() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Database.MySQLDSN == "" {
		return fmt.Errorf("DATABASE_MYSQL_DSN must be set")
	}
	if c.Database.PostgresDSN == "" {
		return fmt.Errorf("DATABASE_POSTGRES_DSN must be set")
	}
	return nil
}
