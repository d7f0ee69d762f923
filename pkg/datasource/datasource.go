package datasource

import (
	"context"
	"time"

	"github.com/opscart/model-ops/pkg/models"
)

// DataSource defines the interface for querying the metrics backend
type DataSource interface {
	// QueryVector runs an instant query and returns one sample per series,
	// keyed by the value of entityLabel.
	QueryVector(ctx context.Context, expr, entityLabel string) ([]models.MetricSample, error)
	// QueryRange runs a range query and returns the points of the first series.
	QueryRange(ctx context.Context, expr string, start, end time.Time, step time.Duration) ([]models.TimeSample, error)
	IsAvailable(ctx context.Context) bool
	Name() string
}

type Config struct {
	PrometheusURL string
	Timeout       time.Duration
}
