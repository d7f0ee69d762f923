package datasource

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/opscart/model-ops/pkg/models"
	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	log "github.com/sirupsen/logrus"
)

const backendName = "prometheus"

type PrometheusSource struct {
	client  v1.API
	url     string
	timeout time.Duration
}

func NewPrometheusSource(cfg Config) (*PrometheusSource, error) {
	client, err := api.NewClient(api.Config{
		Address: cfg.PrometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &PrometheusSource{
		client:  v1.NewAPI(client),
		url:     cfg.PrometheusURL,
		timeout: timeout,
	}, nil
}

// QueryVector evaluates expr at the current time. Every failure is either a
// *models.TransportError or a *models.MalformedResponseError.
func (p *PrometheusSource) QueryVector(ctx context.Context, expr, entityLabel string) ([]models.MetricSample, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, warnings, err := p.client.Query(ctx, expr, time.Now())
	if err != nil {
		return nil, classifyError(err)
	}
	logWarnings(expr, warnings)
	if result == nil {
		return nil, &models.MalformedResponseError{Backend: backendName, Err: errors.New("empty result")}
	}

	vector, ok := result.(model.Vector)
	if !ok {
		return nil, &models.MalformedResponseError{
			Backend: backendName,
			Err:     fmt.Errorf("expected vector result, got %s", result.Type()),
		}
	}

	samples := make([]models.MetricSample, 0, len(vector))
	for _, s := range vector {
		samples = append(samples, models.MetricSample{
			EntityLabel: string(s.Metric[model.LabelName(entityLabel)]),
			Value:       float64(s.Value),
		})
	}
	return samples, nil
}

// QueryRange evaluates expr over [start, end]. The final point is dropped
// because it covers a partial step.
func (p *PrometheusSource) QueryRange(ctx context.Context, expr string, start, end time.Time, step time.Duration) ([]models.TimeSample, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, warnings, err := p.client.QueryRange(ctx, expr, v1.Range{Start: start, End: end, Step: step})
	if err != nil {
		return nil, classifyError(err)
	}
	logWarnings(expr, warnings)
	if result == nil {
		return nil, &models.MalformedResponseError{Backend: backendName, Err: errors.New("empty result")}
	}

	matrix, ok := result.(model.Matrix)
	if !ok {
		return nil, &models.MalformedResponseError{
			Backend: backendName,
			Err:     fmt.Errorf("expected matrix result, got %s", result.Type()),
		}
	}
	if len(matrix) == 0 || len(matrix[0].Values) == 0 {
		return nil, nil
	}

	values := matrix[0].Values[:len(matrix[0].Values)-1]
	samples := make([]models.TimeSample, 0, len(values))
	for _, v := range values {
		samples = append(samples, models.TimeSample{
			Timestamp: v.Timestamp.Time(),
			Value:     float64(v.Value),
		})
	}
	return samples, nil
}

func (p *PrometheusSource) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	_, _, err := p.client.Query(ctx, "up", time.Now())
	return err == nil
}

func (p *PrometheusSource) Name() string {
	return "Prometheus"
}

func logWarnings(expr string, warnings v1.Warnings) {
	if len(warnings) > 0 {
		log.WithField("query", expr).Warnf("prometheus warnings: %v", warnings)
	}
}

// classifyError maps client errors onto the transport/malformed taxonomy
func classifyError(err error) error {
	var apiErr *v1.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Type {
		case v1.ErrBadData, v1.ErrBadResponse:
			return &models.MalformedResponseError{Backend: backendName, Err: err}
		case v1.ErrTimeout, v1.ErrCanceled:
			return &models.TransportError{Backend: backendName, Kind: models.FailureTimeout, Err: err}
		default:
			return &models.TransportError{Backend: backendName, Kind: models.FailureStatus, Err: err}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &models.TransportError{Backend: backendName, Kind: models.FailureTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &models.TransportError{Backend: backendName, Kind: models.FailureTimeout, Err: err}
	}
	return &models.TransportError{Backend: backendName, Kind: models.FailureConnection, Err: err}
}
