package cost

import (
	"context"
	"fmt"
	"time"

	"github.com/opscart/model-ops/pkg/datasource"
	"github.com/opscart/model-ops/pkg/models"
)

const (
	DefaultGPUJob      = "k8s/exabits-h100/dcgm-exporter"
	DefaultGPUPodRegex = "eris-violet-12b-ex-.*"
)

// CardHoursQuery counts the GPUs reporting DCGM metrics for matching pods
type CardHoursQuery struct {
	Job      string
	PodRegex string
	Start    time.Time
	End      time.Time
	Step     time.Duration
}

func (q CardHoursQuery) Expr() string {
	return fmt.Sprintf(`count(DCGM_FI_DEV_DEC_UTIL{job=%q,pod=~%q})`, q.Job, q.PodRegex)
}

// CardHours returns the per-step GPU counts over the window and their sum
// in card-hours
func CardHours(ctx context.Context, source datasource.DataSource, q CardHoursQuery) ([]models.TimeSample, float64, error) {
	if !q.End.After(q.Start) {
		return nil, 0, fmt.Errorf("end %s must be after start %s", q.End, q.Start)
	}
	if q.Step <= 0 {
		q.Step = time.Hour
	}

	samples, err := source.QueryRange(ctx, q.Expr(), q.Start, q.End, q.Step)
	if err != nil {
		return nil, 0, err
	}

	var total float64
	for _, s := range samples {
		total += s.Value
	}
	return samples, total * q.Step.Hours(), nil
}
