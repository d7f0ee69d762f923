package reclaim

import (
	"errors"
	"testing"
	"time"

	"github.com/opscart/model-ops/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseName(t *testing.T) {
	tests := []struct {
		label   string
		want    string
		wantErr bool
	}{
		{label: "svc-a-7f9-x1", want: "svc-a-7f9"},
		{label: "model-test-llama-5d8c7-abcde", want: "model-test-llama-5d8c7"},
		{label: "a-b-c", want: "a-b"},
		{label: "a--", want: "a-"},
		{label: "svc-x1", wantErr: true},
		{label: "plain", wantErr: true},
		{label: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := BaseName(tt.label)
			if tt.wantErr {
				var naming *models.NamingConventionError
				require.True(t, errors.As(err, &naming))
				assert.Equal(t, tt.label, naming.Label)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBaseNameRetruncation(t *testing.T) {
	once, err := BaseName("svc-a-7f9-x1")
	require.NoError(t, err)
	twice, err := BaseName(once)
	require.NoError(t, err)
	assert.Equal(t, "svc-a", twice)

	// "svc-a" has one hyphen left
	_, err = BaseName(twice)
	assert.Error(t, err)
}

func TestCorrelate(t *testing.T) {
	samples := []models.MetricSample{
		{EntityLabel: "svc-a-7f9-x1", Value: 1},
		{EntityLabel: "svc-a-7f9-x2", Value: 2.5},
		{EntityLabel: "svc-b-1-aa", Value: 0},
		{EntityLabel: "broken", Value: 9},
		{EntityLabel: "one-hyphen", Value: 9},
	}

	demand, errs := Correlate(samples, nil)

	assert.Equal(t, map[string]float64{"svc-a-7f9": 3.5, "svc-b-1": 0}, demand)
	require.Len(t, errs, 2)
	for _, err := range errs {
		var naming *models.NamingConventionError
		assert.True(t, errors.As(err, &naming))
	}
}

func TestCorrelateCustomNamer(t *testing.T) {
	namer := func(label string) (string, error) { return "fixed", nil }

	demand, errs := Correlate([]models.MetricSample{{EntityLabel: "x", Value: 1}, {EntityLabel: "y", Value: 2}}, namer)

	assert.Empty(t, errs)
	assert.Equal(t, map[string]float64{"fixed": 3}, demand)
}

func classifyOne(t *testing.T, samples []models.MetricSample, workload string) models.ReclaimDecision {
	t.Helper()
	demand, errs := Correlate(samples, BaseName)
	require.Empty(t, errs)
	decisions := Classify([]string{workload}, demand, nil, SubstringMatch)
	require.Len(t, decisions, 1)
	return decisions[0]
}

func TestClassifyAllZeroScalesToZero(t *testing.T) {
	d := classifyOne(t, []models.MetricSample{
		{EntityLabel: "svc-a-7f9-x1", Value: 0},
		{EntityLabel: "svc-a-7f9-x2", Value: 0},
	}, "svc-a")

	assert.Equal(t, "svc-a", d.WorkloadName)
	assert.Equal(t, models.ActionScaleToZero, d.Action)
}

func TestClassifyNonzeroProtects(t *testing.T) {
	d := classifyOne(t, []models.MetricSample{
		{EntityLabel: "svc-b-1-aa", Value: 3},
		{EntityLabel: "svc-b-2-bb", Value: 0},
	}, "svc-b")

	assert.Equal(t, models.ActionNone, d.Action)
	assert.Contains(t, d.Reason, "svc-b-1")
}

func TestClassifyNoDemandIsNotIdle(t *testing.T) {
	decisions := Classify([]string{"svc-z"}, map[string]float64{"svc-a-7f9": 0}, nil, nil)

	require.Len(t, decisions, 1)
	assert.Equal(t, models.ActionNone, decisions[0].Action)
	assert.Equal(t, "no demand data", decisions[0].Reason)
}

func TestClassifyNeverScalesWithNonzeroMatch(t *testing.T) {
	demand := map[string]float64{
		"svc-a-1": 0,
		"svc-a-2": 0,
		"svc-a-3": 0.001,
		"svc-b-1": 0,
	}
	for _, d := range Classify([]string{"svc-a", "svc-b", "svc"}, demand, nil, nil) {
		if d.WorkloadName == "svc-b" {
			assert.Equal(t, models.ActionScaleToZero, d.Action)
			continue
		}
		// "svc" matches svc-a-3 as a substring
		assert.Equal(t, models.ActionNone, d.Action, d.WorkloadName)
	}
}

func TestClassifyExclusion(t *testing.T) {
	demand := map[string]float64{"model-test-qwen3-embedding-6b": 0, "model-test-llama-7c": 0}

	decisions := Classify(
		[]string{"model-test-qwen3-embedding", "model-test-llama"},
		demand,
		[]string{"model-test-qwen3-embedding"},
		nil,
	)

	require.Len(t, decisions, 1)
	assert.Equal(t, "model-test-llama", decisions[0].WorkloadName)
	assert.Equal(t, models.ActionScaleToZero, decisions[0].Action)
}

func TestClassifyExactMatch(t *testing.T) {
	demand := map[string]float64{"svc-a": 0, "svc-ab": 4}

	substring := Classify([]string{"svc-a"}, demand, nil, SubstringMatch)
	exact := Classify([]string{"svc-a"}, demand, nil, ExactMatch)

	assert.Equal(t, models.ActionNone, substring[0].Action)
	assert.Equal(t, models.ActionScaleToZero, exact[0].Action)
}

func TestClassifyStale(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	threshold := 60 * 24 * time.Hour
	tor := time.FixedZone("EST", -5*60*60)

	workloads := []models.WorkloadDescriptor{
		{Name: "svc-c", CreationTime: now.AddDate(0, 0, -70), ReadyReplicas: 0},
		{Name: "svc-ready", CreationTime: now.AddDate(0, 0, -70), ReadyReplicas: 1},
		{Name: "svc-young", CreationTime: now.AddDate(0, 0, -10), ReadyReplicas: 0},
		{Name: "svc-boundary", CreationTime: now.Add(-threshold), ReadyReplicas: 0},
		{Name: "svc-just-over", CreationTime: now.Add(-threshold - time.Second), ReadyReplicas: 0},
		// same instant as the boundary, expressed in another zone
		{Name: "svc-zoned", CreationTime: now.Add(-threshold).In(tor), ReadyReplicas: 0},
	}

	assert.Equal(t, []string{"svc-c", "svc-just-over"}, ClassifyStale(workloads, threshold, now.In(tor)))
}

func TestExcluded(t *testing.T) {
	assert.True(t, Excluded("model-test-qwen3-embedding", []string{"qwen3"}))
	assert.False(t, Excluded("model-test-llama", []string{"qwen3", ""}))
	assert.False(t, Excluded("model-test-llama", nil))
}
