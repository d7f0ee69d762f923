package reclaim

import (
	"strings"

	"github.com/opscart/model-ops/pkg/models"
)

// BaseNamer maps an entity label to the name of the workload that owns it
type BaseNamer func(label string) (string, error)

// BaseName drops everything from the last hyphen of label onward.
// Labels are expected to look like <workload>-<replica-suffix>-<hash-suffix>,
// so a label with fewer than two hyphens is a NamingConventionError.
func BaseName(label string) (string, error) {
	if strings.Count(label, "-") < 2 {
		return "", &models.NamingConventionError{Label: label}
	}
	return label[:strings.LastIndex(label, "-")], nil
}

// Correlate sums sample values per base name. Samples whose label cannot be
// named are left out of the aggregate and returned as errors.
func Correlate(samples []models.MetricSample, namer BaseNamer) (map[string]float64, []error) {
	if namer == nil {
		namer = BaseName
	}

	demand := make(map[string]float64)
	var errs []error
	for _, s := range samples {
		base, err := namer(s.EntityLabel)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		demand[base] += s.Value
	}
	return demand, errs
}
