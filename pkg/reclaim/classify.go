package reclaim

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/opscart/model-ops/pkg/models"
)

// Matcher reports whether a demand key belongs to a workload
type Matcher func(demandKey, workload string) bool

// SubstringMatch claims every demand key that contains the workload name.
// Overlapping names such as "model-test-a" and "model-test-ab" both claim
// the key "model-test-ab-5d4", so a live pod of one can protect the other.
func SubstringMatch(demandKey, workload string) bool {
	return strings.Contains(demandKey, workload)
}

// ExactMatch claims only the demand key equal to the workload name
func ExactMatch(demandKey, workload string) bool {
	return demandKey == workload
}

// Excluded reports whether any exclusion substring occurs in name
func Excluded(name string, excludes []string) bool {
	for _, e := range excludes {
		if e != "" && strings.Contains(name, e) {
			return true
		}
	}
	return false
}

// Classify decides, for every workload not excluded, whether it is idle.
// A workload with no matching demand entry is left alone. One with matching
// entries that are all zero is scaled to zero. Any nonzero entry keeps it.
func Classify(workloads []string, demand map[string]float64, excludes []string, match Matcher) []models.ReclaimDecision {
	if match == nil {
		match = SubstringMatch
	}

	keys := make([]string, 0, len(demand))
	for k := range demand {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	decisions := make([]models.ReclaimDecision, 0, len(workloads))
	for _, w := range workloads {
		if Excluded(w, excludes) {
			continue
		}

		matched := 0
		var active []string
		for _, k := range keys {
			if !match(k, w) {
				continue
			}
			matched++
			if demand[k] != 0 {
				active = append(active, k)
			}
		}

		switch {
		case matched == 0:
			decisions = append(decisions, models.ReclaimDecision{
				WorkloadName: w,
				Action:       models.ActionNone,
				Reason:       "no demand data",
			})
		case len(active) > 0:
			decisions = append(decisions, models.ReclaimDecision{
				WorkloadName: w,
				Action:       models.ActionNone,
				Reason:       fmt.Sprintf("active: %s", strings.Join(active, ", ")),
			})
		default:
			decisions = append(decisions, models.ReclaimDecision{
				WorkloadName: w,
				Action:       models.ActionScaleToZero,
				Reason:       fmt.Sprintf("no requests across %d instance group(s)", matched),
			})
		}
	}
	return decisions
}

// ClassifyStale returns the workloads older than threshold with no ready
// replicas. An age equal to the threshold is not stale.
func ClassifyStale(workloads []models.WorkloadDescriptor, threshold time.Duration, now time.Time) []string {
	var stale []string
	for _, w := range workloads {
		if w.ReadyReplicas == 0 && w.Age(now) > threshold {
			stale = append(stale, w.Name)
		}
	}
	return stale
}
