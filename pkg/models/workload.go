package models

import "time"

// ClusterTarget identifies one cluster to reclaim in
type ClusterTarget struct {
	Context string `mapstructure:"context" json:"context"`
	Vendor  string `mapstructure:"vendor" json:"vendor"`
}

// WorkloadDescriptor is a deployment as reported by the inventory
type WorkloadDescriptor struct {
	Name          string
	CreationTime  time.Time
	ReadyReplicas int32
}

// Age returns how long the workload has existed at now, computed in UTC
func (w WorkloadDescriptor) Age(now time.Time) time.Duration {
	return now.UTC().Sub(w.CreationTime.UTC())
}

// MetricSample is one series of an instant query
type MetricSample struct {
	EntityLabel string
	Value       float64
}

// TimeSample is one point of a range query
type TimeSample struct {
	Timestamp time.Time
	Value     float64
}
