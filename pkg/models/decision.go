package models

// Action is what the reclaim engine does to a workload
type Action string

const (
	ActionNone        Action = "none"
	ActionScaleToZero Action = "scale_to_zero"
	ActionDelete      Action = "delete"
)

// ReclaimDecision is derived per run and never persisted
type ReclaimDecision struct {
	WorkloadName string
	Action       Action
	Reason       string
}

// ResourceKind is a resource deleted alongside a stale workload
type ResourceKind string

const (
	KindDeployment ResourceKind = "deployment"
	KindService    ResourceKind = "service"
	KindIngress    ResourceKind = "ingress"
)

// StaleResourceKinds are deleted, in order, for every stale workload
var StaleResourceKinds = []ResourceKind{KindDeployment, KindService, KindIngress}

// DeleteOutcome records the result of deleting one kind for one workload
type DeleteOutcome struct {
	WorkloadName string
	Kind         ResourceKind
	Err          error
}

// Succeeded reports whether the delete went through (absent counts)
func (o DeleteOutcome) Succeeded() bool {
	return o.Err == nil
}
