package orchestrator

import (
	"fmt"

	"github.com/opscart/model-ops/pkg/config"
)

// New builds the driver selected by cfg.Driver
func New(cfg *config.Config) (Orchestrator, error) {
	switch cfg.Driver {
	case config.DriverKubectl, "":
		return NewKubectl(cfg.Kubectl, cfg.Namespace), nil
	case config.DriverClientset:
		return NewClientset(cfg.Kubeconfig, cfg.Namespace), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}
