package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/opscart/model-ops/pkg/models"
	log "github.com/sirupsen/logrus"
)

// Runner executes a command and returns its output streams
type Runner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Kubectl drives the cluster through the kubectl binary
type Kubectl struct {
	binary    string
	namespace string
	runner    Runner
}

func NewKubectl(binary, namespace string) *Kubectl {
	if binary == "" {
		binary = "kubectl"
	}
	return &Kubectl{
		binary:    binary,
		namespace: namespace,
		runner:    execRunner{},
	}
}

func (k *Kubectl) Name() string {
	return "kubectl"
}

type deploymentList struct {
	Items []struct {
		Metadata struct {
			Name              string `json:"name"`
			CreationTimestamp string `json:"creationTimestamp"`
		} `json:"metadata"`
		Status struct {
			ReadyReplicas int32 `json:"readyReplicas"`
		} `json:"status"`
	} `json:"items"`
}

func (k *Kubectl) ListWorkloads(ctx context.Context, kubeContext, prefix string) ([]models.WorkloadDescriptor, error) {
	stdout, err := k.run(ctx, nil, k.args(kubeContext, "get", "deployments", "-o", "json")...)
	if err != nil {
		return nil, &models.TransportError{Backend: "kubectl", Kind: models.FailureConnection, Err: err}
	}

	var list deploymentList
	if err := json.Unmarshal(stdout, &list); err != nil {
		return nil, &models.MalformedResponseError{Backend: "kubectl", Err: err}
	}

	var workloads []models.WorkloadDescriptor
	for _, item := range list.Items {
		if !strings.HasPrefix(item.Metadata.Name, prefix) {
			continue
		}
		created, err := ParseTimestamp(item.Metadata.CreationTimestamp)
		if err != nil {
			return nil, &models.MalformedResponseError{
				Backend: "kubectl",
				Err:     fmt.Errorf("deployment %s: %w", item.Metadata.Name, err),
			}
		}
		workloads = append(workloads, models.WorkloadDescriptor{
			Name:          item.Metadata.Name,
			CreationTime:  created,
			ReadyReplicas: item.Status.ReadyReplicas,
		})
	}
	return workloads, nil
}

func (k *Kubectl) Scale(ctx context.Context, kubeContext, name string, replicas int32) error {
	_, err := k.run(ctx, nil, k.args(kubeContext, "scale", "deployment", name, fmt.Sprintf("--replicas=%d", replicas))...)
	return err
}

func (k *Kubectl) Delete(ctx context.Context, kubeContext string, kind models.ResourceKind, name string) error {
	_, err := k.run(ctx, nil, k.args(kubeContext, "delete", string(kind), name, "--ignore-not-found")...)
	var failure *models.CommandFailure
	if errors.As(err, &failure) && strings.Contains(failure.Stderr, "NotFound") {
		log.WithFields(log.Fields{"cluster": kubeContext, "kind": kind, "workload": name}).Debug("already absent")
		return nil
	}
	return err
}

func (k *Kubectl) Apply(ctx context.Context, kubeContext string, manifest []byte) error {
	stdout, err := k.run(ctx, manifest, k.args(kubeContext, "apply", "-f", "-")...)
	if err != nil {
		return err
	}
	for _, line := range strings.Split(strings.TrimSpace(string(stdout)), "\n") {
		if line != "" {
			log.WithField("cluster", kubeContext).Info(line)
		}
	}
	return nil
}

func (k *Kubectl) args(kubeContext string, args ...string) []string {
	if kubeContext != "" {
		args = append(args, "--context", kubeContext)
	}
	if k.namespace != "" {
		args = append(args, "--namespace", k.namespace)
	}
	return args
}

func (k *Kubectl) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	stdout, stderr, err := k.runner.Run(ctx, stdin, k.binary, args...)
	if err != nil {
		return stdout, &models.CommandFailure{
			Command:  append([]string{k.binary}, args...),
			ExitCode: exitCode(err),
			Stderr:   strings.TrimSpace(string(stderr)),
			Err:      err,
		}
	}
	return stdout, nil
}

func exitCode(err error) int {
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp reads an inventory timestamp and returns it in UTC.
// Timestamps without a zone are taken to be UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
