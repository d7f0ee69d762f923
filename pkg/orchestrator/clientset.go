package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/opscart/model-ops/pkg/models"
	log "github.com/sirupsen/logrus"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/yaml"
)

// ClientFactory builds a client for one kube context
type ClientFactory func(kubeContext string) (kubernetes.Interface, error)

// Clientset drives the cluster through the Kubernetes API
type Clientset struct {
	namespace string
	factory   ClientFactory
	clients   map[string]kubernetes.Interface
}

// NewClientset loads contexts from kubeconfig, or the default loading
// rules when kubeconfig is empty.
func NewClientset(kubeconfig, namespace string) *Clientset {
	return NewClientsetWithFactory(namespace, func(kubeContext string) (kubernetes.Interface, error) {
		rules := clientcmd.NewDefaultClientConfigLoadingRules()
		if kubeconfig != "" {
			rules.ExplicitPath = kubeconfig
		}
		overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}

		config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to build config for context %s: %w", kubeContext, err)
		}
		clientset, err := kubernetes.NewForConfig(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create clientset: %w", err)
		}
		return clientset, nil
	})
}

func NewClientsetWithFactory(namespace string, factory ClientFactory) *Clientset {
	if namespace == "" {
		namespace = metav1.NamespaceDefault
	}
	return &Clientset{
		namespace: namespace,
		factory:   factory,
		clients:   make(map[string]kubernetes.Interface),
	}
}

func (c *Clientset) Name() string {
	return "client-go"
}

func (c *Clientset) client(kubeContext string) (kubernetes.Interface, error) {
	if cs, ok := c.clients[kubeContext]; ok {
		return cs, nil
	}
	cs, err := c.factory(kubeContext)
	if err != nil {
		return nil, err
	}
	c.clients[kubeContext] = cs
	return cs, nil
}

func (c *Clientset) ListWorkloads(ctx context.Context, kubeContext, prefix string) ([]models.WorkloadDescriptor, error) {
	cs, err := c.client(kubeContext)
	if err != nil {
		return nil, &models.TransportError{Backend: "kubernetes", Kind: models.FailureConnection, Err: err}
	}

	deployments, err := cs.AppsV1().Deployments(c.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, &models.TransportError{Backend: "kubernetes", Kind: apiFailure(err), Err: err}
	}

	var workloads []models.WorkloadDescriptor
	for _, d := range deployments.Items {
		if !strings.HasPrefix(d.Name, prefix) {
			continue
		}
		workloads = append(workloads, models.WorkloadDescriptor{
			Name:          d.Name,
			CreationTime:  d.CreationTimestamp.Time.UTC(),
			ReadyReplicas: d.Status.ReadyReplicas,
		})
	}
	return workloads, nil
}

func (c *Clientset) Scale(ctx context.Context, kubeContext, name string, replicas int32) error {
	command := []string{"scale", "deployment", name, fmt.Sprintf("--replicas=%d", replicas), "--context", kubeContext}

	cs, err := c.client(kubeContext)
	if err != nil {
		return &models.CommandFailure{Command: command, ExitCode: -1, Err: err}
	}

	deployments := cs.AppsV1().Deployments(c.namespace)
	deploy, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return &models.CommandFailure{Command: command, ExitCode: -1, Err: err}
	}
	deploy.Spec.Replicas = &replicas
	if _, err := deployments.Update(ctx, deploy, metav1.UpdateOptions{}); err != nil {
		return &models.CommandFailure{Command: command, ExitCode: -1, Err: err}
	}
	return nil
}

func (c *Clientset) Delete(ctx context.Context, kubeContext string, kind models.ResourceKind, name string) error {
	command := []string{"delete", string(kind), name, "--context", kubeContext}

	cs, err := c.client(kubeContext)
	if err != nil {
		return &models.CommandFailure{Command: command, ExitCode: -1, Err: err}
	}

	opts := metav1.DeleteOptions{}
	switch kind {
	case models.KindDeployment:
		err = cs.AppsV1().Deployments(c.namespace).Delete(ctx, name, opts)
	case models.KindService:
		err = cs.CoreV1().Services(c.namespace).Delete(ctx, name, opts)
	case models.KindIngress:
		err = cs.NetworkingV1().Ingresses(c.namespace).Delete(ctx, name, opts)
	default:
		err = fmt.Errorf("unsupported kind %q", kind)
	}

	if apierrors.IsNotFound(err) {
		log.WithFields(log.Fields{"cluster": kubeContext, "kind": kind, "workload": name}).Debug("already absent")
		return nil
	}
	if err != nil {
		return &models.CommandFailure{Command: command, ExitCode: -1, Err: err}
	}
	return nil
}

// Apply creates each object of the manifest, updating it when it exists.
// Deployments, Services and Ingresses are supported.
func (c *Clientset) Apply(ctx context.Context, kubeContext string, manifest []byte) error {
	docs, err := SplitManifest(manifest)
	if err != nil {
		return err
	}
	cs, err := c.client(kubeContext)
	if err != nil {
		return &models.CommandFailure{Command: []string{"apply", "--context", kubeContext}, ExitCode: -1, Err: err}
	}

	for _, doc := range docs {
		command := []string{"apply", strings.ToLower(doc.Kind), doc.Name, "--context", kubeContext}
		var verb string
		switch doc.Kind {
		case "Deployment":
			verb, err = c.applyDeployment(ctx, cs, doc.Raw)
		case "Service":
			verb, err = c.applyService(ctx, cs, doc.Raw)
		case "Ingress":
			verb, err = c.applyIngress(ctx, cs, doc.Raw)
		default:
			err = fmt.Errorf("unsupported kind %q", doc.Kind)
		}
		if err != nil {
			return &models.CommandFailure{Command: command, ExitCode: -1, Err: err}
		}
		log.WithFields(log.Fields{"cluster": kubeContext, "kind": doc.Kind, "workload": doc.Name}).Info(verb)
	}
	return nil
}

func (c *Clientset) applyDeployment(ctx context.Context, cs kubernetes.Interface, raw []byte) (string, error) {
	var obj appsv1.Deployment
	if err := yaml.Unmarshal(raw, &obj); err != nil {
		return "", err
	}
	client := cs.AppsV1().Deployments(c.namespaceOr(obj.Namespace))
	if _, err := client.Create(ctx, &obj, metav1.CreateOptions{}); !apierrors.IsAlreadyExists(err) {
		return "created", err
	}
	existing, err := client.Get(ctx, obj.Name, metav1.GetOptions{})
	if err != nil {
		return "", err
	}
	obj.ResourceVersion = existing.ResourceVersion
	_, err = client.Update(ctx, &obj, metav1.UpdateOptions{})
	return "configured", err
}

func (c *Clientset) applyService(ctx context.Context, cs kubernetes.Interface, raw []byte) (string, error) {
	var obj corev1.Service
	if err := yaml.Unmarshal(raw, &obj); err != nil {
		return "", err
	}
	client := cs.CoreV1().Services(c.namespaceOr(obj.Namespace))
	if _, err := client.Create(ctx, &obj, metav1.CreateOptions{}); !apierrors.IsAlreadyExists(err) {
		return "created", err
	}
	existing, err := client.Get(ctx, obj.Name, metav1.GetOptions{})
	if err != nil {
		return "", err
	}
	obj.ResourceVersion = existing.ResourceVersion
	// cluster IPs are immutable
	obj.Spec.ClusterIP = existing.Spec.ClusterIP
	obj.Spec.ClusterIPs = existing.Spec.ClusterIPs
	_, err = client.Update(ctx, &obj, metav1.UpdateOptions{})
	return "configured", err
}

func (c *Clientset) applyIngress(ctx context.Context, cs kubernetes.Interface, raw []byte) (string, error) {
	var obj networkingv1.Ingress
	if err := yaml.Unmarshal(raw, &obj); err != nil {
		return "", err
	}
	client := cs.NetworkingV1().Ingresses(c.namespaceOr(obj.Namespace))
	if _, err := client.Create(ctx, &obj, metav1.CreateOptions{}); !apierrors.IsAlreadyExists(err) {
		return "created", err
	}
	existing, err := client.Get(ctx, obj.Name, metav1.GetOptions{})
	if err != nil {
		return "", err
	}
	obj.ResourceVersion = existing.ResourceVersion
	_, err = client.Update(ctx, &obj, metav1.UpdateOptions{})
	return "configured", err
}

func (c *Clientset) namespaceOr(ns string) string {
	if ns != "" {
		return ns
	}
	return c.namespace
}

func apiFailure(err error) models.TransportFailure {
	switch {
	case apierrors.IsTimeout(err), apierrors.IsServerTimeout(err):
		return models.FailureTimeout
	case apierrors.IsNotFound(err), apierrors.IsForbidden(err), apierrors.IsUnauthorized(err),
		apierrors.IsInternalError(err), apierrors.IsServiceUnavailable(err):
		return models.FailureStatus
	default:
		return models.FailureConnection
	}
}
