package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opscart/model-ops/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"
)

func deployment(name string, created time.Time, ready int32) *appsv1.Deployment {
	replicas := int32(1)
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:              name,
			Namespace:         "default",
			CreationTimestamp: metav1.NewTime(created),
		},
		Spec:   appsv1.DeploymentSpec{Replicas: &replicas},
		Status: appsv1.DeploymentStatus{ReadyReplicas: ready},
	}
}

func newFakeClientset(objs ...runtime.Object) (*Clientset, *fake.Clientset) {
	cs := fake.NewSimpleClientset(objs...)
	return NewClientsetWithFactory("default", func(string) (kubernetes.Interface, error) {
		return cs, nil
	}), cs
}

func TestClientsetListWorkloads(t *testing.T) {
	created := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	c, _ := newFakeClientset(
		deployment("model-test-a", created, 0),
		deployment("gateway", created, 3),
	)

	workloads, err := c.ListWorkloads(context.Background(), "do-tor1", "model-test")
	require.NoError(t, err)

	require.Len(t, workloads, 1)
	assert.Equal(t, "model-test-a", workloads[0].Name)
	assert.True(t, workloads[0].CreationTime.Equal(created))
	assert.Equal(t, int32(0), workloads[0].ReadyReplicas)
}

func TestClientsetFactoryError(t *testing.T) {
	c := NewClientsetWithFactory("", func(string) (kubernetes.Interface, error) {
		return nil, errors.New("context \"missing\" does not exist")
	})

	_, err := c.ListWorkloads(context.Background(), "missing", "model-test")
	var transport *models.TransportError
	assert.True(t, errors.As(err, &transport))

	err = c.Scale(context.Background(), "missing", "model-test-a", 0)
	var failure *models.CommandFailure
	assert.True(t, errors.As(err, &failure))
}

func TestClientsetScale(t *testing.T) {
	c, cs := newFakeClientset(deployment("model-test-a", time.Now(), 1))

	require.NoError(t, c.Scale(context.Background(), "do-tor1", "model-test-a", 0))

	got, err := cs.AppsV1().Deployments("default").Get(context.Background(), "model-test-a", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(0), *got.Spec.Replicas)

	err = c.Scale(context.Background(), "do-tor1", "model-test-missing", 0)
	var failure *models.CommandFailure
	assert.True(t, errors.As(err, &failure))
}

func TestClientsetDeleteIgnoresAbsent(t *testing.T) {
	c, cs := newFakeClientset(
		deployment("model-test-c", time.Now(), 0),
		&corev1.Service{ObjectMeta: metav1.ObjectMeta{Name: "model-test-c", Namespace: "default"}},
	)

	for _, kind := range models.StaleResourceKinds {
		assert.NoError(t, c.Delete(context.Background(), "do-tor1", kind, "model-test-c"), kind)
	}

	_, err := cs.AppsV1().Deployments("default").Get(context.Background(), "model-test-c", metav1.GetOptions{})
	assert.Error(t, err)
	_, err = cs.CoreV1().Services("default").Get(context.Background(), "model-test-c", metav1.GetOptions{})
	assert.Error(t, err)
}

const deployManifest = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: model-test-9
spec:
  replicas: 1
  template:
    spec:
      containers:
      - name: vllm
        image: vllm/vllm-openai:latest
---
apiVersion: networking.k8s.io/v1
kind: Ingress
metadata:
  name: model-test-9
`

func TestClientsetApply(t *testing.T) {
	c, cs := newFakeClientset()
	ctx := context.Background()

	require.NoError(t, c.Apply(ctx, "do-tor1", []byte(deployManifest)))

	got, err := cs.AppsV1().Deployments("default").Get(ctx, "model-test-9", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "vllm/vllm-openai:latest", got.Spec.Template.Spec.Containers[0].Image)

	_, err = cs.NetworkingV1().Ingresses("default").Get(ctx, "model-test-9", metav1.GetOptions{})
	require.NoError(t, err)

	// applying again updates in place
	require.NoError(t, c.Apply(ctx, "do-tor1", []byte(deployManifest)))
	list, err := cs.NetworkingV1().Ingresses("default").List(ctx, metav1.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
	assert.IsType(t, networkingv1.Ingress{}, list.Items[0])
}

func TestClientsetApplyUnsupportedKind(t *testing.T) {
	c, _ := newFakeClientset()

	err := c.Apply(context.Background(), "do-tor1", []byte("apiVersion: v1\nkind: Secret\nmetadata:\n  name: token\n"))
	var failure *models.CommandFailure
	require.True(t, errors.As(err, &failure))
	assert.Contains(t, failure.Error(), "unsupported kind")
}
