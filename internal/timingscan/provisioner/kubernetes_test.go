package provisioner

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/G-Research/timingscan/internal/common/scanerrors"
	"github.com/G-Research/timingscan/internal/timingscan/configuration"
)

var defaultSpec = configuration.KubernetesSpec{Namespace: "targets", LabelSelector: "app=openssl", Port: 4433}

func TestKubernetesProvisioner_StartPicksReadyPod(t *testing.T) {
	client := fake.NewSimpleClientset(
		makePod("pending", "10.0.0.1", map[string]string{"app": "openssl"}, false),
		makePod("other-app", "10.0.0.2", map[string]string{"app": "nginx"}, true),
		makePod("ready", "10.0.0.3", map[string]string{"app": "openssl"}, true),
	)
	p := NewKubernetesProvisioner(client, "openssl", defaultSpec, time.Second, 10*time.Millisecond)

	address, err := p.StartTarget(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "10.0.0.3:4433", address)
	assert.Equal(t, "ready", p.currentPod)
	assert.True(t, p.RestartCapable())
}

func TestKubernetesProvisioner_StartFailsWithoutReadyPod(t *testing.T) {
	client := fake.NewSimpleClientset(makePod("pending", "10.0.0.1", map[string]string{"app": "openssl"}, false))
	p := NewKubernetesProvisioner(client, "openssl", defaultSpec, 50*time.Millisecond, 10*time.Millisecond)

	_, err := p.StartTarget(context.Background())

	var provisioningErr *scanerrors.ErrProvisioning
	require.True(t, errors.As(err, &provisioningErr))
	assert.Equal(t, "start", provisioningErr.Action)
}

func TestKubernetesProvisioner_RestartReplacesPod(t *testing.T) {
	client := fake.NewSimpleClientset(makePod("first", "10.0.0.1", map[string]string{"app": "openssl"}, true))
	// Simulate the controller creating a replacement when the pod is deleted.
	client.PrependReactor("delete", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		replacement := makePod("second", "10.0.0.2", map[string]string{"app": "openssl"}, true)
		return false, nil, client.Tracker().Add(replacement)
	})
	p := NewKubernetesProvisioner(client, "openssl", defaultSpec, time.Second, 10*time.Millisecond)

	_, err := p.StartTarget(context.Background())
	require.NoError(t, err)
	address, err := p.RestartTarget(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2:4433", address)
	assert.Equal(t, "second", p.currentPod)
	_, err = client.CoreV1().Pods("targets").Get(context.Background(), "first", metav1.GetOptions{})
	assert.Error(t, err)
}

func TestKubernetesProvisioner_RestartTimesOutWithoutReplacement(t *testing.T) {
	client := fake.NewSimpleClientset(makePod("first", "10.0.0.1", map[string]string{"app": "openssl"}, true))
	p := NewKubernetesProvisioner(client, "openssl", defaultSpec, 50*time.Millisecond, 10*time.Millisecond)

	_, err := p.StartTarget(context.Background())
	require.NoError(t, err)
	_, err = p.RestartTarget(context.Background())

	var provisioningErr *scanerrors.ErrProvisioning
	require.True(t, errors.As(err, &provisioningErr))
	assert.Equal(t, "restart", provisioningErr.Action)
}

func TestKubernetesProvisioner_DefaultNamespace(t *testing.T) {
	p := NewKubernetesProvisioner(fake.NewSimpleClientset(), "openssl", configuration.KubernetesSpec{}, time.Second, time.Millisecond)
	assert.Equal(t, metav1.NamespaceDefault, p.spec.Namespace)
}

func TestIsPodReady(t *testing.T) {
	assert.True(t, isPodReady(makePod("a", "10.0.0.1", nil, true)))
	assert.False(t, isPodReady(makePod("a", "10.0.0.1", nil, false)))

	succeeded := makePod("a", "10.0.0.1", nil, true)
	succeeded.Status.Phase = v1.PodSucceeded
	assert.False(t, isPodReady(succeeded))
}

func makePod(name string, ip string, labels map[string]string, ready bool) *v1.Pod {
	status := v1.ConditionFalse
	if ready {
		status = v1.ConditionTrue
	}
	return &v1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "targets",
			Labels:    labels,
		},
		Status: v1.PodStatus{
			Phase: v1.PodRunning,
			PodIP: ip,
			Conditions: []v1.PodCondition{
				{Type: v1.PodReady, Status: status},
			},
		},
	}
}
