package provisioner

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	v1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/G-Research/timingscan/internal/timingscan/configuration"
)

// KubernetesProvisioner targets a pod selected by label. The pod is expected to be owned by a
// controller, so a restart deletes it and waits for its replacement to become ready.
type KubernetesProvisioner struct {
	client         kubernetes.Interface
	name           string
	spec           configuration.KubernetesSpec
	startupTimeout time.Duration
	pollInterval   time.Duration

	currentPod string
}

func NewKubernetesProvisioner(
	client kubernetes.Interface,
	name string,
	spec configuration.KubernetesSpec,
	startupTimeout time.Duration,
	pollInterval time.Duration,
) *KubernetesProvisioner {
	if spec.Namespace == "" {
		spec.Namespace = metav1.NamespaceDefault
	}
	return &KubernetesProvisioner{
		client:         client,
		name:           name,
		spec:           spec,
		startupTimeout: startupTimeout,
		pollInterval:   pollInterval,
	}
}

func (p *KubernetesProvisioner) StartTarget(ctx context.Context) (string, error) {
	address, err := p.waitForReadyPod(ctx, "")
	if err != nil {
		return "", provisioningError(p.name, "start", err)
	}
	return address, nil
}

// StopTarget leaves the pod running; its lifecycle belongs to its controller.
func (p *KubernetesProvisioner) StopTarget(context.Context) error {
	p.currentPod = ""
	return nil
}

func (p *KubernetesProvisioner) RestartTarget(ctx context.Context) (string, error) {
	previous := p.currentPod
	if previous != "" {
		err := p.client.CoreV1().Pods(p.spec.Namespace).Delete(ctx, previous, metav1.DeleteOptions{})
		if err != nil && !k8serrors.IsNotFound(err) {
			return "", provisioningError(p.name, "restart", errors.WithStack(err))
		}
		log.WithField("target", p.name).Infof("deleted pod %s/%s", p.spec.Namespace, previous)
	}
	address, err := p.waitForReadyPod(ctx, previous)
	if err != nil {
		return "", provisioningError(p.name, "restart", err)
	}
	return address, nil
}

func (p *KubernetesProvisioner) RestartCapable() bool {
	return true
}

func (p *KubernetesProvisioner) waitForReadyPod(ctx context.Context, exclude string) (string, error) {
	var address string
	err := retry.Do(
		func() error {
			pods, err := p.client.CoreV1().Pods(p.spec.Namespace).List(ctx, metav1.ListOptions{LabelSelector: p.spec.LabelSelector})
			if err != nil {
				return errors.WithStack(err)
			}
			for _, pod := range pods.Items {
				if pod.Name == exclude || pod.DeletionTimestamp != nil || !isPodReady(&pod) || pod.Status.PodIP == "" {
					continue
				}
				p.currentPod = pod.Name
				address = net.JoinHostPort(pod.Status.PodIP, strconv.Itoa(p.spec.Port))
				return nil
			}
			return fmt.Errorf("no ready pod matches %q in namespace %s", p.spec.LabelSelector, p.spec.Namespace)
		},
		retry.Context(ctx),
		retry.Attempts(attempts(p.startupTimeout, p.pollInterval)),
		retry.Delay(p.pollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	return address, err
}

func isPodReady(pod *v1.Pod) bool {
	if pod.Status.Phase != v1.PodRunning {
		return false
	}
	for _, condition := range pod.Status.Conditions {
		if condition.Type == v1.PodReady {
			return condition.Status == v1.ConditionTrue
		}
	}
	return false
}

// NewKubernetesClient uses the given kubeconfig, or the in-cluster configuration when it is empty.
func NewKubernetesClient(config configuration.KubernetesConfiguration) (kubernetes.Interface, error) {
	restConfig, err := loadConfig(config.Kubeconfig)
	if err != nil {
		return nil, errors.WithMessage(err, "error creating kubernetes config")
	}
	return kubernetes.NewForConfig(restConfig)
}

func loadConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig == "" {
		return rest.InClusterConfig()
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfig},
		&clientcmd.ConfigOverrides{},
	).ClientConfig()
}
