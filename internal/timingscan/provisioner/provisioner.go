package provisioner

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"k8s.io/client-go/kubernetes"

	"github.com/G-Research/timingscan/internal/common/scanerrors"
	"github.com/G-Research/timingscan/internal/timingscan/configuration"
	"github.com/G-Research/timingscan/internal/timingscan/domain"
)

// Provisioner manages the lifecycle of one system under test.
type Provisioner interface {
	// StartTarget makes the target available and returns the address it can be reached at.
	StartTarget(ctx context.Context) (string, error)
	StopTarget(ctx context.Context) error
	// RestartTarget replaces an unresponsive target. The returned address may differ from the previous one.
	RestartTarget(ctx context.Context) (string, error)
	RestartCapable() bool
}

const (
	defaultStartupTimeout = 30 * time.Second
	defaultPollInterval   = 200 * time.Millisecond
)

type Factory struct {
	config configuration.TargetManagementConfiguration
	// Only required by the kubernetes policy.
	client kubernetes.Interface
}

func NewFactory(config configuration.TargetManagementConfiguration, client kubernetes.Interface) *Factory {
	return &Factory{config: config, client: client}
}

func (f *Factory) Policy() domain.TargetPolicy {
	if f.config.Policy == "" {
		return domain.StaticPolicy
	}
	return f.config.Policy
}

// ForTarget creates the provisioner for a single target according to the configured policy.
func (f *Factory) ForTarget(target configuration.TargetSpec) (Provisioner, error) {
	switch f.Policy() {
	case domain.StaticPolicy:
		return NewStaticProvisioner(target.Address), nil
	case domain.ProcessPolicy:
		if target.Process == nil {
			return nil, provisioningError(target.Name, "create", errors.New("no process configured"))
		}
		return NewProcessProvisioner(target.Name, target.Address, *target.Process, f.startupTimeout(), f.pollInterval()), nil
	case domain.KubernetesPolicy:
		if target.Kubernetes == nil {
			return nil, provisioningError(target.Name, "create", errors.New("no kubernetes selector configured"))
		}
		if f.client == nil {
			return nil, provisioningError(target.Name, "create", errors.New("no kubernetes client available"))
		}
		return NewKubernetesProvisioner(f.client, target.Name, *target.Kubernetes, f.startupTimeout(), f.pollInterval()), nil
	}
	return nil, errors.WithStack(&scanerrors.ErrInvalidArgument{
		Name:    "targetManagement.policy",
		Value:   f.config.Policy,
		Message: "unknown policy",
	})
}

func (f *Factory) startupTimeout() time.Duration {
	if f.config.StartupTimeout <= 0 {
		return defaultStartupTimeout
	}
	return f.config.StartupTimeout
}

func (f *Factory) pollInterval() time.Duration {
	if f.config.PollInterval <= 0 {
		return defaultPollInterval
	}
	return f.config.PollInterval
}

// attempts returns how many polls fit into the startup timeout.
func attempts(timeout time.Duration, poll time.Duration) uint {
	if poll <= 0 {
		return 1
	}
	return uint(timeout/poll) + 1
}

func provisioningError(target string, action string, cause error) error {
	return errors.WithStack(&scanerrors.ErrProvisioning{Target: target, Action: action, Cause: cause})
}

// StaticProvisioner is used for targets that are managed outside this process.
type StaticProvisioner struct {
	address string
}

func NewStaticProvisioner(address string) *StaticProvisioner {
	return &StaticProvisioner{address: address}
}

func (p *StaticProvisioner) StartTarget(context.Context) (string, error) {
	return p.address, nil
}

func (p *StaticProvisioner) StopTarget(context.Context) error {
	return nil
}

func (p *StaticProvisioner) RestartTarget(context.Context) (string, error) {
	return "", provisioningError(p.address, "restart", errors.New("static targets cannot be restarted"))
}

func (p *StaticProvisioner) RestartCapable() bool {
	return false
}
