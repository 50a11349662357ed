package provisioner

import (
	"context"
	"io"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/timingscan/internal/timingscan/configuration"
)

var errExited = errors.New("process exited")

// ProcessProvisioner runs the target as a local child process and considers it started once its
// address accepts connections.
type ProcessProvisioner struct {
	name           string
	address        string
	spec           configuration.ProcessSpec
	startupTimeout time.Duration
	pollInterval   time.Duration

	cmd    *exec.Cmd
	exited chan struct{}
	output io.WriteCloser
}

func NewProcessProvisioner(name string, address string, spec configuration.ProcessSpec, startupTimeout time.Duration, pollInterval time.Duration) *ProcessProvisioner {
	return &ProcessProvisioner{
		name:           name,
		address:        address,
		spec:           spec,
		startupTimeout: startupTimeout,
		pollInterval:   pollInterval,
	}
}

func (p *ProcessProvisioner) StartTarget(ctx context.Context) (string, error) {
	if p.cmd != nil {
		return p.address, nil
	}
	logger := log.WithField("target", p.name)
	cmd := exec.Command(p.spec.Command, p.spec.Args...)
	cmd.Dir = p.spec.Dir
	cmd.Env = append(os.Environ(), p.spec.Env...)
	output := logger.WriterLevel(log.DebugLevel)
	cmd.Stdout = output
	cmd.Stderr = output
	if err := cmd.Start(); err != nil {
		output.Close()
		return "", provisioningError(p.name, "start", err)
	}
	logger.Infof("started %s with pid %d", p.spec.Command, cmd.Process.Pid)

	exited := make(chan struct{})
	go func() {
		if err := cmd.Wait(); err != nil {
			logger.WithError(err).Debug("target process exited")
		}
		close(exited)
	}()
	p.cmd = cmd
	p.exited = exited
	p.output = output

	if err := p.waitUntilReachable(ctx); err != nil {
		p.kill(ctx)
		return "", provisioningError(p.name, "start", err)
	}
	return p.address, nil
}

func (p *ProcessProvisioner) waitUntilReachable(ctx context.Context) error {
	return retry.Do(
		func() error {
			select {
			case <-p.exited:
				return errExited
			default:
			}
			conn, err := net.DialTimeout("tcp", p.address, p.pollInterval)
			if err != nil {
				return err
			}
			return conn.Close()
		},
		retry.Context(ctx),
		retry.Attempts(attempts(p.startupTimeout, p.pollInterval)),
		retry.Delay(p.pollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(func(err error) bool { return !errors.Is(err, errExited) }),
		retry.LastErrorOnly(true),
	)
}

func (p *ProcessProvisioner) StopTarget(ctx context.Context) error {
	return p.kill(ctx)
}

func (p *ProcessProvisioner) RestartTarget(ctx context.Context) (string, error) {
	if err := p.kill(ctx); err != nil {
		return "", provisioningError(p.name, "restart", err)
	}
	return p.StartTarget(ctx)
}

func (p *ProcessProvisioner) RestartCapable() bool {
	return true
}

// Running reports whether the child process has been started and has not exited yet.
func (p *ProcessProvisioner) Running() bool {
	if p.cmd == nil {
		return false
	}
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

func (p *ProcessProvisioner) kill(ctx context.Context) error {
	if p.cmd == nil {
		return nil
	}
	defer func() {
		p.output.Close()
		p.cmd = nil
	}()
	select {
	case <-p.exited:
		return nil
	default:
	}
	if err := p.cmd.Process.Kill(); err != nil {
		return errors.WithStack(err)
	}
	select {
	case <-p.exited:
		return nil
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}
