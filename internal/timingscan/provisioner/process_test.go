package provisioner

import (
	"context"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/timingscan/internal/common/scanerrors"
	"github.com/G-Research/timingscan/internal/timingscan/configuration"
)

// TestHelperProcess is not a real test. It is started as a child process by the tests below and
// behaves like a target server.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("TIMINGSCAN_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("TIMINGSCAN_HELPER_MODE") {
	case "exit":
		os.Exit(3)
	default:
		listener, err := net.Listen("tcp", os.Getenv("TIMINGSCAN_HELPER_ADDRESS"))
		if err != nil {
			os.Exit(2)
		}
		for {
			conn, err := listener.Accept()
			if err != nil {
				os.Exit(0)
			}
			conn.Close()
		}
	}
}

func helperSpec(address string, mode string) configuration.ProcessSpec {
	return configuration.ProcessSpec{
		Command: os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess"},
		Env: []string{
			"TIMINGSCAN_HELPER_PROCESS=1",
			"TIMINGSCAN_HELPER_MODE=" + mode,
			"TIMINGSCAN_HELPER_ADDRESS=" + address,
		},
	}
}

func freeAddress(t *testing.T) string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	return listener.Addr().String()
}

func TestProcessProvisioner_StartRestartStop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	address := freeAddress(t)
	p := NewProcessProvisioner("helper", address, helperSpec(address, "serve"), 20*time.Second, 50*time.Millisecond)
	defer p.StopTarget(ctx)

	started, err := p.StartTarget(ctx)
	require.NoError(t, err)
	assert.Equal(t, address, started)
	assert.True(t, p.Running())
	firstPid := p.cmd.Process.Pid

	restarted, err := p.RestartTarget(ctx)
	require.NoError(t, err)
	assert.Equal(t, address, restarted)
	assert.True(t, p.Running())
	assert.NotEqual(t, firstPid, p.cmd.Process.Pid)

	require.NoError(t, p.StopTarget(ctx))
	assert.False(t, p.Running())
	assert.NoError(t, p.StopTarget(ctx))
}

func TestProcessProvisioner_ProcessExitsBeforeReady(t *testing.T) {
	address := freeAddress(t)
	p := NewProcessProvisioner("helper", address, helperSpec(address, "exit"), 20*time.Second, 50*time.Millisecond)

	start := time.Now()
	_, err := p.StartTarget(context.Background())

	var provisioningErr *scanerrors.ErrProvisioning
	require.True(t, errors.As(err, &provisioningErr))
	assert.Equal(t, "start", provisioningErr.Action)
	assert.True(t, time.Since(start) < 10*time.Second)
	assert.False(t, p.Running())
}

func TestProcessProvisioner_MissingCommand(t *testing.T) {
	p := NewProcessProvisioner("helper", "127.0.0.1:1", configuration.ProcessSpec{Command: "/does/not/exist"}, time.Second, 10*time.Millisecond)

	_, err := p.StartTarget(context.Background())

	var provisioningErr *scanerrors.ErrProvisioning
	assert.True(t, errors.As(err, &provisioningErr))
}

func TestProcessProvisioner_NeverReachable(t *testing.T) {
	address := freeAddress(t)
	// The helper listens somewhere else, so the configured address never accepts connections.
	p := NewProcessProvisioner("helper", address, helperSpec(freeAddress(t), "serve"), 300*time.Millisecond, 50*time.Millisecond)

	_, err := p.StartTarget(context.Background())

	assert.Error(t, err)
	assert.False(t, p.Running())
	assert.Contains(t, err.Error(), fmt.Sprintf("target %q", "helper"))
}
