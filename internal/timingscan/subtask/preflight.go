package subtask

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/G-Research/timingscan/internal/timingscan/configuration"
	"github.com/G-Research/timingscan/internal/timingscan/domain"
)

// Preflight opens one connection to the endpoint and, for TLS targets, completes a handshake.
// It is run once per target before any subtask.
func Preflight(ctx context.Context, endpoint domain.Endpoint, network configuration.NetworkConfiguration) error {
	dialer := &net.Dialer{Timeout: network.ConnectTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", endpoint.Address)
	if err != nil {
		return errors.WithStack(err)
	}
	defer raw.Close()
	if endpoint.Capabilities.Protocol() != domain.ProtocolTLS {
		return nil
	}
	if network.ReadTimeout > 0 {
		if err := raw.SetDeadline(time.Now().Add(network.ReadTimeout)); err != nil {
			return errors.WithStack(err)
		}
	}
	conn := tls.Client(raw, &tls.Config{InsecureSkipVerify: true, ServerName: serverName(endpoint.Address)})
	return errors.WithStack(conn.HandshakeContext(ctx))
}
