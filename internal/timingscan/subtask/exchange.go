package subtask

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/hex"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/G-Research/timingscan/internal/timingscan/configuration"
	"github.com/G-Research/timingscan/internal/timingscan/domain"
)

type exchangeVariant struct {
	payload []byte
	marker  []byte
}

// exchangeSubtask sends a fixed payload per variant and times the gap between the last byte written
// and the first byte of the response.
type exchangeSubtask struct {
	common
	transport string
	variants  map[string]exchangeVariant
}

func newExchange(spec configuration.SubtaskSpec, network configuration.NetworkConfiguration) (*exchangeSubtask, error) {
	c, err := newCommon(spec, network)
	if err != nil {
		return nil, err
	}
	variants := make(map[string]exchangeVariant, len(spec.Variants))
	for _, v := range spec.Variants {
		payload, err := hex.DecodeString(v.Payload)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding payload of variant %s", v.Id)
		}
		marker, err := hex.DecodeString(v.Marker)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding marker of variant %s", v.Id)
		}
		variants[v.Id] = exchangeVariant{payload: payload, marker: marker}
	}
	return &exchangeSubtask{
		common:    c,
		transport: spec.Transport,
		variants:  variants,
	}, nil
}

func (s *exchangeSubtask) IsApplicable(capabilities domain.Capabilities) bool {
	if s.transport == domain.ProtocolTLS && capabilities.Protocol() != domain.ProtocolTLS {
		return false
	}
	return s.common.IsApplicable(capabilities)
}

func (s *exchangeSubtask) Measure(ctx context.Context, endpoint domain.Endpoint, identifier string) domain.MeasurementResult {
	variant, ok := s.variants[identifier]
	if !ok {
		return domain.Failure(domain.Unexpected)
	}

	conn, failure := s.connect(ctx, endpoint)
	if conn == nil {
		return domain.Failure(failure)
	}
	defer conn.Close()

	if s.network.ReadTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.network.ReadTimeout)); err != nil {
			return domain.Failure(domain.Unexpected)
		}
	}

	readLen := len(variant.marker)
	if readLen == 0 {
		readLen = 1
	}
	response := make([]byte, readLen)

	start := time.Now()
	if _, err := conn.Write(variant.payload); err != nil {
		return domain.Failure(classifyExchangeError(err))
	}
	n, err := conn.Read(response)
	elapsed := time.Since(start)
	if n == 0 {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return domain.Failure(classifyExchangeError(err))
	}

	if len(variant.marker) > 0 {
		if n < readLen {
			if _, err := io.ReadFull(conn, response[n:]); err != nil {
				return domain.Failure(domain.Undetectable)
			}
		}
		if !bytes.Equal(response, variant.marker) {
			return domain.Failure(domain.Undetectable)
		}
	}
	return domain.Sample(elapsed.Nanoseconds())
}

// connect returns a ready connection, or nil and the failure category.
func (s *exchangeSubtask) connect(ctx context.Context, endpoint domain.Endpoint) (net.Conn, domain.FailureCategory) {
	raw, err := s.dialer().DialContext(ctx, "tcp", endpoint.Address)
	if err != nil {
		return nil, domain.Unreachable
	}
	if s.useTLS(endpoint.Capabilities) {
		tlsConn := tls.Client(raw, &tls.Config{InsecureSkipVerify: true, ServerName: serverName(endpoint.Address)})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = raw.Close()
			if isEarlyTermination(err) {
				return nil, domain.EarlyTermination
			}
			return nil, domain.Unexpected
		}
		return tlsConn, 0
	}
	return raw, 0
}

func (s *exchangeSubtask) useTLS(capabilities domain.Capabilities) bool {
	if s.transport != "" {
		return s.transport == domain.ProtocolTLS
	}
	return capabilities.Protocol() == domain.ProtocolTLS
}

func serverName(address string) string {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return address
	}
	return host
}
