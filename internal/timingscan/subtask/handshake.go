package subtask

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/pkg/errors"

	"github.com/G-Research/timingscan/internal/common/scanerrors"
	"github.com/G-Research/timingscan/internal/timingscan/configuration"
	"github.com/G-Research/timingscan/internal/timingscan/domain"
)

const (
	expectComplete = "complete"
	expectAlert    = "alert"
)

var tlsVersions = map[string]uint16{
	"1.0": tls.VersionTLS10,
	"1.1": tls.VersionTLS11,
	"1.2": tls.VersionTLS12,
	"1.3": tls.VersionTLS13,
}

type handshakeVariant struct {
	config *tls.Config
	// Whether a sample is taken on a completed handshake (true) or on a handshake alert (false).
	expectComplete bool
}

// handshakeSubtask times complete TLS handshakes under different client parameters.
type handshakeSubtask struct {
	common
	variants map[string]handshakeVariant
}

func newHandshake(spec configuration.SubtaskSpec, network configuration.NetworkConfiguration) (*handshakeSubtask, error) {
	c, err := newCommon(spec, network)
	if err != nil {
		return nil, err
	}
	variants := make(map[string]handshakeVariant, len(spec.Variants))
	for _, v := range spec.Variants {
		config, err := clientConfig(v)
		if err != nil {
			return nil, errors.WithMessagef(err, "variant %s", v.Id)
		}
		variants[v.Id] = handshakeVariant{
			config:         config,
			expectComplete: v.Expect != expectAlert,
		}
	}
	return &handshakeSubtask{common: c, variants: variants}, nil
}

func (s *handshakeSubtask) IsApplicable(capabilities domain.Capabilities) bool {
	return capabilities.Protocol() == domain.ProtocolTLS && s.common.IsApplicable(capabilities)
}

func (s *handshakeSubtask) Measure(ctx context.Context, endpoint domain.Endpoint, identifier string) domain.MeasurementResult {
	variant, ok := s.variants[identifier]
	if !ok {
		return domain.Failure(domain.Unexpected)
	}
	raw, err := s.dialer().DialContext(ctx, "tcp", endpoint.Address)
	if err != nil {
		return domain.Failure(domain.Unreachable)
	}
	defer raw.Close()
	if s.network.ReadTimeout > 0 {
		if err := raw.SetDeadline(time.Now().Add(s.network.ReadTimeout)); err != nil {
			return domain.Failure(domain.Unexpected)
		}
	}

	config := variant.config.Clone()
	if config.ServerName == "" {
		config.ServerName = serverName(endpoint.Address)
	}
	conn := tls.Client(raw, config)

	start := time.Now()
	err = conn.HandshakeContext(ctx)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		if variant.expectComplete {
			return domain.Sample(elapsed.Nanoseconds())
		}
		return domain.Failure(domain.Undetectable)
	case isRemoteAlert(err):
		if !variant.expectComplete {
			return domain.Sample(elapsed.Nanoseconds())
		}
		return domain.Failure(domain.Undetectable)
	case isEarlyTermination(err):
		return domain.Failure(domain.EarlyTermination)
	default:
		return domain.Failure(domain.Unexpected)
	}
}

func clientConfig(v configuration.VariantSpec) (*tls.Config, error) {
	config := &tls.Config{
		InsecureSkipVerify: true,
		ServerName:         v.ServerName,
	}
	if v.MinVersion != "" {
		version, ok := tlsVersions[v.MinVersion]
		if !ok {
			return nil, invalidVariant("minVersion", v.MinVersion)
		}
		config.MinVersion = version
	}
	if v.MaxVersion != "" {
		version, ok := tlsVersions[v.MaxVersion]
		if !ok {
			return nil, invalidVariant("maxVersion", v.MaxVersion)
		}
		config.MaxVersion = version
	}
	if len(v.CipherSuites) > 0 {
		suites := cipherSuitesByName()
		for _, name := range v.CipherSuites {
			id, ok := suites[name]
			if !ok {
				return nil, invalidVariant("cipherSuites", name)
			}
			config.CipherSuites = append(config.CipherSuites, id)
		}
	}
	return config, nil
}

func cipherSuitesByName() map[string]uint16 {
	suites := map[string]uint16{}
	for _, s := range tls.CipherSuites() {
		suites[s.Name] = s.ID
	}
	for _, s := range tls.InsecureCipherSuites() {
		suites[s.Name] = s.ID
	}
	return suites
}

func invalidVariant(field string, value string) error {
	return errors.WithStack(&scanerrors.ErrInvalidArgument{
		Name:    field,
		Value:   value,
		Message: "unsupported value",
	})
}
