// Package subtask implements the closed set of measurement workflows a target can be probed with.
//
// A Subtask knows its variants, which targets it applies to, and how to time one exchange with a
// target for a given variant. Every failure to obtain a sample is reported as a domain failure
// category rather than an error, so the measurement loop can classify and retry it.
package subtask

import (
	"context"
	"net"

	"github.com/pkg/errors"

	"github.com/G-Research/timingscan/internal/common/scanerrors"
	"github.com/G-Research/timingscan/internal/timingscan/configuration"
	"github.com/G-Research/timingscan/internal/timingscan/domain"
)

type Subtask interface {
	Name() string
	// IsApplicable returns true if the target offers what the subtask needs.
	IsApplicable(capabilities domain.Capabilities) bool
	// Identifiers returns the variant identifiers in plan order.
	Identifiers() []string
	BaselineIdentifier() string
	Mode() domain.ComparisonMode
	// Measure performs one timed exchange with the target for the given variant.
	Measure(ctx context.Context, endpoint domain.Endpoint, identifier string) domain.MeasurementResult
}

// common holds what every subtask kind shares.
type common struct {
	name     string
	mode     domain.ComparisonMode
	baseline string
	requires map[string]string
	ids      []string
	network  configuration.NetworkConfiguration
}

func newCommon(spec configuration.SubtaskSpec, network configuration.NetworkConfiguration) (common, error) {
	mode, err := domain.ParseComparisonMode(string(spec.Mode))
	if err != nil {
		return common{}, err
	}
	ids := make([]string, 0, len(spec.Variants))
	for _, v := range spec.Variants {
		ids = append(ids, v.Id)
	}
	requires := make(map[string]string, len(spec.Requires))
	for k, v := range spec.Requires {
		requires[k] = v
	}
	return common{
		name:     spec.Name,
		mode:     mode,
		baseline: spec.Baseline,
		requires: requires,
		ids:      ids,
		network:  network,
	}, nil
}

func (c *common) Name() string {
	return c.name
}

func (c *common) Identifiers() []string {
	ids := make([]string, len(c.ids))
	copy(ids, c.ids)
	return ids
}

func (c *common) BaselineIdentifier() string {
	return c.baseline
}

func (c *common) Mode() domain.ComparisonMode {
	return c.mode
}

func (c *common) IsApplicable(capabilities domain.Capabilities) bool {
	return capabilities.Satisfies(c.requires)
}

func (c *common) dialer() *net.Dialer {
	return &net.Dialer{Timeout: c.network.ConnectTimeout}
}

// New creates the subtask described by spec.
func New(spec configuration.SubtaskSpec, network configuration.NetworkConfiguration) (Subtask, error) {
	switch spec.Kind {
	case configuration.ExchangeSubtask:
		return newExchange(spec, network)
	case configuration.HandshakeSubtask:
		return newHandshake(spec, network)
	default:
		return nil, errors.WithStack(&scanerrors.ErrInvalidArgument{
			Name:    "kind",
			Value:   spec.Kind,
			Message: "unknown subtask kind",
		})
	}
}

// FromPlan creates every subtask of the plan, in plan order.
func FromPlan(plan *configuration.Plan, network configuration.NetworkConfiguration) ([]Subtask, error) {
	subtasks := make([]Subtask, 0, len(plan.Subtasks))
	for _, spec := range plan.Subtasks {
		s, err := New(spec, network)
		if err != nil {
			return nil, errors.WithMessagef(err, "creating subtask %s", spec.Name)
		}
		subtasks = append(subtasks, s)
	}
	return subtasks, nil
}
