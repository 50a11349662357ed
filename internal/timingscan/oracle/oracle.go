// Package oracle decides whether two sample series are statistically distinguishable.
//
// The default implementation runs an external script once per comparison file and interprets its
// exit status. An in-process two-sample test is provided for environments without the script.
package oracle

import (
	"context"
	"time"

	"github.com/G-Research/timingscan/internal/timingscan/comparison"
	"github.com/G-Research/timingscan/internal/timingscan/domain"
	"github.com/G-Research/timingscan/internal/timingscan/metrics"
)

// Exit codes of the external significance script.
const (
	ExitSignificant  = 12
	ExitInconclusive = 13
	ExitNoDifference = 14
)

// Oracle evaluates one comparison request. Evaluate blocks until a decision is available and never
// returns an error: failures are reported as domain.OracleError.
type Oracle interface {
	Evaluate(ctx context.Context, req *comparison.Request, sampleCount int) domain.Decision
}

// DecisionFromExitCode maps the script's exit status to a decision.
func DecisionFromExitCode(code int) domain.Decision {
	switch code {
	case ExitSignificant:
		return domain.Significant
	case ExitInconclusive:
		return domain.InconclusiveContinue
	case ExitNoDifference:
		return domain.NoDifferenceContinue
	default:
		return domain.OracleError
	}
}

// Instrumented wraps an Oracle and records decision counts and latency.
type Instrumented struct {
	oracle Oracle
}

func NewInstrumented(oracle Oracle) *Instrumented {
	return &Instrumented{oracle: oracle}
}

func (o *Instrumented) Evaluate(ctx context.Context, req *comparison.Request, sampleCount int) domain.Decision {
	start := time.Now()
	decision := o.oracle.Evaluate(ctx, req, sampleCount)
	metrics.OracleLatency.Observe(time.Since(start).Seconds())
	metrics.OracleDecisions.WithLabelValues(decision.String()).Inc()
	return decision
}
