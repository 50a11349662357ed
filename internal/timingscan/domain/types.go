package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// FailureCategory classifies a measurement attempt that did not yield a sample.
type FailureCategory int

const (
	// EarlyTermination means the exchange ended before a decision-relevant point.
	EarlyTermination FailureCategory = iota
	// Undetectable means the exchange completed but produced no usable signal.
	Undetectable
	// Unreachable means the connection to the target could not be established.
	Unreachable
	// Unexpected covers every other failure.
	Unexpected
)

// FailureCategories lists every category in display order.
var FailureCategories = []FailureCategory{EarlyTermination, Undetectable, Unreachable, Unexpected}

func (c FailureCategory) String() string {
	switch c {
	case EarlyTermination:
		return "early-termination"
	case Undetectable:
		return "undetectable"
	case Unreachable:
		return "unreachable"
	case Unexpected:
		return "unexpected"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// MeasurementResult is the outcome of a single measurement attempt: either a latency sample in nanoseconds
// or a failure category. Exactly one of the two is meaningful, as reported by Ok.
type MeasurementResult struct {
	Sample  int64
	Failure FailureCategory
	ok      bool
}

func Sample(nanos int64) MeasurementResult {
	return MeasurementResult{Sample: nanos, ok: true}
}

func Failure(category FailureCategory) MeasurementResult {
	return MeasurementResult{Failure: category}
}

func (r MeasurementResult) Ok() bool {
	return r.ok
}

// Decision is the verdict of the significance oracle for one comparison request.
type Decision int

const (
	OracleError Decision = iota
	Significant
	InconclusiveContinue
	NoDifferenceContinue
)

func (d Decision) String() string {
	switch d {
	case Significant:
		return "significant"
	case InconclusiveContinue:
		return "inconclusive"
	case NoDifferenceContinue:
		return "no-difference"
	default:
		return "oracle-error"
	}
}

// ComparisonMode selects which pairs of variants are compared at the end of a round.
type ComparisonMode string

const (
	BaselineMode        ComparisonMode = "baseline"
	AllCombinationsMode ComparisonMode = "allCombinations"
)

func ParseComparisonMode(s string) (ComparisonMode, error) {
	switch ComparisonMode(s) {
	case BaselineMode, AllCombinationsMode:
		return ComparisonMode(s), nil
	case "":
		return BaselineMode, nil
	}
	return "", errors.Errorf("unknown comparison mode %q", s)
}

// TargetPolicy selects how the system under test is managed.
type TargetPolicy string

const (
	StaticPolicy     TargetPolicy = "static"
	ProcessPolicy    TargetPolicy = "process"
	KubernetesPolicy TargetPolicy = "kubernetes"
)

func ParseTargetPolicy(s string) (TargetPolicy, error) {
	switch TargetPolicy(s) {
	case StaticPolicy, ProcessPolicy, KubernetesPolicy:
		return TargetPolicy(s), nil
	case "":
		return StaticPolicy, nil
	}
	return "", errors.Errorf("unknown target management policy %q", s)
}

// RestartCapable reports whether targets under this policy can be remediated by a restart.
func (p TargetPolicy) RestartCapable() bool {
	return p == ProcessPolicy || p == KubernetesPolicy
}
