package configuration

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/G-Research/timingscan/internal/common/scanerrors"
	"github.com/G-Research/timingscan/internal/timingscan/domain"
)

// ValidateTimingScanConfiguration returns every problem found, combined into a multierror.
func ValidateTimingScanConfiguration(config TimingScanConfiguration) error {
	var result *multierror.Error
	if config.Threads <= 0 {
		result = multierror.Append(result, invalid("threads", config.Threads, "must be positive"))
	}
	if config.MeasurementsPerRound <= 0 {
		result = multierror.Append(result, invalid("measurementsPerRound", config.MeasurementsPerRound, "must be positive"))
	}
	if config.TotalMeasurements <= 0 {
		result = multierror.Append(result, invalid("totalMeasurements", config.TotalMeasurements, "must be positive"))
	}
	if config.OutputDirectory == "" {
		result = multierror.Append(result, invalid("outputDirectory", config.OutputDirectory, "not provided"))
	}
	switch config.Oracle.Type {
	case SubprocessOracle:
		if config.Oracle.Executable == "" {
			result = multierror.Append(result, invalid("oracle.executable", config.Oracle.Executable, "required for the subprocess oracle"))
		}
		if config.Oracle.ScriptLocation == "" {
			result = multierror.Append(result, invalid("oracle.scriptLocation", config.Oracle.ScriptLocation, "required for the subprocess oracle"))
		}
	case InProcessOracle:
		if config.Oracle.SignificanceLevel <= 0 || config.Oracle.SignificanceLevel >= 1 {
			result = multierror.Append(result, invalid("oracle.significanceLevel", config.Oracle.SignificanceLevel, "must be in (0, 1)"))
		}
	default:
		result = multierror.Append(result, invalid("oracle.type", config.Oracle.Type, "must be subprocess or inProcess"))
	}
	if _, err := domain.ParseTargetPolicy(string(config.TargetManagement.Policy)); err != nil {
		result = multierror.Append(result, invalid("targetManagement.policy", config.TargetManagement.Policy, err.Error()))
	}
	switch config.ReportStore.Type {
	case FileStore:
	case RedisStore:
		if config.ReportStore.Redis.Addr == "" {
			result = multierror.Append(result, invalid("reportStore.redis.addr", config.ReportStore.Redis.Addr, "required for the redis store"))
		}
	default:
		result = multierror.Append(result, invalid("reportStore.type", config.ReportStore.Type, "must be file or redis"))
	}
	return result.ErrorOrNil()
}

// ValidatePlan checks the plan against the target management policy it will be run with.
func ValidatePlan(plan *Plan, policy domain.TargetPolicy) error {
	var result *multierror.Error
	if len(plan.Targets) == 0 {
		result = multierror.Append(result, invalid("targets", len(plan.Targets), "at least one target is required"))
	}
	if len(plan.Subtasks) == 0 {
		result = multierror.Append(result, invalid("subtasks", len(plan.Subtasks), "at least one subtask is required"))
	}

	targetNames := map[string]string{}
	for i, target := range plan.Targets {
		field := fmt.Sprintf("targets[%d]", i)
		if target.Name == "" {
			result = multierror.Append(result, invalid(field+".name", target.Name, "not provided"))
		} else if other, ok := targetNames[domain.PathComponent(target.Name)]; ok {
			result = multierror.Append(result, invalid(field+".name", target.Name, duplicateName("target", other)))
		}
		targetNames[domain.PathComponent(target.Name)] = target.Name

		switch policy {
		case domain.KubernetesPolicy:
			if target.Kubernetes == nil || target.Kubernetes.LabelSelector == "" || target.Kubernetes.Port <= 0 {
				result = multierror.Append(result, invalid(field+".kubernetes", target.Kubernetes, "labelSelector and port are required by the kubernetes policy"))
			}
		case domain.ProcessPolicy:
			if target.Process == nil || target.Process.Command == "" {
				result = multierror.Append(result, invalid(field+".process.command", "", "required by the process policy"))
			}
			if target.Address == "" {
				result = multierror.Append(result, invalid(field+".address", target.Address, "not provided"))
			}
		default:
			if target.Address == "" {
				result = multierror.Append(result, invalid(field+".address", target.Address, "not provided"))
			}
		}
	}

	subtaskNames := map[string]string{}
	for i, subtask := range plan.Subtasks {
		if err := validateSubtask(fmt.Sprintf("subtasks[%d]", i), subtask); err != nil {
			result = multierror.Append(result, err)
		}
		if other, ok := subtaskNames[domain.PathComponent(subtask.Name)]; ok && subtask.Name != "" {
			result = multierror.Append(result, invalid(fmt.Sprintf("subtasks[%d].name", i), subtask.Name, duplicateName("subtask", other)))
		}
		subtaskNames[domain.PathComponent(subtask.Name)] = subtask.Name
	}
	return result.ErrorOrNil()
}

// Names are used as path components in the output directory.
func duplicateName(kind string, other string) string {
	return fmt.Sprintf("duplicate %s name (same output path as %q)", kind, other)
}

func validateSubtask(field string, spec SubtaskSpec) error {
	var result *multierror.Error
	if spec.Name == "" {
		result = multierror.Append(result, invalid(field+".name", spec.Name, "not provided"))
	}
	if spec.Kind != ExchangeSubtask && spec.Kind != HandshakeSubtask {
		result = multierror.Append(result, invalid(field+".kind", spec.Kind, "must be exchange or handshake"))
	}
	mode, err := domain.ParseComparisonMode(string(spec.Mode))
	if err != nil {
		result = multierror.Append(result, invalid(field+".mode", spec.Mode, err.Error()))
	}
	if len(spec.Variants) == 0 {
		result = multierror.Append(result, invalid(field+".variants", len(spec.Variants), "at least one variant is required"))
	}

	ids := map[string]bool{}
	for i, variant := range spec.Variants {
		variantField := fmt.Sprintf("%s.variants[%d]", field, i)
		if variant.Id == "" {
			result = multierror.Append(result, invalid(variantField+".id", variant.Id, "not provided"))
		} else if ids[variant.Id] {
			result = multierror.Append(result, invalid(variantField+".id", variant.Id, "identifiers must be unique within a subtask"))
		}
		ids[variant.Id] = true

		if spec.Kind == ExchangeSubtask {
			if _, err := hex.DecodeString(variant.Payload); err != nil || variant.Payload == "" {
				result = multierror.Append(result, invalid(variantField+".payload", variant.Payload, "must be non-empty hex"))
			}
			if _, err := hex.DecodeString(variant.Marker); err != nil {
				result = multierror.Append(result, invalid(variantField+".marker", variant.Marker, "must be hex"))
			}
		}
		if spec.Kind == HandshakeSubtask && variant.Expect != "" && variant.Expect != "complete" && variant.Expect != "alert" {
			result = multierror.Append(result, invalid(variantField+".expect", variant.Expect, "must be complete or alert"))
		}
	}
	if mode == domain.BaselineMode && !ids[spec.Baseline] {
		result = multierror.Append(result, invalid(field+".baseline", spec.Baseline, "must name one of the variants in baseline mode"))
	}
	if spec.Transport != "" && spec.Transport != domain.ProtocolTCP && spec.Transport != domain.ProtocolTLS {
		result = multierror.Append(result, invalid(field+".transport", spec.Transport, "must be tcp or tls"))
	}
	return result.ErrorOrNil()
}

// LoadPlan reads a plan file in YAML (or JSON) format.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	plan := &Plan{}
	if err := yaml.UnmarshalStrict(data, plan); err != nil {
		return nil, errors.Wrapf(err, "parsing plan %s", path)
	}
	return plan, nil
}

func invalid(name string, value interface{}, message string) error {
	return errors.WithStack(&scanerrors.ErrInvalidArgument{
		Name:    name,
		Value:   value,
		Message: message,
	})
}
