package oracle

import (
	"context"
	"os/exec"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/timingscan/internal/timingscan/comparison"
	"github.com/G-Research/timingscan/internal/timingscan/domain"
)

// SubprocessOracle runs `Executable ScriptLocation input output label1 label2 sampleCount` per request
// and maps the exit status to a decision.
type SubprocessOracle struct {
	Executable     string
	ScriptLocation string
	// Labels passed to the script for the two series.
	LabelA string
	LabelB string
}

func NewSubprocessOracle(executable string, scriptLocation string) *SubprocessOracle {
	return &SubprocessOracle{
		Executable:     executable,
		ScriptLocation: scriptLocation,
		LabelA:         "BASELINE",
		LabelB:         "MODIFIED",
	}
}

func (o *SubprocessOracle) Args(req *comparison.Request, sampleCount int) []string {
	return []string{
		o.ScriptLocation,
		req.Path,
		req.OutputPath,
		o.LabelA,
		o.LabelB,
		strconv.Itoa(sampleCount),
	}
}

func (o *SubprocessOracle) Evaluate(ctx context.Context, req *comparison.Request, sampleCount int) domain.Decision {
	cmd := exec.CommandContext(ctx, o.Executable, o.Args(req, sampleCount)...)
	output, err := cmd.CombinedOutput()
	code, err := exitCode(err)
	logger := log.WithFields(log.Fields{"pair": req.String(), "file": req.Path})
	if err != nil {
		logger.WithError(err).Errorf("significance oracle could not be run; output: %s", output)
		return domain.OracleError
	}
	decision := DecisionFromExitCode(code)
	if decision == domain.OracleError {
		logger.Errorf("significance oracle exited with unexpected status %d; output: %s", code, output)
	} else {
		logger.Debugf("significance oracle decided %s", decision)
	}
	return decision
}

// exitCode extracts the exit status of a finished process. An error is returned only if the process
// could not be run at all.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, errors.WithStack(err)
}
