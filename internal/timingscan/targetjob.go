package timingscan

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/timingscan/internal/common/scanerrors"
	"github.com/G-Research/timingscan/internal/timingscan/configuration"
	"github.com/G-Research/timingscan/internal/timingscan/domain"
	"github.com/G-Research/timingscan/internal/timingscan/measurement"
	"github.com/G-Research/timingscan/internal/timingscan/oracle"
	"github.com/G-Research/timingscan/internal/timingscan/planner"
	"github.com/G-Research/timingscan/internal/timingscan/progress"
	"github.com/G-Research/timingscan/internal/timingscan/provisioner"
	"github.com/G-Research/timingscan/internal/timingscan/report"
	"github.com/G-Research/timingscan/internal/timingscan/subtask"
)

// targetJob runs every applicable subtask, one after the other, against a single target.
type targetJob struct {
	target      configuration.TargetSpec
	subtasks    []subtask.Subtask
	provisioner provisioner.Provisioner
	policy      domain.TargetPolicy
	config      configuration.TimingScanConfiguration
	location    *report.OutputLocation
	oracle      oracle.Oracle
	store       report.Store
	tracker     *progress.Tracker
	newPlanner  func() *planner.Planner
}

// run returns an error only for failures that are terminal for the whole target. Every registered
// (target, subtask) pair has been marked as finished in the tracker when it returns.
func (j *targetJob) run(ctx context.Context) error {
	logger := log.WithField("target", j.target.Name)
	capabilities := domain.NewCapabilities(j.target.Tags)

	applicable := make([]subtask.Subtask, 0, len(j.subtasks))
	for _, st := range j.subtasks {
		if st.IsApplicable(capabilities) {
			applicable = append(applicable, st)
		} else {
			logger.Debugf("subtask %s does not apply", st.Name())
		}
	}
	j.tracker.RecordFinishedN(len(j.subtasks) - len(applicable))
	if len(applicable) == 0 {
		return errors.WithStack(&scanerrors.ErrNoApplicableSubtask{Target: j.target.Name})
	}

	address, err := j.provisioner.StartTarget(ctx)
	if err != nil {
		j.tracker.RecordFinishedN(len(applicable))
		return err
	}
	defer func() {
		if err := j.provisioner.StopTarget(context.Background()); err != nil {
			logger.WithError(err).Warn("failed to stop target")
		}
	}()

	endpoint := domain.Endpoint{Address: address, Capabilities: capabilities}
	if err := subtask.Preflight(ctx, endpoint, j.config.Network); err != nil {
		j.tracker.RecordFinishedN(len(applicable))
		return errors.WithStack(&scanerrors.ErrHandshake{Target: j.target.Name, Address: address, Cause: err})
	}
	logger.Infof("running %d subtasks against %s", len(applicable), address)

	var restarter measurement.Restarter
	if j.policy.RestartCapable() {
		restarter = j.provisioner
	}

	for i, st := range applicable {
		if ctx.Err() != nil {
			j.tracker.RecordFinishedN(len(applicable) - i)
			return errors.WithStack(ctx.Err())
		}
		dir, err := j.location.ComparisonDir(j.target.Name, st.Name())
		if err != nil {
			j.tracker.RecordFinishedN(len(applicable) - i)
			return err
		}
		loop := measurement.NewLoop(
			measurement.Config{
				RunId:                j.location.RunId(),
				MeasurementsPerRound: j.config.MeasurementsPerRound,
				TotalMeasurements:    j.config.TotalMeasurements,
				Policy:               j.policy,
				ComparisonDir:        dir,
			},
			st,
			j.target.Name,
			endpoint,
			j.newPlanner(),
			j.oracle,
			restarter,
			j.tracker,
		)
		r := loop.Run(ctx)
		endpoint = loop.Endpoint()

		j.tracker.RecordSubtaskOutcome(r)
		if err := j.store.Save(r); err != nil {
			logger.WithError(err).Errorf("failed to save report of subtask %s", st.Name())
		}
		j.tracker.RecordFinished()
	}
	return nil
}
