// Package timingscan evaluates a set of targets for timing side channels. Every target runs a
// list of subtasks; each subtask measures its variants in randomized rounds and asks a significance
// oracle whether the variants can be told apart.
package timingscan

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/G-Research/timingscan/internal/common/scanerrors"
	"github.com/G-Research/timingscan/internal/common/task"
	"github.com/G-Research/timingscan/internal/timingscan/build"
	"github.com/G-Research/timingscan/internal/timingscan/configuration"
	"github.com/G-Research/timingscan/internal/timingscan/domain"
	"github.com/G-Research/timingscan/internal/timingscan/oracle"
	"github.com/G-Research/timingscan/internal/timingscan/planner"
	"github.com/G-Research/timingscan/internal/timingscan/progress"
	"github.com/G-Research/timingscan/internal/timingscan/provisioner"
	"github.com/G-Research/timingscan/internal/timingscan/report"
	"github.com/G-Research/timingscan/internal/timingscan/subtask"
)

const defaultProgressInterval = 30 * time.Second

type App struct {
	// Parameters passed to the CLI by the user.
	Params *Params
	// Out is used to write the output. Defaults to standard out,
	// but can be overridden in tests to make assertions on the applications's output.
	Out io.Writer

	// The fields below are created from Params when nil. Tests replace them with fakes.
	Oracle       oracle.Oracle
	Store        report.Store
	Provisioners *provisioner.Factory
	Tracker      *progress.Tracker
	// NewPlanner returns the planner for one measurement loop.
	NewPlanner func() *planner.Planner
}

// Params holds everything a scan needs.
type Params struct {
	Config configuration.TimingScanConfiguration
	Plan   *configuration.Plan
	// Identifier of the run. Generated when empty.
	RunId string
}

// New instantiates an App with default parameters, writing to standard output.
func New() *App {
	return &App{
		Params: &Params{},
		Out:    os.Stdout,
	}
}

// Version prints build information (e.g., current git commit) to the app output.
func (a *App) Version() error {
	w := tabwriter.NewWriter(a.Out, 1, 1, 1, ' ', 0)
	defer w.Flush()
	fmt.Fprintf(w, "Version:\t%s\n", build.ReleaseVersion)
	fmt.Fprintf(w, "Commit:\t%s\n", build.GitCommit)
	fmt.Fprintf(w, "Go version:\t%s\n", build.GoVersion)
	fmt.Fprintf(w, "Built:\t%s\n", build.BuildTime)
	return nil
}

func (a *App) validateParams() error {
	if a.Params.Plan == nil {
		return errors.WithStack(&scanerrors.ErrInvalidArgument{
			Name:    "plan",
			Value:   a.Params.Plan,
			Message: "not provided",
		})
	}
	if err := configuration.ValidateTimingScanConfiguration(a.Params.Config); err != nil {
		return err
	}
	return configuration.ValidatePlan(a.Params.Plan, a.Params.Config.TargetManagement.Policy)
}

// Validate checks the configuration and the plan and prints what a scan would do.
func (a *App) Validate() error {
	if err := a.validateParams(); err != nil {
		return err
	}
	subtasks, err := subtask.FromPlan(a.Params.Plan, a.Params.Config.Network)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.Out, 1, 1, 1, ' ', 0)
	defer w.Flush()
	fmt.Fprintf(w, "Policy:\t%s\n", a.Params.Config.TargetManagement.Policy)
	fmt.Fprintf(w, "Oracle:\t%s\n", a.Params.Config.Oracle.Type)
	fmt.Fprintf(w, "Report store:\t%s\n", a.Params.Config.ReportStore.Type)
	for _, target := range a.Params.Plan.Targets {
		capabilities := domain.NewCapabilities(target.Tags)
		applicable := 0
		for _, st := range subtasks {
			if st.IsApplicable(capabilities) {
				applicable++
			}
		}
		fmt.Fprintf(w, "Target %s:\t%d of %d subtasks apply\n", target.Name, applicable, len(subtasks))
	}
	return nil
}

// Scan evaluates every target of the plan, at most Config.Threads at a time, and prints a summary.
// A failure of one target never stops the others. An error is returned only if the scan could not
// be started or was cancelled.
func (a *App) Scan(ctx context.Context) error {
	if err := a.validateParams(); err != nil {
		return err
	}
	config := a.Params.Config
	plan := a.Params.Plan

	subtasks, err := subtask.FromPlan(plan, config.Network)
	if err != nil {
		return err
	}
	location := report.NewOutputLocation(config.OutputDirectory, a.Params.RunId)
	root, err := location.Root()
	if err != nil {
		return err
	}
	if err := a.setup(root); err != nil {
		return err
	}
	log.Infof("starting run %s with %d targets and %d subtasks, writing to %s", location.RunId(), len(plan.Targets), len(subtasks), root)

	a.Tracker.RegisterTotalTasks(plan.TaskCount())
	interval := config.ProgressInterval
	if interval <= 0 {
		interval = defaultProgressInterval
	}
	taskManager := task.NewBackgroundTaskManager()
	taskManager.Register(a.logProgress, interval, "progress")

	g := errgroup.Group{}
	g.SetLimit(config.Threads)
	for _, target := range plan.Targets {
		target := target
		g.Go(func() error {
			a.runTarget(ctx, target, subtasks, location)
			return nil
		})
	}
	_ = g.Wait()
	taskManager.StopAll(time.Second)

	if err := a.Tracker.PrintSummary(a.Out); err != nil {
		return errors.WithStack(err)
	}
	if ctx.Err() != nil {
		return errors.WithMessage(ctx.Err(), "scan cancelled")
	}
	return nil
}

func (a *App) runTarget(ctx context.Context, target configuration.TargetSpec, subtasks []subtask.Subtask, location *report.OutputLocation) {
	logger := log.WithField("target", target.Name)
	p, err := a.Provisioners.ForTarget(target)
	if err != nil {
		a.recordTargetFailure(ctx, logger, target.Name, err)
		a.Tracker.RecordFinishedN(len(subtasks))
		return
	}
	job := &targetJob{
		target:      target,
		subtasks:    subtasks,
		provisioner: p,
		policy:      a.Provisioners.Policy(),
		config:      a.Params.Config,
		location:    location,
		oracle:      a.Oracle,
		store:       a.Store,
		tracker:     a.Tracker,
		newPlanner:  a.NewPlanner,
	}
	if err := job.run(ctx); err != nil {
		a.recordTargetFailure(ctx, logger, target.Name, err)
		return
	}
	logger.Info("all subtasks finished")
}

func (a *App) recordTargetFailure(ctx context.Context, logger *log.Entry, target string, err error) {
	var noApplicable *scanerrors.ErrNoApplicableSubtask
	if errors.As(err, &noApplicable) {
		logger.Warn("no applicable subtask")
		a.Tracker.RecordNoApplicableSubtask(target)
		return
	}
	if ctx.Err() != nil {
		logger.WithError(err).Warn("cancelled")
		return
	}
	category := scanerrors.Category(err)
	if category == "unexpected" {
		category = progress.TargetFailure
	}
	logger.WithError(err).Errorf("target failed (%s)", category)
	a.Tracker.RecordFailure(category)
}

func (a *App) logProgress() {
	s := a.Tracker.Snapshot()
	log.Infof("progress: %d of %d tasks processed (%.1f%%), %d findings", s.FinishedTasks, s.TotalTasks, s.Percentage(), s.Findings)
}

// setup creates every collaborator that was not injected.
func (a *App) setup(outputRoot string) error {
	config := a.Params.Config
	if a.Tracker == nil {
		a.Tracker = progress.NewTracker()
	}
	if a.NewPlanner == nil {
		a.NewPlanner = planner.NewSharedFactory()
	}
	if a.Oracle == nil {
		switch config.Oracle.Type {
		case configuration.InProcessOracle:
			a.Oracle = oracle.NewInstrumented(oracle.NewInProcessOracle(config.Oracle.SignificanceLevel, config.Oracle.MinSamples))
		default:
			a.Oracle = oracle.NewInstrumented(oracle.NewSubprocessOracle(config.Oracle.Executable, config.Oracle.ScriptLocation))
		}
	}
	if a.Store == nil {
		switch config.ReportStore.Type {
		case configuration.RedisStore:
			a.Store = report.NewRedisStore(redis.NewClient(&redis.Options{
				Addr:     config.ReportStore.Redis.Addr,
				Password: config.ReportStore.Redis.Password,
				DB:       config.ReportStore.Redis.DB,
			}))
		default:
			a.Store = report.NewFileStore(outputRoot)
		}
	}
	if a.Provisioners == nil {
		factory, err := newProvisionerFactory(config.TargetManagement)
		if err != nil {
			return err
		}
		a.Provisioners = factory
	}
	return nil
}

func newProvisionerFactory(config configuration.TargetManagementConfiguration) (*provisioner.Factory, error) {
	if config.Policy != domain.KubernetesPolicy {
		return provisioner.NewFactory(config, nil), nil
	}
	client, err := provisioner.NewKubernetesClient(config.Kubernetes)
	if err != nil {
		return nil, errors.WithMessage(err, "error creating kubernetes client")
	}
	return provisioner.NewFactory(config, client), nil
}
