package cmd

import (
	"github.com/spf13/cobra"

	"github.com/G-Research/timingscan/internal/common"
	"github.com/G-Research/timingscan/internal/common/app"
	"github.com/G-Research/timingscan/internal/timingscan"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timingscan",
		Short: "timingscan measures targets for timing side channels.",
		Long: `timingscan measures targets for timing side channels.

Engine settings are read from config.yaml in --configDir, merged with any files
passed with --config and with TIMINGSCAN_ environment variables. What to scan
is described by a separate plan file:

targets:
  - name: openssl
    address: localhost:4433
    tags: {protocol: tls}
subtasks:
  - name: padding
    kind: exchange
    mode: baseline
    baseline: valid
    variants:
      - {id: valid, payload: "1603", marker: "15"}
      - {id: short, payload: "1604", marker: "15"}`,
		SilenceUsage: true,
	}

	addConfigFlags(cmd)

	cmd.AddCommand(
		versionCmd(timingscan.New()),
		validateCmd(timingscan.New()),
		scanCmd(timingscan.New()),
	)

	return cmd
}

// Print version info and exit.
func versionCmd(a *timingscan.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Version()
		},
	}
	return cmd
}

// Check the configuration and the plan without contacting any target.
func validateCmd(a *timingscan.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and a plan.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Validate()
		},
	}
	addPlanFlag(cmd)
	return cmd
}

// Run every subtask of the plan against every target and print a summary.
// Findings are results, not errors: the exit code is 0 whenever the scan completes.
func scanCmd(a *timingscan.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the targets of a plan.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			common.ConfigureLogging()
			return initParams(cmd, a)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if port := a.Params.Config.MetricsPort; port != 0 {
				shutdownMetricServer := common.ServeMetrics(port)
				defer shutdownMetricServer()
			}
			return a.Scan(app.CreateContextWithShutdown())
		},
	}
	addPlanFlag(cmd)
	cmd.Flags().Int("threads", 1, "Number of targets evaluated concurrently (overrides the configuration)")
	cmd.Flags().String("runId", "", "Identifier of this run; generated when empty")
	return cmd
}
