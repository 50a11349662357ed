package cmd

import (
	"github.com/spf13/cobra"

	"github.com/G-Research/timingscan/internal/timingscan"
	"github.com/G-Research/timingscan/internal/timingscan/configuration"
)

func addConfigFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("configDir", "./config/timingscan", "Directory containing the default config.yaml")
	cmd.PersistentFlags().StringSlice("config", []string{}, "Fully qualified path to application configuration files (for multiple config files repeat this arg or separate paths with commas)")
}

func addPlanFlag(cmd *cobra.Command) {
	cmd.Flags().String("plan", "", "Path of the plan describing targets and subtasks")
	if err := cmd.MarkFlagRequired("plan"); err != nil {
		panic(err)
	}
}

// initParams loads the configuration and the plan into the app.
func initParams(cmd *cobra.Command, app *timingscan.App) error {
	configDir, err := cmd.Flags().GetString("configDir")
	if err != nil {
		return err
	}
	overrides, err := cmd.Flags().GetStringSlice("config")
	if err != nil {
		return err
	}
	config, err := configuration.Load(configDir, overrides, cmd.Flags())
	if err != nil {
		return err
	}

	planPath, err := cmd.Flags().GetString("plan")
	if err != nil {
		return err
	}
	plan, err := configuration.LoadPlan(planPath)
	if err != nil {
		return err
	}

	app.Params.Config = config
	app.Params.Plan = plan
	if cmd.Flags().Lookup("runId") != nil {
		runId, err := cmd.Flags().GetString("runId")
		if err != nil {
			return err
		}
		app.Params.RunId = runId
	}
	return nil
}
