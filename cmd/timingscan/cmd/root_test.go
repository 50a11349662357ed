package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/timingscan/internal/timingscan"
)

const testConfig = `
threads: 2
measurementsPerRound: 10
totalMeasurements: 100
outputDirectory: /tmp/timingscan
oracle:
  type: inProcess
  significanceLevel: 0.01
targetManagement:
  policy: static
reportStore:
  type: file
`

const testPlan = `
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
      - {id: short, payload: "1604", marker: "15"}
`

func writeTestFiles(t *testing.T) (string, string) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(testConfig), 0o644))
	plan := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(plan, []byte(testPlan), 0o644))
	return dir, plan
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := []string{}
	for _, c := range RootCmd().Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"scan", "validate", "version"})
}

func TestValidateCmd(t *testing.T) {
	configDir, plan := writeTestFiles(t)
	out := &bytes.Buffer{}
	app := timingscan.New()
	app.Out = out

	root := RootCmd()
	root.AddCommand(withName(validateCmd(app), "validate-test"))
	root.SetArgs([]string{"validate-test", "--configDir", configDir, "--plan", plan})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "openssl")
	assert.Equal(t, 2, app.Params.Config.Threads)
	assert.Len(t, app.Params.Plan.Subtasks, 1)
}

func TestScanCmd_FlagsOverrideConfig(t *testing.T) {
	configDir, plan := writeTestFiles(t)
	app := timingscan.New()
	cmd := scanCmd(app)
	addConfigFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--configDir", configDir, "--plan", plan, "--threads", "7", "--runId", "run-1"}))

	require.NoError(t, initParams(cmd, app))

	assert.Equal(t, 7, app.Params.Config.Threads)
	assert.Equal(t, "run-1", app.Params.RunId)
	assert.Equal(t, 10, app.Params.Config.MeasurementsPerRound)
}

func TestValidateCmd_RequiresPlan(t *testing.T) {
	configDir, _ := writeTestFiles(t)
	root := RootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"validate", "--configDir", configDir})

	assert.Error(t, root.Execute())
}

func withName(cmd *cobra.Command, name string) *cobra.Command {
	cmd.Use = name
	return cmd
}
