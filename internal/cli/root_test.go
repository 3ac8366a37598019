package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cruiseqc/internal/cli/commands"
	"github.com/leapstack-labs/cruiseqc/internal/cli/config"
	"github.com/leapstack-labs/cruiseqc/internal/cli/testutil"
	"github.com/leapstack-labs/cruiseqc/internal/computed"
	"github.com/leapstack-labs/cruiseqc/internal/dataset"
	"github.com/leapstack-labs/cruiseqc/internal/views"
)

// run executes the root command against the project in dir.
func run(t *testing.T, dir string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	config.ResetConfig()

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--project-dir", dir}, args...))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	stdout, stderr, err := run(t, dir, args...)
	require.NoError(t, err, "stderr: %s", stderr)
	return stdout
}

func decode[T any](t *testing.T, data string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(data), &v), "output: %s", data)
	return v
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"version", "load", "info", "flag", "computed", "update", "watch", "export", "moves", "views", "completion"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	for _, flag := range []string{"config", "project-dir", "state", "verbose", "output", "log-level", "log-format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
}

func TestRootCmd_Version(t *testing.T) {
	dir, _ := testutil.SetupTestProject(t)
	out := mustRun(t, dir, "version")
	assert.Contains(t, out, "CruiseQC v"+Version)
}

func TestRootCmd_InvalidOutput(t *testing.T) {
	dir, _ := testutil.SetupTestProject(t)
	_, _, err := run(t, dir, "-o", "yaml", "info")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestRootCmd_Completion(t *testing.T) {
	config.ResetConfig()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"completion", "bash"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "cruiseqc")
}

func TestInfo_NoDataset(t *testing.T) {
	dir, _ := testutil.SetupTestProject(t)

	info := decode[commands.InfoOutput](t, mustRun(t, dir, "-o", "json", "info"))
	assert.False(t, info.Loaded)
	assert.Equal(t, dir, info.ProjectDir)

	md := mustRun(t, dir, "-o", "markdown", "info")
	testutil.AssertValidMarkdown(t, md)
	assert.Contains(t, md, "No dataset loaded")

	_, _, err := run(t, dir, "moves")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cruiseqc load")
}

func TestLoad_Invalid(t *testing.T) {
	dir, _ := testutil.SetupTestProject(t)
	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("STNNBR,SALNTY\n1,34.5\n"), 0o600))

	_, _, err := run(t, dir, "load", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid bottle file")
}

func TestWorkflow(t *testing.T) {
	dir, source := testutil.SetupTestProject(t)

	// load
	loaded := decode[commands.LoadOutput](t, mustRun(t, dir, "-o", "json", "load", source))
	assert.Equal(t, 3, loaded.Rows)
	assert.Equal(t, string(dataset.FormatWHP), loaded.Format)
	assert.Contains(t, loaded.Params, "SALNTY")

	md := mustRun(t, dir, "-o", "markdown", "load", source)
	testutil.AssertValidMarkdown(t, md)
	testutil.AssertNoANSI(t, md)
	assert.Contains(t, md, "# Loaded")

	// info
	info := decode[commands.InfoOutput](t, mustRun(t, dir, "-o", "json", "info", "--columns"))
	assert.True(t, info.Loaded)
	assert.Equal(t, 3, info.Rows)
	assert.NotEmpty(t, info.Hash)
	var names []string
	for _, c := range info.Columns {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "SALNTY_FLAG_W")

	// flag through the parameter name
	flagged := decode[map[string]any](t, mustRun(t, dir, "-o", "json", "flag", "SALNTY", "3", "--station", "1", "--bottle", "1"))
	assert.Equal(t, "SALNTY_FLAG_W", flagged["column"])
	assert.Len(t, flagged["rows"], 1)

	_, _, err := run(t, dir, "flag", "SALNTY", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rows selected")

	_, _, err = run(t, dir, "flag", "SALNTY", "3", "--station", "99")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rows match")

	moves := decode[[]dataset.Move](t, mustRun(t, dir, "-o", "json", "moves", "--action", dataset.ActionQCUpdate))
	require.Len(t, moves, 1)
	assert.Equal(t, "SALNTY_FLAG_W", moves[0].Param)

	// computed parameters
	results := decode[[]computed.Result](t, mustRun(t, dir, "-o", "json", "computed", "add", "SAL2"))
	require.Len(t, results, 1)
	assert.True(t, results[0].Success, results[0].Reason)

	defs := decode[[]commands.DefinitionInfo](t, mustRun(t, dir, "-o", "json", "computed", "list"))
	require.Len(t, defs, 1)
	assert.Equal(t, "SAL2", defs[0].Name)
	assert.True(t, defs[0].Satisfiable)

	// plot layout
	mustRun(t, dir, "views", "add", "salinity", "--x", "SALNTY", "--y", "SAL2")
	_, _, err = run(t, dir, "views", "add", "salinity", "--x", "SALNTY", "--y", "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column NOPE")

	tabs := decode[views.Tabs](t, mustRun(t, dir, "-o", "json", "views", "list"))
	require.Len(t, tabs["salinity"], 1)
	assert.Equal(t, "SAL2 vs SALNTY", tabs["salinity"][0].Title)

	// compare a refreshed file without merging
	refreshed := testutil.WriteSource(t, t.TempDir(), "cruise_hy1.csv",
		"1,1,1,-10.5,20.25,20240301,34.9,2",
		"1,1,2,-10.5,20.25,20240301,34.6,2",
		"2,1,1,-11.0,21.0,20240302,34.7,3",
		"3,1,1,-12.0,22.0,20240303,34.8,2",
	)
	dry := decode[commands.UpdateOutput](t, mustRun(t, dir, "-o", "json", "update", refreshed))
	require.NotNil(t, dry.Diff)
	assert.True(t, dry.Diff.Modified)
	assert.Len(t, dry.Diff.AddedRows, 1)
	assert.Nil(t, dry.Merge)
	assert.Contains(t, dry.Changes, "SALNTY")

	info = decode[commands.InfoOutput](t, mustRun(t, dir, "-o", "json", "info"))
	assert.Equal(t, 3, info.Rows, "a comparison without selection leaves the project unchanged")

	text := mustRun(t, dir, "-o", "markdown", "update", refreshed)
	testutil.AssertValidMarkdown(t, text)
	assert.Contains(t, text, "## SALNTY")
	assert.Contains(t, text, "Nothing merged")

	// merge everything
	merged := decode[commands.UpdateOutput](t, mustRun(t, dir, "-o", "json", "update", refreshed, "--all"))
	require.NotNil(t, merged.Merge)
	assert.True(t, merged.Merge.Superseded)
	assert.Len(t, merged.Merge.Applied.AddedRows, 1)
	assert.Contains(t, merged.Merge.Report.Recomputed, "SAL2")

	info = decode[commands.InfoOutput](t, mustRun(t, dir, "-o", "json", "info"))
	assert.Equal(t, 4, info.Rows)
	assert.Equal(t, []string{"SAL2"}, info.Computed)

	out := mustRun(t, dir, "-o", "text", "update", refreshed, "--if-changed")
	assert.Contains(t, out, "is unchanged")

	// export
	whp := filepath.Join(t.TempDir(), "out_hy1.csv")
	mustRun(t, dir, "export", whp)
	exported := testutil.ReadFile(t, filepath.Dir(whp), filepath.Base(whp))
	assert.True(t, strings.HasPrefix(exported, "BOTTLE,"), exported)
	assert.Contains(t, exported, "END_DATA")
	assert.Contains(t, exported, "SALNTY_FLAG_W")
	assert.NotContains(t, exported, "SAL2", "computed columns are exported on request only")

	csvPath := filepath.Join(t.TempDir(), "out.csv")
	mustRun(t, dir, "export", csvPath, "--format", "csv", "--columns", "SALNTY")
	assert.FileExists(t, csvPath)

	_, _, err = run(t, dir, "export", filepath.Join(t.TempDir(), "out.bin"), "--format", "bin")
	require.Error(t, err)

	// audit log
	all := decode[[]dataset.Move](t, mustRun(t, dir, "-o", "json", "moves"))
	var actions []string
	for _, m := range all {
		actions = append(actions, m.Action)
	}
	assert.Contains(t, actions, dataset.ActionAddRows)
	last := decode[[]dataset.Move](t, mustRun(t, dir, "-o", "json", "moves", "-n", "1"))
	assert.Len(t, last, 1)

	movesPath := filepath.Join(t.TempDir(), "moves.csv")
	mustRun(t, dir, "moves", "--export", movesPath)
	assert.FileExists(t, movesPath)

	// remove the computed parameter and the tab
	mustRun(t, dir, "computed", "rm", "SAL2")
	mustRun(t, dir, "views", "rm", "salinity")
	info = decode[commands.InfoOutput](t, mustRun(t, dir, "-o", "json", "info"))
	assert.Empty(t, info.Computed)
	assert.Empty(t, info.Tabs)
}

func TestStateFlag(t *testing.T) {
	dir, source := testutil.SetupTestProject(t)
	state := filepath.Join(t.TempDir(), "elsewhere.db")

	mustRun(t, dir, "--state", state, "load", source)
	assert.FileExists(t, state)

	info := decode[commands.InfoOutput](t, mustRun(t, dir, "--state", state, "-o", "json", "info"))
	assert.True(t, info.Loaded)
}
