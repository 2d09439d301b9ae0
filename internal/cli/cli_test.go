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

	"github.com/muaviaUsmani/studyplan/internal/plan"
	"github.com/muaviaUsmani/studyplan/internal/timeline"
)

const testNow = "2026-03-02T08:00:00Z"

const testInput = `{
	"user_id": "student-1",
	"tasks": [
		{"id": "essay", "title": "Essay", "due_date": "2026-03-06", "effort_hours": 3, "weight": 25},
		{"id": "old", "title": "Old quiz", "due_date": "2026-02-20", "effort_hours": 1}
	],
	"busy_intervals": [
		{"title": "Lecture", "start": "2026-03-02T09:00:00Z", "end": "2026-03-02T11:00:00Z"}
	]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// run executes the CLI with args and returns stdout
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := BuildCLI()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestBuildCLI(t *testing.T) {
	root := BuildCLI()

	assert.Equal(t, "studyplan", root.Use)
	assert.NotEmpty(t, root.Short)
	assert.Equal(t, Version, root.Version)

	prefsFlag := root.PersistentFlags().Lookup("prefs")
	require.NotNil(t, prefsFlag)
	assert.Equal(t, "", prefsFlag.DefValue)

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
		assert.NotNil(t, c.RunE, "command %s has no RunE", c.Name())
	}
	for _, want := range []string{"generate", "show", "latest", "free", "prune"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestGenerateCommand_Flags(t *testing.T) {
	cmd := buildGenerateCommand(&options{})

	fileFlag := cmd.Flags().Lookup("file")
	require.NotNil(t, fileFlag)
	assert.Equal(t, "f", fileFlag.Shorthand)

	for _, name := range []string{"now", "user", "db", "json"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag %s", name)
	}
}

func TestPruneCommand_Flags(t *testing.T) {
	cmd := buildPruneCommand(&options{})

	flag := cmd.Flags().Lookup("older-than")
	require.NotNil(t, flag)
	assert.Equal(t, "720h0m0s", flag.DefValue)
}

func TestGenerate_WithoutStore(t *testing.T) {
	input := writeFile(t, "input.json", testInput)

	out, err := run(t, "generate", "-f", input, "--now", testNow, "--json")
	require.NoError(t, err)

	var result timeline.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.NotEmpty(t, result.Blocks)
	assert.Equal(t, 1, result.Metadata.TasksScheduled)
	require.Len(t, result.Metadata.TasksUnscheduled, 1)
	assert.Equal(t, timeline.ReasonOverdue, result.Metadata.TasksUnscheduled[0].Reason)

	for _, b := range result.Blocks {
		assert.Equal(t, "essay", b.TaskID)
	}
}

func TestGenerate_TextOutput(t *testing.T) {
	input := writeFile(t, "input.json", testInput)

	out, err := run(t, "generate", "-f", input, "--now", testNow)
	require.NoError(t, err)

	assert.Contains(t, out, "Mon 2026-03-02")
	assert.Contains(t, out, "Essay")
	assert.Contains(t, out, "Unscheduled: Old quiz (overdue)")
	assert.Contains(t, out, "Total:")
}

func TestGenerate_PrefsFile(t *testing.T) {
	input := writeFile(t, "input.json", testInput)
	prefs := writeFile(t, "prefs.yaml", `
preferences:
  preferred_start_time: "14:00"
  preferred_end_time: "18:00"
`)

	out, err := run(t, "--prefs", prefs, "generate", "-f", input, "--now", testNow, "--json")
	require.NoError(t, err)

	var result timeline.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.NotEmpty(t, result.Blocks)
	for _, b := range result.Blocks {
		assert.GreaterOrEqual(t, b.Start.UTC().Hour(), 14, "block starts before the preferred window")
		assert.LessOrEqual(t, b.End.UTC().Hour()*60+b.End.UTC().Minute(), 18*60)
	}
}

func TestGenerate_StoreShowLatestPrune(t *testing.T) {
	input := writeFile(t, "input.json", testInput)
	db := filepath.Join(t.TempDir(), "plans.db")

	out, err := run(t, "generate", "-f", input, "--now", testNow, "--db", db, "--json")
	require.NoError(t, err)
	var first plan.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.Equal(t, "student-1", first.UserID)
	assert.Equal(t, 1, first.Version)

	out, err = run(t, "generate", "-f", input, "--now", testNow, "--db", db, "--json")
	require.NoError(t, err)
	var second plan.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	assert.Equal(t, 2, second.Version)

	out, err = run(t, "show", first.ID, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Plan "+first.ID+" (version 1) for student-1")

	out, err = run(t, "latest", "student-1", "--db", db, "--json")
	require.NoError(t, err)
	var latest plan.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &latest))
	assert.Equal(t, second.ID, latest.ID)

	_, err = run(t, "latest", "nobody", "--db", db)
	assert.Error(t, err)

	// Both plans were generated in March, long before the wall clock
	out, err = run(t, "prune", "--older-than", "1h", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Pruned 2 plan(s)")

	_, err = run(t, "show", first.ID, "--db", db)
	assert.Error(t, err)
}

func TestGenerate_UserOverride(t *testing.T) {
	input := writeFile(t, "input.json", strings.Replace(testInput, `"user_id": "student-1",`, "", 1))
	db := filepath.Join(t.TempDir(), "plans.db")

	out, err := run(t, "generate", "-f", input, "--now", testNow, "--db", db, "--json")
	require.NoError(t, err)
	var p plan.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, defaultUser, p.UserID)

	out, err = run(t, "generate", "-f", input, "--now", testNow, "--db", db, "--user", "bob", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "bob", p.UserID)
}

func TestGenerate_Errors(t *testing.T) {
	input := writeFile(t, "input.json", testInput)

	tests := []struct {
		name string
		args []string
	}{
		{"missing file flag", []string{"generate"}},
		{"missing file", []string{"generate", "-f", filepath.Join(t.TempDir(), "nope.json")}},
		{"bad now", []string{"generate", "-f", input, "--now", "yesterday"}},
		{"bad json", []string{"generate", "-f", writeFile(t, "bad.json", `{"tasks": [`)}},
		{"bad prefs file", []string{"--prefs", writeFile(t, "p.yaml", "preferences: ["), "generate", "-f", input}},
		{"bad log level", []string{"--log-level", "loud", "latest", "x", "--db", filepath.Join(t.TempDir(), "p.db")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestFreeCommand(t *testing.T) {
	input := writeFile(t, "input.json", testInput)

	out, err := run(t, "free", "-f", input, "--now", testNow, "--days", "3", "--json")
	require.NoError(t, err)

	var got freeTimeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Report.Days, 3)
	assert.Equal(t, "2026-03-02", got.Report.Days[0].Date)
	assert.Equal(t, 1, got.Report.Days[0].BusyBlocks)
	// Needed hours sum every schedulable task, overdue ones included
	assert.InDelta(t, 4.0, got.Recommendation.TotalNeededHours, 0.001)
	assert.Equal(t, timeline.FeasibilityComfortable, got.Recommendation.Feasibility)

	out, err = run(t, "free", "-f", input, "--now", testNow, "--days", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Recommendation:")

	_, err = run(t, "free", "-f", input, "--days", "0")
	assert.Error(t, err)
}
