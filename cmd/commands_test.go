package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/failure-kb/internal/model"
	"github.com/sells-group/failure-kb/internal/monitoring"
	"github.com/sells-group/failure-kb/internal/store"
)

// execute runs the root command against a store under root and returns
// stdout and stderr.
func execute(t *testing.T, root string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("FAILKB_STORE_ROOT", root)
	t.Setenv("FAILKB_LOG_LEVEL", "error")

	// Flag values persist across Execute calls on the shared command tree.
	outputFormat = formatTable

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func seedStore(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "knowledge_db")
	st, err := store.New(root)
	require.NoError(t, err)
	for _, o := range []model.FailureObservation{
		{TestCase: "Login Flow Test", Error: "Timeout waiting for element", FilePath: "cypress/e2e/login.cy.ts"},
		{TestCase: "Menu Report", Error: "AssertionError: expected 3 rows", FilePath: "cypress/e2e/menu.cy.ts"},
	} {
		_, err := st.SaveFailure(o)
		require.NoError(t, err)
	}
	return root
}

func TestRecordAndHistory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "knowledge_db")

	out, _, err := execute(t, root, "record", "-o", "json",
		"--test-case", "Checkout", "--error", "500 from payments", "--stack-trace", "at pay.cy.ts:10",
		"--status", "", "--file", "cypress/e2e/pay.cy.ts", "--step", "submit")
	require.NoError(t, err)

	var res store.MergeResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, store.FailureID("Checkout", "500 from payments"), res.FailureID)
	assert.Equal(t, store.OutcomeNew, res.Outcome)

	out, _, err = execute(t, root, "history", "Checkout", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "Test case:")
	assert.Contains(t, out, "Checkout")
	assert.Contains(t, out, res.FailureID)
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "500 from payments")
}

func TestHistory_Missing(t *testing.T) {
	out, errOut, err := execute(t, seedStore(t), "history", "Nope", "-o", "table")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "No failure history found for test case: Nope")
}

func TestFailureCommand_YAML(t *testing.T) {
	root := seedStore(t)
	id := store.FailureID("Menu Report", "AssertionError: expected 3 rows")

	out, _, err := execute(t, root, "failure", id, "-o", "yaml")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Menu Report", got["testCase"])
	failure, ok := got["failure"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, id, failure["failure_id"])
}

func TestSimilarCommand(t *testing.T) {
	root := seedStore(t)

	out, _, err := execute(t, root, "similar", "-o", "table", "--test-case", "login", "--error", "")
	require.NoError(t, err)
	assert.Contains(t, out, "TEST_CASE")
	assert.Contains(t, out, "Login Flow Test")
	assert.NotContains(t, out, "Menu Report")

	_, _, err = execute(t, root, "similar", "-o", "table", "--test-case", "", "--error", "")
	require.Error(t, err)
}

func TestClassifyAndNotes(t *testing.T) {
	root := seedStore(t)

	out, _, err := execute(t, root, "classify", "Menu Report", "-o", "table",
		"--bug=true", "--not-bug=false", "--notes", "totals off by one", "--index", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Bug status updated for Menu Report: bug")

	out, _, err = execute(t, root, "notes", "Menu Report", "-o", "json")
	require.NoError(t, err)
	var activity model.TesterActivity
	require.NoError(t, json.Unmarshal([]byte(out), &activity))
	assert.Equal(t, 1, activity.TotalNotes)
	assert.Equal(t, "totals off by one", activity.FailuresWithNotes[0].TesterNotes[0].Note)

	out, _, err = execute(t, root, "bugs", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "Classification rate:")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "WITH_BUGS")
}

func TestClassify_Errors(t *testing.T) {
	root := seedStore(t)

	_, _, err := execute(t, root, "classify", "Menu Report", "--bug=false", "--not-bug=false", "--notes", "", "--index", "0")
	require.Error(t, err)

	_, _, err = execute(t, root, "classify", "Menu Report", "--bug=true", "--not-bug=true", "--notes", "", "--index", "0")
	require.Error(t, err)

	_, _, err = execute(t, root, "classify", "Menu Report", "--bug=false", "--not-bug=true", "--notes", "", "--index", "4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no failure at index 4")
	assert.Contains(t, eris.ToJSON(err, false), "root", "command errors carry eris context")
}

func TestStatsCommand(t *testing.T) {
	out, _, err := execute(t, seedStore(t), "stats", "-o", "json")
	require.NoError(t, err)

	var stats model.FailureStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.TotalTestCases)
	assert.Equal(t, 2, stats.TotalFailures)
}

func TestReportCommand(t *testing.T) {
	root := seedStore(t)

	out, _, err := execute(t, root, "report", "-o", "table", "--format", "markdown", "--out", "", "--title", "Nightly")
	require.NoError(t, err)
	assert.Contains(t, out, "# Nightly")
	assert.Contains(t, out, "| Test cases | 2 |")

	xlsxPath := filepath.Join(t.TempDir(), "report.xlsx")
	_, _, err = execute(t, root, "report", "--format", "xlsx", "--out", xlsxPath, "--title", "")
	require.NoError(t, err)
	assert.FileExists(t, xlsxPath)

	_, _, err = execute(t, root, "report", "--format", "pdf", "--out", "", "--title", "")
	require.Error(t, err)
}

func TestCleanupAndWipe(t *testing.T) {
	root := seedStore(t)

	_, _, err := execute(t, root, "wipe", "--yes=false")
	require.Error(t, err)

	out, _, err := execute(t, root, "cleanup", "-o", "json", "--days", "30")
	require.NoError(t, err)
	assert.JSONEq(t, `{"removed":0,"days_old":30}`, out)

	out, _, err = execute(t, root, "wipe", "-o", "table", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Knowledge database cleanup completed successfully")

	entries, err := os.ReadDir(filepath.Join(root, "testcases"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnknownOutputFormat(t *testing.T) {
	_, _, err := execute(t, seedStore(t), "stats", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestHarvest_RequiresAPIKey(t *testing.T) {
	t.Setenv("FAILKB_ORDINO_API_KEY", "")
	_, _, err := execute(t, seedStore(t), "harvest", "-o", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestAlertsCommand(t *testing.T) {
	root := seedStore(t)
	t.Setenv("FAILKB_MONITORING_PENDING_THRESHOLD", "2")

	out, _, err := execute(t, root, "alerts", "-o", "json", "--send=false")
	require.NoError(t, err)

	var got struct {
		Snapshot monitoring.Snapshot `json:"snapshot"`
		Alerts   []monitoring.Alert  `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2, got.Snapshot.Pending)
	require.Len(t, got.Alerts, 1)
	assert.Equal(t, monitoring.AlertPendingBacklog, got.Alerts[0].Type)
}
