package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/failure-kb/internal/model"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate failure statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}

		stats, err := st.FailureStats()
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), outputFormat, stats, func(w *tabwriter.Writer) {
			formatFailureStats(w, stats)
		})
	},
}

var bugsCmd = &cobra.Command{
	Use:   "bugs",
	Short: "Show tester bug classification statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}

		stats, err := st.BugStatistics()
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), outputFormat, stats, func(w *tabwriter.Writer) {
			formatBugStats(w, stats)
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(bugsCmd)
}

func formatFailureStats(w *tabwriter.Writer, s *model.FailureStats) {
	row(w, "Test cases:", s.TotalTestCases)
	row(w, "Failures:", s.TotalFailures)
	row(w, "Unique errors:", s.TotalUniqueErrors)

	if len(s.FailureTypes) > 0 {
		row(w)
		row(w, "FILE", "COUNT")
		for _, e := range s.FailureTypes {
			row(w, truncate(e.Key, 60), e.Count)
		}
	}
	if len(s.MostCommonErrors) > 0 {
		row(w)
		row(w, "ERROR", "COUNT")
		for _, e := range s.MostCommonErrors {
			row(w, truncate(e.Key, 80), e.Count)
		}
	}
	if len(s.TopFailingTestCases) > 0 {
		row(w)
		row(w, "TEST_CASE", "FAILURES", "UNIQUE_ERRORS")
		for _, tc := range s.TopFailingTestCases {
			row(w, truncate(tc.TestCase, 50), tc.TotalFailures, tc.UniqueErrors)
		}
	}
}

func formatBugStats(w *tabwriter.Writer, s *model.BugStats) {
	row(w, "Failures:", s.TotalFailures)
	row(w, "Bugs:", s.ClassifiedAsBugs)
	row(w, "Not bugs:", s.ClassifiedAsNotBugs)
	row(w, "Pending:", s.PendingClassification)
	row(w, "Classification rate:", formatPercent(s.ClassificationRate))

	for _, group := range []struct {
		title string
		rows  []model.TestCaseClassification
	}{
		{"WITH_BUGS", s.TestCasesWithBugs},
		{"WITHOUT_BUGS", s.TestCasesWithoutBugs},
	} {
		if len(group.rows) == 0 {
			continue
		}
		row(w)
		row(w, group.title, "BUGS", "NOT_BUGS", "PENDING")
		for _, tc := range group.rows {
			row(w, truncate(tc.TestCase, 50), tc.Bugs, tc.NonBugs, tc.Pending)
		}
	}
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}
