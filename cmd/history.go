package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/failure-kb/internal/model"
)

const dateLayout = "2006-01-02 15:04"

// -- history --

var historyCmd = &cobra.Command{
	Use:   "history <test-case>",
	Short: "Show the failure history of a test case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}

		doc := st.GetTestCaseHistory(args[0])
		if doc == nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "No failure history found for test case: %s\n", args[0])
			return nil
		}

		return render(cmd.OutOrStdout(), outputFormat, doc, func(w *tabwriter.Writer) {
			formatDocument(w, doc)
		})
	},
}

// -- failure --

var failureCmd = &cobra.Command{
	Use:   "failure <failure-id>",
	Short: "Show one failure record by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}

		found, err := st.GetFailureHistory(args[0])
		if err != nil {
			return err
		}
		if found == nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "No failure found with id: %s\n", args[0])
			return nil
		}

		return render(cmd.OutOrStdout(), outputFormat, found, func(w *tabwriter.Writer) {
			formatFailure(w, found)
		})
	},
}

// -- similar --

var similarCmd = &cobra.Command{
	Use:   "similar",
	Short: "Find failures similar to a test case name or error message",
	RunE: func(cmd *cobra.Command, _ []string) error {
		testCase, _ := cmd.Flags().GetString("test-case")
		errText, _ := cmd.Flags().GetString("error")
		if testCase == "" && errText == "" {
			return eris.New("at least one of --test-case or --error is required")
		}

		st, err := openStore()
		if err != nil {
			return err
		}

		matches, err := st.FindSimilar(testCase, errText)
		if err != nil {
			return err
		}
		if len(matches) == 0 && outputFormat == formatTable {
			fmt.Fprintln(cmd.ErrOrStderr(), "No similar failures found.")
			return nil
		}

		return render(cmd.OutOrStdout(), outputFormat, matches, func(w *tabwriter.Writer) {
			formatMatches(w, matches)
		})
	},
}

func init() {
	similarCmd.Flags().String("test-case", "", "test case name (case-insensitive substring)")
	similarCmd.Flags().String("error", "", "error message; its first three words are matched")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(failureCmd)
	rootCmd.AddCommand(similarCmd)
}

func formatDocument(w *tabwriter.Writer, doc *model.TestCaseDocument) {
	row(w, "Test case:", doc.TestCase)
	row(w, "Created:", formatTime(doc.Created))
	row(w, "Last updated:", formatTime(doc.LastUpdated))
	row(w, "Total failures:", doc.TotalFailures)
	row(w, "Unique errors:", doc.UniqueErrors)
	row(w)

	row(w, "#", "FAILURE_ID", "COUNT", "FIRST_SEEN", "LAST_SEEN", "BUG", "LATEST_ERROR")
	row(w, "-", "----------", "-----", "----------", "---------", "---", "------------")
	for i := range doc.FailureHistory {
		rec := &doc.FailureHistory[i]
		row(w, i, rec.FailureID, rec.OccurrenceCount, formatTime(rec.FirstSeen), formatTime(rec.LastSeen),
			bugLabel(rec.Latest()), truncate(rec.LatestError(), 60))
	}
}

func formatFailure(w *tabwriter.Writer, f *model.TestCaseFailure) {
	rec := &f.Failure
	row(w, "Test case:", f.TestCase)
	row(w, "Failure id:", rec.FailureID)
	row(w, "Status:", rec.Status)
	row(w, "File:", rec.FilePath)
	row(w, "Failed step:", rec.FailedStep)
	row(w, "First seen:", formatTime(rec.FirstSeen))
	row(w, "Last seen:", formatTime(rec.LastSeen))
	row(w, "Occurrences:", rec.OccurrenceCount)
	row(w)

	row(w, "TIMESTAMP", "BUG", "NOTES", "ERROR")
	row(w, "---------", "---", "-----", "-----")
	for i := len(rec.RecentOccurrences) - 1; i >= 0; i-- {
		occ := &rec.RecentOccurrences[i]
		row(w, formatTime(occ.Timestamp), bugLabel(occ), len(occ.TesterNotes), truncate(occ.Error, 70))
	}
}

func formatMatches(w *tabwriter.Writer, matches []model.TestCaseFailure) {
	row(w, "TEST_CASE", "FAILURE_ID", "COUNT", "LAST_SEEN", "LATEST_ERROR")
	row(w, "---------", "----------", "-----", "---------", "------------")
	for i := range matches {
		m := &matches[i]
		row(w, truncate(m.TestCase, 40), m.Failure.FailureID, m.Failure.OccurrenceCount,
			formatTime(m.Failure.LastSeen), truncate(m.Failure.LatestError(), 60))
	}
}

func formatTime(ts model.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Format(dateLayout)
}

func bugLabel(occ *model.Occurrence) string {
	if occ == nil {
		return "pending"
	}
	return classificationLabel(occ.IsBug)
}
