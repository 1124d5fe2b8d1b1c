package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/failure-kb/internal/model"
)

// -- classify --

var classifyCmd = &cobra.Command{
	Use:   "classify <test-case>",
	Short: "Record a tester's bug / not-bug verdict on a failure",
	Long: "Marks the most recent occurrence of one failure in a test case as a bug or not a bug, " +
		"optionally attaching a note. --index selects the failure in history order (0 = most recent).",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		isBug, _ := cmd.Flags().GetBool("bug")
		notBug, _ := cmd.Flags().GetBool("not-bug")
		notes, _ := cmd.Flags().GetString("notes")
		index, _ := cmd.Flags().GetInt("index")

		if isBug == notBug {
			return eris.New("exactly one of --bug or --not-bug is required")
		}

		st, err := openStore()
		if err != nil {
			return err
		}

		ok, err := st.UpdateBugStatus(args[0], isBug, notes, index)
		if err != nil {
			return err
		}
		if !ok {
			return eris.Errorf("no failure at index %d for test case %q", index, args[0])
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Bug status updated for %s: %s\n", args[0], model.ClassificationFor(isBug))
		return nil
	},
}

// -- notes --

var notesCmd = &cobra.Command{
	Use:   "notes <test-case>",
	Short: "Show tester notes and classifications for a test case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}

		activity := st.TesterActivity(args[0])
		if activity == nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "No failure history found for test case: %s\n", args[0])
			return nil
		}

		return render(cmd.OutOrStdout(), outputFormat, activity, func(w *tabwriter.Writer) {
			formatActivity(w, activity)
		})
	},
}

func init() {
	classifyCmd.Flags().Bool("bug", false, "classify as a bug")
	classifyCmd.Flags().Bool("not-bug", false, "classify as not a bug")
	classifyCmd.Flags().String("notes", "", "tester note to attach")
	classifyCmd.Flags().Int("index", 0, "failure index in history order (0 = most recent)")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(notesCmd)
}

func formatActivity(w *tabwriter.Writer, a *model.TesterActivity) {
	row(w, "Test case:", a.TestCase)
	row(w, "Total failures:", a.Summary.TotalFailures)
	row(w, "Unique errors:", a.Summary.UniqueErrors)
	row(w, "Notes:", a.TotalNotes)
	row(w, "Bugs / not bugs / pending:", fmt.Sprintf("%d / %d / %d",
		a.BugClassifications.Bugs, a.BugClassifications.NotBugs, a.BugClassifications.Pending))

	for _, fa := range a.FailuresWithNotes {
		row(w)
		row(w, "Failure "+fa.FailureID+":", classificationLabel(fa.CurrentClassification.IsBug),
			strconv.Itoa(fa.OccurrenceCount)+" occurrences", fa.LatestError)
		for _, n := range fa.TesterNotes {
			row(w, "", formatTime(n.Timestamp), string(n.Classification), n.Note)
		}
	}
}

func classificationLabel(isBug *bool) string {
	if isBug == nil {
		return "pending"
	}
	return string(model.ClassificationFor(*isBug))
}
