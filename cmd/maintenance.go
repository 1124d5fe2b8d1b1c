package main

import (
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/failure-kb/internal/model"
)

// -- record --

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a single failed test case",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var obs model.FailureObservation
		obs.TestCase, _ = cmd.Flags().GetString("test-case")
		obs.Error, _ = cmd.Flags().GetString("error")
		obs.StackTrace, _ = cmd.Flags().GetString("stack-trace")
		obs.Status, _ = cmd.Flags().GetString("status")
		obs.FilePath, _ = cmd.Flags().GetString("file")
		obs.FailedStep, _ = cmd.Flags().GetString("step")

		st, err := openStore()
		if err != nil {
			return err
		}

		res, err := st.Merge(obs)
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), outputFormat, res, func(w *tabwriter.Writer) {
			row(w, "Failure id:", res.FailureID)
			row(w, "Test case:", res.TestCase)
			row(w, "Outcome:", res.Outcome)
		})
	},
}

// -- cleanup --

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete test-case and analysis files older than the retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		days, _ := cmd.Flags().GetInt("days")
		if days == 0 {
			days = cfg.Retention.Days
		}
		if days < 0 {
			return eris.New("--days must not be negative")
		}

		st, err := openStore()
		if err != nil {
			return err
		}

		removed, err := st.CleanupOld(days)
		if err != nil {
			return err
		}

		result := map[string]int{"removed": removed, "days_old": days}
		return render(cmd.OutOrStdout(), outputFormat, result, func(w *tabwriter.Writer) {
			row(w, "Removed test cases:", removed)
			row(w, "Older than (days):", days)
		})
	},
}

// -- wipe --

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete every test-case document and analysis file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return eris.Errorf("refusing to wipe %s without --yes", cfg.Store.Root)
		}

		st, err := openStore()
		if err != nil {
			return err
		}

		report := st.Wipe()
		if err := render(cmd.OutOrStdout(), outputFormat, report, func(w *tabwriter.Writer) {
			formatWipeReport(w, report)
		}); err != nil {
			return err
		}
		if !report.Success {
			return eris.Errorf("wipe finished with %d errors", len(report.Errors))
		}
		return nil
	},
}

func init() {
	recordCmd.Flags().String("test-case", "", "test case name")
	recordCmd.Flags().String("error", "", "error message")
	recordCmd.Flags().String("stack-trace", "", "stack trace")
	recordCmd.Flags().String("status", "", "test status (default failed)")
	recordCmd.Flags().String("file", "", "spec file path")
	recordCmd.Flags().String("step", "", "failed step")

	cleanupCmd.Flags().Int("days", 0, "retention window in days (default from config)")

	wipeCmd.Flags().Bool("yes", false, "confirm the wipe")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(wipeCmd)
}

func formatWipeReport(w *tabwriter.Writer, r *model.WipeReport) {
	row(w, "Test cases removed:", r.TestCasesRemoved)
	row(w, "Analysis files removed:", r.AnalysisFilesRemoved)
	row(w, "Analysis directories removed:", r.AnalysisDirectoriesRemoved)
	for _, e := range r.Errors {
		row(w, "Error:", e)
	}
	row(w, r.Message)
}
