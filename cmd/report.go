package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/failure-kb/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a failure report as Markdown or an Excel workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")
		title, _ := cmd.Flags().GetString("title")

		st, err := openStore()
		if err != nil {
			return err
		}

		r, err := report.Build(st, title, time.Now())
		if err != nil {
			return err
		}

		switch format {
		case "markdown", "md":
			md := r.Markdown()
			if out == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), md)
				return err
			}
			if err := os.WriteFile(out, []byte(md), 0o644); err != nil {
				return eris.Wrap(err, "write report")
			}
		case "xlsx":
			if out == "" {
				out = "failure_report.xlsx"
			}
			if err := r.WriteXLSX(out); err != nil {
				return err
			}
		default:
			return eris.Errorf("unknown report format %q (want markdown or xlsx)", format)
		}

		zap.L().Info("report written", zap.String("format", format), zap.String("path", out))
		return nil
	},
}

func init() {
	reportCmd.Flags().String("format", "markdown", "report format: markdown or xlsx")
	reportCmd.Flags().String("out", "", "output file (markdown defaults to stdout)")
	reportCmd.Flags().String("title", "", "report title")
	rootCmd.AddCommand(reportCmd)
}
