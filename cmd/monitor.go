package main

import (
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/failure-kb/internal/monitoring"
	"github.com/sells-group/failure-kb/internal/store"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Evaluate alert thresholds against the knowledge base",
	Long:  "Collects a snapshot of the knowledge base and prints the alerts it triggers. With --send, alerts are also posted to monitoring.webhook_url.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		send, _ := cmd.Flags().GetBool("send")

		st, err := openStore()
		if err != nil {
			return err
		}

		alerter := monitoring.NewAlerter(cfg.Monitoring)
		snap, err := monitoring.NewCollector(st).Collect()
		if err != nil {
			return err
		}
		alerts := alerter.Evaluate(snap)
		if send {
			alerter.SendAlerts(cmd.Context(), alerts)
		}

		result := struct {
			Snapshot *monitoring.Snapshot `json:"snapshot" yaml:"snapshot"`
			Alerts   []monitoring.Alert   `json:"alerts" yaml:"alerts"`
		}{snap, alerts}
		if result.Alerts == nil {
			result.Alerts = []monitoring.Alert{}
		}

		return render(cmd.OutOrStdout(), outputFormat, result, func(w *tabwriter.Writer) {
			formatAlerts(w, snap, alerts)
		})
	},
}

func init() {
	alertsCmd.Flags().Bool("send", false, "post triggered alerts to the configured webhook")
	rootCmd.AddCommand(alertsCmd)
}

// newChecker returns a background checker, or nil when no webhook is set.
func newChecker(st *store.Store) *monitoring.Checker {
	if cfg.Monitoring.WebhookURL == "" {
		return nil
	}
	return monitoring.NewChecker(
		monitoring.NewCollector(st),
		monitoring.NewAlerter(cfg.Monitoring),
		time.Duration(cfg.Monitoring.CheckIntervalSecs)*time.Second,
	)
}

func formatAlerts(w *tabwriter.Writer, snap *monitoring.Snapshot, alerts []monitoring.Alert) {
	row(w, "Failures:", snap.TotalFailures)
	row(w, "Pending classification:", snap.Pending)
	row(w, "Classification rate:", formatPercent(snap.ClassificationRate))
	if snap.TopTestCase != "" {
		row(w, "Most failing test case:", truncate(snap.TopTestCase, 50), snap.TopTestCaseFailures)
	}
	row(w)
	if len(alerts) == 0 {
		row(w, "No alerts triggered.")
		return
	}
	row(w, "TYPE", "SEVERITY", "MESSAGE")
	for _, a := range alerts {
		row(w, a.Type, a.Severity, a.Message)
	}
}
