package main

import (
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/failure-kb/internal/harvest"
	"github.com/sells-group/failure-kb/internal/monitoring"
	"github.com/sells-group/failure-kb/internal/resilience"
	"github.com/sells-group/failure-kb/internal/store"
	"github.com/sells-group/failure-kb/pkg/ordino"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Pull failed test cases from Ordino into the knowledge base",
	Long:  "Fetches the failed test cases of each project's latest report and merges them into the knowledge base. With no --project flags, the configured project ids are used; if none are configured, every project visible to the API key is harvested.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.ValidateOrdino(); err != nil {
			return err
		}

		projects, _ := cmd.Flags().GetStringSlice("project")
		if len(projects) == 0 {
			projects = cfg.Ordino.ProjectIDs
		}

		st, err := openStore()
		if err != nil {
			return err
		}

		summary, err := newHarvester(st).Run(ctx, projects)
		if err != nil {
			return err
		}

		if cfg.Monitoring.WebhookURL != "" {
			alerter := monitoring.NewAlerter(cfg.Monitoring)
			alerter.SendAlerts(ctx, alerter.EvaluateHarvest(summary))
		}

		return render(cmd.OutOrStdout(), outputFormat, summary, func(w *tabwriter.Writer) {
			formatHarvestSummary(w, summary)
		})
	},
}

func init() {
	harvestCmd.Flags().StringSlice("project", nil, "project id to harvest (repeatable)")
	rootCmd.AddCommand(harvestCmd)
}

// newOrdinoClient builds the API client from config.
func newOrdinoClient() ordino.Client {
	oc := cfg.Ordino
	backoff := resilience.NewBackoff(oc.MaxAttempts)
	backoff.OnRetry = resilience.LogRetries("ordino", "get")

	return ordino.NewClient(oc.APIKey,
		ordino.WithBaseURL(oc.BaseURL),
		ordino.WithRateLimit(oc.RateLimit),
		ordino.WithBackoff(backoff),
		ordino.WithBreaker(resilience.NewBreaker(oc.CircuitThreshold, time.Duration(oc.CircuitResetSecs)*time.Second)),
		ordino.WithHTTPClient(newHTTPClient(time.Duration(oc.TimeoutSecs)*time.Second)),
	)
}

func newHarvester(st *store.Store) *harvest.Harvester {
	return harvest.New(newOrdinoClient(), st,
		harvest.WithConcurrency(cfg.Harvest.Concurrency),
		harvest.WithProjectAnalysis(cfg.Harvest.SaveAnalysis),
	)
}

func formatHarvestSummary(w *tabwriter.Writer, s *harvest.Summary) {
	row(w, "PROJECT", "FETCHED", "NEW", "RECURRENCES", "DUPLICATES", "WRITE_ERRORS", "FETCH_ERROR")
	row(w, "-------", "-------", "---", "-----------", "----------", "------------", "-----------")
	for _, p := range s.Projects {
		row(w, truncate(p.ProjectName, 40), p.Fetched, p.New, p.Recurrences, p.Duplicates, p.WriteErrors, truncate(p.FetchError, 50))
	}
	row(w, "TOTAL", s.Fetched, s.New, s.Recurrences, s.Duplicates, s.WriteErrors, s.FetchErrors)
}
