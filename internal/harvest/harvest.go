// Package harvest pulls failed test cases from the reporting API into the
// knowledge store.
package harvest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/failure-kb/internal/model"
	"github.com/sells-group/failure-kb/internal/store"
	"github.com/sells-group/failure-kb/pkg/ordino"
)

// ProjectResult summarizes one project's harvest.
type ProjectResult struct {
	ProjectID    string `json:"project_id" yaml:"project_id"`
	ProjectName  string `json:"project_name" yaml:"project_name"`
	Fetched      int    `json:"fetched" yaml:"fetched"`
	New          int    `json:"new" yaml:"new"`
	Recurrences  int    `json:"recurrences" yaml:"recurrences"`
	Duplicates   int    `json:"duplicates" yaml:"duplicates"`
	WriteErrors  int    `json:"write_errors" yaml:"write_errors"`
	FetchError   string `json:"fetch_error,omitempty" yaml:"fetch_error,omitempty"`
	AnalysisPath string `json:"analysis_path,omitempty" yaml:"analysis_path,omitempty"`
}

// Summary is the result of a harvest run.
type Summary struct {
	StartedAt   model.Timestamp `json:"started_at" yaml:"started_at"`
	FinishedAt  model.Timestamp `json:"finished_at" yaml:"finished_at"`
	Projects    []ProjectResult `json:"projects" yaml:"projects"`
	Fetched     int             `json:"fetched" yaml:"fetched"`
	New         int             `json:"new" yaml:"new"`
	Recurrences int             `json:"recurrences" yaml:"recurrences"`
	Duplicates  int             `json:"duplicates" yaml:"duplicates"`
	WriteErrors int             `json:"write_errors" yaml:"write_errors"`
	FetchErrors int             `json:"fetch_errors" yaml:"fetch_errors"`
}

// Harvester fetches concurrently and writes sequentially.
type Harvester struct {
	client       ordino.Client
	store        *store.Store
	concurrency  int
	saveAnalysis bool
	now          func() time.Time
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithConcurrency bounds the number of projects fetched at once.
func WithConcurrency(n int) Option {
	return func(h *Harvester) {
		if n > 0 {
			h.concurrency = n
		}
	}
}

// WithProjectAnalysis records each project's result as a project analysis.
func WithProjectAnalysis(enabled bool) Option {
	return func(h *Harvester) {
		h.saveAnalysis = enabled
	}
}

// New creates a Harvester.
func New(client ordino.Client, st *store.Store, opts ...Option) *Harvester {
	h := &Harvester{
		client:      client,
		store:       st,
		concurrency: 4,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type fetched struct {
	project ordino.Project
	cases   []ordino.FailedTestCase
	err     error
}

// Run harvests the given projects. With no project IDs it harvests every
// project the API key can see. A project whose fetch fails is reported in
// the summary without aborting the others.
func (h *Harvester) Run(ctx context.Context, projectIDs []string) (*Summary, error) {
	log := zap.L().With(zap.String("component", "harvest"))
	summary := &Summary{StartedAt: model.NewTimestamp(h.now()), Projects: []ProjectResult{}}

	projects, err := h.resolveProjects(ctx, projectIDs)
	if err != nil {
		return nil, err
	}
	log.Info("harvesting failed test cases", zap.Int("projects", len(projects)))

	results := make([]fetched, len(projects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for i, p := range projects {
		g.Go(func() error {
			cases, err := h.client.GetFailedTestCases(gctx, p.ID)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = fetched{project: p, cases: cases, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "harvest: fetch")
	}

	// Writes stay on this goroutine; the store assumes a single writer.
	for _, f := range results {
		pr := h.ingest(f, log)
		summary.add(pr)
	}

	summary.FinishedAt = model.NewTimestamp(h.now())
	log.Info("harvest complete",
		zap.Int("fetched", summary.Fetched),
		zap.Int("new", summary.New),
		zap.Int("recurrences", summary.Recurrences),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("write_errors", summary.WriteErrors),
		zap.Int("fetch_errors", summary.FetchErrors),
	)
	return summary, nil
}

func (h *Harvester) resolveProjects(ctx context.Context, ids []string) ([]ordino.Project, error) {
	if len(ids) > 0 {
		projects := make([]ordino.Project, 0, len(ids))
		for _, id := range ids {
			projects = append(projects, ordino.Project{ID: id, Name: id})
		}
		return projects, nil
	}

	projects, err := h.client.GetProjects(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "harvest: list projects")
	}
	for i := range projects {
		if projects[i].Name == "" {
			projects[i].Name = projects[i].ID
		}
	}
	return projects, nil
}

func (h *Harvester) ingest(f fetched, log *zap.Logger) ProjectResult {
	pr := ProjectResult{ProjectID: f.project.ID, ProjectName: f.project.Name}
	if f.err != nil {
		pr.FetchError = f.err.Error()
		log.Warn("harvest: fetch failed", zap.String("project", f.project.ID), zap.Error(f.err))
		return pr
	}

	pr.Fetched = len(f.cases)
	for _, tc := range f.cases {
		res, err := h.store.Merge(tc.Observation())
		if err != nil {
			pr.WriteErrors++
			continue
		}
		switch res.Outcome {
		case store.OutcomeNew:
			pr.New++
		case store.OutcomeRecurrence:
			pr.Recurrences++
		case store.OutcomeDuplicate:
			pr.Duplicates++
		}
	}

	if h.saveAnalysis {
		path, err := h.store.SaveProjectAnalysis(pr.ProjectName, pr)
		if err != nil {
			log.Warn("harvest: save project analysis", zap.String("project", pr.ProjectName), zap.Error(err))
		} else {
			pr.AnalysisPath = path
		}
	}
	return pr
}

func (s *Summary) add(pr ProjectResult) {
	s.Projects = append(s.Projects, pr)
	s.Fetched += pr.Fetched
	s.New += pr.New
	s.Recurrences += pr.Recurrences
	s.Duplicates += pr.Duplicates
	s.WriteErrors += pr.WriteErrors
	if pr.FetchError != "" {
		s.FetchErrors++
	}
}
