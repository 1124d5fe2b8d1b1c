package monitoring

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/failure-kb/internal/model"
)

// Snapshot holds a point-in-time view of the knowledge base.
type Snapshot struct {
	TotalTestCases int `json:"total_testcases" yaml:"total_testcases"`
	TotalFailures  int `json:"total_failures" yaml:"total_failures"`
	UniqueErrors   int `json:"unique_errors" yaml:"unique_errors"`

	// Classification backlog.
	Bugs               int     `json:"bugs" yaml:"bugs"`
	NotBugs            int     `json:"not_bugs" yaml:"not_bugs"`
	Pending            int     `json:"pending" yaml:"pending"`
	ClassificationRate float64 `json:"classification_rate" yaml:"classification_rate"`

	// Worst test case by total failures.
	TopTestCase         string `json:"top_testcase,omitempty" yaml:"top_testcase,omitempty"`
	TopTestCaseFailures int    `json:"top_testcase_failures" yaml:"top_testcase_failures"`

	CollectedAt time.Time `json:"collected_at" yaml:"collected_at"`
}

// StatsSource abstracts the store aggregates needed by the collector.
type StatsSource interface {
	FailureStats() (*model.FailureStats, error)
	BugStatistics() (*model.BugStats, error)
}

// Collector gathers snapshots from the store.
type Collector struct {
	src StatsSource
	now func() time.Time
}

// NewCollector creates a new snapshot collector.
func NewCollector(src StatsSource) *Collector {
	return &Collector{src: src, now: time.Now}
}

// Collect reads the store's aggregates into a snapshot.
func (c *Collector) Collect() (*Snapshot, error) {
	fs, err := c.src.FailureStats()
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: failure stats")
	}
	bs, err := c.src.BugStatistics()
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: bug statistics")
	}

	snap := &Snapshot{
		TotalTestCases:     fs.TotalTestCases,
		TotalFailures:      fs.TotalFailures,
		UniqueErrors:       fs.TotalUniqueErrors,
		Bugs:               bs.ClassifiedAsBugs,
		NotBugs:            bs.ClassifiedAsNotBugs,
		Pending:            bs.PendingClassification,
		ClassificationRate: bs.ClassificationRate,
		CollectedAt:        c.now().UTC(),
	}
	if len(fs.TopFailingTestCases) > 0 {
		top := fs.TopFailingTestCases[0]
		snap.TopTestCase = top.TestCase
		snap.TopTestCaseFailures = top.TotalFailures
	}
	return snap, nil
}
