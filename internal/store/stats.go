package store

import (
	"math"
	"sort"
	"strings"

	"github.com/sells-group/failure-kb/internal/model"
)

const (
	topFailureTypes   = 10
	topCommonErrors   = 5
	topFailingCases   = 10
	errorKeyMaxLength = 100
)

// FailureStats aggregates counts over every test-case document.
func (s *Store) FailureStats() (*model.FailureStats, error) {
	stats := &model.FailureStats{}
	fileCounts := newRankedCounter()
	errorCounts := newRankedCounter()
	var cases []model.TestCaseCounts

	err := s.scan(func(_ string, doc *model.TestCaseDocument) bool {
		stats.TotalTestCases++
		stats.TotalFailures += doc.TotalFailures
		stats.TotalUniqueErrors += doc.UniqueErrors
		cases = append(cases, model.TestCaseCounts{
			TestCase:      doc.TestCase,
			TotalFailures: doc.TotalFailures,
			UniqueErrors:  doc.UniqueErrors,
		})

		for _, rec := range doc.FailureHistory {
			count := rec.OccurrenceCount
			if count < 1 {
				count = 1
			}
			filePath := rec.FilePath
			if filePath == "" {
				filePath = unknownValue
			}
			fileCounts.add(filePath, count)
			errorCounts.add(errorKey(rec.LatestError()), count)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(cases, func(i, j int) bool {
		return cases[i].TotalFailures > cases[j].TotalFailures
	})
	if len(cases) > topFailingCases {
		cases = cases[:topFailingCases]
	}

	stats.FailureTypes = fileCounts.top(topFailureTypes)
	stats.MostCommonErrors = errorCounts.top(topCommonErrors)
	stats.TopFailingTestCases = cases
	if stats.TopFailingTestCases == nil {
		stats.TopFailingTestCases = []model.TestCaseCounts{}
	}
	return stats, nil
}

// BugStatistics classifies every failure record by the isBug flag of its most
// recent occurrence. A test case with at least one bug is listed under
// testcases_with_bugs; otherwise one with at least one not-bug is listed under
// testcases_without_bugs.
func (s *Store) BugStatistics() (*model.BugStats, error) {
	stats := &model.BugStats{
		TestCasesWithBugs:    []model.TestCaseClassification{},
		TestCasesWithoutBugs: []model.TestCaseClassification{},
	}

	err := s.scan(func(_ string, doc *model.TestCaseDocument) bool {
		tc := model.TestCaseClassification{TestCase: doc.TestCase}
		for i := range doc.FailureHistory {
			stats.TotalFailures++
			var isBug *bool
			if occ := doc.FailureHistory[i].Latest(); occ != nil {
				isBug = occ.IsBug
			}
			switch {
			case isBug == nil:
				stats.PendingClassification++
				tc.Pending++
			case *isBug:
				stats.ClassifiedAsBugs++
				tc.Bugs++
			default:
				stats.ClassifiedAsNotBugs++
				tc.NonBugs++
			}
		}

		switch {
		case tc.Bugs > 0:
			stats.TestCasesWithBugs = append(stats.TestCasesWithBugs, tc)
		case tc.NonBugs > 0:
			stats.TestCasesWithoutBugs = append(stats.TestCasesWithoutBugs, tc)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	stats.ClassificationRate = classificationRate(stats.ClassifiedAsBugs+stats.ClassifiedAsNotBugs, stats.TotalFailures)
	return stats, nil
}

// classificationRate is classified/total as a percentage rounded to one
// decimal place; zero when total is zero.
func classificationRate(classified, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(classified)/float64(total)*1000) / 10
}

// errorKey is the first line of an error, capped at 100 characters.
func errorKey(errText string) string {
	line, _, _ := strings.Cut(errText, "\n")
	if runes := []rune(line); len(runes) > errorKeyMaxLength {
		line = string(runes[:errorKeyMaxLength])
	}
	return line
}

// rankedCounter sums counts per key and ranks them, breaking ties by first
// insertion.
type rankedCounter struct {
	counts map[string]int
	order  []string
}

func newRankedCounter() *rankedCounter {
	return &rankedCounter{counts: make(map[string]int)}
}

func (c *rankedCounter) add(key string, n int) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key] += n
}

func (c *rankedCounter) top(n int) []model.CountEntry {
	entries := make([]model.CountEntry, 0, len(c.order))
	for _, key := range c.order {
		entries = append(entries, model.CountEntry{Key: key, Count: c.counts[key]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
