package store

import (
	"go.uber.org/zap"

	"github.com/sells-group/failure-kb/internal/model"
)

const (
	latestErrorPreview = 100
	noRecentError      = "No recent error"
)

// UpdateBugStatus records a tester's bug / not-bug verdict on the most recent
// occurrence of the failure at failureIndex. failureIndex addresses
// failure_history, which is kept most-recently-active first, so 0 is the
// failure seen last. A non-empty note is appended to that occurrence.
//
// Returns false with a nil error when the test case, history or index does
// not exist. Write failures are returned as errors.
func (s *Store) UpdateBugStatus(testCase string, isBug bool, notes string, failureIndex int) (bool, error) {
	path, doc := s.resolveTestCase(testCase)
	if doc == nil {
		return false, nil
	}
	if failureIndex < 0 || failureIndex >= len(doc.FailureHistory) {
		return false, nil
	}

	now := model.NewTimestamp(s.now())
	if occ := doc.FailureHistory[failureIndex].Latest(); occ != nil {
		verdict := isBug
		occ.IsBug = &verdict
		occ.BugStatusUpdated = &now
		if notes != "" {
			occ.TesterNotes = append(occ.TesterNotes, model.TesterNote{
				Timestamp:      now,
				Note:           notes,
				Classification: model.ClassificationFor(isBug),
			})
		}
	}

	if err := s.persist(path, doc); err != nil {
		s.log.Error("store: could not save bug status",
			zap.String("path", path),
			zap.String("test_case", testCase),
			zap.Error(err),
		)
		return false, err
	}
	return true, nil
}

// resolveTestCase finds the document for testCase by file name, falling back
// to a scan for a document whose stored name matches exactly.
func (s *Store) resolveTestCase(testCase string) (string, *model.TestCaseDocument) {
	path := s.TestCasePath(testCase)
	if doc, err := s.readDocument(path); err == nil {
		return path, doc
	}

	var (
		foundPath string
		found     *model.TestCaseDocument
	)
	err := s.scan(func(p string, doc *model.TestCaseDocument) bool {
		if doc.TestCase == testCase {
			foundPath, found = p, doc
			return false
		}
		return true
	})
	if err != nil {
		s.log.Warn("store: test case lookup scan failed",
			zap.String("test_case", testCase),
			zap.Error(err),
		)
		return "", nil
	}
	return foundPath, found
}

// TesterActivity collects the tester notes and classifications recorded for
// every failure of testCase. Returns nil when the test case is unknown.
func (s *Store) TesterActivity(testCase string) *model.TesterActivity {
	doc := s.GetTestCaseHistory(testCase)
	if doc == nil {
		return nil
	}

	activity := &model.TesterActivity{
		TestCase: testCase,
		Summary: model.TestCaseSummary{
			Created:       doc.Created,
			LastUpdated:   doc.LastUpdated,
			TotalFailures: doc.TotalFailures,
			UniqueErrors:  doc.UniqueErrors,
		},
		FailuresWithNotes: []model.FailureActivity{},
	}

	for i := range doc.FailureHistory {
		rec := &doc.FailureHistory[i]

		notes := []model.TesterNote{}
		for _, occ := range rec.RecentOccurrences {
			notes = append(notes, occ.TesterNotes...)
		}
		activity.TotalNotes += len(notes)

		current := model.CurrentClassification{}
		if occ := rec.Latest(); occ != nil {
			current.IsBug = occ.IsBug
			current.LastUpdated = occ.BugStatusUpdated
		}
		switch {
		case current.IsBug == nil:
			activity.BugClassifications.Pending++
		case *current.IsBug:
			activity.BugClassifications.Bugs++
		default:
			activity.BugClassifications.NotBugs++
		}

		if len(notes) == 0 && current.IsBug == nil {
			continue
		}
		activity.FailuresWithNotes = append(activity.FailuresWithNotes, model.FailureActivity{
			FailureID:             rec.FailureID,
			FirstSeen:             rec.FirstSeen,
			LastSeen:              rec.LastSeen,
			OccurrenceCount:       rec.OccurrenceCount,
			CurrentClassification: current,
			TesterNotes:           notes,
			NotesCount:            len(notes),
			LatestError:           latestErrorSummary(rec),
		})
	}
	activity.FailuresWithActivity = len(activity.FailuresWithNotes)
	return activity
}

func latestErrorSummary(rec *model.FailureRecord) string {
	occ := rec.Latest()
	if occ == nil {
		return noRecentError
	}
	if runes := []rune(occ.Error); len(runes) > latestErrorPreview {
		return string(runes[:latestErrorPreview]) + "..."
	}
	return occ.Error
}
