package store

import (
	"errors"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/failure-kb/internal/model"
)

// similarityKeywords is how many leading words of the query error are matched.
const similarityKeywords = 3

// GetTestCaseHistory returns the document for testCase, or nil when it is
// absent or unreadable.
func (s *Store) GetTestCaseHistory(testCase string) *model.TestCaseDocument {
	path := s.TestCasePath(testCase)
	doc, err := s.readDocument(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("store: unreadable test case document",
				zap.String("path", path),
				zap.Error(err),
			)
		}
		return nil
	}
	return doc
}

// GetFailureHistory scans every document for the failure with the given id.
// Returns nil when none matches.
func (s *Store) GetFailureHistory(failureID string) (*model.TestCaseFailure, error) {
	var found *model.TestCaseFailure
	err := s.scan(func(_ string, doc *model.TestCaseDocument) bool {
		if rec := doc.Find(failureID); rec != nil {
			found = &model.TestCaseFailure{TestCase: doc.TestCase, Failure: *rec}
			return false
		}
		return true
	})
	return found, err
}

// FindSimilar returns failures whose test case contains testCase
// (case-insensitive) or whose error contains any of the first three words of
// errText. Results are ordered by occurrence count, then failure id.
func (s *Store) FindSimilar(testCase, errText string) ([]model.TestCaseFailure, error) {
	name := strings.ToLower(testCase)
	keywords := strings.Fields(strings.ToLower(errText))
	if len(keywords) > similarityKeywords {
		keywords = keywords[:similarityKeywords]
	}

	matches := []model.TestCaseFailure{}
	err := s.scan(func(_ string, doc *model.TestCaseDocument) bool {
		nameMatch := strings.Contains(strings.ToLower(doc.TestCase), name)
		for _, rec := range doc.FailureHistory {
			if nameMatch || containsAny(strings.ToLower(rec.LatestError()), keywords) {
				matches = append(matches, model.TestCaseFailure{TestCase: doc.TestCase, Failure: rec})
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i].Failure, matches[j].Failure
		if a.OccurrenceCount != b.OccurrenceCount {
			return a.OccurrenceCount > b.OccurrenceCount
		}
		return a.FailureID < b.FailureID
	})
	return matches, nil
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
