package store

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/failure-kb/internal/model"
)

const (
	// DedupWindow is the interval within which a repeated identical
	// observation collapses into the previous occurrence.
	DedupWindow = 5 * time.Minute

	// MaxRecentOccurrences caps the occurrence log of a failure record.
	MaxRecentOccurrences = 10

	unknownValue  = "unknown"
	defaultStatus = "failed"
)

// MergeOutcome classifies how an observation was merged.
type MergeOutcome string

const (
	// OutcomeNew means the observation introduced a new failure identity.
	OutcomeNew MergeOutcome = "new"
	// OutcomeRecurrence means a known failure occurred again.
	OutcomeRecurrence MergeOutcome = "recurrence"
	// OutcomeDuplicate means the observation fell inside the dedup window.
	OutcomeDuplicate MergeOutcome = "duplicate"
)

// MergeResult reports the identity and outcome of a merge.
type MergeResult struct {
	FailureID string       `json:"failure_id" yaml:"failure_id"`
	TestCase  string       `json:"testCase" yaml:"testCase"`
	Outcome   MergeOutcome `json:"outcome" yaml:"outcome"`
}

// SaveFailure merges obs into its test-case document and returns the failure
// id. On a write error the id is still returned alongside the error.
func (s *Store) SaveFailure(obs model.FailureObservation) (string, error) {
	res, err := s.Merge(obs)
	return res.FailureID, err
}

// Merge records obs as a new failure, a new occurrence of a known failure, or
// a duplicate inside the dedup window. Every call counts toward the
// document's total_failures.
func (s *Store) Merge(obs model.FailureObservation) (MergeResult, error) {
	obs = withObservationDefaults(obs)
	res := MergeResult{
		FailureID: FailureID(obs.TestCase, obs.Error),
		TestCase:  obs.TestCase,
	}

	if err := s.ensureLayout(); err != nil {
		return res, err
	}

	now := model.NewTimestamp(s.now())
	path := s.TestCasePath(obs.TestCase)
	doc := s.loadOrCreate(path, obs.TestCase, now)

	rec := doc.Find(res.FailureID)
	switch {
	case rec == nil:
		doc.FailureHistory = append(doc.FailureHistory, newFailureRecord(res.FailureID, obs, now))
		res.Outcome = OutcomeNew
	case isDuplicate(rec, obs, now):
		rec.LastSeen = now
		res.Outcome = OutcomeDuplicate
	default:
		if rec.OccurrenceCount < 1 {
			rec.OccurrenceCount = 1
		}
		rec.OccurrenceCount++
		rec.LastSeen = now
		rec.RecentOccurrences = appendOccurrence(rec.RecentOccurrences, newOccurrence(obs, now))
		res.Outcome = OutcomeRecurrence
	}
	doc.TotalFailures++

	if err := s.persist(path, doc); err != nil {
		s.log.Error("store: could not save test case document",
			zap.String("path", path),
			zap.String("failure_id", res.FailureID),
			zap.Error(err),
		)
		return res, err
	}
	return res, nil
}

func withObservationDefaults(obs model.FailureObservation) model.FailureObservation {
	if obs.TestCase == "" {
		obs.TestCase = unknownValue
	}
	if obs.Error == "" {
		obs.Error = unknownValue
	}
	if obs.Status == "" {
		obs.Status = defaultStatus
	}
	return obs
}

func newOccurrence(obs model.FailureObservation, now model.Timestamp) model.Occurrence {
	return model.Occurrence{
		Timestamp:   now,
		Error:       obs.Error,
		StackTrace:  obs.StackTrace,
		TesterNotes: []model.TesterNote{},
	}
}

func newFailureRecord(id string, obs model.FailureObservation, now model.Timestamp) model.FailureRecord {
	return model.FailureRecord{
		FailureID:         id,
		FirstSeen:         now,
		LastSeen:          now,
		OccurrenceCount:   1,
		Status:            obs.Status,
		FilePath:          obs.FilePath,
		FailedStep:        obs.FailedStep,
		RecentOccurrences: []model.Occurrence{newOccurrence(obs, now)},
	}
}

// isDuplicate reports whether obs repeats the newest occurrence of rec (same
// error and stack trace) less than DedupWindow ago.
func isDuplicate(rec *model.FailureRecord, obs model.FailureObservation, now model.Timestamp) bool {
	latest := latestByTimestamp(rec.RecentOccurrences)
	if latest == nil || latest.Timestamp.IsZero() {
		return false
	}
	return now.Sub(latest.Timestamp.Time) < DedupWindow &&
		latest.Error == obs.Error &&
		latest.StackTrace == obs.StackTrace
}

func latestByTimestamp(occs []model.Occurrence) *model.Occurrence {
	var latest *model.Occurrence
	for i := range occs {
		if latest == nil || occs[i].Timestamp.After(latest.Timestamp.Time) {
			latest = &occs[i]
		}
	}
	return latest
}

// appendOccurrence appends occ and drops the oldest entries beyond
// MaxRecentOccurrences.
func appendOccurrence(occs []model.Occurrence, occ model.Occurrence) []model.Occurrence {
	occs = append(occs, occ)
	if n := len(occs); n > MaxRecentOccurrences {
		occs = append([]model.Occurrence(nil), occs[n-MaxRecentOccurrences:]...)
	}
	return occs
}
