package store

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/failure-kb/internal/model"
)

func TestMerge_NewFailure(t *testing.T) {
	s, clock := newClockedStore(t)

	res, err := s.Merge(obs("T1", "E1", "stack"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNew, res.Outcome)
	assert.Equal(t, FailureID("T1", "E1"), res.FailureID)
	assert.Equal(t, "T1", res.TestCase)

	doc := s.GetTestCaseHistory("T1")
	require.NotNil(t, doc)
	assert.Equal(t, "T1", doc.TestCase)
	assert.Equal(t, 1, doc.TotalFailures)
	assert.Equal(t, 1, doc.UniqueErrors)
	assert.True(t, doc.Created.Equal(clock.Now()))

	rec := doc.FailureHistory[0]
	assert.Equal(t, 1, rec.OccurrenceCount)
	assert.Equal(t, "failed", rec.Status)
	assert.Equal(t, "cypress/e2e/T1.cy.ts", rec.FilePath)
	assert.Equal(t, "step 1", rec.FailedStep)
	assert.True(t, rec.FirstSeen.Equal(rec.LastSeen.Time))
	require.Len(t, rec.RecentOccurrences, 1)
	occ := rec.RecentOccurrences[0]
	assert.Equal(t, "E1", occ.Error)
	assert.Equal(t, "stack", occ.StackTrace)
	assert.Nil(t, occ.IsBug)
	assert.Empty(t, occ.TesterNotes)
}

func TestMerge_DuplicateWithinWindow(t *testing.T) {
	s, clock := newClockedStore(t)

	first, err := s.Merge(obs("T1", "E1", "stack"))
	require.NoError(t, err)
	clock.Advance(4 * time.Minute)
	second, err := s.Merge(obs("T1", "E1", "stack"))
	require.NoError(t, err)

	assert.Equal(t, first.FailureID, second.FailureID)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)

	doc := s.GetTestCaseHistory("T1")
	require.NotNil(t, doc)
	assert.Equal(t, 2, doc.TotalFailures)
	assert.Equal(t, 1, doc.UniqueErrors)
	rec := doc.FailureHistory[0]
	assert.Equal(t, 1, rec.OccurrenceCount)
	assert.Len(t, rec.RecentOccurrences, 1)
	assert.True(t, rec.LastSeen.Equal(clock.Now()))
	assert.True(t, rec.FirstSeen.Before(rec.LastSeen.Time))
}

func TestMerge_AfterWindowIsNewOccurrence(t *testing.T) {
	s, clock := newClockedStore(t)

	_, err := s.Merge(obs("T1", "E1", "stack"))
	require.NoError(t, err)
	clock.Advance(DedupWindow)
	res, err := s.Merge(obs("T1", "E1", "stack"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecurrence, res.Outcome)

	rec := s.GetTestCaseHistory("T1").FailureHistory[0]
	assert.Equal(t, 2, rec.OccurrenceCount)
	assert.Len(t, rec.RecentOccurrences, 2)
}

func TestMerge_DifferentStackTraceIsNewOccurrence(t *testing.T) {
	s, _ := newClockedStore(t)

	_, err := s.Merge(obs("T1", "E1", "stack a"))
	require.NoError(t, err)
	res, err := s.Merge(obs("T1", "E1", "stack b"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecurrence, res.Outcome)

	rec := s.GetTestCaseHistory("T1").FailureHistory[0]
	assert.Equal(t, 2, rec.OccurrenceCount)
	require.Len(t, rec.RecentOccurrences, 2)
	assert.Equal(t, "stack b", rec.Latest().StackTrace)
}

func TestMerge_DedupComparesNewestOccurrenceByTimestamp(t *testing.T) {
	s, clock := newClockedStore(t)

	_, err := s.Merge(obs("T1", "E1", "a"))
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = s.Merge(obs("T1", "E1", "b"))
	require.NoError(t, err)
	clock.Advance(time.Minute)

	// Same as the older occurrence but not the newest one.
	res, err := s.Merge(obs("T1", "E1", "a"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecurrence, res.Outcome)

	// Same as the newest one.
	res, err = s.Merge(obs("T1", "E1", "a"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
}

func TestMerge_CapsRecentOccurrences(t *testing.T) {
	s, clock := newClockedStore(t)

	for i := 0; i < 15; i++ {
		_, err := s.Merge(obs("T1", "E1", fmt.Sprintf("stack %d", i)))
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	doc := s.GetTestCaseHistory("T1")
	require.NotNil(t, doc)
	rec := doc.FailureHistory[0]
	assert.Equal(t, 15, rec.OccurrenceCount)
	assert.Equal(t, 15, doc.TotalFailures)
	require.Len(t, rec.RecentOccurrences, MaxRecentOccurrences)
	assert.Equal(t, "stack 5", rec.RecentOccurrences[0].StackTrace)
	assert.Equal(t, "stack 14", rec.RecentOccurrences[9].StackTrace)
}

func TestMerge_UniqueErrorsInvariant(t *testing.T) {
	s, clock := newClockedStore(t)

	inputs := []model.FailureObservation{
		obs("T1", "E1", ""),
		obs("T1", "E2", ""),
		obs("T1", "E1", ""),
		obs("T1", "E3", "x"),
		obs("T1", "E2", "y"),
	}
	for _, in := range inputs {
		_, err := s.Merge(in)
		require.NoError(t, err)
		clock.Advance(30 * time.Second)

		doc := s.GetTestCaseHistory("T1")
		require.NotNil(t, doc)
		assert.Equal(t, len(doc.FailureHistory), doc.UniqueErrors)
	}

	doc := s.GetTestCaseHistory("T1")
	assert.Equal(t, 3, doc.UniqueErrors)
	assert.Equal(t, 5, doc.TotalFailures)
}

func TestMerge_DefaultsMissingFields(t *testing.T) {
	s := newTestStore(t)

	res, err := s.Merge(model.FailureObservation{})
	require.NoError(t, err)
	assert.Equal(t, FailureID("unknown", "unknown"), res.FailureID)
	assert.Equal(t, "unknown", res.TestCase)

	doc := s.GetTestCaseHistory("unknown")
	require.NotNil(t, doc)
	rec := doc.FailureHistory[0]
	assert.Equal(t, "failed", rec.Status)
	assert.Equal(t, "unknown", rec.Latest().Error)
	assert.Equal(t, "", rec.FilePath)
}

func TestMerge_LegacyNaiveTimestampTreatedAsUTC(t *testing.T) {
	s, clock := newClockedStore(t)
	id := FailureID("T1", "E1")

	// Stored two minutes before the clock, without an offset.
	stamp := clock.Now().Add(-2 * time.Minute).Format("2006-01-02T15:04:05.000000")
	legacy := fmt.Sprintf(`{"testCase":"T1","created":%[1]q,"total_failures":1,"unique_errors":1,
"failure_history":[{"failure_id":%[2]q,"first_seen":%[1]q,"last_seen":%[1]q,"occurrence_count":1,
"recent_occurrences":[{"timestamp":%[1]q,"error":"E1","stackTrace":"st","isBug":null,"tester_notes":[]}]}]}`, stamp, id)
	require.NoError(t, os.WriteFile(s.TestCasePath("T1"), []byte(legacy), 0o644))

	res, err := s.Merge(obs("T1", "E1", "st"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
}

func TestSaveFailure_EndToEnd(t *testing.T) {
	s := newTestStore(t)

	x, err := s.SaveFailure(model.FailureObservation{TestCase: "T1", Error: "E1"})
	require.NoError(t, err)
	y, err := s.SaveFailure(model.FailureObservation{TestCase: "T1", Error: "E1"})
	require.NoError(t, err)
	assert.Equal(t, x, y)

	doc := s.GetTestCaseHistory("T1")
	require.NotNil(t, doc)
	assert.Equal(t, 1, doc.FailureHistory[0].OccurrenceCount)
	assert.Equal(t, 2, doc.TotalFailures)

	ok, err := s.UpdateBugStatus("T1", true, "confirmed", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	doc = s.GetTestCaseHistory("T1")
	require.NotNil(t, doc)
	latest := doc.FailureHistory[0].Latest()
	require.NotNil(t, latest)
	require.NotNil(t, latest.IsBug)
	assert.True(t, *latest.IsBug)
	require.Len(t, latest.TesterNotes, 1)
	assert.Equal(t, "confirmed", latest.TesterNotes[0].Note)
	assert.Equal(t, model.ClassificationBug, latest.TesterNotes[0].Classification)
}

func TestSaveFailure_WriteErrorStillReturnsID(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	s := newTestStore(t)
	require.NoError(t, os.Chmod(s.TestCasesDir(), 0o500))
	t.Cleanup(func() { _ = os.Chmod(s.TestCasesDir(), 0o755) })

	id, err := s.SaveFailure(obs("T1", "E1", ""))
	require.Error(t, err)
	assert.Equal(t, FailureID("T1", "E1"), id)
	assert.Contains(t, err.Error(), "store: write")
}
