package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/failure-kb/internal/model"
)

type stubStats struct {
	failures *model.FailureStats
	bugs     *model.BugStats
	err      error
}

func (s *stubStats) FailureStats() (*model.FailureStats, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.failures, nil
}

func (s *stubStats) BugStatistics() (*model.BugStats, error) {
	return s.bugs, nil
}

func TestCollector_Collect(t *testing.T) {
	src := &stubStats{
		failures: &model.FailureStats{
			TotalTestCases:    3,
			TotalFailures:     14,
			TotalUniqueErrors: 5,
			TopFailingTestCases: []model.TestCaseCounts{
				{TestCase: "Login Flow Test", TotalFailures: 9, UniqueErrors: 2},
				{TestCase: "Menu Report", TotalFailures: 4, UniqueErrors: 2},
			},
		},
		bugs: &model.BugStats{
			TotalFailures:         5,
			ClassifiedAsBugs:      1,
			ClassifiedAsNotBugs:   1,
			PendingClassification: 3,
			ClassificationRate:    40,
		},
	}
	c := NewCollector(src)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	snap, err := c.Collect()
	require.NoError(t, err)
	assert.Equal(t, 3, snap.TotalTestCases)
	assert.Equal(t, 14, snap.TotalFailures)
	assert.Equal(t, 5, snap.UniqueErrors)
	assert.Equal(t, 1, snap.Bugs)
	assert.Equal(t, 1, snap.NotBugs)
	assert.Equal(t, 3, snap.Pending)
	assert.InDelta(t, 40.0, snap.ClassificationRate, 0.001)
	assert.Equal(t, "Login Flow Test", snap.TopTestCase)
	assert.Equal(t, 9, snap.TopTestCaseFailures)
	assert.Equal(t, fixed, snap.CollectedAt)
}

func TestCollector_EmptyStore(t *testing.T) {
	c := NewCollector(&stubStats{
		failures: &model.FailureStats{TopFailingTestCases: []model.TestCaseCounts{}},
		bugs:     &model.BugStats{},
	})

	snap, err := c.Collect()
	require.NoError(t, err)
	assert.Empty(t, snap.TopTestCase)
	assert.Zero(t, snap.TopTestCaseFailures)
}

func TestCollector_Error(t *testing.T) {
	c := NewCollector(&stubStats{err: errors.New("disk gone")})

	_, err := c.Collect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: failure stats")
}
