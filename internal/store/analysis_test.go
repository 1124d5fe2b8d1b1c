package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/failure-kb/internal/model"
)

func TestSaveAnalysis(t *testing.T) {
	s, clock := newClockedStore(t)

	path, err := s.SaveAnalysis("abc123def456", map[string]any{"root_cause": "stale selector"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.AnalysisDir(), "abc123def456_analysis.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec model.AnalysisRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "abc123def456", rec.FailureID)
	assert.NotEmpty(t, rec.AnalysisID)
	assert.True(t, rec.Timestamp.Equal(clock.Now()))
	assert.Equal(t, map[string]any{"root_cause": "stale selector"}, rec.Analysis)
}

func TestSaveProjectAnalysis(t *testing.T) {
	s, _ := newClockedStore(t)

	path, err := s.SaveProjectAnalysis("dataplatform-reporting web", map[string]any{"failed": float64(4)})
	require.NoError(t, err)

	dir := filepath.Join(s.AnalysisDir(), "dataplatform_reporting_web")
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Regexp(t, regexp.MustCompile(`^test_analysis_20250601_090000_[0-9a-f]{8}\.json$`), filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec model.ProjectAnalysisRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "dataplatform-reporting web", rec.ProjectName)
	assert.Equal(t, model.AnalysisTypeLatestResult, rec.AnalysisType)
	assert.Equal(t, map[string]any{"failed": float64(4)}, rec.Data)
}

func TestSaveProjectAnalysis_SameSecondDoesNotOverwrite(t *testing.T) {
	s, _ := newClockedStore(t)

	a, err := s.SaveProjectAnalysis("proj", 1)
	require.NoError(t, err)
	b, err := s.SaveProjectAnalysis("proj", 2)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.FileExists(t, a)
	assert.FileExists(t, b)
}

func TestProjectDirName(t *testing.T) {
	assert.Equal(t, "my_project_x", ProjectDirName("my-project x"))
	assert.Equal(t, "etc", ProjectDirName("../etc"))
	assert.Equal(t, "unnamed", ProjectDirName("///"))
}
