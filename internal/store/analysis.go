package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/failure-kb/internal/model"
)

const analysisStampLayout = "20060102_150405"

var projectDirReplacer = strings.NewReplacer(" ", "_", "-", "_")

// SaveAnalysis writes an analysis of one failure to
// analysis/<failureID>_analysis.json and returns the file path.
func (s *Store) SaveAnalysis(failureID string, analysis any) (string, error) {
	if err := s.ensureLayout(); err != nil {
		return "", err
	}
	record := model.AnalysisRecord{
		AnalysisID: uuid.NewString(),
		FailureID:  failureID,
		Timestamp:  model.NewTimestamp(s.now()),
		Analysis:   analysis,
	}
	path := filepath.Join(s.analysisDir, safeName(failureID)+"_analysis"+recordExt)
	if err := s.writeRecord(path, record); err != nil {
		return "", err
	}
	return path, nil
}

// SaveProjectAnalysis writes a project-level analysis under
// analysis/<project>/ and returns the file path.
func (s *Store) SaveProjectAnalysis(projectName string, data any) (string, error) {
	dir := filepath.Join(s.analysisDir, ProjectDirName(projectName))
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", eris.Wrapf(err, "store: create %s", dir)
	}

	now := s.now().UTC()
	record := model.ProjectAnalysisRecord{
		AnalysisID:   uuid.NewString(),
		ProjectName:  projectName,
		Timestamp:    model.NewTimestamp(now),
		AnalysisType: model.AnalysisTypeLatestResult,
		Data:         data,
	}
	name := fmt.Sprintf("test_analysis_%s_%s%s", now.Format(analysisStampLayout), record.AnalysisID[:8], recordExt)
	path := filepath.Join(dir, name)
	if err := s.writeRecord(path, record); err != nil {
		return "", err
	}
	return path, nil
}

// ProjectDirName maps a project name to its analysis subdirectory name.
func ProjectDirName(projectName string) string {
	return safeName(projectDirReplacer.Replace(projectName))
}

func (s *Store) writeRecord(path string, record any) error {
	data, err := encodeJSON(record)
	if err != nil {
		return eris.Wrap(err, "store: encode analysis record")
	}
	if err := atomicWriteFile(path, data, filePerm); err != nil {
		return eris.Wrapf(err, "store: write %s", path)
	}
	return nil
}
