package store

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/failure-kb/internal/model"
)

// CleanupOld deletes test-case documents and analysis records whose
// modification time is more than daysOld days in the past. Only removed
// test-case documents are counted in the result.
func (s *Store) CleanupOld(daysOld int) (int, error) {
	cutoff := s.now().Add(-time.Duration(daysOld) * 24 * time.Hour)

	paths, err := s.testCaseFiles()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range paths {
		if !modifiedBefore(path, cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			s.log.Warn("store: could not remove expired test case",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		removed++
	}

	analysisRemoved := 0
	walkErr := filepath.WalkDir(s.analysisDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.log.Warn("store: skipping unreadable analysis path",
				zap.String("path", path),
				zap.Error(err),
			)
			return nil
		}
		if !d.Type().IsRegular() || filepath.Ext(path) != recordExt || !modifiedBefore(path, cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			s.log.Warn("store: could not remove expired analysis",
				zap.String("path", path),
				zap.Error(err),
			)
			return nil
		}
		analysisRemoved++
		return nil
	})
	if walkErr != nil {
		return removed, eris.Wrap(walkErr, "store: walk analysis records")
	}

	s.log.Info("store: retention sweep complete",
		zap.Int("days_old", daysOld),
		zap.Int("testcases_removed", removed),
		zap.Int("analysis_removed", analysisRemoved),
	)
	return removed, nil
}

func modifiedBefore(path string, cutoff time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.ModTime().Before(cutoff)
}

// Wipe removes every file and subdirectory under the test-case and analysis
// directories, then recreates the empty layout. Individual failures are
// collected in the report and do not stop the sweep.
func (s *Store) Wipe() *model.WipeReport {
	report := &model.WipeReport{Errors: []string{}, Success: true}
	fail := func(format string, args ...any) {
		report.Errors = append(report.Errors, fmt.Sprintf(format, args...))
		report.Success = false
	}

	tcFiles, tcDirs := s.collectTree(s.testCasesDir, fail)
	for _, path := range tcFiles {
		if filepath.Dir(path) == s.testCasesDir && filepath.Ext(path) == recordExt {
			report.TestCasesRemoved++
		}
	}

	files, dirs := s.collectTree(s.analysisDir, fail)
	for _, path := range files {
		if filepath.Ext(path) == recordExt {
			report.AnalysisFilesRemoved++
		}
	}
	for _, dir := range dirs {
		if filepath.Dir(dir) == s.analysisDir {
			report.AnalysisDirectoriesRemoved++
		}
	}

	files = append(tcFiles, files...)
	dirs = append(tcDirs, dirs...)
	for _, path := range files {
		if err := os.Remove(path); err != nil {
			fail("Failed to remove file %s: %v", path, err)
		}
	}
	// Deepest directories first.
	sort.SliceStable(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		if err := os.Remove(dir); err != nil {
			fail("Failed to remove directory %s: %v", dir, err)
		}
	}

	if err := s.ensureLayout(); err != nil {
		fail("Failed to recreate directories: %v", err)
	}

	if report.Success {
		report.Message = "Knowledge database cleanup completed successfully"
	} else {
		report.Message = "Knowledge database cleanup completed with errors"
	}
	s.log.Info("store: knowledge store wiped",
		zap.Int("testcases_removed", report.TestCasesRemoved),
		zap.Int("analysis_files_removed", report.AnalysisFilesRemoved),
		zap.Int("analysis_directories_removed", report.AnalysisDirectoriesRemoved),
		zap.Int("errors", len(report.Errors)),
	)
	return report
}

// collectTree lists every file and subdirectory below root, excluding root.
func (s *Store) collectTree(root string, fail func(format string, args ...any)) (files, dirs []string) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if !os.IsNotExist(err) {
				fail("Failed to read %s: %v", path, err)
			}
			return nil
		}
		switch {
		case path == root:
		case d.IsDir():
			dirs = append(dirs, path)
		default:
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		fail("Failed to walk %s: %v", root, err)
	}
	return files, dirs
}
