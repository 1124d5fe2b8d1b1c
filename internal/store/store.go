// Package store is the failure knowledge store: one JSON document per test
// case under <root>/testcases and free-form analysis records under
// <root>/analysis.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/failure-kb/internal/model"
)

const (
	testCasesDirName = "testcases"
	analysisDirName  = "analysis"

	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// Store reads and writes knowledge-store documents on disk. It holds no
// in-memory cache; every operation is a full read-modify-write of one file or
// a scan of all files. A single writer process is assumed.
type Store struct {
	root         string
	testCasesDir string
	analysisDir  string

	log *zap.Logger
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the diagnostic logger. Swallowed corrupt records and
// best-effort write failures are reported here.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New opens the knowledge store rooted at root, creating its directories.
func New(root string, opts ...Option) (*Store, error) {
	s := &Store{
		root:         root,
		testCasesDir: filepath.Join(root, testCasesDirName),
		analysisDir:  filepath.Join(root, analysisDirName),
		log:          zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.ensureLayout(); err != nil {
		return nil, err
	}
	return s, nil
}

// Root returns the storage root directory.
func (s *Store) Root() string { return s.root }

// TestCasesDir returns the directory holding test-case documents.
func (s *Store) TestCasesDir() string { return s.testCasesDir }

// AnalysisDir returns the directory holding analysis records.
func (s *Store) AnalysisDir() string { return s.analysisDir }

// TestCasePath maps a test-case name to its document path.
func (s *Store) TestCasePath(testCase string) string {
	return filepath.Join(s.testCasesDir, TestCaseFileName(testCase))
}

func (s *Store) ensureLayout() error {
	for _, dir := range []string{s.testCasesDir, s.analysisDir} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return eris.Wrapf(err, "store: create %s", dir)
		}
	}
	return nil
}

// readDocument decodes the document at path. Missing, unreadable and
// malformed files all return an error; callers decide whether to swallow it.
func (s *Store) readDocument(path string) (*model.TestCaseDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: read %s", path)
	}
	var doc model.TestCaseDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "store: decode %s", path)
	}
	normalizeDocument(&doc)
	return &doc, nil
}

// loadOrCreate returns the document at path, or an empty shell for testCase
// when the file is absent or corrupt.
func (s *Store) loadOrCreate(path, testCase string, now model.Timestamp) *model.TestCaseDocument {
	doc, err := s.readDocument(path)
	if err == nil {
		if doc.TestCase == "" {
			doc.TestCase = testCase
		}
		return doc
	}
	if !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("store: discarding unreadable test case document",
			zap.String("path", path),
			zap.Error(err),
		)
	}
	return &model.TestCaseDocument{
		TestCase:       testCase,
		Created:        now,
		FailureHistory: []model.FailureRecord{},
	}
}

// persist refreshes last_updated, re-sorts the history by recency and
// rewrites the whole file.
func (s *Store) persist(path string, doc *model.TestCaseDocument) error {
	doc.LastUpdated = model.NewTimestamp(s.now())
	normalizeDocument(doc)
	sortByRecency(doc.FailureHistory)

	data, err := encodeJSON(doc)
	if err != nil {
		return eris.Wrap(err, "store: encode test case document")
	}
	if err := atomicWriteFile(path, data, filePerm); err != nil {
		return eris.Wrapf(err, "store: write %s", path)
	}
	return nil
}

// testCaseFiles lists document paths in name order.
func (s *Store) testCaseFiles() ([]string, error) {
	entries, err := os.ReadDir(s.testCasesDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "store: list test cases")
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == recordExt {
			paths = append(paths, filepath.Join(s.testCasesDir, e.Name()))
		}
	}
	return paths, nil
}

// scan calls fn for every readable document. Unreadable files are logged and
// skipped.
func (s *Store) scan(fn func(path string, doc *model.TestCaseDocument) bool) error {
	paths, err := s.testCaseFiles()
	if err != nil {
		return err
	}
	for _, path := range paths {
		doc, err := s.readDocument(path)
		if err != nil {
			s.log.Warn("store: skipping unreadable test case document",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		if !fn(path, doc) {
			return nil
		}
	}
	return nil
}

// ListTestCases returns every readable test-case document in file-name order.
func (s *Store) ListTestCases() ([]*model.TestCaseDocument, error) {
	var docs []*model.TestCaseDocument
	err := s.scan(func(_ string, doc *model.TestCaseDocument) bool {
		docs = append(docs, doc)
		return true
	})
	return docs, err
}

func normalizeDocument(doc *model.TestCaseDocument) {
	if doc.FailureHistory == nil {
		doc.FailureHistory = []model.FailureRecord{}
	}
	for i := range doc.FailureHistory {
		rec := &doc.FailureHistory[i]
		if rec.RecentOccurrences == nil {
			rec.RecentOccurrences = []model.Occurrence{}
		}
		for j := range rec.RecentOccurrences {
			if rec.RecentOccurrences[j].TesterNotes == nil {
				rec.RecentOccurrences[j].TesterNotes = []model.TesterNote{}
			}
		}
	}
	doc.UniqueErrors = len(doc.FailureHistory)
}

// sortByRecency orders records most-recently-active first.
func sortByRecency(records []model.FailureRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Activity().After(records[j].Activity().Time)
	})
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
