package model

// CountEntry is one row of a ranked count table.
type CountEntry struct {
	Key   string `json:"key" yaml:"key"`
	Count int    `json:"count" yaml:"count"`
}

// TestCaseCounts summarizes a single test case for the stats view.
type TestCaseCounts struct {
	TestCase      string `json:"testCase" yaml:"testCase"`
	TotalFailures int    `json:"total_failures" yaml:"total_failures"`
	UniqueErrors  int    `json:"unique_errors" yaml:"unique_errors"`
}

// FailureStats is the global aggregate over every test-case document.
type FailureStats struct {
	TotalTestCases      int              `json:"total_testcases" yaml:"total_testcases"`
	TotalFailures       int              `json:"total_failures" yaml:"total_failures"`
	TotalUniqueErrors   int              `json:"total_unique_errors" yaml:"total_unique_errors"`
	FailureTypes        []CountEntry     `json:"failure_types" yaml:"failure_types"`
	MostCommonErrors    []CountEntry     `json:"most_common_errors" yaml:"most_common_errors"`
	TopFailingTestCases []TestCaseCounts `json:"top_failing_testcases" yaml:"top_failing_testcases"`
}

// TestCaseClassification counts classifications within one test case.
type TestCaseClassification struct {
	TestCase string `json:"testCase" yaml:"testCase"`
	Bugs     int    `json:"bugs" yaml:"bugs"`
	NonBugs  int    `json:"non_bugs" yaml:"non_bugs"`
	Pending  int    `json:"pending" yaml:"pending"`
}

// BugStats summarizes tester classifications, judged on each record's most
// recent occurrence.
type BugStats struct {
	TotalFailures         int                      `json:"total_failures" yaml:"total_failures"`
	ClassifiedAsBugs      int                      `json:"classified_as_bugs" yaml:"classified_as_bugs"`
	ClassifiedAsNotBugs   int                      `json:"classified_as_not_bugs" yaml:"classified_as_not_bugs"`
	PendingClassification int                      `json:"pending_classification" yaml:"pending_classification"`
	ClassificationRate    float64                  `json:"bug_classification_rate" yaml:"bug_classification_rate"`
	TestCasesWithBugs     []TestCaseClassification `json:"testcases_with_bugs" yaml:"testcases_with_bugs"`
	TestCasesWithoutBugs  []TestCaseClassification `json:"testcases_without_bugs" yaml:"testcases_without_bugs"`
}

// ClassificationCounts tallies bug / not-bug / pending verdicts.
type ClassificationCounts struct {
	Bugs    int `json:"bugs" yaml:"bugs"`
	NotBugs int `json:"not_bugs" yaml:"not_bugs"`
	Pending int `json:"pending" yaml:"pending"`
}

// CurrentClassification is a failure's verdict as of its latest occurrence.
type CurrentClassification struct {
	IsBug       *bool      `json:"is_bug" yaml:"is_bug"`
	LastUpdated *Timestamp `json:"last_updated" yaml:"last_updated"`
}

// FailureActivity is the tester audit trail for one failure record.
type FailureActivity struct {
	FailureID             string                `json:"failure_id" yaml:"failure_id"`
	FirstSeen             Timestamp             `json:"first_seen" yaml:"first_seen"`
	LastSeen              Timestamp             `json:"last_seen" yaml:"last_seen"`
	OccurrenceCount       int                   `json:"occurrence_count" yaml:"occurrence_count"`
	CurrentClassification CurrentClassification `json:"current_classification" yaml:"current_classification"`
	TesterNotes           []TesterNote          `json:"tester_notes" yaml:"tester_notes"`
	NotesCount            int                   `json:"notes_count" yaml:"notes_count"`
	LatestError           string                `json:"latest_error" yaml:"latest_error"`
}

// TestCaseSummary is the header of a test-case document without its history.
type TestCaseSummary struct {
	Created       Timestamp `json:"created" yaml:"created"`
	LastUpdated   Timestamp `json:"last_updated" yaml:"last_updated"`
	TotalFailures int       `json:"total_failures" yaml:"total_failures"`
	UniqueErrors  int       `json:"unique_errors" yaml:"unique_errors"`
}

// TesterActivity is the complete classification history of a test case.
type TesterActivity struct {
	TestCase             string               `json:"test_case" yaml:"test_case"`
	Summary              TestCaseSummary      `json:"testcase_summary" yaml:"testcase_summary"`
	TotalNotes           int                  `json:"total_notes" yaml:"total_notes"`
	FailuresWithActivity int                  `json:"failures_with_activity" yaml:"failures_with_activity"`
	BugClassifications   ClassificationCounts `json:"bug_classifications" yaml:"bug_classifications"`
	FailuresWithNotes    []FailureActivity    `json:"failures_with_notes" yaml:"failures_with_notes"`
}

// WipeReport describes the outcome of a full knowledge-store wipe.
type WipeReport struct {
	TestCasesRemoved           int      `json:"testcases_removed" yaml:"testcases_removed"`
	AnalysisFilesRemoved       int      `json:"analysis_files_removed" yaml:"analysis_files_removed"`
	AnalysisDirectoriesRemoved int      `json:"analysis_directories_removed" yaml:"analysis_directories_removed"`
	Errors                     []string `json:"errors" yaml:"errors"`
	Success                    bool     `json:"success" yaml:"success"`
	Message                    string   `json:"message" yaml:"message"`
}
