package model

// Classification is a tester's verdict on an occurrence.
type Classification string

const (
	ClassificationBug    Classification = "bug"
	ClassificationNotBug Classification = "not_bug"
)

// ClassificationFor maps an isBug flag to its classification label.
func ClassificationFor(isBug bool) Classification {
	if isBug {
		return ClassificationBug
	}
	return ClassificationNotBug
}

// FailureObservation is one reported instance of a failing test, as delivered
// by the upstream test-reporting service.
type FailureObservation struct {
	TestCase   string `json:"testCase" yaml:"testCase"`
	Error      string `json:"error" yaml:"error"`
	StackTrace string `json:"stackTrace" yaml:"stackTrace"`
	Status     string `json:"status" yaml:"status"`
	FilePath   string `json:"filePath" yaml:"filePath"`
	FailedStep string `json:"failedStep" yaml:"failedStep"`
}

// TesterNote is an append-only note attached to an occurrence.
type TesterNote struct {
	Timestamp      Timestamp      `json:"timestamp" yaml:"timestamp"`
	Note           string         `json:"note" yaml:"note"`
	Classification Classification `json:"classification" yaml:"classification"`
}

// Occurrence is one non-duplicate sighting of a failure.
type Occurrence struct {
	Timestamp        Timestamp    `json:"timestamp" yaml:"timestamp"`
	Error            string       `json:"error" yaml:"error"`
	StackTrace       string       `json:"stackTrace" yaml:"stackTrace"`
	IsBug            *bool        `json:"isBug" yaml:"isBug"` // nil until a tester classifies it
	BugStatusUpdated *Timestamp   `json:"bug_status_updated,omitempty" yaml:"bug_status_updated,omitempty"`
	TesterNotes      []TesterNote `json:"tester_notes" yaml:"tester_notes"`
}

// FailureRecord groups every occurrence of one failure identity inside a
// test-case document.
type FailureRecord struct {
	FailureID         string       `json:"failure_id" yaml:"failure_id"`
	FirstSeen         Timestamp    `json:"first_seen" yaml:"first_seen"`
	LastSeen          Timestamp    `json:"last_seen" yaml:"last_seen"`
	OccurrenceCount   int          `json:"occurrence_count" yaml:"occurrence_count"`
	Status            string       `json:"status" yaml:"status"`
	FilePath          string       `json:"filePath" yaml:"filePath"`
	FailedStep        string       `json:"failedStep" yaml:"failedStep"`
	RecentOccurrences []Occurrence `json:"recent_occurrences" yaml:"recent_occurrences"`
}

// Latest returns the most recently appended occurrence, or nil.
func (r *FailureRecord) Latest() *Occurrence {
	if len(r.RecentOccurrences) == 0 {
		return nil
	}
	return &r.RecentOccurrences[len(r.RecentOccurrences)-1]
}

// LatestError returns the error text of the most recent occurrence.
func (r *FailureRecord) LatestError() string {
	if occ := r.Latest(); occ != nil {
		return occ.Error
	}
	return ""
}

// Activity is the instant used to order records by recency.
func (r *FailureRecord) Activity() Timestamp {
	if !r.LastSeen.IsZero() {
		return r.LastSeen
	}
	return r.FirstSeen
}

// TestCaseDocument is the persisted aggregate for one test case.
type TestCaseDocument struct {
	TestCase       string          `json:"testCase" yaml:"testCase"`
	Created        Timestamp       `json:"created" yaml:"created"`
	LastUpdated    Timestamp       `json:"last_updated" yaml:"last_updated"`
	TotalFailures  int             `json:"total_failures" yaml:"total_failures"`
	UniqueErrors   int             `json:"unique_errors" yaml:"unique_errors"`
	FailureHistory []FailureRecord `json:"failure_history" yaml:"failure_history"`
}

// Find returns the record with the given id, or nil.
func (d *TestCaseDocument) Find(failureID string) *FailureRecord {
	for i := range d.FailureHistory {
		if d.FailureHistory[i].FailureID == failureID {
			return &d.FailureHistory[i]
		}
	}
	return nil
}

// TestCaseFailure pairs a failure record with the test case that owns it.
type TestCaseFailure struct {
	TestCase string        `json:"testCase" yaml:"testCase"`
	Failure  FailureRecord `json:"failure" yaml:"failure"`
}
