package model

// AnalysisTypeLatestResult tags project analyses produced from a harvest of the
// latest test results.
const AnalysisTypeLatestResult = "latest_result_analysis"

// AnalysisRecord is a saved analysis of a single failure.
type AnalysisRecord struct {
	AnalysisID string    `json:"analysis_id" yaml:"analysis_id"`
	FailureID  string    `json:"failure_id" yaml:"failure_id"`
	Timestamp  Timestamp `json:"timestamp" yaml:"timestamp"`
	Analysis   any       `json:"analysis" yaml:"analysis"`
}

// ProjectAnalysisRecord is a saved project-level analysis.
type ProjectAnalysisRecord struct {
	AnalysisID   string    `json:"analysis_id" yaml:"analysis_id"`
	ProjectName  string    `json:"project_name" yaml:"project_name"`
	Timestamp    Timestamp `json:"timestamp" yaml:"timestamp"`
	AnalysisType string    `json:"analysis_type" yaml:"analysis_type"`
	Data         any       `json:"data" yaml:"data"`
}
