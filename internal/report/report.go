// Package report renders knowledge store statistics for people.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/failure-kb/internal/model"
)

// Source supplies the statistics a report is built from.
type Source interface {
	FailureStats() (*model.FailureStats, error)
	BugStatistics() (*model.BugStats, error)
}

// Report is a point-in-time summary of the knowledge store.
type Report struct {
	Title       string              `json:"title" yaml:"title"`
	GeneratedAt model.Timestamp     `json:"generated_at" yaml:"generated_at"`
	Failures    *model.FailureStats `json:"failures" yaml:"failures"`
	Bugs        *model.BugStats     `json:"bugs" yaml:"bugs"`
}

// Build collects statistics from src.
func Build(src Source, title string, now time.Time) (*Report, error) {
	failures, err := src.FailureStats()
	if err != nil {
		return nil, eris.Wrap(err, "report: failure stats")
	}
	bugs, err := src.BugStatistics()
	if err != nil {
		return nil, eris.Wrap(err, "report: bug stats")
	}
	if title == "" {
		title = "Test Failure Report"
	}
	return &Report{
		Title:       title,
		GeneratedAt: model.NewTimestamp(now),
		Failures:    failures,
		Bugs:        bugs,
	}, nil
}

// label turns an identifier such as "not_bug" into "Not Bug".
func label(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	p := message.NewPrinter(language.English)

	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	fmt.Fprintf(&b, "_Generated %s_\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))

	f := r.Failures
	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---:|\n")
	p.Fprintf(&b, "| Test cases | %d |\n", f.TotalTestCases)
	p.Fprintf(&b, "| Failures | %d |\n", f.TotalFailures)
	p.Fprintf(&b, "| Unique errors | %d |\n", f.TotalUniqueErrors)
	p.Fprintf(&b, "| Classification rate | %.1f%% |\n\n", r.Bugs.ClassificationRate)

	writeCounts(&b, p, "Failure Types", "File", f.FailureTypes)
	writeCounts(&b, p, "Most Common Errors", "Error", f.MostCommonErrors)

	b.WriteString("## Top Failing Test Cases\n\n")
	if len(f.TopFailingTestCases) == 0 {
		b.WriteString("No failures recorded.\n\n")
	} else {
		b.WriteString("| Test case | Failures | Unique errors |\n|---|---:|---:|\n")
		for _, tc := range f.TopFailingTestCases {
			p.Fprintf(&b, "| %s | %d | %d |\n", escapeCell(tc.TestCase), tc.TotalFailures, tc.UniqueErrors)
		}
		b.WriteString("\n")
	}

	bs := r.Bugs
	b.WriteString("## Classification\n\n")
	b.WriteString("| Status | Failures |\n|---|---:|\n")
	p.Fprintf(&b, "| %s | %d |\n", label(string(model.ClassificationBug)), bs.ClassifiedAsBugs)
	p.Fprintf(&b, "| %s | %d |\n", label(string(model.ClassificationNotBug)), bs.ClassifiedAsNotBugs)
	p.Fprintf(&b, "| %s | %d |\n\n", label("pending"), bs.PendingClassification)

	writeClassified(&b, p, "Test Cases With Bugs", bs.TestCasesWithBugs)
	writeClassified(&b, p, "Test Cases Without Bugs", bs.TestCasesWithoutBugs)

	return b.String()
}

func writeCounts(b *strings.Builder, p *message.Printer, heading, keyCol string, entries []model.CountEntry) {
	fmt.Fprintf(b, "## %s\n\n", heading)
	if len(entries) == 0 {
		b.WriteString("None.\n\n")
		return
	}
	fmt.Fprintf(b, "| %s | Count |\n|---|---:|\n", keyCol)
	for _, e := range entries {
		p.Fprintf(b, "| %s | %d |\n", escapeCell(e.Key), e.Count)
	}
	b.WriteString("\n")
}

func writeClassified(b *strings.Builder, p *message.Printer, heading string, rows []model.TestCaseClassification) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", heading)
	b.WriteString("| Test case | Bugs | Not bugs | Pending |\n|---|---:|---:|---:|\n")
	for _, tc := range rows {
		p.Fprintf(b, "| %s | %d | %d | %d |\n", escapeCell(tc.TestCase), tc.Bugs, tc.NonBugs, tc.Pending)
	}
	b.WriteString("\n")
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "\r", "")

func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}
