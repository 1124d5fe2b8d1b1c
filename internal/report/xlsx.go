package report

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/failure-kb/internal/model"
)

// Sheet names of the workbook written by WriteXLSX.
const (
	SheetSummary        = "Summary"
	SheetFailureTypes   = "Failure Types"
	SheetCommonErrors   = "Common Errors"
	SheetTestCases      = "Test Cases"
	SheetClassification = "Classification"
)

// WriteXLSX saves the report as a workbook at path.
func (r *Report) WriteXLSX(path string) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "xlsx: add summary sheet")
	}
	addRow(summary, "Metric", "Value")
	addRow(summary, "Title", r.Title)
	addRow(summary, "Generated", r.GeneratedAt.String())
	addIntRow(summary, "Test cases", r.Failures.TotalTestCases)
	addIntRow(summary, "Failures", r.Failures.TotalFailures)
	addIntRow(summary, "Unique errors", r.Failures.TotalUniqueErrors)
	row := summary.AddRow()
	row.AddCell().SetString("Classification rate (%)")
	row.AddCell().SetFloat(r.Bugs.ClassificationRate)

	if err := addCountSheet(f, SheetFailureTypes, "File", r.Failures.FailureTypes); err != nil {
		return err
	}
	if err := addCountSheet(f, SheetCommonErrors, "Error", r.Failures.MostCommonErrors); err != nil {
		return err
	}

	tcs, err := f.AddSheet(SheetTestCases)
	if err != nil {
		return eris.Wrap(err, "xlsx: add test cases sheet")
	}
	addRow(tcs, "Test case", "Failures", "Unique errors")
	for _, tc := range r.Failures.TopFailingTestCases {
		row := tcs.AddRow()
		row.AddCell().SetString(tc.TestCase)
		row.AddCell().SetInt(tc.TotalFailures)
		row.AddCell().SetInt(tc.UniqueErrors)
	}

	cls, err := f.AddSheet(SheetClassification)
	if err != nil {
		return eris.Wrap(err, "xlsx: add classification sheet")
	}
	addRow(cls, "Test case", "Group", "Bugs", "Not bugs", "Pending")
	addClassified(cls, "with bugs", r.Bugs.TestCasesWithBugs)
	addClassified(cls, "without bugs", r.Bugs.TestCasesWithoutBugs)

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "xlsx: save file")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func addIntRow(sheet *xlsx.Sheet, key string, n int) {
	row := sheet.AddRow()
	row.AddCell().SetString(key)
	row.AddCell().SetInt(n)
}

func addCountSheet(f *xlsx.File, name, keyCol string, entries []model.CountEntry) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "xlsx: add %s sheet", name)
	}
	addRow(sheet, keyCol, "Count")
	for _, e := range entries {
		addIntRow(sheet, e.Key, e.Count)
	}
	return nil
}

func addClassified(sheet *xlsx.Sheet, group string, rows []model.TestCaseClassification) {
	for _, tc := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(tc.TestCase)
		row.AddCell().SetString(label(group))
		row.AddCell().SetInt(tc.Bugs)
		row.AddCell().SetInt(tc.NonBugs)
		row.AddCell().SetInt(tc.Pending)
	}
}
