package stresstest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet   = "Summary"
	questionsSheet = "Questions"
)

// WriteXLSX writes the report as a workbook with a per-scenario summary sheet
// and a per-question detail sheet. Diverging scenarios are highlighted.
func WriteXLSX(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("naming summary sheet: %w", err)
	}
	if _, err := f.NewSheet(questionsSheet); err != nil {
		return fmt.Errorf("creating questions sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	failed, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFC7CE"}},
	})
	if err != nil {
		return fmt.Errorf("creating failure style: %w", err)
	}

	if err := writeSummary(f, r, header, failed); err != nil {
		return err
	}
	if err := writeQuestions(f, r, header); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, r Report, header, failed int) error {
	rows := [][]any{
		{"Overall status", string(r.OverallStatus)},
		{},
		{"Scenario", "Negative", "Expected %", "Actual %", "Delta", "Passed", "Error"},
	}
	for _, s := range r.Scenarios {
		rows = append(rows, []any{s.Label, s.Negative, s.ExpectedPercent, s.ActualPercent, s.Delta, s.Passed, s.Error})
	}
	if err := setRows(f, summarySheet, rows); err != nil {
		return err
	}

	if err := f.SetCellStyle(summarySheet, "A1", "A1", header); err != nil {
		return fmt.Errorf("styling summary: %w", err)
	}
	if err := f.SetCellStyle(summarySheet, "A3", "G3", header); err != nil {
		return fmt.Errorf("styling summary: %w", err)
	}
	for i, s := range r.Scenarios {
		if s.Passed {
			continue
		}
		row := i + 4
		if err := f.SetCellStyle(summarySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("G%d", row), failed); err != nil {
			return fmt.Errorf("styling scenario %q: %w", s.Label, err)
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 32); err != nil {
		return fmt.Errorf("sizing summary: %w", err)
	}
	return nil
}

func writeQuestions(f *excelize.File, r Report, header int) error {
	rows := [][]any{
		{"Scenario", "Question ID", "Question", "User answer", "Correct", "Reason", "Detail", "Matched answer"},
	}
	for _, s := range r.Scenarios {
		for _, q := range s.Questions {
			rows = append(rows, []any{s.Label, q.QuestionID, q.Question, q.UserAnswer, q.IsCorrect, string(q.Reason), q.Detail, q.MatchedAnswer})
		}
	}
	if err := setRows(f, questionsSheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(questionsSheet, "A1", "H1", header); err != nil {
		return fmt.Errorf("styling questions: %w", err)
	}
	if err := f.SetColWidth(questionsSheet, "A", "D", 28); err != nil {
		return fmt.Errorf("sizing questions: %w", err)
	}
	return nil
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
