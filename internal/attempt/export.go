package attempt

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	answersSheet = "Answers"
)

var (
	summaryHeader = []any{"Attempt", "Submitted At (UTC)", "Score", "Total", "Percent"}
	answersHeader = []any{"Attempt", "Question", "User Answer", "Correct Answer", "Correct", "Similarity", "Concept", "Explanation"}
)

// ExportXLSX writes a workbook with one summary row per attempt and one
// answer row per graded item.
func ExportXLSX(w io.Writer, quizID string, attempts []Attempt) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(answersSheet); err != nil {
		return fmt.Errorf("create answers sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := f.SetSheetRow(summarySheet, "A1", &[]any{"Quiz", quizID}); err != nil {
		return err
	}
	if err := writeHeader(f, summarySheet, 3, summaryHeader, bold); err != nil {
		return err
	}
	if err := writeHeader(f, answersSheet, 1, answersHeader, bold); err != nil {
		return err
	}

	answerRow := 2
	for i, a := range attempts {
		row := []any{a.ID, a.CreatedAt.UTC().Format(time.RFC3339), a.Score, a.Total, percent(a.Score, a.Total)}
		if err := setRow(f, summarySheet, i+4, row); err != nil {
			return err
		}

		for _, r := range a.Results {
			explanation := ""
			if r.Explanation != nil {
				explanation = *r.Explanation
			}
			row := []any{a.ID, r.Question, r.UserAnswer, r.CorrectAnswer, r.Correct, r.SimilarityScore, r.Concept, explanation}
			if err := setRow(f, answersSheet, answerRow, row); err != nil {
				return err
			}
			answerRow++
		}
	}

	_ = f.SetColWidth(summarySheet, "A", "B", 38)
	_ = f.SetColWidth(answersSheet, "B", "D", 40)
	_ = f.SetColWidth(answersSheet, "H", "H", 60)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, row int, header []any, style int) error {
	if err := setRow(f, sheet, row, header); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(header), row)
	return f.SetCellStyle(sheet, first, last, style)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func percent(score, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(score)*1000/float64(total)) / 10
}
