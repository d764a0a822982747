// Package export renders a user's health log as an xlsx workbook.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"marrowai-server/internal/analytics"
	"marrowai-server/internal/models"
	"marrowai-server/internal/risk"
)

const (
	LogSheet     = "Health Log"
	SummarySheet = "Summary"
	// ContentType is the MIME type of the generated workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// LogHeader is the first row of the log sheet.
var LogHeader = []string{
	"Date",
	"Risk Score",
	"Risk Level",
	"Symptoms",
	"Report Type",
	"WBC",
	"RBC",
	"Hemoglobin",
	"Platelets",
	"Notes",
}

var logColumnWidths = []float64{20, 12, 12, 40, 18, 10, 10, 12, 12, 40}

// Workbook builds the export for entries already filtered to period.
func Workbook(entries []models.HealthEntry, summary analytics.Summary, period analytics.Period) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", LogSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, LogSheet, 1, toAny(LogHeader)); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(LogHeader), 1)
	if err := f.SetCellStyle(LogSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("set header style: %w", err)
	}
	for i, width := range logColumnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(LogSheet, col, col, width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for i, e := range entries {
		if err := writeRow(f, LogSheet, i+2, logRow(e)); err != nil {
			return nil, err
		}
	}

	if err := writeSummary(f, summary, period, headerStyle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func logRow(e models.HealthEntry) []interface{} {
	row := []interface{}{
		e.Date.UTC().Format("2006-01-02 15:04"),
		e.RiskScore,
		string(risk.LevelFor(e.RiskScore)),
		strings.Join(e.Symptoms, ", "),
		e.ReportType,
	}
	if bc := e.Labs(); bc != nil {
		row = append(row, labCell(bc.WBC), labCell(bc.RBC), labCell(bc.Hemoglobin), labCell(bc.Platelets))
	} else {
		row = append(row, nil, nil, nil, nil)
	}
	return append(row, e.Notes)
}

func labCell(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func writeSummary(f *excelize.File, s analytics.Summary, period analytics.Period, headerStyle int) error {
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Period", string(period)},
		{"Entries", s.Entries},
		{"Average Risk Score", s.AverageRiskScore},
		{"High Risk Days", s.HighRiskDays},
		{"Total Reports", s.TotalReports},
		{"Symptoms Logged", s.SymptomCount},
	}
	headers := []int{1}

	appendTable := func(title, unit string, counts []analytics.Count) {
		rows = append(rows, nil, []interface{}{title, unit})
		headers = append(headers, len(rows))
		for _, c := range counts {
			rows = append(rows, []interface{}{c.Name, c.Count})
		}
	}
	appendTable("Top Symptom", "Entries", s.TopSymptoms)
	appendTable("Report Type", "Reports", s.ReportTypes)

	for i, row := range rows {
		if err := writeRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}
	for _, r := range headers {
		if err := f.SetCellStyle(SummarySheet, fmt.Sprintf("A%d", r), fmt.Sprintf("B%d", r), headerStyle); err != nil {
			return fmt.Errorf("set summary style: %w", err)
		}
	}
	return f.SetColWidth(SummarySheet, "A", "A", 24)
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toAny(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
