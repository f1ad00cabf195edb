// Package export writes reconciled datasets to spreadsheet workbooks and
// CSV files.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tollcheck/tollcheck/internal/model"
	"github.com/tollcheck/tollcheck/internal/report"
)

// ErrNoSheets is returned when saving a workbook nothing was added to.
var ErrNoSheets = errors.New("workbook has no sheets")

const (
	defaultSheet = "Sheet1"
	maxSheetName = 31
)

// Workbook collects one sheet per export file.
type Workbook struct {
	file   *excelize.File
	taken  map[string]bool
	sheets []string
	bold   int
}

// NewWorkbook creates an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{
		file:  excelize.NewFile(),
		taken: make(map[string]bool),
		bold:  -1,
	}
}

// AddDataset adds a sheet with every classified record of ds and returns
// the sheet name used.
func (w *Workbook) AddDataset(ds *model.Dataset) (string, error) {
	return w.addSheet(ds.Name, report.ExportColumns, report.ExportRows(ds))
}

// AddRecords adds a sheet of unclassified records.
func (w *Workbook) AddRecords(name string, records []model.PassageRecord) (string, error) {
	rows := make([][]any, len(records))
	for i, rec := range records {
		rows[i] = report.RawCells(rec)
	}
	return w.addSheet(name, report.RawColumns, rows)
}

// Sheets returns the sheet names in insertion order.
func (w *Workbook) Sheets() []string {
	return append([]string(nil), w.sheets...)
}

// SaveAs writes the workbook to path.
func (w *Workbook) SaveAs(path string) error {
	if len(w.sheets) == 0 {
		return ErrNoSheets
	}
	if err := w.file.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook %s: %w", path, err)
	}
	return nil
}

// Close releases the workbook's resources.
func (w *Workbook) Close() error {
	return w.file.Close()
}

func (w *Workbook) addSheet(stem string, columns []string, rows [][]any) (string, error) {
	name := SheetName(stem, w.taken)
	if len(w.sheets) == 0 {
		if err := w.file.SetSheetName(defaultSheet, name); err != nil {
			return "", fmt.Errorf("naming sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return "", fmt.Errorf("creating sheet %s: %w", name, err)
	}
	w.taken[strings.ToLower(name)] = true
	w.sheets = append(w.sheets, name)

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := w.file.SetSheetRow(name, "A1", &header); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	if err := w.styleHeader(name); err != nil {
		return "", err
	}

	for i, row := range rows {
		cells := make([]any, len(row))
		for j, v := range row {
			if t, ok := v.(time.Time); ok {
				v = wallClock(t)
			}
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		if err := w.file.SetSheetRow(name, cell, &cells); err != nil {
			return "", fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return name, nil
}

func (w *Workbook) styleHeader(sheet string) error {
	if w.bold < 0 {
		id, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("creating header style: %w", err)
		}
		w.bold = id
	}
	if err := w.file.SetRowStyle(sheet, 1, 1, w.bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	return nil
}

// wallClock keeps the local clock reading of t; spreadsheet dates carry no
// zone.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

var sheetNameReplacer = strings.NewReplacer(
	"[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", `\`, "_",
)

// SheetName turns a file stem into a valid sheet name that is not in taken
// (keys are lower-cased names).
func SheetName(stem string, taken map[string]bool) string {
	name := strings.Trim(sheetNameReplacer.Replace(strings.TrimSpace(stem)), "'")
	if name == "" {
		name = "Sheet"
	}
	name = truncate(name, maxSheetName)

	candidate := name
	for i := 2; taken[strings.ToLower(candidate)]; i++ {
		suffix := fmt.Sprintf("~%d", i)
		candidate = truncate(name, maxSheetName-len(suffix)) + suffix
	}
	return candidate
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
