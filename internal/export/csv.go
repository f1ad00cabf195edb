package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tollcheck/tollcheck/internal/model"
	"github.com/tollcheck/tollcheck/internal/report"
)

const csvTimeLayout = "2006-01-02 15:04:05"

// MarshalRecord converts a classified record to a CSV row in
// report.ExportColumns order.
func MarshalRecord(rec model.ClassifiedRecord) []string {
	chargedAt := ""
	if !rec.ChargedAt.IsZero() {
		chargedAt = rec.ChargedAt.Format(csvTimeLayout)
	}
	return []string{
		strconv.Itoa(rec.Row),
		rec.ContractID,
		rec.InvoiceID,
		rec.TagID,
		rec.RegistrationID,
		rec.CrossedAt.Format(csvTimeLayout),
		chargedAt,
		rec.Amount.String(),
		rec.Tax.String(),
		rec.StationID,
		rec.StationFile,
		rec.StationOperator,
		rec.GapString(),
		strconv.FormatBool(rec.LongGap),
		strconv.FormatBool(rec.Charged),
		strconv.FormatBool(rec.Consistent),
		strconv.FormatBool(rec.FreePass),
		strconv.FormatBool(rec.Overcharge),
	}
}

// WriteDataset writes ds as CSV, header included.
func WriteDataset(w io.Writer, ds *model.Dataset) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(report.ExportColumns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, rec := range ds.Records {
		if err := cw.Write(MarshalRecord(rec)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDatasetFile writes ds to <dir>/<name>.csv and returns the path.
func WriteDatasetFile(dir string, ds *model.Dataset) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating csv dir: %w", err)
	}

	path := filepath.Join(dir, ds.Name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteDataset(f, ds); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, f.Close()
}
