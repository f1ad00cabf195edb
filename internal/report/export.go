package report

import (
	"github.com/tollcheck/tollcheck/internal/importer"
	"github.com/tollcheck/tollcheck/internal/model"
)

// RawColumns heads the export view of unclassified records.
var RawColumns = append([]string{"row"}, importer.Columns...)

// ExportColumns heads the export view of classified records.
var ExportColumns = append(append([]string{}, RawColumns...),
	"gap", "long_gap", "charged", "consistent", "free_pass", "overcharge")

// RawCells returns the export cells of a record: time.Time for timestamps,
// float64 for money, "" for an absent charge time.
func RawCells(rec model.PassageRecord) []any {
	var chargedAt any = ""
	if !rec.ChargedAt.IsZero() {
		chargedAt = rec.ChargedAt
	}
	return []any{
		rec.Row,
		rec.ContractID,
		rec.InvoiceID,
		rec.TagID,
		rec.RegistrationID,
		rec.CrossedAt,
		chargedAt,
		rec.Amount.InexactFloat64(),
		rec.Tax.InexactFloat64(),
		rec.StationID,
		rec.StationFile,
		rec.StationOperator,
	}
}

// ExportCells returns the export cells of a classified record.
func ExportCells(rec model.ClassifiedRecord) []any {
	return append(RawCells(rec.PassageRecord),
		rec.GapString(),
		rec.LongGap,
		rec.Charged,
		rec.Consistent,
		rec.FreePass,
		rec.Overcharge,
	)
}

// ExportRows returns the export view of every record of ds, in order.
func ExportRows(ds *model.Dataset) [][]any {
	rows := make([][]any, len(ds.Records))
	for i, rec := range ds.Records {
		rows[i] = ExportCells(rec)
	}
	return rows
}
