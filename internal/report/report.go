// Package report summarizes reconciled datasets for people and for export.
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tollcheck/tollcheck/internal/model"
)

// Entry is one passage listed in a report.
type Entry struct {
	Row       int
	CrossedAt time.Time
	StationID string
	Amount    decimal.Decimal
}

// Report is the reconciliation status of one export file.
type Report struct {
	Source            string
	NeedsManualReview bool
	ContractIDs       []string
	InvoiceIDs        []string
	RegistrationIDs   []string
	TagIDs            []string
	Records           int
	Charged           int
	Total             decimal.Decimal
	FreePasses        []Entry // informational
	Overcharges       []Entry // need manual follow-up
}

// TotalDisplay returns the total rounded to one decimal.
func (r Report) TotalDisplay() string {
	return r.Total.StringFixed(1)
}

// Summarize builds the report for a reconciled dataset. Identifier lists
// keep first-seen order; passage lists keep crossing order.
func Summarize(ds *model.Dataset) Report {
	r := Report{
		Source:            ds.Source,
		NeedsManualReview: ds.NeedsManualReview,
		Records:           len(ds.Records),
		Total:             decimal.Zero,
	}

	contracts := newDistinct()
	invoices := newDistinct()
	registrations := newDistinct()
	tags := newDistinct()

	for _, rec := range ds.Records {
		contracts.add(rec.ContractID)
		invoices.add(rec.InvoiceID)
		registrations.add(rec.RegistrationID)
		tags.add(rec.TagID)

		r.Total = r.Total.Add(rec.Amount)
		if rec.Charged {
			r.Charged++
		}
		if rec.FreePass {
			r.FreePasses = append(r.FreePasses, entryFor(rec))
		}
		if rec.Overcharge {
			r.Overcharges = append(r.Overcharges, entryFor(rec))
		}
	}

	r.ContractIDs = contracts.values
	r.InvoiceIDs = invoices.values
	r.RegistrationIDs = registrations.values
	r.TagIDs = tags.values
	return r
}

func entryFor(rec model.ClassifiedRecord) Entry {
	return Entry{
		Row:       rec.Row,
		CrossedAt: rec.CrossedAt,
		StationID: rec.StationID,
		Amount:    rec.Amount,
	}
}

type distinct struct {
	seen   map[string]bool
	values []string
}

func newDistinct() *distinct {
	return &distinct{seen: make(map[string]bool)}
}

func (d *distinct) add(v string) {
	if d.seen[v] {
		return
	}
	d.seen[v] = true
	d.values = append(d.values, v)
}
