package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PassageRecord is one row of a toll billing export: a gate crossing and
// what was charged for it.
type PassageRecord struct {
	ContractID      string
	InvoiceID       string
	TagID           string
	RegistrationID  string
	CrossedAt       time.Time
	ChargedAt       time.Time // zero if the export left it empty
	Amount          decimal.Decimal
	Tax             decimal.Decimal
	StationID       string
	StationFile     string
	StationOperator string
	Row             int // source line, the header is line 1
}

// ClassifiedRecord is a PassageRecord with its reconciliation flags.
type ClassifiedRecord struct {
	PassageRecord
	Gap        *time.Duration // nil when there is no preceding crossing
	LongGap    bool
	Charged    bool
	Consistent bool
	FreePass   bool
	Overcharge bool
}

// IsFirst reports whether the record had no predecessor in its dataset.
func (c ClassifiedRecord) IsFirst() bool { return c.Gap == nil }

// GapString formats the gap as H:MM:SS, or "" for the first record.
// Gaps of a day or more keep counting hours: 26:00:00.
func (c ClassifiedRecord) GapString() string {
	if c.Gap == nil {
		return ""
	}
	d := c.Gap.Round(time.Second)
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%s%d:%02d:%02d", sign, h, m, s)
}

// Dataset is the reconciled content of one billing export file.
type Dataset struct {
	Source            string // file path
	Name              string // file name without extension
	Records           []ClassifiedRecord
	NeedsManualReview bool
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.Records) }
