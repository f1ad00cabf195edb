package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/tollcheck/tollcheck/internal/model"
)

// Columns is the canonical header of an AutoPASS billing export.
var Columns = []string{
	"avtalenr", "fakturanr", "brikkenr", "regnr", "passeringstid",
	"belastningstid", "belop", "mva", "bomstasjon",
	"bomstasjonfil", "bomstasjonsoperator",
}

const (
	autopassNumFields  = 11
	colContract        = 0
	colInvoice         = 1
	colTag             = 2
	colRegistration    = 3
	colCrossedAt       = 4
	colChargedAt       = 5
	colAmount          = 6
	colTax             = 7
	colStation         = 8
	colStationFile     = 9
	colStationOperator = 10
)

// ErrNegativeAmount is returned for rows charging a negative amount.
var ErrNegativeAmount = errors.New("amount is negative")

// RowError describes a field that could not be parsed.
type RowError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: parsing %s %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// AutoPASSOptions controls how an AutoPASS export is decoded.
type AutoPASSOptions struct {
	Delimiter        rune
	Encoding         encoding.Encoding
	Location         *time.Location
	TimestampLayouts []string
	CheckHeaderNames bool
}

// DefaultTimestampLayouts are the timestamp formats seen in AutoPASS exports.
var DefaultTimestampLayouts = []string{
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// DefaultAutoPASSOptions returns options for semicolon separated cp1252
// exports with Norwegian local timestamps.
func DefaultAutoPASSOptions() AutoPASSOptions {
	loc, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		loc = time.Local
	}
	return AutoPASSOptions{
		Delimiter:        ';',
		Encoding:         charmap.Windows1252,
		Location:         loc,
		TimestampLayouts: DefaultTimestampLayouts,
		CheckHeaderNames: true,
	}
}

// LookupEncoding returns the text encoding for a configuration name.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1, nil
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15, nil
	case "utf-8", "utf8":
		return unicode.UTF8BOM, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// AutoPASSParser parses AutoPASS toll billing exports.
type AutoPASSParser struct {
	opts AutoPASSOptions
}

// NewAutoPASSParser returns a parser using opts. Zero fields fall back to
// the defaults.
func NewAutoPASSParser(opts AutoPASSOptions) *AutoPASSParser {
	def := DefaultAutoPASSOptions()
	if opts.Delimiter == 0 {
		opts.Delimiter = def.Delimiter
	}
	if opts.Encoding == nil {
		opts.Encoding = def.Encoding
	}
	if opts.Location == nil {
		opts.Location = def.Location
	}
	if len(opts.TimestampLayouts) == 0 {
		opts.TimestampLayouts = def.TimestampLayouts
	}
	return &AutoPASSParser{opts: opts}
}

// Format returns the parser name.
func (p *AutoPASSParser) Format() string { return "autopass" }

// Parse reads an AutoPASS export and returns its rows in input order.
// The first row is the header. Any unparseable row fails the whole file.
func (p *AutoPASSParser) Parse(r io.Reader) ([]model.PassageRecord, error) {
	cr := csv.NewReader(transform.NewReader(r, p.opts.Encoding.NewDecoder()))
	cr.Comma = p.opts.Delimiter
	cr.FieldsPerRecord = autopassNumFields

	records, err := cr.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) && errors.Is(perr.Err, csv.ErrFieldCount) {
			return nil, fmt.Errorf("%w: line %d: expected %d fields", ErrSchema, perr.Line, autopassNumFields)
		}
		return nil, fmt.Errorf("reading autopass CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	if p.opts.CheckHeaderNames {
		if err := checkHeader(records[0]); err != nil {
			return nil, err
		}
	}

	if len(records) == 1 {
		return nil, nil
	}

	passages := make([]model.PassageRecord, 0, len(records)-1)
	for i, rec := range records[1:] {
		passage, err := p.parseRow(rec, i+2)
		if err != nil {
			return nil, err
		}
		passages = append(passages, passage)
	}
	return passages, nil
}

func (p *AutoPASSParser) parseRow(rec []string, row int) (model.PassageRecord, error) {
	fail := func(col int, err error) (model.PassageRecord, error) {
		return model.PassageRecord{}, &RowError{Row: row, Column: Columns[col], Value: rec[col], Err: err}
	}

	crossedAt, err := p.parseTime(rec[colCrossedAt])
	if err != nil {
		return fail(colCrossedAt, err)
	}

	var chargedAt time.Time
	if strings.TrimSpace(rec[colChargedAt]) != "" {
		chargedAt, err = p.parseTime(rec[colChargedAt])
		if err != nil {
			return fail(colChargedAt, err)
		}
	}

	amount, err := parseDecimal(rec[colAmount])
	if err != nil {
		return fail(colAmount, err)
	}
	if amount.IsNegative() {
		return fail(colAmount, ErrNegativeAmount)
	}

	tax := decimal.Zero
	if strings.TrimSpace(rec[colTax]) != "" {
		tax, err = parseDecimal(rec[colTax])
		if err != nil {
			return fail(colTax, err)
		}
	}

	return model.PassageRecord{
		ContractID:      strings.TrimSpace(rec[colContract]),
		InvoiceID:       strings.TrimSpace(rec[colInvoice]),
		TagID:           strings.TrimSpace(rec[colTag]),
		RegistrationID:  strings.TrimSpace(rec[colRegistration]),
		CrossedAt:       crossedAt,
		ChargedAt:       chargedAt,
		Amount:          amount,
		Tax:             tax,
		StationID:       strings.TrimSpace(rec[colStation]),
		StationFile:     strings.TrimSpace(rec[colStationFile]),
		StationOperator: strings.TrimSpace(rec[colStationOperator]),
		Row:             row,
	}, nil
}

func (p *AutoPASSParser) parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range p.opts.TimestampLayouts {
		t, err := time.ParseInLocation(layout, s, p.opts.Location)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// parseDecimal parses a decimal-comma number such as "1 234,50".
func parseDecimal(s string) (decimal.Decimal, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	return decimal.NewFromString(strings.Replace(clean, ",", ".", 1))
}

var headerFold = strings.NewReplacer(
	"\ufeff", "", "ø", "o", "å", "a", "æ", "ae",
	".", "", "_", "", " ", "", "-", "",
)

func normalizeHeader(s string) string {
	return headerFold.Replace(strings.ToLower(strings.TrimSpace(s)))
}

func checkHeader(header []string) error {
	for i, name := range header {
		if got := normalizeHeader(name); got != Columns[i] {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrSchema, i+1, name, Columns[i])
		}
	}
	return nil
}
