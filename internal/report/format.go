package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-yaml"
	"github.com/olekukonko/tablewriter"

	"github.com/tollcheck/tollcheck/internal/model"
)

// Format names an output format for reports.
type Format string

const (
	// FormatText is the human readable status block.
	FormatText Format = "text"
	// FormatJSON writes one JSON document per report.
	FormatJSON Format = "json"
	// FormatYAML writes one YAML document per report.
	FormatYAML Format = "yaml"
)

const timeLayout = "2006-01-02 15:04:05"

// Formatter writes a report.
type Formatter interface {
	Format(w io.Writer, r Report) error
}

// NewFormatter returns the formatter for format.
func NewFormatter(format string, noColor bool) (Formatter, error) {
	switch Format(strings.ToLower(format)) {
	case FormatText, "":
		return &TextFormatter{NoColor: noColor}, nil
	case FormatJSON:
		return &JSONFormatter{Indent: "  "}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// TextFormatter writes the plain-text status block.
type TextFormatter struct {
	NoColor bool
}

// Format implements Formatter.
func (f *TextFormatter) Format(w io.Writer, r Report) error {
	title, section := f.styles(w)

	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", title("File:"), r.Source)
	field := func(label, value string) {
		fmt.Fprintf(&b, "%-20s: %20s\n", label, value)
	}
	field("Inspect first", yesNo(r.NeedsManualReview))
	field("Contract", strings.Join(r.ContractIDs, ", "))
	field("Tag", strings.Join(r.TagIDs, ", "))
	field("Invoice", strings.Join(r.InvoiceIDs, ", "))
	field("Registration", strings.Join(r.RegistrationIDs, ", "))
	field("Passings", strconv.Itoa(r.Records))
	field("Sum", r.TotalDisplay())

	b.WriteString(section("Free passings:") + "\n")
	if len(r.FreePasses) == 0 {
		b.WriteString("None\n")
	} else if err := writeEntries(&b, r.FreePasses, false); err != nil {
		return err
	}

	b.WriteString(section("Inspect passings:") + "\n")
	if len(r.Overcharges) == 0 {
		b.WriteString("None\n")
	} else if err := writeEntries(&b, r.Overcharges, true); err != nil {
		return err
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// styles returns the title and section renderers bound to w, or the
// identity when colors are off.
func (f *TextFormatter) styles(w io.Writer) (title, section func(string) string) {
	if f.NoColor {
		plain := func(v string) string { return v }
		return plain, plain
	}
	r := lipgloss.NewRenderer(w)
	titleStyle := r.NewStyle().Bold(true)
	sectionStyle := r.NewStyle().Bold(true).Underline(true)
	return func(v string) string { return titleStyle.Render(v) },
		func(v string) string { return sectionStyle.Render(v) }
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func writeEntries(w io.Writer, entries []Entry, withAmount bool) error {
	headers := []any{"row", "passeringstid", "bomstasjon"}
	if withAmount {
		headers = append(headers, "belop")
	}

	table := tablewriter.NewTable(w)
	table.Header(headers...)
	for _, e := range entries {
		row := []any{strconv.Itoa(e.Row), e.CrossedAt.Format(timeLayout), e.StationID}
		if withAmount {
			row = append(row, e.Amount.StringFixed(2))
		}
		if err := table.Append(row...); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return table.Render()
}

// WriteInspection writes every record of ds with its derived flags as a
// table.
func WriteInspection(w io.Writer, ds *model.Dataset) error {
	table := tablewriter.NewTable(w)
	table.Header("row", "passeringstid", "belastningstid", "belop", "bomstasjon",
		"gap", "long_gap", "charged", "consistent", "free_pass", "overcharge")

	for _, rec := range ds.Records {
		chargedAt := ""
		if !rec.ChargedAt.IsZero() {
			chargedAt = rec.ChargedAt.Format(timeLayout)
		}
		row := []any{
			strconv.Itoa(rec.Row),
			rec.CrossedAt.Format(timeLayout),
			chargedAt,
			rec.Amount.StringFixed(2),
			rec.StationID,
			rec.GapString(),
			strconv.FormatBool(rec.LongGap),
			strconv.FormatBool(rec.Charged),
			strconv.FormatBool(rec.Consistent),
			strconv.FormatBool(rec.FreePass),
			strconv.FormatBool(rec.Overcharge),
		}
		if err := table.Append(row...); err != nil {
			return fmt.Errorf("writing row %d: %w", rec.Row, err)
		}
	}
	return table.Render()
}

// JSONFormatter writes reports as JSON.
type JSONFormatter struct {
	Indent string
}

// Format implements Formatter.
func (f *JSONFormatter) Format(w io.Writer, r Report) error {
	encoder := json.NewEncoder(w)
	if f.Indent != "" {
		encoder.SetIndent("", f.Indent)
	}
	return encoder.Encode(newDocument(r))
}

// YAMLFormatter writes reports as YAML documents.
type YAMLFormatter struct{}

// Format implements Formatter.
func (f *YAMLFormatter) Format(w io.Writer, r Report) error {
	data, err := yaml.Marshal(newDocument(r))
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if _, err := io.WriteString(w, "---\n"); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// document is the serialized shape of a Report.
type document struct {
	File              string          `json:"file" yaml:"file"`
	NeedsManualReview bool            `json:"needs_manual_review" yaml:"needs_manual_review"`
	ContractIDs       []string        `json:"contract_ids" yaml:"contract_ids"`
	InvoiceIDs        []string        `json:"invoice_ids" yaml:"invoice_ids"`
	RegistrationIDs   []string        `json:"registration_ids" yaml:"registration_ids"`
	TagIDs            []string        `json:"tag_ids" yaml:"tag_ids"`
	Records           int             `json:"records" yaml:"records"`
	Charged           int             `json:"charged" yaml:"charged"`
	Total             string          `json:"total" yaml:"total"`
	TotalRounded      string          `json:"total_rounded" yaml:"total_rounded"`
	FreePasses        []documentEntry `json:"free_passes" yaml:"free_passes"`
	Overcharges       []documentEntry `json:"overcharges" yaml:"overcharges"`
}

type documentEntry struct {
	Row       int    `json:"row" yaml:"row"`
	CrossedAt string `json:"crossed_at" yaml:"crossed_at"`
	StationID string `json:"station_id" yaml:"station_id"`
	Amount    string `json:"amount" yaml:"amount"`
}

func newDocument(r Report) document {
	return document{
		File:              r.Source,
		NeedsManualReview: r.NeedsManualReview,
		ContractIDs:       nonNil(r.ContractIDs),
		InvoiceIDs:        nonNil(r.InvoiceIDs),
		RegistrationIDs:   nonNil(r.RegistrationIDs),
		TagIDs:            nonNil(r.TagIDs),
		Records:           r.Records,
		Charged:           r.Charged,
		Total:             r.Total.String(),
		TotalRounded:      r.TotalDisplay(),
		FreePasses:        documentEntries(r.FreePasses),
		Overcharges:       documentEntries(r.Overcharges),
	}
}

func documentEntries(entries []Entry) []documentEntry {
	out := make([]documentEntry, len(entries))
	for i, e := range entries {
		out[i] = documentEntry{
			Row:       e.Row,
			CrossedAt: e.CrossedAt.Format(time.RFC3339),
			StationID: e.StationID,
			Amount:    e.Amount.String(),
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
