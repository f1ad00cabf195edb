package importer

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const testHeader = "avtalenr;fakturanr;brikkenr;regnr;passeringstid;belastningstid;belop;mva;bomstasjon;bomstasjonfil;bomstasjonsoperator\n"

func utcParser() *AutoPASSParser {
	opts := DefaultAutoPASSOptions()
	opts.Location = time.UTC
	opts.Encoding = charmap.Windows1252
	return NewAutoPASSParser(opts)
}

func TestAutoPASSParser_Parse(t *testing.T) {
	data, err := os.ReadFile("../../testdata/autopass_2019-02.csv")
	require.NoError(t, err)

	recs, err := utcParser().Parse(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, recs, 6)

	// Input order is kept.
	first := recs[0]
	assert.Equal(t, "1001", first.ContractID)
	assert.Equal(t, "F-778", first.InvoiceID)
	assert.Equal(t, "TAG123", first.TagID)
	assert.Equal(t, "AB12345", first.RegistrationID)
	assert.Equal(t, time.Date(2019, 2, 1, 9, 30, 0, 0, time.UTC), first.CrossedAt)
	assert.Equal(t, time.Date(2019, 2, 3, 2, 0, 0, 0, time.UTC), first.ChargedAt)
	assert.True(t, first.Amount.IsZero())
	assert.Equal(t, "Ålgård", first.StationID)
	assert.Equal(t, "ALG01", first.StationFile)
	assert.Equal(t, "Ferde", first.StationOperator)
	assert.Equal(t, 2, first.Row)

	assert.Equal(t, "Sandnes sør", recs[1].StationID)
	assert.Equal(t, "45.00", recs[1].Amount.StringFixed(2))
	assert.Equal(t, "9.00", recs[1].Tax.StringFixed(2))

	last := recs[5]
	assert.Equal(t, "22.50", last.Amount.StringFixed(2))
	assert.Equal(t, 7, last.Row)
}

func TestAutoPASSParser_HeaderOnly(t *testing.T) {
	recs, err := utcParser().Parse(strings.NewReader(testHeader))
	require.NoError(t, err)
	assert.Nil(t, recs)
}

func TestAutoPASSParser_EmptyInput(t *testing.T) {
	recs, err := utcParser().Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, recs)
}

func TestAutoPASSParser_DecimalComma(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"45,00", "45.00"},
		{"0,5", "0.50"},
		{"1 234,50", "1234.50"},
		{"1\u00a0234,50", "1234.50"},
		{"12", "12.00"},
	}
	for _, tt := range tests {
		d, err := parseDecimal(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, d.StringFixed(2), "input %q", tt.in)
	}
}

func TestAutoPASSParser_TimestampLayouts(t *testing.T) {
	p := utcParser()
	want := time.Date(2019, 2, 1, 7, 45, 0, 0, time.UTC)
	for _, in := range []string{"01.02.2019 07:45:00", "01.02.2019 07:45", "2019-02-01 07:45:00", "2019-02-01T07:45:00"} {
		got, err := p.parseTime(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}
}

func TestAutoPASSParser_LocalTimezone(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	p := NewAutoPASSParser(AutoPASSOptions{Location: loc})
	got, err := p.parseTime("01.02.2019 00:30:00")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Hour())
	assert.Equal(t, 23, got.UTC().Hour())
}

func TestAutoPASSParser_BadTimestamp(t *testing.T) {
	csv := testHeader + "1;2;3;4;NOTADATE;;45,00;9,00;S;F;O\n"
	_, err := utcParser().Parse(strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing passeringstid")

	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 2, rowErr.Row)
	assert.Equal(t, "NOTADATE", rowErr.Value)
}

func TestAutoPASSParser_BadChargeTimestamp(t *testing.T) {
	csv := testHeader + "1;2;3;4;01.02.2019 07:45;tomorrow;45,00;9,00;S;F;O\n"
	_, err := utcParser().Parse(strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing belastningstid")
}

func TestAutoPASSParser_EmptyChargeTimestamp(t *testing.T) {
	csv := testHeader + "1;2;3;4;01.02.2019 07:45;;0,00;;S;F;O\n"
	recs, err := utcParser().Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].ChargedAt.IsZero())
	assert.True(t, recs[0].Tax.IsZero())
}

func TestAutoPASSParser_BadAmount(t *testing.T) {
	for _, amount := range []string{"NOTANUMBER", "", "4,5,0"} {
		csv := testHeader + "1;2;3;4;01.02.2019 07:45;;" + amount + ";0;S;F;O\n"
		_, err := utcParser().Parse(strings.NewReader(csv))
		require.Error(t, err, "amount %q", amount)
		assert.Contains(t, err.Error(), "parsing belop")
	}
}

func TestAutoPASSParser_NegativeAmount(t *testing.T) {
	csv := testHeader + "1;2;3;4;01.02.2019 07:45;;-45,00;0;S;F;O\n"
	_, err := utcParser().Parse(strings.NewReader(csv))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestAutoPASSParser_FailsWholeFile(t *testing.T) {
	csv := testHeader +
		"1;2;3;4;01.02.2019 07:45;;45,00;9,00;S;F;O\n" +
		"1;2;3;4;01.02.2019 08:45;;oops;9,00;S;F;O\n"
	recs, err := utcParser().Parse(strings.NewReader(csv))
	require.Error(t, err)
	assert.Nil(t, recs)
	assert.Contains(t, err.Error(), "row 3")
}

func TestAutoPASSParser_WrongFieldCount(t *testing.T) {
	csv := testHeader + "1;2;3;4;01.02.2019 07:45;;45,00\n"
	_, err := utcParser().Parse(strings.NewReader(csv))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchema)
}

func TestAutoPASSParser_WrongHeader(t *testing.T) {
	csv := strings.Replace(testHeader, "belop", "amount", 1) + "1;2;3;4;01.02.2019 07:45;;45,00;9,00;S;F;O\n"
	_, err := utcParser().Parse(strings.NewReader(csv))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchema)
	assert.Contains(t, err.Error(), "column 7")
}

func TestAutoPASSParser_HeaderCheckDisabled(t *testing.T) {
	opts := DefaultAutoPASSOptions()
	opts.Location = time.UTC
	opts.CheckHeaderNames = false
	p := NewAutoPASSParser(opts)

	csv := "a;b;c;d;e;f;g;h;i;j;k\n1;2;3;4;01.02.2019 07:45;;45,00;9,00;S;F;O\n"
	recs, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Beløp", "belop"},
		{" Bomstasjonsoperatør ", "bomstasjonsoperator"},
		{"Bomstasjon fil", "bomstasjonfil"},
		{"Avtale_nr.", "avtalenr"},
		{"\ufeffAvtalenr", "avtalenr"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeHeader(tt.in))
	}
}

func TestAutoPASSParser_UTF8(t *testing.T) {
	opts := DefaultAutoPASSOptions()
	opts.Location = time.UTC
	enc, err := LookupEncoding("utf-8")
	require.NoError(t, err)
	opts.Encoding = enc
	p := NewAutoPASSParser(opts)

	csv := "\ufeff" + testHeader + "1;2;3;4;01.02.2019 07:45;;45,00;9,00;Sandnes sør;F;O\n"
	recs, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Sandnes sør", recs[0].StationID)
}

func TestLookupEncoding(t *testing.T) {
	for _, name := range []string{"windows-1252", "CP1252", "iso-8859-1", "latin9", "utf-8"} {
		enc, err := LookupEncoding(name)
		require.NoError(t, err, name)
		assert.NotNil(t, enc, name)
	}
	_, err := LookupEncoding("ebcdic")
	assert.Error(t, err)
}

func TestAutoPASSParser_Format(t *testing.T) {
	assert.Equal(t, "autopass", utcParser().Format())
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register(utcParser())
	assert.NotNil(t, r.Get("AutoPASS"))
	assert.NotNil(t, r.Get("AUTOPASS"))
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(utcParser())
	assert.Panics(t, func() { r.Register(utcParser()) })
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(DefaultAutoPASSOptions())
	assert.NotNil(t, r.Get("autopass"))
	assert.Nil(t, r.Get("easypark"))
}

func TestScan_FindsCSVs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A.CSV"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("data"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested.csv"), 0o755))

	files, err := Scan(dir, "*.csv")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "A.CSV", files[0].Name)
	assert.Equal(t, "b.csv", files[1].Name)
	assert.Equal(t, "A", files[0].Stem())
	assert.Equal(t, int64(4), files[1].Size)
}

func TestScan_MissingDir(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "missing"), "*.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScan_BadPattern(t *testing.T) {
	_, err := Scan(t.TempDir(), "[")
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	recs, err := ParseFile(utcParser(), "../../testdata/autopass_2019-02.csv")
	require.NoError(t, err)
	assert.Len(t, recs, 6)

	_, err = ParseFile(utcParser(), "../../testdata/missing.csv")
	assert.Error(t, err)
}
