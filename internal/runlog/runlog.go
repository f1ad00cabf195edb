// Package runlog keeps a CSV audit trail of reconciliation runs, one row
// per input file.
package runlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Entry is one row in the run log.
type Entry struct {
	Timestamp         time.Time
	RunID             string
	File              string
	Status            string
	Records           int
	FreePasses        int
	Overcharges       int
	NeedsManualReview bool
	Error             string
}

// Header is the CSV header of a run log.
const Header = "timestamp,run_id,file,status,records,free_passes,overcharges,needs_manual_review,error"

const (
	numFields      = 9
	colTimestamp   = 0
	colRunID       = 1
	colFile        = 2
	colStatus      = 3
	colRecords     = 4
	colFreePasses  = 5
	colOvercharges = 6
	colReview      = 7
	colError       = 8
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colFile] = e.File
	row[colStatus] = e.Status
	row[colRecords] = strconv.Itoa(e.Records)
	row[colFreePasses] = strconv.Itoa(e.FreePasses)
	row[colOvercharges] = strconv.Itoa(e.Overcharges)
	row[colReview] = strconv.FormatBool(e.NeedsManualReview)
	row[colError] = e.Error
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	counts := make([]int, 3)
	for i, col := range []int{colRecords, colFreePasses, colOvercharges} {
		counts[i], err = strconv.Atoi(record[col])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing count %q: %w", record[col], err)
		}
	}

	review, err := strconv.ParseBool(record[colReview])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing needs_manual_review %q: %w", record[colReview], err)
	}

	return Entry{
		Timestamp:         ts,
		RunID:             record[colRunID],
		File:              record[colFile],
		Status:            record[colStatus],
		Records:           counts[0],
		FreePasses:        counts[1],
		Overcharges:       counts[2],
		NeedsManualReview: review,
		Error:             record[colError],
	}, nil
}

// Append writes entries to path, creating the file and header if needed.
func Append(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating run log dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Close()
}

// Read returns all entries from path, or nil if it does not exist.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
