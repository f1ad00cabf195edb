package reconcile

import (
	"fmt"

	"github.com/tollcheck/tollcheck/internal/model"
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant   int
	Row         int
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invariant %d [row %d]: %s", e.Invariant, e.Row, e.Description)
}

// Validate enforces 5 invariants on a classified sequence.
func Validate(records []model.ClassifiedRecord) []ValidationError {
	var errs []ValidationError

	passages := make([]model.PassageRecord, len(records))
	for i, rec := range records {
		passages[i] = rec.PassageRecord
	}
	gaps := Gaps(passages)

	for i, rec := range records {
		// Invariant 1: non-decreasing crossing times.
		if i > 0 && rec.CrossedAt.Before(records[i-1].CrossedAt) {
			errs = append(errs, ValidationError{
				Invariant:   1,
				Row:         rec.Row,
				Description: fmt.Sprintf("crossed at %s before row %d", rec.CrossedAt.Format("2006-01-02 15:04:05"), records[i-1].Row),
			})
		}

		// Invariant 2: the gap is the exact distance to the predecessor.
		switch {
		case (rec.Gap == nil) != (gaps[i] == nil):
			errs = append(errs, ValidationError{
				Invariant:   2,
				Row:         rec.Row,
				Description: "only the first record may lack a gap",
			})
		case rec.Gap != nil && *rec.Gap != *gaps[i]:
			errs = append(errs, ValidationError{
				Invariant:   2,
				Row:         rec.Row,
				Description: fmt.Sprintf("gap %s, want %s", *rec.Gap, *gaps[i]),
			})
		}

		// Invariant 3: free pass and overcharge exclude each other.
		if rec.FreePass && rec.Overcharge {
			errs = append(errs, ValidationError{
				Invariant:   3,
				Row:         rec.Row,
				Description: "both free pass and overcharge",
			})
		}

		// Invariant 4: the first record is presumed correct.
		if i == 0 && (!rec.Consistent || rec.Overcharge) {
			errs = append(errs, ValidationError{
				Invariant:   4,
				Row:         rec.Row,
				Description: "first record must be consistent and not an overcharge",
			})
		}

		// Invariant 5: flags follow from the raw fields.
		longGap := rec.Gap != nil && *rec.Gap > LongGap
		charged := rec.Amount.IsPositive()
		if rec.LongGap != longGap || rec.Charged != charged {
			errs = append(errs, ValidationError{
				Invariant:   5,
				Row:         rec.Row,
				Description: fmt.Sprintf("long_gap=%t charged=%t, want %t/%t", rec.LongGap, rec.Charged, longGap, charged),
			})
		}
	}

	return errs
}
