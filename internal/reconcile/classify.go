package reconcile

import (
	"errors"
	"time"

	"github.com/tollcheck/tollcheck/internal/model"
)

// LongGap is the silence after which a crossing opens a new charge window.
const LongGap = time.Hour

// ErrEmptyDataset is returned when there are no records to classify.
var ErrEmptyDataset = errors.New("dataset has no records")

// Classify derives the reconciliation flags of an ordered sequence.
//
// The first record has nothing to be judged against: it is always
// consistent and never an overcharge. FreePass has no such override, it
// follows from LongGap being false.
func Classify(ordered []model.PassageRecord) ([]model.ClassifiedRecord, error) {
	if len(ordered) == 0 {
		return nil, ErrEmptyDataset
	}

	out := make([]model.ClassifiedRecord, len(ordered))
	var prev *model.PassageRecord
	for i := range ordered {
		out[i] = classifyOne(ordered[i], prev)
		prev = &ordered[i]
	}
	return out, nil
}

func classifyOne(rec model.PassageRecord, prev *model.PassageRecord) model.ClassifiedRecord {
	c := model.ClassifiedRecord{PassageRecord: rec}

	if prev != nil {
		gap := rec.CrossedAt.Sub(prev.CrossedAt)
		c.Gap = &gap
		c.LongGap = gap > LongGap
	}
	c.Charged = rec.Amount.IsPositive()
	c.Consistent = c.LongGap == c.Charged
	c.FreePass = c.LongGap && !c.Charged
	c.Overcharge = !c.LongGap && c.Charged

	if prev == nil {
		c.Consistent = true
		c.Overcharge = false
	}
	return c
}

// NeedsManualReview reports whether the first crossing happened before 01:00
// local time, in which case it likely belongs to the previous billing period.
func NeedsManualReview(first model.PassageRecord) bool {
	return first.CrossedAt.Hour() < 1
}
