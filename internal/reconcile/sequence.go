package reconcile

import (
	"sort"
	"time"

	"github.com/tollcheck/tollcheck/internal/model"
)

// Order returns a copy of records sorted by crossing time. Records crossing
// at the same instant keep their input order.
func Order(records []model.PassageRecord) []model.PassageRecord {
	ordered := make([]model.PassageRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CrossedAt.Before(ordered[j].CrossedAt)
	})
	return ordered
}

// Gaps returns the time since the preceding crossing for each record of an
// ordered sequence. The first entry is nil.
func Gaps(ordered []model.PassageRecord) []*time.Duration {
	gaps := make([]*time.Duration, len(ordered))
	for i := 1; i < len(ordered); i++ {
		gap := ordered[i].CrossedAt.Sub(ordered[i-1].CrossedAt)
		gaps[i] = &gap
	}
	return gaps
}
