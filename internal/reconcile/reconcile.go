// Package reconcile orders toll passages and flags free passings and
// overcharges using the one-hour gap rule.
package reconcile

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tollcheck/tollcheck/internal/model"
)

// Reconcile orders and classifies the records of one export file.
func Reconcile(source string, records []model.PassageRecord) (*model.Dataset, error) {
	classified, err := Classify(Order(records))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	if verrs := Validate(classified); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, ve := range verrs {
			msgs[i] = ve.Error()
		}
		return nil, fmt.Errorf("%s: validation failed: %s", source, strings.Join(msgs, "; "))
	}

	base := filepath.Base(source)
	return &model.Dataset{
		Source:            source,
		Name:              strings.TrimSuffix(base, filepath.Ext(base)),
		Records:           classified,
		NeedsManualReview: NeedsManualReview(classified[0].PassageRecord),
	}, nil
}
