package reconcile

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollcheck/tollcheck/internal/importer"
	"github.com/tollcheck/tollcheck/internal/model"
)

var base = time.Date(2019, 2, 1, 8, 0, 0, 0, time.UTC)

func passage(row int, offset time.Duration, amount string) model.PassageRecord {
	return model.PassageRecord{
		ContractID: "1001",
		StationID:  "S",
		CrossedAt:  base.Add(offset),
		Amount:     decimal.RequireFromString(amount),
		Row:        row,
	}
}

func classify(t *testing.T, recs ...model.PassageRecord) []model.ClassifiedRecord {
	t.Helper()
	out, err := Classify(Order(recs))
	require.NoError(t, err)
	return out
}

func TestScenarioA_SingleUnchargedRecord(t *testing.T) {
	out := classify(t, passage(2, 0, "0"))
	require.Len(t, out, 1)

	rec := out[0]
	assert.Nil(t, rec.Gap)
	assert.False(t, rec.LongGap)
	assert.False(t, rec.Charged)
	assert.True(t, rec.Consistent)
	assert.False(t, rec.Overcharge)
	assert.False(t, rec.FreePass)
}

func TestScenarioB_LongGapNoCharge(t *testing.T) {
	out := classify(t, passage(2, 0, "45"), passage(3, 90*time.Minute, "0"))

	rec := out[1]
	require.NotNil(t, rec.Gap)
	assert.Equal(t, 90*time.Minute, *rec.Gap)
	assert.True(t, rec.LongGap)
	assert.False(t, rec.Charged)
	assert.False(t, rec.Consistent, "long gap without charge does not satisfy long_gap == charged")
	assert.True(t, rec.FreePass)
	assert.False(t, rec.Overcharge)
}

func TestScenarioC_ShortGapCharged(t *testing.T) {
	out := classify(t, passage(2, 0, "45"), passage(3, 10*time.Minute, "45.0"))

	rec := out[1]
	assert.False(t, rec.LongGap)
	assert.True(t, rec.Charged)
	assert.False(t, rec.FreePass)
	assert.True(t, rec.Overcharge)
	assert.False(t, rec.Consistent)
}

func TestScenarioD_ShortGapChargedIsOvercharge(t *testing.T) {
	out := classify(t, passage(2, 0, "45"), passage(3, 5*time.Minute, "12.5"))

	assert.False(t, out[0].Overcharge, "first record is never an overcharge")
	assert.True(t, out[1].Overcharge)
	assert.False(t, out[1].FreePass)
}

func TestScenarioE_ManualReview(t *testing.T) {
	early := model.PassageRecord{CrossedAt: time.Date(2019, 2, 1, 0, 32, 0, 0, time.UTC)}
	morning := model.PassageRecord{CrossedAt: time.Date(2019, 2, 1, 8, 0, 0, 0, time.UTC)}
	oneAM := model.PassageRecord{CrossedAt: time.Date(2019, 2, 1, 1, 0, 0, 0, time.UTC)}

	assert.True(t, NeedsManualReview(early))
	assert.False(t, NeedsManualReview(morning))
	assert.False(t, NeedsManualReview(oneAM))

	early.Amount = decimal.NewFromInt(45)
	ds, err := Reconcile("feb.csv", []model.PassageRecord{morning, early})
	require.NoError(t, err)
	assert.True(t, ds.NeedsManualReview, "flag follows the chronologically first record")
}

func TestLongGapBoundary(t *testing.T) {
	out := classify(t,
		passage(2, 0, "45"),
		passage(3, time.Hour, "0"),
		passage(4, 2*time.Hour+time.Second, "0"),
	)
	assert.False(t, out[1].LongGap, "exactly one hour is not a long gap")
	assert.True(t, out[2].LongGap)
}

func TestLongGapCharged_IsConsistent(t *testing.T) {
	out := classify(t, passage(2, 0, "0"), passage(3, 3*time.Hour, "45"))
	rec := out[1]
	assert.True(t, rec.LongGap)
	assert.True(t, rec.Charged)
	assert.True(t, rec.Consistent)
	assert.False(t, rec.FreePass)
	assert.False(t, rec.Overcharge)
}

func TestFirstRecordOverrides(t *testing.T) {
	// A charged first record would be an overcharge by the plain rules.
	out := classify(t, passage(2, 0, "45"), passage(3, 3*time.Hour, "45"))

	first := out[0]
	assert.True(t, first.IsFirst())
	assert.True(t, first.Charged)
	assert.True(t, first.Consistent)
	assert.False(t, first.Overcharge)
}

func TestFirstRecordFreePassIsNotOverridden(t *testing.T) {
	// FreePass carries no first-record override; with no gap LongGap is
	// false, so it comes out false for uncharged and charged first records.
	for _, amount := range []string{"0", "45"} {
		out := classify(t, passage(2, 0, amount))
		assert.False(t, out[0].LongGap)
		assert.False(t, out[0].FreePass, "amount %s", amount)
	}
}

func TestClassify_Empty(t *testing.T) {
	_, err := Classify(nil)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestOrder_StableOnTies(t *testing.T) {
	recs := []model.PassageRecord{
		passage(2, time.Hour, "1"),
		passage(3, 0, "2"),
		passage(4, time.Hour, "3"),
		passage(5, 0, "4"),
	}
	ordered := Order(recs)

	rows := make([]int, len(ordered))
	for i, r := range ordered {
		rows[i] = r.Row
	}
	assert.Equal(t, []int{3, 5, 2, 4}, rows)
	assert.Equal(t, 2, recs[0].Row, "input is not modified")
}

func TestGaps(t *testing.T) {
	ordered := Order([]model.PassageRecord{
		passage(2, 0, "0"),
		passage(3, 7*time.Minute, "0"),
		passage(4, 7*time.Minute, "0"),
	})
	gaps := Gaps(ordered)
	require.Len(t, gaps, 3)
	assert.Nil(t, gaps[0])
	assert.Equal(t, 7*time.Minute, *gaps[1])
	assert.Equal(t, time.Duration(0), *gaps[2])
	assert.Empty(t, Gaps(nil))
}

func randomPassages(rng *rand.Rand, n int) []model.PassageRecord {
	recs := make([]model.PassageRecord, n)
	for i := range recs {
		amount := "0"
		if rng.Intn(2) == 0 {
			amount = "45"
		}
		recs[i] = passage(i+2, time.Duration(rng.Intn(48*60))*time.Minute, amount)
	}
	return recs
}

func TestProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		recs := randomPassages(rng, 1+rng.Intn(30))
		out := classify(t, recs...)

		assert.Empty(t, Validate(out))
		for i, rec := range out {
			if i > 0 {
				assert.False(t, rec.CrossedAt.Before(out[i-1].CrossedAt))
				require.NotNil(t, rec.Gap)
				assert.Equal(t, rec.CrossedAt.Sub(out[i-1].CrossedAt), *rec.Gap)
			}
			assert.False(t, rec.FreePass && rec.Overcharge)
		}
		assert.True(t, out[0].Consistent)
		assert.False(t, out[0].Overcharge)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	out := classify(t, randomPassages(rng, 25)...)

	stripped := make([]model.PassageRecord, len(out))
	for i, rec := range out {
		stripped[i] = rec.PassageRecord
	}
	again := classify(t, stripped...)
	assert.Equal(t, out, again)
}

func TestValidate_DetectsViolations(t *testing.T) {
	out := classify(t, passage(2, 0, "45"), passage(3, 5*time.Minute, "45"))

	broken := make([]model.ClassifiedRecord, len(out))
	copy(broken, out)
	broken[0].Overcharge = true
	broken[1].FreePass = true
	wrong := time.Minute
	broken[1].Gap = &wrong

	invariants := map[int]bool{}
	for _, ve := range Validate(broken) {
		invariants[ve.Invariant] = true
	}
	assert.True(t, invariants[2], "gap")
	assert.True(t, invariants[3], "exclusive flags")
	assert.True(t, invariants[4], "first record")
}

func TestValidate_Unordered(t *testing.T) {
	out := classify(t, passage(2, 0, "0"), passage(3, time.Hour, "0"))
	out[0], out[1] = out[1], out[0]

	var ordering []ValidationError
	for _, ve := range Validate(out) {
		if ve.Invariant == 1 {
			ordering = append(ordering, ve)
		}
	}
	require.Len(t, ordering, 1)
	assert.Equal(t, 2, ordering[0].Row)
	assert.Contains(t, ordering[0].Error(), "invariant 1 [row 2]")
}

func TestReconcile_Empty(t *testing.T) {
	_, err := Reconcile("empty.csv", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyDataset)
	assert.Contains(t, err.Error(), "empty.csv")
}

func TestReconcile_Fixture(t *testing.T) {
	opts := importer.DefaultAutoPASSOptions()
	opts.Location = time.UTC
	recs, err := importer.ParseFile(importer.NewAutoPASSParser(opts), "../../testdata/autopass_2019-02.csv")
	require.NoError(t, err)

	ds, err := Reconcile("../../testdata/autopass_2019-02.csv", recs)
	require.NoError(t, err)

	assert.Equal(t, "autopass_2019-02", ds.Name)
	assert.Equal(t, 6, ds.Len())
	assert.False(t, ds.NeedsManualReview)

	rows := make([]int, ds.Len())
	var free, over []int
	for i, rec := range ds.Records {
		rows[i] = rec.Row
		if rec.FreePass {
			free = append(free, rec.Row)
		}
		if rec.Overcharge {
			over = append(over, rec.Row)
		}
	}
	assert.Equal(t, []int{3, 4, 2, 5, 6, 7}, rows)
	assert.Equal(t, []int{2, 5}, free)
	assert.Equal(t, []int{4}, over)
}
