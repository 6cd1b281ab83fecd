package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observatoire-logement/lovac-cli/internal/model"
)

func obs(dep, reg string, metric model.Metric, year int, v model.Nullable) model.Observation {
	return model.Observation{
		Geography: model.Geography{DepCode: dep, DepName: "Dép " + dep, RegCode: reg, RegName: "Rég " + reg},
		Metric:    metric,
		Year:      year,
		Value:     v,
	}
}

func findRecord(t *testing.T, recs []model.GeographyYearRecord, code string, year int) model.GeographyYearRecord {
	t.Helper()
	for _, r := range recs {
		if r.Code == code && r.Year == year {
			return r
		}
	}
	t.Fatalf("no record for %s/%d", code, year)
	return model.GeographyYearRecord{}
}

func TestPivotByYearRates(t *testing.T) {
	t.Parallel()

	records := PivotByYear([]model.Observation{
		obs("75", "11", model.MetricTotal, 2024, model.Some(1000000)),
		obs("75", "11", model.MetricVacant, 2024, model.Some(80000)),
		obs("75", "11", model.MetricVacant2y, 2024, model.Some(40000)),
	}, DepartmentKey)

	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "75", rec.Code)
	assert.Equal(t, "Dép 75", rec.Name)
	require.True(t, rec.VacancyRate.Valid)
	assert.InDelta(t, 8.0, rec.VacancyRate.Float64, 1e-6)
	require.True(t, rec.Vacancy2yRate.Valid)
	assert.InDelta(t, 4.0, rec.Vacancy2yRate.Float64, 1e-6)
	require.True(t, rec.LongTermShare.Valid)
	assert.InDelta(t, 50.0, rec.LongTermShare.Float64, 1e-6)
}

func TestPivotByYearZeroDenominator(t *testing.T) {
	t.Parallel()

	records := PivotByYear([]model.Observation{
		obs("48", "76", model.MetricTotal, 2024, model.Some(0)),
		obs("48", "76", model.MetricVacant, 2024, model.Some(10)),
	}, DepartmentKey)

	require.Len(t, records, 1)
	// Never infinity: a zero denominator yields a missing rate.
	assert.False(t, records[0].VacancyRate.Valid)
}

func TestPivotByYearSuppressedNotZero(t *testing.T) {
	t.Parallel()

	// Two communes in the same region; one has a suppressed vacant cell.
	communes := []model.Observation{
		obs("2A", "94", model.MetricVacant, 2024, model.Some(1500)),
		obs("2B", "94", model.MetricVacant, 2024, model.Missing()),
		obs("2A", "94", model.MetricTotal, 2024, model.Some(30000)),
		obs("2B", "94", model.MetricTotal, 2024, model.Some(20000)),
	}

	records := PivotByYear(communes, RegionKey)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "94", rec.Code)
	// The suppressed cell is skipped, not counted as zero, and the
	// region rate comes from the summed counts.
	assert.Equal(t, model.Some(1500), rec.Vacant)
	assert.Equal(t, model.Some(50000), rec.Total)
	require.True(t, rec.VacancyRate.Valid)
	assert.InDelta(t, 3.0, rec.VacancyRate.Float64, 1e-6)
}

func TestPivotByYearStructuralAbsenceFillsZero(t *testing.T) {
	t.Parallel()

	// vacant_2y never observed in 2020: structural absence, zero-filled.
	records := PivotByYear([]model.Observation{
		obs("01", "84", model.MetricTotal, 2020, model.Some(100)),
		obs("01", "84", model.MetricVacant, 2020, model.Some(10)),
	}, DepartmentKey)

	require.Len(t, records, 1)
	assert.Equal(t, model.Some(0), records[0].Vacant2y)
}

func TestPivotByYearBorrowedTotal(t *testing.T) {
	t.Parallel()

	// 2025 ships vacancy counts but no total column; its rates use the
	// 2024 total as denominator.
	records := PivotByYear([]model.Observation{
		obs("75", "11", model.MetricTotal, 2024, model.Some(1000000)),
		obs("75", "11", model.MetricVacant, 2024, model.Some(80000)),
		obs("75", "11", model.MetricVacant, 2025, model.Some(90000)),
	}, DepartmentKey)

	require.Len(t, records, 2)
	rec25 := findRecord(t, records, "75", 2025)
	assert.Equal(t, model.Some(1000000), rec25.Total)
	require.True(t, rec25.VacancyRate.Valid)
	assert.InDelta(t, 9.0, rec25.VacancyRate.Float64, 1e-6)
}

func TestPivotByYearBorrowedTotalNoPreviousYear(t *testing.T) {
	t.Parallel()

	records := PivotByYear([]model.Observation{
		obs("75", "11", model.MetricVacant, 2025, model.Some(90000)),
	}, DepartmentKey)

	require.Len(t, records, 1)
	assert.Equal(t, model.Some(0), records[0].Total)
	assert.False(t, records[0].VacancyRate.Valid)
}

func TestPivotByYearDeterministicOrder(t *testing.T) {
	t.Parallel()

	input := []model.Observation{
		obs("2B", "94", model.MetricTotal, 2021, model.Some(1)),
		obs("01", "84", model.MetricTotal, 2022, model.Some(1)),
		obs("01", "84", model.MetricTotal, 2021, model.Some(1)),
		obs("2A", "94", model.MetricTotal, 2021, model.Some(1)),
	}

	records := PivotByYear(input, DepartmentKey)
	require.Len(t, records, 4)
	assert.Equal(t, "01", records[0].Code)
	assert.Equal(t, 2021, records[0].Year)
	assert.Equal(t, "01", records[1].Code)
	assert.Equal(t, 2022, records[1].Year)
	assert.Equal(t, "2A", records[2].Code)
	assert.Equal(t, "2B", records[3].Code)
}

func TestRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		num  model.Nullable
		den  model.Nullable
		want model.Nullable
	}{
		{"simple", model.Some(8), model.Some(100), model.Some(8)},
		{"zero denominator", model.Some(8), model.Some(0), model.Missing()},
		{"negative denominator", model.Some(8), model.Some(-5), model.Missing()},
		{"missing numerator", model.Missing(), model.Some(100), model.Missing()},
		{"missing denominator", model.Some(8), model.Missing(), model.Missing()},
		{"zero numerator", model.Some(0), model.Some(100), model.Some(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Rate(tt.num, tt.den))
		})
	}
}

func TestNational(t *testing.T) {
	t.Parallel()

	byDep := PivotByYear([]model.Observation{
		obs("75", "11", model.MetricTotal, 2024, model.Some(600)),
		obs("75", "11", model.MetricVacant, 2024, model.Some(60)),
		obs("13", "93", model.MetricTotal, 2024, model.Some(400)),
		obs("13", "93", model.MetricVacant, 2024, model.Some(20)),
	}, DepartmentKey)

	national := National(byDep)
	require.Len(t, national, 1)
	nat := national[0]
	assert.Equal(t, "FR", nat.Code)
	assert.Equal(t, "France", nat.Name)
	assert.Equal(t, model.Some(1000), nat.Total)
	assert.Equal(t, model.Some(80), nat.Vacant)
	// 10% and 5% department rates sum to a weighted 8%, not 7.5%.
	require.True(t, nat.VacancyRate.Valid)
	assert.InDelta(t, 8.0, nat.VacancyRate.Float64, 1e-6)
}

func TestLatestSnapshot(t *testing.T) {
	t.Parallel()

	byDep := PivotByYear([]model.Observation{
		obs("75", "11", model.MetricTotal, 2024, model.Some(1000000)),
		obs("75", "11", model.MetricVacant, 2024, model.Some(80000)),
		obs("75", "11", model.MetricVacant, 2025, model.Some(90000)),
		obs("13", "93", model.MetricTotal, 2024, model.Some(500000)),
		obs("13", "93", model.MetricVacant, 2024, model.Some(20000)),
		obs("13", "93", model.MetricVacant, 2025, model.Some(19000)),
	}, DepartmentKey)

	snaps := LatestSnapshot(byDep, 2025)
	require.Len(t, snaps, 2)

	marseille := snaps[0]
	assert.Equal(t, "13", marseille.Code)
	assert.Equal(t, model.Some(-1000), marseille.VacantChange)
	require.True(t, marseille.VacantChangePct.Valid)
	assert.InDelta(t, -5.0, marseille.VacantChangePct.Float64, 1e-6)
	assert.Equal(t, model.LevelVeryLow, marseille.Level)

	paris := snaps[1]
	assert.Equal(t, model.Some(10000), paris.VacantChange)
	require.True(t, paris.VacantChangePct.Valid)
	assert.InDelta(t, 12.5, paris.VacantChangePct.Float64, 1e-6)
	assert.Equal(t, model.LevelHigh, paris.Level)
}

func TestLatestSnapshotNoPreviousYear(t *testing.T) {
	t.Parallel()

	byDep := PivotByYear([]model.Observation{
		obs("75", "11", model.MetricTotal, 2020, model.Some(100)),
		obs("75", "11", model.MetricVacant, 2020, model.Some(9)),
	}, DepartmentKey)

	snaps := LatestSnapshot(byDep, 2020)
	require.Len(t, snaps, 1)
	assert.False(t, snaps[0].VacantChange.Valid)
	assert.False(t, snaps[0].VacantChangePct.Valid)
}

func TestTopDepartments(t *testing.T) {
	t.Parallel()

	snaps := []model.DepartmentSnapshot{
		{GeographyYearRecord: model.GeographyYearRecord{Code: "01", VacancyRate: model.Some(5)}},
		{GeographyYearRecord: model.GeographyYearRecord{Code: "02", VacancyRate: model.Some(12)}},
		{GeographyYearRecord: model.GeographyYearRecord{Code: "03", VacancyRate: model.Missing()}},
		{GeographyYearRecord: model.GeographyYearRecord{Code: "04", VacancyRate: model.Some(9)}},
	}
	byRate := func(s model.DepartmentSnapshot) model.Nullable { return s.VacancyRate }

	top := TopDepartments(snaps, byRate, 2, false)
	require.Len(t, top, 2)
	assert.Equal(t, "02", top[0].Code)
	assert.Equal(t, "04", top[1].Code)

	bottom := TopDepartments(snaps, byRate, 2, true)
	require.Len(t, bottom, 2)
	assert.Equal(t, "01", bottom[0].Code)
	assert.Equal(t, "04", bottom[1].Code)

	// Missing values are excluded, not ranked.
	all := TopDepartments(snaps, byRate, 0, false)
	assert.Len(t, all, 3)
}
