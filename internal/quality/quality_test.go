package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observatoire-logement/lovac-cli/internal/aggregate"
	"github.com/observatoire-logement/lovac-cli/internal/loader"
	"github.com/observatoire-logement/lovac-cli/internal/model"
	"github.com/observatoire-logement/lovac-cli/internal/reshape"
)

func TestReportTable(t *testing.T) {
	t.Parallel()

	table := &loader.Table{
		Columns: []string{"DEP", "LIB_DEP", "pp_total_24", "pp_vacant_24"},
		Rows: [][]string{
			{"01", "Ain", "100", "10"},
			{"02", "Aisne", "s", "20"},
			{"03", "Allier", "", "30"},
			{"02", "Aisne", "s", "20"}, // exact duplicate of row 2
		},
	}
	schema := reshape.DefaultSchema()
	obs, _ := reshape.Melt(table, schema)

	q := ReportTable(table, obs, schema)
	assert.Equal(t, 4, q.RowCount)
	assert.Equal(t, 1, q.DuplicateRows)
	// Suppressed and blank both count as missing.
	assert.Equal(t, 2, q.MissingByColumn["pp_total_24"])
	assert.Equal(t, 0, q.MissingByColumn["pp_vacant_24"])
	assert.InDelta(t, 50.0, q.MissingPctByColumn["pp_total_24"], 1e-6)
	assert.InDelta(t, 0.0, q.MissingPctByColumn["pp_vacant_24"], 1e-6)
}

func TestReportTableEmpty(t *testing.T) {
	t.Parallel()

	table := &loader.Table{Columns: []string{"DEP", "pp_total_24"}}
	q := ReportTable(table, nil, reshape.DefaultSchema())
	assert.Equal(t, 0, q.RowCount)
	assert.Equal(t, 0, q.DuplicateRows)
	assert.Empty(t, q.MissingByColumn)
}

func TestViolations(t *testing.T) {
	t.Parallel()

	records := []model.GeographyYearRecord{
		{Code: "01", Total: model.Some(100), Vacant: model.Some(120), Vacant2y: model.Some(130)},
		{Code: "02", Total: model.Some(-5), Vacant: model.Some(-1)},
		{Code: "03", Total: model.Missing(), Vacant: model.Some(50)},
		{Code: "04", Total: model.Some(100), Vacant: model.Some(8), Vacant2y: model.Some(4)},
	}

	v := Violations(records)
	assert.Equal(t, 1, v.VacantGTTotal)
	assert.Equal(t, 1, v.Vacant2yGTVacant)
	assert.Equal(t, 1, v.NegativeTotal)
	assert.Equal(t, 1, v.NegativeVacant)
}

func TestViolationsReportedNotCorrected(t *testing.T) {
	t.Parallel()

	// A vacant count above the total is flagged but the rate still
	// derives from the raw counts, unclamped.
	records := aggregate.PivotByYear([]model.Observation{
		{Geography: model.Geography{DepCode: "01", DepName: "Ain"}, Metric: model.MetricTotal, Year: 2024, Value: model.Some(100)},
		{Geography: model.Geography{DepCode: "01", DepName: "Ain"}, Metric: model.MetricVacant, Year: 2024, Value: model.Some(120)},
	}, aggregate.DepartmentKey)

	require.Len(t, records, 1)
	require.True(t, records[0].VacancyRate.Valid)
	assert.InDelta(t, 120.0, records[0].VacancyRate.Float64, 1e-6)

	v := Violations(records)
	assert.Equal(t, 1, v.VacantGTTotal)
}
