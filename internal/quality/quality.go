// Package quality computes the non-blocking data-quality report:
// missingness per source column, exact duplicate rows, and logical
// consistency violations. Nothing here ever halts the pipeline or
// discards a row — the source is known to contain suppression artifacts
// and timing skew, and silently dropping rows would bias aggregates.
package quality

import (
	"strings"

	"github.com/observatoire-logement/lovac-cli/internal/loader"
	"github.com/observatoire-logement/lovac-cli/internal/model"
	"github.com/observatoire-logement/lovac-cli/internal/reshape"
)

// ReportTable measures one raw table: row count, exact duplicate raw
// rows, and per-metric-column missing counts taken from the long-form
// observations. A suppressed cell counts as missing here, not as a
// violation.
func ReportTable(t *loader.Table, obs []model.Observation, schema reshape.Schema) model.TableQuality {
	q := model.TableQuality{
		RowCount:           len(t.Rows),
		MissingByColumn:    make(map[string]int),
		MissingPctByColumn: make(map[string]float64),
		DuplicateRows:      duplicateRows(t.Rows),
	}

	for _, o := range obs {
		col := schema.ColumnName(o.Metric, o.Year)
		if !o.Value.Valid {
			q.MissingByColumn[col]++
		} else if _, ok := q.MissingByColumn[col]; !ok {
			q.MissingByColumn[col] = 0
		}
	}

	for col, missing := range q.MissingByColumn {
		if q.RowCount > 0 {
			q.MissingPctByColumn[col] = float64(missing) / float64(q.RowCount) * 100
		} else {
			q.MissingPctByColumn[col] = 0
		}
	}
	return q
}

// duplicateRows counts rows identical to an earlier row, matching the
// "occurrences beyond the first" convention of the source.
func duplicateRows(rows [][]string) int {
	seen := make(map[string]struct{}, len(rows))
	dup := 0
	for _, row := range rows {
		k := strings.Join(row, "\x1f")
		if _, ok := seen[k]; ok {
			dup++
			continue
		}
		seen[k] = struct{}{}
	}
	return dup
}

// Violations counts logical inconsistencies over department-year
// records. Checks compare only present values; a record is counted, not
// corrected — a vacant count above the total still yields its
// (deliberately unclamped) rate.
func Violations(records []model.GeographyYearRecord) model.ConsistencyViolations {
	var v model.ConsistencyViolations
	for _, r := range records {
		if r.Vacant.Valid && r.Total.Valid && r.Vacant.Float64 > r.Total.Float64 {
			v.VacantGTTotal++
		}
		if r.Vacant2y.Valid && r.Vacant.Valid && r.Vacant2y.Float64 > r.Vacant.Float64 {
			v.Vacant2yGTVacant++
		}
		if r.Total.Valid && r.Total.Float64 < 0 {
			v.NegativeTotal++
		}
		if r.Vacant.Valid && r.Vacant.Float64 < 0 {
			v.NegativeVacant++
		}
	}
	return v
}
