// Package aggregate pivots the long-form Observation table back into
// per-geography-per-year records, derives vacancy rates, and rolls
// commune observations up to region totals. Only counts are ever
// summed; rates are always recomputed from the summed counts.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/observatoire-logement/lovac-cli/internal/model"
)

// KeyFunc extracts the grouping key from an observation's geography.
type KeyFunc func(model.Geography) (code, name string)

// DepartmentKey groups observations by department.
func DepartmentKey(g model.Geography) (string, string) {
	return g.DepCode, g.DepName
}

// RegionKey groups observations by region. Applied to commune-level
// observations this sums commune counts up to region totals; region
// rates are then recomputed from those sums rather than averaged from
// department rates, which would be wrong.
func RegionKey(g model.Geography) (string, string) {
	return g.RegCode, g.RegName
}

type group struct {
	code, name string
	year       int
	sum        map[model.Metric]float64
	observed   map[model.Metric]bool // a column existed, even if every cell was suppressed
}

// PivotByYear groups observations on (key, year) and sums present
// values per metric. Suppressed and blank cells never contribute to a
// sum. A metric with no column at all for a year is filled with zero —
// "no properties recorded", distinct from a present-but-missing cell —
// with one exception: a year whose total column is structurally absent
// borrows the same geography's previous-year total, preserving the
// source's documented period-25 denominator rule.
func PivotByYear(obs []model.Observation, key KeyFunc) []model.GeographyYearRecord {
	groups := make(map[string]*group)
	for _, o := range obs {
		code, name := key(o.Geography)
		k := fmt.Sprintf("%s\x00%d", code, o.Year)
		g, ok := groups[k]
		if !ok {
			g = &group{
				code: code, name: name, year: o.Year,
				sum:      make(map[model.Metric]float64, len(model.Metrics)),
				observed: make(map[model.Metric]bool, len(model.Metrics)),
			}
			groups[k] = g
		}
		g.observed[o.Metric] = true
		if o.Value.Valid {
			g.sum[o.Metric] += o.Value.Float64
		}
	}

	records := make([]model.GeographyYearRecord, 0, len(groups))
	for _, g := range groups {
		rec := model.GeographyYearRecord{
			Code:     g.code,
			Name:     g.name,
			Year:     g.year,
			Total:    model.Some(g.sum[model.MetricTotal]),
			Vacant:   model.Some(g.sum[model.MetricVacant]),
			Vacant2y: model.Some(g.sum[model.MetricVacant2y]),
		}
		if !g.observed[model.MetricTotal] {
			rec.Total = borrowPreviousTotal(groups, g)
		}
		records = append(records, deriveRates(rec))
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Code != records[j].Code {
			return records[i].Code < records[j].Code
		}
		return records[i].Year < records[j].Year
	})
	return records
}

// borrowPreviousTotal resolves a structurally absent total column from
// the previous year of the same geography. The 2025 LOVAC vintage ships
// pp_vacant_25 but no pp_total_25; its rates must use the 2024 total.
func borrowPreviousTotal(groups map[string]*group, g *group) model.Nullable {
	prev, ok := groups[fmt.Sprintf("%s\x00%d", g.code, g.year-1)]
	if !ok || !prev.observed[model.MetricTotal] {
		return model.Some(0)
	}
	return model.Some(prev.sum[model.MetricTotal])
}

// deriveRates fills the derived fields of a record. A rate is missing
// whenever its denominator is missing or not positive; no infinity or
// NaN ever reaches the output.
func deriveRates(rec model.GeographyYearRecord) model.GeographyYearRecord {
	rec.VacancyRate = Rate(rec.Vacant, rec.Total)
	rec.Vacancy2yRate = Rate(rec.Vacant2y, rec.Total)
	rec.LongTermShare = Rate(rec.Vacant2y, rec.Vacant)
	return rec
}

// Rate computes numerator/denominator*100, or missing when either side
// is missing or the denominator is not positive.
func Rate(num, den model.Nullable) model.Nullable {
	if !num.Valid || !den.Valid || den.Float64 <= 0 {
		return model.Missing()
	}
	return model.Some(num.Float64 / den.Float64 * 100)
}

// National sums department-year records into one France-wide record per
// year. Counts are summed (department totals for the borrowed-total
// year already carry their previous-year substitution); rates are
// recomputed from the national sums.
func National(byDep []model.GeographyYearRecord) []model.GeographyYearRecord {
	byYear := make(map[int]*model.GeographyYearRecord)
	for _, rec := range byDep {
		nat, ok := byYear[rec.Year]
		if !ok {
			nat = &model.GeographyYearRecord{Code: "FR", Name: "France", Year: rec.Year,
				Total: model.Some(0), Vacant: model.Some(0), Vacant2y: model.Some(0)}
			byYear[rec.Year] = nat
		}
		nat.Total = addNullable(nat.Total, rec.Total)
		nat.Vacant = addNullable(nat.Vacant, rec.Vacant)
		nat.Vacant2y = addNullable(nat.Vacant2y, rec.Vacant2y)
	}

	records := make([]model.GeographyYearRecord, 0, len(byYear))
	for _, nat := range byYear {
		records = append(records, deriveRates(*nat))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Year < records[j].Year })
	return records
}

// addNullable adds a contribution to a running sum, skipping missing
// contributions rather than poisoning the sum.
func addNullable(sum, v model.Nullable) model.Nullable {
	if !v.Valid {
		return sum
	}
	return model.Some(sum.Or(0) + v.Float64)
}

// LatestSnapshot enriches each department's record for the given year
// with year-over-year vacant movement and the presentation banding.
func LatestSnapshot(byDep []model.GeographyYearRecord, year int) []model.DepartmentSnapshot {
	prev := make(map[string]model.GeographyYearRecord)
	for _, rec := range byDep {
		if rec.Year == year-1 {
			prev[rec.Code] = rec
		}
	}

	var snaps []model.DepartmentSnapshot
	for _, rec := range byDep {
		if rec.Year != year {
			continue
		}
		snap := model.DepartmentSnapshot{
			GeographyYearRecord: rec,
			Level:               model.ClassifyVacancyLevel(rec.VacancyRate),
		}
		if p, ok := prev[rec.Code]; ok && rec.Vacant.Valid && p.Vacant.Valid {
			snap.VacantChange = model.Some(rec.Vacant.Float64 - p.Vacant.Float64)
			if p.Vacant.Float64 > 0 {
				snap.VacantChangePct = model.Some((rec.Vacant.Float64 - p.Vacant.Float64) / p.Vacant.Float64 * 100)
			}
		}
		snaps = append(snaps, snap)
	}

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Code < snaps[j].Code })
	return snaps
}

// Selector extracts the ranking metric from a snapshot.
type Selector func(model.DepartmentSnapshot) model.Nullable

// TopDepartments returns the n snapshots with the highest (or lowest,
// when ascending) value of the selected metric. Snapshots missing the
// metric are excluded rather than sorted to an arbitrary end.
func TopDepartments(snaps []model.DepartmentSnapshot, sel Selector, n int, ascending bool) []model.DepartmentSnapshot {
	ranked := make([]model.DepartmentSnapshot, 0, len(snaps))
	for _, s := range snaps {
		if sel(s).Valid {
			ranked = append(ranked, s)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := sel(ranked[i]).Float64, sel(ranked[j]).Float64
		if ascending {
			return a < b
		}
		return a > b
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
