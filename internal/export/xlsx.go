// Package export writes model tables to analyst-facing files.
package export

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/observatoire-logement/lovac-cli/internal/model"
)

var snapshotHeader = []string{
	"dep_code", "dep_name", "year",
	"total", "vacant", "vacant_2y",
	"vacancy_rate", "vacancy_2y_rate", "longterm_share",
	"vacant_change", "vacant_change_pct", "level",
}

// SnapshotXLSX writes the latest-year department snapshot to an XLSX
// workbook. Missing values render as empty cells, never as zero.
func SnapshotXLSX(m *model.Model, path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(fmt.Sprintf("departments_%d", m.LatestYear()))
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	hdr := sheet.AddRow()
	for _, h := range snapshotHeader {
		hdr.AddCell().SetString(h)
	}

	for _, s := range m.LatestYearSnapshot {
		row := sheet.AddRow()
		row.AddCell().SetString(s.Code)
		row.AddCell().SetString(s.Name)
		row.AddCell().SetInt(s.Year)
		for _, v := range []model.Nullable{
			s.Total, s.Vacant, s.Vacant2y,
			s.VacancyRate, s.Vacancy2yRate, s.LongTermShare,
			s.VacantChange, s.VacantChangePct,
		} {
			cell := row.AddCell()
			if v.Valid {
				cell.SetFloat(v.Float64)
			}
		}
		row.AddCell().SetString(string(s.Level))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
