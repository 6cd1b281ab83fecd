package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/observatoire-logement/lovac-cli/internal/model"
)

// writeLatin1 writes a CSV file in Windows-1252, the encoding the open
// data portal actually ships.
func writeLatin1(t *testing.T, dir, name, content string) string {
	t.Helper()
	encoded, err := charmap.Windows1252.NewEncoder().String(content)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0o644))
	return path
}

const departmentCSV = "DEP;LIB_DEP;pp_total_24;pp_vacant_24;pp_vacant_plus_2ans_24;pp_vacant_25;pp_vacant_plus_2ans_25\n" +
	"75;Paris;1 000 000;80 000;40 000;90 000;45 000\n" +
	"13;Bouches-du-Rhône;500 000;20 000;10 000;19 000;s\n"

const communeCSV = "CODGEO_25;LIBGEO_25;DEP;LIB_DEP;REG;LIB_REG;pp_total_24;pp_vacant_24\n" +
	"75056;Paris;75;Paris;11;Île-de-France;1 000 000;80 000\n" +
	"13055;Marseille;13;Bouches-du-Rhône;93;Provence-Alpes-Côte d'Azur;300 000;12 000\n" +
	"13001;Aix-en-Provence;13;Bouches-du-Rhône;93;Provence-Alpes-Côte d'Azur;200 000;8 000\n"

func TestBuild(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	opts := Options{
		DepartmentPath: writeLatin1(t, dir, "dep.csv", departmentCSV),
		CommunePath:    writeLatin1(t, dir, "com.csv", communeCSV),
	}

	m, err := Build(context.Background(), opts)
	require.NoError(t, err)

	// 2 rows × 5 metric columns in the department file.
	assert.Len(t, m.ObservationsDepartment, 10)
	assert.Len(t, m.ObservationsCommune, 6)
	assert.Equal(t, []int{2024, 2025}, m.YearsAvailable)
	assert.Equal(t, 2025, m.LatestYear())

	// Accented names survive the Latin-1 decode.
	assert.Contains(t, m.DepartmentNames, "Bouches-du-Rhône")
	assert.Contains(t, m.RegionNames, "Provence-Alpes-Côte d'Azur")

	// Department pivot: 2 departments × 2 years.
	require.Len(t, m.ByDepartmentYear, 4)

	paris24 := findRecord(t, m.ByDepartmentYear, "75", 2024)
	require.True(t, paris24.VacancyRate.Valid)
	assert.InDelta(t, 8.0, paris24.VacancyRate.Float64, 1e-6)

	// 2025 has no total column; the 2024 total is the denominator.
	paris25 := findRecord(t, m.ByDepartmentYear, "75", 2025)
	assert.Equal(t, model.Some(1000000), paris25.Total)
	require.True(t, paris25.VacancyRate.Valid)
	assert.InDelta(t, 9.0, paris25.VacancyRate.Float64, 1e-6)

	// Region roll-up sums commune counts and recomputes the rate.
	paca := findRecord(t, m.ByRegionYear, "93", 2024)
	assert.Equal(t, model.Some(500000), paca.Total)
	assert.Equal(t, model.Some(20000), paca.Vacant)
	require.True(t, paca.VacancyRate.Valid)
	assert.InDelta(t, 4.0, paca.VacancyRate.Float64, 1e-6)

	// National record sums the department counts.
	require.Len(t, m.National, 2)
	nat24 := findRecord(t, m.National, "FR", 2024)
	assert.Equal(t, model.Some(1500000), nat24.Total)

	// Snapshot carries year-over-year movement for the latest year.
	require.Len(t, m.LatestYearSnapshot, 2)
	for _, snap := range m.LatestYearSnapshot {
		assert.Equal(t, 2025, snap.Year)
		assert.True(t, snap.VacantChange.Valid)
	}

	// The suppressed vacant_2y cell shows up as missingness, never as
	// a zero or a dropped row.
	assert.Equal(t, 2, m.Quality.Department.RowCount)
	assert.Equal(t, 1, m.Quality.Department.MissingByColumn["pp_vacant_plus_2ans_25"])
	assert.Equal(t, 0, m.Quality.Department.DuplicateRows)
}

func TestBuildMissingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	opts := Options{
		DepartmentPath: filepath.Join(dir, "absent.csv"),
		CommunePath:    writeLatin1(t, dir, "com.csv", communeCSV),
	}

	_, err := Build(context.Background(), opts)
	assert.Error(t, err)
}

func TestBuildCustomDelimiter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dep := "DEP,LIB_DEP,pp_total_24,pp_vacant_24\n01,Ain,100,10\n"
	com := "CODGEO_25,LIBGEO_25,DEP,LIB_DEP,REG,LIB_REG,pp_total_24,pp_vacant_24\n01001,Ambérieu,01,Ain,84,Auvergne-Rhône-Alpes,100,10\n"

	opts := Options{
		DepartmentPath: writeLatin1(t, dir, "dep.csv", dep),
		CommunePath:    writeLatin1(t, dir, "com.csv", com),
		Delimiter:      ',',
	}

	m, err := Build(context.Background(), opts)
	require.NoError(t, err)
	assert.Len(t, m.ObservationsDepartment, 2)
	assert.Equal(t, []int{2024}, m.YearsAvailable)
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
