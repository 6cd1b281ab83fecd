// Package reshape melts the wide raw tables into the long-form
// Observation table. Metric columns are recognized by a declarative
// schema of {metric, column base} pairs rather than hard-coded names.
package reshape

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/observatoire-logement/lovac-cli/internal/loader"
	"github.com/observatoire-logement/lovac-cli/internal/model"
	"github.com/observatoire-logement/lovac-cli/internal/normalize"
)

//go:embed schema.yaml
var defaultSchemaYAML []byte

// MetricColumn binds a metric to the column base name it melts from.
type MetricColumn struct {
	Metric model.Metric `yaml:"metric"`
	Base   string       `yaml:"base"`
}

// Schema declares which wide columns are metric columns. A column named
// <base>_<YY> melts into the bound metric for year 2000+YY when YY
// falls inside [YearMin, YearMax].
type Schema struct {
	YearMin int            `yaml:"year_min"`
	YearMax int            `yaml:"year_max"`
	Metrics []MetricColumn `yaml:"metrics"`
}

// DefaultSchema returns the embedded LOVAC schema.
func DefaultSchema() Schema {
	s, err := parseSchema(defaultSchemaYAML)
	if err != nil {
		// The embedded resource is validated by tests; a parse failure
		// here is a build defect.
		panic(err)
	}
	return s
}

// LoadSchema reads a schema from a YAML file, for deployments tracking
// a newer data vintage than the embedded default.
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, eris.Wrapf(err, "reshape: read schema %s", path)
	}
	return parseSchema(data)
}

func parseSchema(data []byte) (Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, eris.Wrap(err, "reshape: parse schema")
	}
	if len(s.Metrics) == 0 {
		return Schema{}, eris.New("reshape: schema declares no metrics")
	}
	if s.YearMin > s.YearMax {
		return Schema{}, eris.Errorf("reshape: invalid year window [%d, %d]", s.YearMin, s.YearMax)
	}
	return s, nil
}

// Match reports whether a column name is a metric column, and if so
// which metric and full year it carries.
func (s Schema) Match(column string) (model.Metric, int, bool) {
	for _, mc := range s.Metrics {
		rest, ok := strings.CutPrefix(column, mc.Base+"_")
		if !ok || len(rest) != 2 {
			continue
		}
		yy, err := strconv.Atoi(rest)
		if err != nil || yy < s.YearMin || yy > s.YearMax {
			continue
		}
		return mc.Metric, 2000 + yy, true
	}
	return "", 0, false
}

// ColumnName reconstructs the wide column name for a metric and year.
// The quality report uses it to key missingness by source column.
func (s Schema) ColumnName(metric model.Metric, year int) string {
	for _, mc := range s.Metrics {
		if mc.Metric == metric {
			return fmt.Sprintf("%s_%02d", mc.Base, year-2000)
		}
	}
	return string(metric)
}

// geographySetters maps known key columns onto Geography fields. Key
// columns not listed here are metadata and are silently dropped from
// the melt, which is how non-metric noise columns are filtered out.
var geographySetters = map[string]func(*model.Geography, string){
	"DEP":         func(g *model.Geography, v string) { g.DepCode = v },
	"LIB_DEP":     func(g *model.Geography, v string) { g.DepName = v },
	"CODGEO_25":   func(g *model.Geography, v string) { g.ComCode = v },
	"LIBGEO_25":   func(g *model.Geography, v string) { g.ComName = v },
	"REG":         func(g *model.Geography, v string) { g.RegCode = v },
	"LIB_REG":     func(g *model.Geography, v string) { g.RegName = v },
	"EPCI_25":     func(g *model.Geography, v string) { g.EPCICode = v },
	"LIB_EPCI_25": func(g *model.Geography, v string) { g.EPCIName = v },
}

// Melt converts a raw table into one Observation per (row, matched
// metric column). Every matched column yields an observation even when
// the cell is suppressed or blank, so the output row count is exactly
// rows × matched columns and a re-pivot reproduces the wide table.
// The second return value lists the matched metric columns.
func Melt(t *loader.Table, s Schema) ([]model.Observation, []string) {
	type metricCol struct {
		index  int
		metric model.Metric
		year   int
	}

	var (
		metricCols []metricCol
		matched    []string
		keySetters []func(*model.Geography, string)
		keyIndices []int
	)
	for i, col := range t.Columns {
		if metric, year, ok := s.Match(col); ok {
			metricCols = append(metricCols, metricCol{index: i, metric: metric, year: year})
			matched = append(matched, col)
			continue
		}
		if set, ok := geographySetters[col]; ok {
			keySetters = append(keySetters, set)
			keyIndices = append(keyIndices, i)
		}
	}

	obs := make([]model.Observation, 0, len(t.Rows)*len(metricCols))
	for _, row := range t.Rows {
		var geo model.Geography
		for k, idx := range keyIndices {
			if idx < len(row) {
				keySetters[k](&geo, strings.TrimSpace(row[idx]))
			}
		}
		for _, mc := range metricCols {
			var cell string
			if mc.index < len(row) {
				cell = row[mc.index]
			}
			obs = append(obs, model.Observation{
				Geography: geo,
				Metric:    mc.metric,
				Year:      mc.year,
				Value:     normalize.Number(cell),
			})
		}
	}
	return obs, matched
}
