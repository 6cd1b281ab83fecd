// Package pipeline orchestrates one batch run: load the two raw
// tables, normalize and melt them, aggregate, validate, and assemble
// the immutable Model. Each invocation takes raw file paths and returns
// a fresh Model or an error — there is no partial result and no shared
// mutable state across calls.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/observatoire-logement/lovac-cli/internal/aggregate"
	"github.com/observatoire-logement/lovac-cli/internal/loader"
	"github.com/observatoire-logement/lovac-cli/internal/model"
	"github.com/observatoire-logement/lovac-cli/internal/quality"
	"github.com/observatoire-logement/lovac-cli/internal/reshape"
)

// Options configures one pipeline run.
type Options struct {
	DepartmentPath string
	CommunePath    string
	Delimiter      rune           // default ';'
	Schema         reshape.Schema // zero value means the embedded default
}

// tableResult is the per-table output of the load+melt stage.
type tableResult struct {
	observations []model.Observation
	quality      model.TableQuality
}

// Build runs the full pipeline. Department and commune parsing are
// independent, so the two tables load concurrently.
func Build(ctx context.Context, opts Options) (*model.Model, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ';'
	}
	if len(opts.Schema.Metrics) == 0 {
		opts.Schema = reshape.DefaultSchema()
	}

	log := zap.L().With(zap.String("component", "pipeline"))
	start := time.Now()

	var dep, com tableResult
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := loadTable(opts.DepartmentPath, opts)
		if err != nil {
			return eris.Wrap(err, "pipeline: department table")
		}
		dep = r
		return nil
	})
	g.Go(func() error {
		r, err := loadTable(opts.CommunePath, opts)
		if err != nil {
			return eris.Wrap(err, "pipeline: commune table")
		}
		com = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byDep := aggregate.PivotByYear(dep.observations, aggregate.DepartmentKey)
	byReg := aggregate.PivotByYear(com.observations, aggregate.RegionKey)
	national := aggregate.National(byDep)

	report := model.QualityReport{
		Department: dep.quality,
		Commune:    com.quality,
		Violations: quality.Violations(byDep),
	}

	years := model.ObservationYears(dep.observations)
	var snapshot []model.DepartmentSnapshot
	if len(years) > 0 {
		snapshot = aggregate.LatestSnapshot(byDep, years[len(years)-1])
	}

	m := model.Assemble(dep.observations, com.observations, byDep, byReg, national, snapshot, report)

	log.Info("model built",
		zap.Int("department_observations", len(m.ObservationsDepartment)),
		zap.Int("commune_observations", len(m.ObservationsCommune)),
		zap.Int("years", len(m.YearsAvailable)),
		zap.Int("regions", len(m.RegionNames)),
		zap.Duration("duration", time.Since(start)),
	)
	return m, nil
}

// loadTable reads one raw table and melts it. The raw table is local to
// this call and discarded once the quality report and observations are
// produced.
func loadTable(path string, opts Options) (tableResult, error) {
	t, err := loader.ReadCSV(path, opts.Delimiter)
	if err != nil {
		return tableResult{}, err
	}

	obs, matched := reshape.Melt(t, opts.Schema)
	zap.L().Debug("table melted",
		zap.String("component", "pipeline"),
		zap.String("path", path),
		zap.Int("rows", len(t.Rows)),
		zap.Int("metric_columns", len(matched)),
		zap.Int("observations", len(obs)),
	)

	return tableResult{
		observations: obs,
		quality:      quality.ReportTable(t, obs, opts.Schema),
	}, nil
}
