package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/observatoire-logement/lovac-cli/internal/model"
)

// Pool abstracts the pgx pool surface the store needs; pgxmock
// implements it for unit tests.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id               TEXT PRIMARY KEY,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	latest_year      INT NOT NULL,
	years            JSONB NOT NULL,
	quality          JSONB NOT NULL,
	department_rows  INT NOT NULL,
	commune_rows     INT NOT NULL
);

CREATE TABLE IF NOT EXISTS geography_year (
	snapshot_id     TEXT NOT NULL REFERENCES snapshots(id),
	level           TEXT NOT NULL,
	code            TEXT NOT NULL,
	name            TEXT NOT NULL,
	year            INT NOT NULL,
	total           DOUBLE PRECISION,
	vacant          DOUBLE PRECISION,
	vacant_2y       DOUBLE PRECISION,
	vacancy_rate    DOUBLE PRECISION,
	vacancy_2y_rate DOUBLE PRECISION,
	longterm_share  DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS observations (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id),
	dep_code    TEXT NOT NULL,
	metric      TEXT NOT NULL,
	year        INT NOT NULL,
	value       DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_geography_year_snapshot ON geography_year(snapshot_id, level);
CREATE INDEX IF NOT EXISTS idx_observations_snapshot ON observations(snapshot_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// SaveSnapshot writes a built model as one snapshot in a single
// transaction.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, m *model.Model) (string, error) {
	id := uuid.New().String()

	yearsJSON, err := json.Marshal(m.YearsAvailable)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal years")
	}
	qualityJSON, err := json.Marshal(m.Quality)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal quality report")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO snapshots (id, created_at, latest_year, years, quality, department_rows, commune_rows)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, time.Now().UTC(), m.LatestYear(), yearsJSON, qualityJSON,
		m.Quality.Department.RowCount, m.Quality.Commune.RowCount,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert snapshot")
	}

	recRows := make([][]any, 0, len(m.ByDepartmentYear)+len(m.ByRegionYear)+len(m.National))
	for _, set := range []struct {
		level   string
		records []model.GeographyYearRecord
	}{
		{"department", m.ByDepartmentYear},
		{"region", m.ByRegionYear},
		{"national", m.National},
	} {
		for _, r := range set.records {
			recRows = append(recRows, []any{id, set.level, r.Code, r.Name, r.Year,
				r.Total.Ptr(), r.Vacant.Ptr(), r.Vacant2y.Ptr(),
				r.VacancyRate.Ptr(), r.Vacancy2yRate.Ptr(), r.LongTermShare.Ptr()})
		}
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"geography_year"},
		[]string{"snapshot_id", "level", "code", "name", "year", "total", "vacant", "vacant_2y", "vacancy_rate", "vacancy_2y_rate", "longterm_share"},
		pgx.CopyFromRows(recRows))
	if err != nil {
		return "", eris.Wrap(err, "postgres: copy geography_year")
	}

	obsRows := make([][]any, 0, len(m.ObservationsDepartment))
	for _, o := range m.ObservationsDepartment {
		obsRows = append(obsRows, []any{id, o.Geography.DepCode, string(o.Metric), o.Year, o.Value.Ptr()})
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"observations"},
		[]string{"snapshot_id", "dep_code", "metric", "year", "value"},
		pgx.CopyFromRows(obsRows))
	if err != nil {
		return "", eris.Wrap(err, "postgres: copy observations")
	}

	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: commit")
	}
	return id, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, created_at, latest_year, department_rows, commune_rows
		 FROM snapshots ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var infos []SnapshotInfo
	for rows.Next() {
		var in SnapshotInfo
		if err := rows.Scan(&in.ID, &in.CreatedAt, &in.LatestYear, &in.DepartmentRows, &in.CommuneRows); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot row")
		}
		infos = append(infos, in)
	}
	return infos, rows.Err()
}
