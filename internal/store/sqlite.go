package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/observatoire-logement/lovac-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures
// WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id               TEXT PRIMARY KEY,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	latest_year      INTEGER NOT NULL,
	years            TEXT NOT NULL,
	quality          TEXT NOT NULL,
	department_rows  INTEGER NOT NULL,
	commune_rows     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS geography_year (
	snapshot_id     TEXT NOT NULL REFERENCES snapshots(id),
	level           TEXT NOT NULL,
	code            TEXT NOT NULL,
	name            TEXT NOT NULL,
	year            INTEGER NOT NULL,
	total           REAL,
	vacant          REAL,
	vacant_2y       REAL,
	vacancy_rate    REAL,
	vacancy_2y_rate REAL,
	longterm_share  REAL
);

CREATE TABLE IF NOT EXISTS observations (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id),
	dep_code    TEXT NOT NULL,
	metric      TEXT NOT NULL,
	year        INTEGER NOT NULL,
	value       REAL
);

CREATE INDEX IF NOT EXISTS idx_geography_year_snapshot ON geography_year(snapshot_id, level);
CREATE INDEX IF NOT EXISTS idx_observations_snapshot ON observations(snapshot_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot writes a built model as one snapshot in a single
// transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, m *model.Model) (string, error) {
	id := uuid.New().String()

	yearsJSON, err := json.Marshal(m.YearsAvailable)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal years")
	}
	qualityJSON, err := json.Marshal(m.Quality)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal quality report")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, created_at, latest_year, years, quality, department_rows, commune_rows)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().UTC(), m.LatestYear(), string(yearsJSON), string(qualityJSON),
		m.Quality.Department.RowCount, m.Quality.Commune.RowCount,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert snapshot")
	}

	recStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO geography_year (snapshot_id, level, code, name, year, total, vacant, vacant_2y, vacancy_rate, vacancy_2y_rate, longterm_share)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: prepare record insert")
	}
	defer recStmt.Close()

	for _, set := range []struct {
		level   string
		records []model.GeographyYearRecord
	}{
		{"department", m.ByDepartmentYear},
		{"region", m.ByRegionYear},
		{"national", m.National},
	} {
		for _, r := range set.records {
			_, err := recStmt.ExecContext(ctx, id, set.level, r.Code, r.Name, r.Year,
				r.Total.Ptr(), r.Vacant.Ptr(), r.Vacant2y.Ptr(),
				r.VacancyRate.Ptr(), r.Vacancy2yRate.Ptr(), r.LongTermShare.Ptr())
			if err != nil {
				return "", eris.Wrapf(err, "sqlite: insert %s record", set.level)
			}
		}
	}

	obsStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO observations (snapshot_id, dep_code, metric, year, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: prepare observation insert")
	}
	defer obsStmt.Close()

	for _, o := range m.ObservationsDepartment {
		if _, err := obsStmt.ExecContext(ctx, id, o.Geography.DepCode, string(o.Metric), o.Year, o.Value.Ptr()); err != nil {
			return "", eris.Wrap(err, "sqlite: insert observation")
		}
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit")
	}
	return id, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, latest_year, department_rows, commune_rows
		 FROM snapshots ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close()

	var infos []SnapshotInfo
	for rows.Next() {
		var in SnapshotInfo
		if err := rows.Scan(&in.ID, &in.CreatedAt, &in.LatestYear, &in.DepartmentRows, &in.CommuneRows); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot row")
		}
		infos = append(infos, in)
	}
	return infos, rows.Err()
}
