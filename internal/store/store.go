// Package store persists built models as immutable snapshots. A
// snapshot is a Model's aggregate tables, department observations, and
// quality report keyed by a generated id; nothing is ever updated in
// place.
package store

import (
	"context"
	"time"

	"github.com/observatoire-logement/lovac-cli/internal/model"
)

// SnapshotInfo summarizes one stored snapshot.
type SnapshotInfo struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	LatestYear     int       `json:"latest_year"`
	DepartmentRows int       `json:"department_rows"`
	CommuneRows    int       `json:"commune_rows"`
}

// Store is the persistence interface for pipeline snapshots.
type Store interface {
	Migrate(ctx context.Context) error
	SaveSnapshot(ctx context.Context, m *model.Model) (string, error)
	ListSnapshots(ctx context.Context) ([]SnapshotInfo, error)
	Close() error
}
