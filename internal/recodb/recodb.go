// Package recodb persists reconstruction runs and their cluster
// summaries in SQLite, so repeated runs over the same capture can be
// compared while tuning.
package recodb

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kestrel-data/framereco/internal/reco"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("recodb: run not found")

// DB wraps the run store connection.
type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the run database at path and
// applies pending migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("recodb: open %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("recodb: enable foreign keys: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("recodb: load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("recodb: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("recodb: migration setup: %w", err)
	}
	// Note: we don't close m because it would close the underlying DB
	// connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("recodb: migrate up: %w", err)
	}
	return nil
}

// Run is one persisted reconstruction run.
type Run struct {
	RunID        string
	SourcePath   string
	SourceFormat string
	StartedAt    time.Time
	Elapsed      time.Duration
	Clusterer    string

	PointsTotal  int
	PointsGround int
	PointsAbove  int
	PointsNoise  int
	ClusterCount int

	Plane      reco.PlaneCoeffs
	ParamsJSON string
}

// RecordRun inserts a run row with its cluster summaries and returns
// the generated run ID.
func (db *DB) RecordRun(res *reco.Result, sourcePath, sourceFormat string, cfg reco.Config) (string, error) {
	runID := uuid.New().String()

	paramsJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("recodb: encode params: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("recodb: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO reco_runs (
			run_id, source_path, source_format, started_unix_nanos, elapsed_nanos,
			clusterer, points_total, points_ground, points_above, points_noise,
			cluster_count, plane_a, plane_b, plane_c, plane_rmse, params_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, sourcePath, sourceFormat, time.Now().UnixNano(), res.Elapsed.Nanoseconds(),
		res.Clusterer, res.PointsTotal, res.PointsGround, res.PointsAbove, res.PointsNoise,
		len(res.Clusters), res.Plane.A, res.Plane.B, res.Plane.C, res.Plane.RMSE,
		string(paramsJSON),
	)
	if err != nil {
		return "", fmt.Errorf("recodb: insert run: %w", err)
	}

	for _, m := range res.Clusters {
		_, err = tx.Exec(`
			INSERT INTO reco_clusters (
				run_id, cluster_id, points_count,
				centroid_x, centroid_y, centroid_z,
				bbox_length, bbox_width, bbox_height,
				height_p95, intensity_mean, density, aspect_ratio, class
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, m.ClusterID, m.PointCount,
			m.CentroidX, m.CentroidY, m.CentroidZ,
			m.Length, m.Width, m.Height,
			m.HeightP95, m.IntensityMean, m.Density, m.AspectRatio, m.Class.String(),
		)
		if err != nil {
			return "", fmt.Errorf("recodb: insert cluster %d: %w", m.ClusterID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("recodb: commit: %w", err)
	}
	return runID, nil
}

// GetRun loads one run row.
func (db *DB) GetRun(runID string) (*Run, error) {
	row := db.QueryRow(`
		SELECT run_id, source_path, source_format, started_unix_nanos, elapsed_nanos,
		       clusterer, points_total, points_ground, points_above, points_noise,
		       cluster_count, plane_a, plane_b, plane_c, plane_rmse, params_json
		FROM reco_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

// ListRuns returns up to limit runs, newest first.
func (db *DB) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT run_id, source_path, source_format, started_unix_nanos, elapsed_nanos,
		       clusterer, points_total, points_ground, points_above, points_noise,
		       cluster_count, plane_a, plane_b, plane_c, plane_rmse, params_json
		FROM reco_runs ORDER BY started_unix_nanos DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recodb: list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunClusters loads the cluster summaries recorded for a run,
// ordered by cluster ID.
func (db *DB) GetRunClusters(runID string) ([]reco.ClusterMetrics, error) {
	rows, err := db.Query(`
		SELECT cluster_id, points_count, centroid_x, centroid_y, centroid_z,
		       bbox_length, bbox_width, bbox_height,
		       height_p95, intensity_mean, density, aspect_ratio
		FROM reco_clusters WHERE run_id = ? ORDER BY cluster_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("recodb: run clusters: %w", err)
	}
	defer rows.Close()

	var out []reco.ClusterMetrics
	for rows.Next() {
		var m reco.ClusterMetrics
		err := rows.Scan(&m.ClusterID, &m.PointCount, &m.CentroidX, &m.CentroidY, &m.CentroidZ,
			&m.Length, &m.Width, &m.Height,
			&m.HeightP95, &m.IntensityMean, &m.Density, &m.AspectRatio)
		if err != nil {
			return nil, fmt.Errorf("recodb: scan cluster: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var startedNanos, elapsedNanos int64
	err := row.Scan(&r.RunID, &r.SourcePath, &r.SourceFormat, &startedNanos, &elapsedNanos,
		&r.Clusterer, &r.PointsTotal, &r.PointsGround, &r.PointsAbove, &r.PointsNoise,
		&r.ClusterCount, &r.Plane.A, &r.Plane.B, &r.Plane.C, &r.Plane.RMSE, &r.ParamsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("recodb: scan run: %w", err)
	}
	r.StartedAt = time.Unix(0, startedNanos)
	r.Elapsed = time.Duration(elapsedNanos)
	return &r, nil
}
