package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/airport-borders/internal/geo"
	"github.com/sells-group/airport-borders/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	input       TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       TEXT,
	error       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS regions (
	run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	region_id INTEGER NOT NULL,
	geom      BLOB,
	PRIMARY KEY (run_id, region_id)
);

CREATE TABLE IF NOT EXISTS assignments (
	run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	point_id        TEXT NOT NULL,
	region_id       INTEGER,
	method          TEXT NOT NULL,
	distance_meters REAL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_assignments_point ON assignments(run_id, point_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, input model.RunInput) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal input")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input, status, created_at) VALUES (?, ?, ?, ?)`,
		id, string(inputJSON), string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{ID: id, Input: input, Status: model.RunStatusRunning, CreatedAt: now}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, stats geo.Stats, runErr error) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, stats = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), string(statsJSON), errString(runErr), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, input, status, stats, error, created_at, finished_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, input, status, stats, error, created_at, finished_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, filter.limit())
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveRegions(ctx context.Context, runID string, regions []geo.Region) error {
	return s.inTx(ctx, `INSERT INTO regions (run_id, region_id, geom) VALUES (?, ?, ?)`, func(stmt *sql.Stmt) error {
		for _, r := range regions {
			data, err := encodePolygon(r.Polygon)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, runID, r.ID, data); err != nil {
				return eris.Wrapf(err, "sqlite: insert region %d", r.ID)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) LoadRegions(ctx context.Context, runID string) ([]geo.Region, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT region_id, geom FROM regions WHERE run_id = ? ORDER BY region_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load regions")
	}
	defer rows.Close() //nolint:errcheck

	var regions []geo.Region
	for rows.Next() {
		var (
			id   int
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region")
		}
		r, err := decodeRegion(id, data)
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, eris.Wrap(rows.Err(), "sqlite: load regions iterate")
}

func (s *SQLiteStore) SaveAssignments(ctx context.Context, rows []model.Assignment) error {
	const q = `INSERT INTO assignments (run_id, position, point_id, region_id, method, distance_meters) VALUES (?, ?, ?, ?, ?, ?)`
	return s.inTx(ctx, q, func(stmt *sql.Stmt) error {
		for _, a := range rows {
			var regionID, distance any
			if a.RegionID != nil {
				regionID = *a.RegionID
			}
			if a.DistanceMeters != nil {
				distance = *a.DistanceMeters
			}
			if _, err := stmt.ExecContext(ctx, a.RunID, a.Position, a.PointID, regionID, string(a.Method), distance); err != nil {
				return eris.Wrapf(err, "sqlite: insert assignment %s", a.PointID)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetAssignments(ctx context.Context, runID string) ([]model.Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, position, point_id, region_id, method, distance_meters
		 FROM assignments WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get assignments")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Assignment
	for rows.Next() {
		var (
			a        model.Assignment
			method   string
			regionID sql.NullInt64
			distance sql.NullFloat64
		)
		if err := rows.Scan(&a.RunID, &a.Position, &a.PointID, &regionID, &method, &distance); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assignment")
		}
		a.Method = model.Method(method)
		if regionID.Valid {
			id := int(regionID.Int64)
			a.RegionID = &id
		}
		if distance.Valid {
			d := distance.Float64
			a.DistanceMeters = &d
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: get assignments iterate")
}

// inTx prepares query inside a transaction and commits if fn succeeds.
func (s *SQLiteStore) inTx(ctx context.Context, query string, fn func(*sql.Stmt) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	if err := fn(stmt); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var (
		r         model.Run
		inputJSON string
		statsJSON sql.NullString
		status    string
		finished  sql.NullTime
	)
	err := row.Scan(&r.ID, &inputJSON, &status, &statsJSON, &r.Error, &r.CreatedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Status = model.RunStatus(status)
	if err := json.Unmarshal([]byte(inputJSON), &r.Input); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal input")
	}
	if statsJSON.Valid {
		if err := json.Unmarshal([]byte(statsJSON.String), &r.Stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stats")
		}
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}
