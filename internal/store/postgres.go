package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/airport-borders/internal/db"
	"github.com/sells-group/airport-borders/internal/geo"
	"github.com/sells-group/airport-borders/internal/model"
)

// PostgresStore implements Store using pgxpool. Region and assignment rows
// are bulk loaded with COPY.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

var _ Store = (*PostgresStore)(nil)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	input       JSONB NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       JSONB,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS regions (
	run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	region_id INTEGER NOT NULL,
	geom      BYTEA,
	PRIMARY KEY (run_id, region_id)
);

CREATE TABLE IF NOT EXISTS assignments (
	run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	point_id        TEXT NOT NULL,
	region_id       INTEGER,
	method          TEXT NOT NULL,
	distance_meters DOUBLE PRECISION,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_assignments_point ON assignments(run_id, point_id);
`

var (
	regionColumns     = []string{"run_id", "region_id", "geom"}
	assignmentColumns = []string{"run_id", "position", "point_id", "region_id", "method", "distance_meters"}
)

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, input model.RunInput) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal input")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, input, status, created_at) VALUES ($1, $2, $3, $4)`,
		id, inputJSON, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{ID: id, Input: input, Status: model.RunStatusRunning, CreatedAt: now}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, stats geo.Stats, runErr error) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, stats = $2, error = $3, finished_at = $4 WHERE id = $5`,
		string(status), statsJSON, errString(runErr), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, input, status, stats, error, created_at, finished_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, input, status, stats, error, created_at, finished_at FROM runs`
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, `status = $`+strconv.Itoa(len(args)))
	}
	if !filter.CreatedAfter.IsZero() {
		args = append(args, filter.CreatedAfter.UTC())
		conds = append(conds, `created_at >= $`+strconv.Itoa(len(args)))
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	args = append(args, filter.limit(), filter.Offset)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list runs")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveRegions(ctx context.Context, runID string, regions []geo.Region) error {
	rows := make([][]any, 0, len(regions))
	for _, r := range regions {
		data, err := encodePolygon(r.Polygon)
		if err != nil {
			return err
		}
		rows = append(rows, []any{runID, r.ID, data})
	}
	_, err := db.CopyFrom(ctx, s.pool, "regions", regionColumns, rows)
	return eris.Wrap(err, "postgres: save regions")
}

func (s *PostgresStore) LoadRegions(ctx context.Context, runID string) ([]geo.Region, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT region_id, geom FROM regions WHERE run_id = $1 ORDER BY region_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load regions")
	}
	defer rows.Close()

	var regions []geo.Region
	for rows.Next() {
		var (
			id   int
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan region")
		}
		r, err := decodeRegion(id, data)
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, eris.Wrap(rows.Err(), "postgres: load regions iterate")
}

func (s *PostgresStore) SaveAssignments(ctx context.Context, assignments []model.Assignment) error {
	rows := make([][]any, len(assignments))
	for i, a := range assignments {
		rows[i] = []any{a.RunID, a.Position, a.PointID, a.RegionID, string(a.Method), a.DistanceMeters}
	}
	_, err := db.CopyFrom(ctx, s.pool, "assignments", assignmentColumns, rows)
	return eris.Wrap(err, "postgres: save assignments")
}

func (s *PostgresStore) GetAssignments(ctx context.Context, runID string) ([]model.Assignment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, position, point_id, region_id, method, distance_meters
		 FROM assignments WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get assignments")
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		var (
			a      model.Assignment
			method string
		)
		if err := rows.Scan(&a.RunID, &a.Position, &a.PointID, &a.RegionID, &method, &a.DistanceMeters); err != nil {
			return nil, eris.Wrap(err, "postgres: scan assignment")
		}
		a.Method = model.Method(method)
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: get assignments iterate")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var (
		r         model.Run
		inputJSON []byte
		statsJSON []byte
		status    string
	)
	if err := row.Scan(&r.ID, &inputJSON, &status, &statsJSON, &r.Error, &r.CreatedAt, &r.FinishedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if err := json.Unmarshal(inputJSON, &r.Input); err != nil {
		return nil, eris.Wrap(err, "unmarshal input")
	}
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &r.Stats); err != nil {
			return nil, eris.Wrap(err, "unmarshal stats")
		}
	}
	return &r, nil
}
