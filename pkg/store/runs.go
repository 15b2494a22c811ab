package store

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xhad/primarysources/internal/models"
)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type RunStoreConfig struct {
	ConnString  string
	TablePrefix string
	RecentLimit int
}

// RunStore is a PostgreSQL ledger of assembled tokens and the per-source
// outcomes behind them.
type RunStore struct {
	config   RunStoreConfig
	pool     *pgxpool.Pool
	runs     string
	outcomes string
}

func NewWithConfig(ctx context.Context, config RunStoreConfig) (*RunStore, error) {
	if config.TablePrefix == "" {
		config.TablePrefix = "primary_sources"
	}
	if config.RecentLimit == 0 {
		config.RecentLimit = 10
	}
	if !identifier.MatchString(config.TablePrefix) {
		return nil, fmt.Errorf("invalid table prefix %q", config.TablePrefix)
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	rs := &RunStore{
		config:   config,
		pool:     pool,
		runs:     config.TablePrefix + "_runs",
		outcomes: config.TablePrefix + "_outcomes",
	}

	if err := rs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return rs, nil
}

func (rs *RunStore) initialize(ctx context.Context) error {
	createRuns := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			digest TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			elapsed_ms BIGINT NOT NULL
		)`, rs.runs)

	if _, err := rs.pool.Exec(ctx, createRuns); err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	createOutcomes := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id TEXT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			source TEXT NOT NULL,
			kind TEXT NOT NULL,
			value TEXT NOT NULL,
			status TEXT NOT NULL,
			rule TEXT,
			reason TEXT,
			PRIMARY KEY (run_id, position)
		)`, rs.outcomes, rs.runs)

	if _, err := rs.pool.Exec(ctx, createOutcomes); err != nil {
		return fmt.Errorf("failed to create outcomes table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_started_at_idx ON %s (started_at DESC)`,
		rs.runs, rs.runs)

	if _, err := rs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Save writes the run and its outcomes in one transaction.
func (rs *RunStore) Save(ctx context.Context, run *models.Run) error {
	tx, err := rs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, token, digest, started_at, elapsed_ms) VALUES ($1, $2, $3, $4, $5)`, rs.runs),
		run.ID,
		run.Token.Value,
		run.Token.Digest,
		run.StartedAt,
		run.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	batch := &pgx.Batch{}
	stmt := fmt.Sprintf(`
		INSERT INTO %s (run_id, position, source, kind, value, status, rule, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, rs.outcomes)
	for i, o := range run.Outcomes {
		batch.Queue(stmt,
			run.ID,
			i,
			string(o.Source),
			string(o.Fact.Kind()),
			o.Fact.Value(),
			string(o.Status),
			o.Rule,
			o.Reason,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert outcomes: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Recent returns the latest runs, newest first.
func (rs *RunStore) Recent(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = rs.config.RecentLimit
	}

	rows, err := rs.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, token, digest, started_at, elapsed_ms
		FROM %s
		ORDER BY started_at DESC
		LIMIT $1`, rs.runs), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	var runs []models.Run
	index := map[string]int{}
	for rows.Next() {
		var run models.Run
		var elapsedMS int64
		if err := rows.Scan(&run.ID, &run.Token.Value, &run.Token.Digest, &run.StartedAt, &elapsedMS); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		index[run.ID] = len(runs)
		runs = append(runs, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}

	rows, err = rs.pool.Query(ctx, fmt.Sprintf(`
		SELECT run_id, source, kind, value, status, COALESCE(rule, ''), COALESCE(reason, '')
		FROM %s
		WHERE run_id = ANY($1)
		ORDER BY run_id, position`, rs.outcomes), ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var runID, source, kind, value, status string
		var o models.Outcome
		if err := rows.Scan(&runID, &source, &kind, &value, &status, &o.Rule, &o.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		fact, err := models.NewFact(models.Kind(kind), value)
		if err != nil {
			return nil, fmt.Errorf("stored outcome for run %s: %w", runID, err)
		}
		o.Source = models.SourceID(source)
		o.Status = models.Status(status)
		o.Fact = fact

		i := index[runID]
		runs[i].Outcomes = append(runs[i].Outcomes, o)
		runs[i].Token.Facts = append(runs[i].Token.Facts, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outcomes: %w", err)
	}

	return runs, nil
}

func (rs *RunStore) Close() {
	if rs.pool != nil {
		rs.pool.Close()
	}
}
