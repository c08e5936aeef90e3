// Package store persists raw interactions, account rosters and scored runs
// in a local SQLite database so that collection and scoring can happen in
// separate invocations.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/papapumpkin/contagion/internal/builder"
	"github.com/papapumpkin/contagion/internal/centrality"
)

// ErrRunNotFound is returned when a score run id is unknown.
var ErrRunNotFound = errors.New("score run not found")

// occurredLayout is fixed width so that stored timestamps compare correctly
// as text.
const occurredLayout = "2006-01-02T15:04:05.000000000Z07:00"

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id         TEXT PRIMARY KEY,
    username   TEXT NOT NULL DEFAULT '',
    activity   INTEGER,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS interactions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    source      TEXT NOT NULL,
    target      TEXT NOT NULL,
    type        TEXT NOT NULL,
    count       INTEGER NOT NULL DEFAULT 1,
    occurred_at TEXT NOT NULL DEFAULT '',
    ingested_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS score_runs (
    id         TEXT PRIMARY KEY,
    graph      TEXT NOT NULL DEFAULT '',
    nodes      INTEGER NOT NULL,
    edges      INTEGER NOT NULL,
    rounds     INTEGER NOT NULL,
    beta       REAL NOT NULL,
    tolerance  REAL NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS scores (
    run_id     TEXT NOT NULL REFERENCES score_runs(id) ON DELETE CASCADE,
    node_index INTEGER NOT NULL,
    account    TEXT NOT NULL,
    label      TEXT NOT NULL,
    score      REAL NOT NULL,
    PRIMARY KEY (run_id, node_index)
);
`

// Run describes one persisted scoring run.
type Run struct {
	ID        string
	Graph     string // source graph path, informational
	Nodes     int
	Edges     int
	Order     int
	Beta      float64
	Tolerance float64
	CreatedAt time.Time
}

// Score is one persisted node score.
type Score struct {
	Index   int
	Account string
	Label   string
	Score   float64
}

// SQLiteStore is the interaction and score store backed by a SQLite
// database in WAL mode.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) a SQLite database at dbPath, creating its parent
// directory, enables WAL mode and busy timeout, and creates the schema tables
// if they do not exist.
func Open(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite has a single writer; one pooled connection keeps the PRAGMAs
	// below in effect for every statement.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// AddAccounts upserts accounts. When activity holds an entry for an account
// its activity total is replaced; otherwise the stored total is kept.
func (s *SQLiteStore) AddAccounts(ctx context.Context, accounts []builder.Account, activity map[string]int) error {
	if len(accounts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx for accounts: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	const q = `
		INSERT INTO accounts (id, username, activity, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			username   = CASE WHEN excluded.username != '' THEN excluded.username ELSE accounts.username END,
			activity   = COALESCE(excluded.activity, accounts.activity),
			updated_at = CURRENT_TIMESTAMP`

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("store: prepare account upsert: %w", err)
	}
	defer stmt.Close()

	for _, a := range accounts {
		var act sql.NullInt64
		if n, ok := activity[a.ID]; ok {
			act = sql.NullInt64{Int64: int64(n), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, a.ID, a.Username, act); err != nil {
			return fmt.Errorf("store: upsert account %q: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit accounts: %w", err)
	}
	return nil
}

// Accounts returns every stored account ordered by id, plus the activity
// totals of those accounts that have one. The activity table is nil when no
// account has a total, matching builder.ReadAccounts.
func (s *SQLiteStore) Accounts(ctx context.Context) ([]builder.Account, map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, username, activity FROM accounts ORDER BY id")
	if err != nil {
		return nil, nil, fmt.Errorf("store: query accounts: %w", err)
	}
	defer rows.Close()

	var (
		accounts []builder.Account
		activity map[string]int
	)
	for rows.Next() {
		var a builder.Account
		var act sql.NullInt64
		if err := rows.Scan(&a.ID, &a.Username, &act); err != nil {
			return nil, nil, fmt.Errorf("store: scan account: %w", err)
		}
		if act.Valid {
			if activity == nil {
				activity = make(map[string]int)
			}
			activity[a.ID] = int(act.Int64)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("store: iterate accounts: %w", err)
	}
	return accounts, activity, nil
}

// AddInteractions appends interactions in a single transaction and returns
// how many were stored. Records are stored as given; validation happens when
// a graph is built from them.
func (s *SQLiteStore) AddInteractions(ctx context.Context, interactions []builder.RawInteraction) (int, error) {
	if len(interactions) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin tx for interactions: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO interactions (source, target, type, count, occurred_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("store: prepare interaction insert: %w", err)
	}
	defer stmt.Close()

	for i, ri := range interactions {
		at := ""
		if !ri.At.IsZero() {
			at = ri.At.UTC().Format(occurredLayout)
		}
		if _, err := stmt.ExecContext(ctx, ri.Source, ri.Target, string(ri.Type), ri.Count, at); err != nil {
			return 0, fmt.Errorf("store: insert interaction %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit interactions: %w", err)
	}
	return len(interactions), nil
}

// Interactions returns every stored interaction in insertion order. With a
// non-zero since, only interactions that occurred at or after it are
// returned; interactions without a timestamp are always included.
func (s *SQLiteStore) Interactions(ctx context.Context, since time.Time) ([]builder.RawInteraction, error) {
	q := "SELECT source, target, type, count, occurred_at FROM interactions"
	var args []any
	if !since.IsZero() {
		q += " WHERE occurred_at = '' OR occurred_at >= ?"
		args = append(args, since.UTC().Format(occurredLayout))
	}
	q += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query interactions: %w", err)
	}
	defer rows.Close()

	var result []builder.RawInteraction
	for rows.Next() {
		var ri builder.RawInteraction
		var typ, at string
		if err := rows.Scan(&ri.Source, &ri.Target, &typ, &ri.Count, &at); err != nil {
			return nil, fmt.Errorf("store: scan interaction: %w", err)
		}
		ri.Type = builder.InteractionType(typ)
		if at != "" {
			ts, err := time.Parse(occurredLayout, at)
			if err != nil {
				return nil, fmt.Errorf("store: parse interaction timestamp: %w", err)
			}
			ri.At = ts
		}
		result = append(result, ri)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate interactions: %w", err)
	}
	return result, nil
}

// SaveRun persists a scoring result under a fresh run id and returns the
// stored run. graphPath is recorded for reference only.
func (s *SQLiteStore) SaveRun(ctx context.Context, graphPath string, opts centrality.Options, res *centrality.Result) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		Graph:     graphPath,
		Nodes:     res.Graph.Len(),
		Edges:     res.Graph.EdgeCount(),
		Order:     opts.Order,
		Beta:      opts.Beta,
		Tolerance: opts.Tolerance,
		CreatedAt: s.now().UTC().Truncate(time.Second),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("store: begin tx for run: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	const insertRun = `INSERT INTO score_runs (id, graph, nodes, edges, rounds, beta, tolerance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertRun,
		run.ID, run.Graph, run.Nodes, run.Edges, run.Order, run.Beta, run.Tolerance,
		run.CreatedAt.Format(time.RFC3339)); err != nil {
		return Run{}, fmt.Errorf("store: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO scores (run_id, node_index, account, label, score) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return Run{}, fmt.Errorf("store: prepare score insert: %w", err)
	}
	defer stmt.Close()

	for i, score := range res.Scores {
		node := res.Graph.Node(i)
		if _, err := stmt.ExecContext(ctx, run.ID, i, node.ID, node.Label, score); err != nil {
			return Run{}, fmt.Errorf("store: insert score %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("store: commit run: %w", err)
	}
	return run, nil
}

const runColumns = "id, graph, nodes, edges, rounds, beta, tolerance, created_at"

// Run returns the run with the given id, or ErrRunNotFound.
func (s *SQLiteStore) Run(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM score_runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("store: get run %q: %w", id, err)
	}
	return run, nil
}

// Runs returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := "SELECT " + runColumns + " FROM score_runs ORDER BY created_at DESC, rowid DESC"
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate runs: %w", err)
	}
	return runs, nil
}

// Scores returns the scores of a run sorted by descending score, ties by
// node index.
func (s *SQLiteStore) Scores(ctx context.Context, runID string) ([]Score, error) {
	if _, err := s.Run(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT node_index, account, label, score FROM scores WHERE run_id = ? ORDER BY score DESC, node_index",
		runID)
	if err != nil {
		return nil, fmt.Errorf("store: query scores: %w", err)
	}
	defer rows.Close()

	var scores []Score
	for rows.Next() {
		var sc Score
		if err := rows.Scan(&sc.Index, &sc.Account, &sc.Label, &sc.Score); err != nil {
			return nil, fmt.Errorf("store: scan score: %w", err)
		}
		scores = append(scores, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate scores: %w", err)
	}
	return scores, nil
}

// DeleteRun removes a run and its scores.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM score_runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: delete run %q: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(r rowScanner) (Run, error) {
	var run Run
	var ts string
	if err := r.Scan(&run.ID, &run.Graph, &run.Nodes, &run.Edges, &run.Order, &run.Beta, &run.Tolerance, &ts); err != nil {
		return Run{}, err
	}
	createdAt, err := parseTimestamp(ts)
	if err != nil {
		return Run{}, err
	}
	run.CreatedAt = createdAt
	return run, nil
}

// timestampFormats lists the formats SQLite drivers may produce for
// CURRENT_TIMESTAMP. modernc.org/sqlite typically returns RFC 3339
// (with "T" separator and "Z" suffix), while canonical SQLite returns
// the space-separated DateTime format.
var timestampFormats = []string{
	time.RFC3339,
	time.DateTime,
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}
