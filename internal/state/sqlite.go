package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/ezql/pkg/lineage"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store instance. A nil logger discards
// output.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// NewWithDB wraps an already opened database. The caller is responsible
// for its schema.
func NewWithDB(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	s := NewSQLiteStore(logger)
	s.db = db
	return s
}

// Open opens a connection to the SQLite database and migrates it.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path + "?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	s.logger.Debug("state store opened", slog.String("path", path))
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func newRunID() string {
	return uuid.New().String()
}

const (
	insertRun = `INSERT INTO runs (id, path, mode, created_at, procedures, statements, errored)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	insertProcedure = `INSERT INTO procedures (run_id, ordinal, path, schema_name, name)
		VALUES (?, ?, ?, ?, ?)`
	insertStatement = `INSERT INTO statements (procedure_id, ordinal, operation, procedure)
		VALUES (?, ?, ?, ?)`
	insertTableRef = `INSERT INTO table_refs (statement_id, role, ordinal, schema_name, name)
		VALUES (?, ?, ?, ?, ?)`
	insertColumn = `INSERT INTO statement_columns (statement_id, ordinal, name)
		VALUES (?, ?, ?)`
	insertErrored = `INSERT INTO errored (run_id, ordinal, path, procedure, kind, reason, statement, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
)

// SaveRun stores r in a single transaction and returns its summary.
func (s *SQLiteStore) SaveRun(ctx context.Context, path string, mode lineage.Mode, r lineage.Result) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:         newRunID(),
		Path:       path,
		Mode:       string(mode),
		CreatedAt:  time.Now().UTC(),
		Procedures: len(r.Procedures),
		Statements: len(r.Statements()),
		Errored:    len(r.Errored),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := saveResult(ctx, tx, run, r); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}

	s.logger.Debug("run saved",
		slog.String("id", run.ID),
		slog.Int("procedures", run.Procedures),
		slog.Int("statements", run.Statements))
	return run, nil
}

func saveResult(ctx context.Context, tx *sql.Tx, run *Run, r lineage.Result) error {
	if _, err := tx.ExecContext(ctx, insertRun,
		run.ID, run.Path, run.Mode, run.CreatedAt.Format(timeFormat),
		run.Procedures, run.Statements, run.Errored,
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, p := range r.Procedures {
		res, err := tx.ExecContext(ctx, insertProcedure, run.ID, i, p.Path, p.Schema, p.Name)
		if err != nil {
			return fmt.Errorf("failed to insert procedure %s: %w", p.QualifiedName(), err)
		}
		procID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get procedure id: %w", err)
		}
		for j, stmt := range p.Statements {
			if err := saveStatement(ctx, tx, procID, j, stmt); err != nil {
				return fmt.Errorf("failed to insert statement %d of %s: %w", j, p.QualifiedName(), err)
			}
		}
	}

	for i, e := range r.Errored {
		if _, err := tx.ExecContext(ctx, insertErrored,
			run.ID, i, e.Path, e.Procedure, string(e.Kind), string(e.Reason), e.Statement, e.Message,
		); err != nil {
			return fmt.Errorf("failed to insert errored record: %w", err)
		}
	}
	return nil
}

func saveStatement(ctx context.Context, tx *sql.Tx, procID int64, ordinal int, stmt lineage.Statement) error {
	res, err := tx.ExecContext(ctx, insertStatement, procID, ordinal, string(stmt.Operation), stmt.Procedure)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if stmt.TargetTable != nil {
		if _, err := tx.ExecContext(ctx, insertTableRef, id, roleTarget, 0, stmt.TargetTable.Schema, stmt.TargetTable.Name); err != nil {
			return err
		}
	}
	for i, t := range stmt.FromTable {
		if _, err := tx.ExecContext(ctx, insertTableRef, id, roleFrom, i, t.Schema, t.Name); err != nil {
			return err
		}
	}
	for i, t := range stmt.JoinTable {
		if _, err := tx.ExecContext(ctx, insertTableRef, id, roleJoin, i, t.Schema, t.Name); err != nil {
			return err
		}
	}
	for i, c := range stmt.TargetColumns {
		if _, err := tx.ExecContext(ctx, insertColumn, id, i, c); err != nil {
			return err
		}
	}
	return nil
}

// timeFormat has a fixed width so that created_at sorts as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const selectRun = `SELECT id, path, mode, created_at, procedures, statements, errored FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run     Run
		created string
	)
	if err := row.Scan(&run.ID, &run.Path, &run.Mode, &created, &run.Procedures, &run.Statements, &run.Errored); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeFormat, created)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", created, err)
	}
	run.CreatedAt = t
	return &run, nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns the summary of one run.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run, err := scanRun(s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// LoadRun rebuilds the lineage result stored under id, in its original
// order.
func (s *SQLiteStore) LoadRun(ctx context.Context, id string) (lineage.Result, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return lineage.Result{}, err
	}

	var r lineage.Result
	procs, err := s.loadProcedures(ctx, id, &r)
	if err != nil {
		return lineage.Result{}, err
	}
	stmts, err := s.loadStatements(ctx, id, &r, procs)
	if err != nil {
		return lineage.Result{}, err
	}
	if err := s.loadTableRefs(ctx, id, stmts); err != nil {
		return lineage.Result{}, err
	}
	if err := s.loadColumns(ctx, id, stmts); err != nil {
		return lineage.Result{}, err
	}
	if err := s.loadErrored(ctx, id, &r); err != nil {
		return lineage.Result{}, err
	}
	return r, nil
}

func (s *SQLiteStore) loadProcedures(ctx context.Context, runID string, r *lineage.Result) (map[int64]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, schema_name, name FROM procedures WHERE run_id = ? ORDER BY ordinal`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load procedures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	index := make(map[int64]int)
	for rows.Next() {
		var (
			id int64
			p  lineage.Procedure
		)
		if err := rows.Scan(&id, &p.Path, &p.Schema, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan procedure: %w", err)
		}
		p.Statements = []lineage.Statement{}
		index[id] = len(r.Procedures)
		r.Procedures = append(r.Procedures, p)
	}
	return index, rows.Err()
}

// statementRef is the position of a loaded statement within the result.
type statementRef struct {
	proc, stmt int
}

func (s *SQLiteStore) loadStatements(ctx context.Context, runID string, r *lineage.Result, procs map[int64]int) (map[int64]*lineage.Statement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.procedure_id, s.operation, s.procedure
		FROM statements s JOIN procedures p ON p.id = s.procedure_id
		WHERE p.run_id = ?
		ORDER BY p.ordinal, s.ordinal`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load statements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	refs := make(map[int64]statementRef)
	for rows.Next() {
		var (
			id, procID int64
			op         string
			stmt       lineage.Statement
		)
		if err := rows.Scan(&id, &procID, &op, &stmt.Procedure); err != nil {
			return nil, fmt.Errorf("failed to scan statement: %w", err)
		}
		stmt.Operation = lineage.Operation(op)
		pi, ok := procs[procID]
		if !ok {
			return nil, fmt.Errorf("statement %d references unknown procedure %d", id, procID)
		}
		refs[id] = statementRef{proc: pi, stmt: len(r.Procedures[pi].Statements)}
		r.Procedures[pi].Statements = append(r.Procedures[pi].Statements, stmt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Slices are complete now, so pointers into them stay valid.
	stmts := make(map[int64]*lineage.Statement, len(refs))
	for id, ref := range refs {
		stmts[id] = &r.Procedures[ref.proc].Statements[ref.stmt]
	}
	return stmts, nil
}

func (s *SQLiteStore) loadTableRefs(ctx context.Context, runID string, stmts map[int64]*lineage.Statement) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.statement_id, r.role, r.schema_name, r.name
		FROM table_refs r
		JOIN statements s ON s.id = r.statement_id
		JOIN procedures p ON p.id = s.procedure_id
		WHERE p.run_id = ?
		ORDER BY r.statement_id, r.role, r.ordinal`, runID)
	if err != nil {
		return fmt.Errorf("failed to load table references: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id   int64
			role string
			t    lineage.Table
		)
		if err := rows.Scan(&id, &role, &t.Schema, &t.Name); err != nil {
			return fmt.Errorf("failed to scan table reference: %w", err)
		}
		stmt, ok := stmts[id]
		if !ok {
			continue
		}
		switch role {
		case roleTarget:
			target := t
			stmt.TargetTable = &target
		case roleFrom:
			stmt.FromTable = append(stmt.FromTable, t)
		case roleJoin:
			stmt.JoinTable = append(stmt.JoinTable, t)
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) loadColumns(ctx context.Context, runID string, stmts map[int64]*lineage.Statement) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.statement_id, c.name
		FROM statement_columns c
		JOIN statements s ON s.id = c.statement_id
		JOIN procedures p ON p.id = s.procedure_id
		WHERE p.run_id = ?
		ORDER BY c.statement_id, c.ordinal`, runID)
	if err != nil {
		return fmt.Errorf("failed to load columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}
		if stmt, ok := stmts[id]; ok {
			stmt.TargetColumns = append(stmt.TargetColumns, name)
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) loadErrored(ctx context.Context, runID string, r *lineage.Result) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, procedure, kind, reason, statement, message
		FROM errored WHERE run_id = ? ORDER BY ordinal`, runID)
	if err != nil {
		return fmt.Errorf("failed to load errored records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			e            lineage.Errored
			kind, reason string
		)
		if err := rows.Scan(&e.Path, &e.Procedure, &kind, &reason, &e.Statement, &e.Message); err != nil {
			return fmt.Errorf("failed to scan errored record: %w", err)
		}
		e.Kind = lineage.Kind(kind)
		e.Reason = lineage.Reason(reason)
		r.Errored = append(r.Errored, e)
	}
	return rows.Err()
}
