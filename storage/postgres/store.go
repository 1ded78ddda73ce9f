package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/poiesic/membank/core"
	"github.com/poiesic/membank/storage"
)

// catalogTable records the schema of every session table in a bank.
const catalogTable = "membank_tables"

// TableStore implements storage.TableStore on PostgreSQL with pgvector.
// Each memory bank is a schema; each session is a table inside it.
type TableStore struct {
	db     *sql.DB
	schema string
	logger *slog.Logger
}

var _ storage.TableStore = (*TableStore)(nil)

// NewTableStore connects to databaseURL and prepares the schema for bank.
//
// Returns storage.TableStore interface to enforce abstraction.
func NewTableStore(ctx context.Context, databaseURL, bank string) (storage.TableStore, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	store, err := newTableStore(ctx, db, bank)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// newTableStore bootstraps the bank schema on an open connection pool.
func newTableStore(ctx context.Context, db *sql.DB, bank string) (*TableStore, error) {
	if err := core.ValidateTableName(bank); err != nil {
		return nil, err
	}

	s := &TableStore{
		db:     db,
		schema: bank,
		logger: slog.Default().With("component", "postgres-tables", "bank", bank),
	}
	if err := s.bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return s, nil
}

func (s *TableStore) bootstrap(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE SCHEMA IF NOT EXISTS ` + pgx.Identifier{s.schema}.Sanitize(),
		`CREATE TABLE IF NOT EXISTS ` + s.catalog() + ` (
			name TEXT PRIMARY KEY,
			dimensions INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *TableStore) catalog() string {
	return pgx.Identifier{s.schema, catalogTable}.Sanitize()
}

func (s *TableStore) qualified(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

func (s *TableStore) validateName(name string) error {
	if err := core.ValidateTableName(name); err != nil {
		return err
	}
	if name == catalogTable {
		return fmt.Errorf("%w: %q is reserved", core.ErrInvalidTableName, name)
	}
	return nil
}

// CreateTable drops any table of the same name and creates it fresh.
func (s *TableStore) CreateTable(ctx context.Context, name string, dimensions int) (storage.Table, error) {
	if err := s.validateName(name); err != nil {
		return nil, err
	}
	if dimensions <= 0 {
		return nil, core.ErrInvalidDimensions
	}

	info := core.TableInfo{
		Name:       name,
		Dimensions: dimensions,
		CreatedAt:  time.Now().UTC(),
	}
	qualified := s.qualified(name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	stmts := []struct {
		query string
		args  []any
	}{
		{`DROP TABLE IF EXISTS ` + qualified, nil},
		{fmt.Sprintf(`CREATE TABLE %s (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding vector(%d) NOT NULL
		)`, qualified, dimensions), nil},
		{`INSERT INTO ` + s.catalog() + ` (name, dimensions, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET dimensions = EXCLUDED.dimensions, created_at = EXCLUDED.created_at`,
			[]any{info.Name, info.Dimensions, info.CreatedAt}},
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("create table %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("created table", "table", name, "dimensions", dimensions)
	return newTable(s.db, qualified, info), nil
}

// OpenTable opens an existing table.
func (s *TableStore) OpenTable(ctx context.Context, name string) (storage.Table, error) {
	if err := s.validateName(name); err != nil {
		return nil, err
	}

	info := core.TableInfo{Name: name}
	err := s.db.QueryRowContext(ctx,
		`SELECT dimensions, created_at FROM `+s.catalog()+` WHERE name = $1`, name,
	).Scan(&info.Dimensions, &info.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrTableNotFound, name)
	}
	if err != nil {
		return nil, err
	}

	return newTable(s.db, s.qualified(name), info), nil
}

// DropTable removes a table and its catalog entry.
func (s *TableStore) DropTable(ctx context.Context, name string) error {
	if err := s.validateName(name); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM `+s.catalog()+` WHERE name = $1`, name)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %s", storage.ErrTableNotFound, name)
	}

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+s.qualified(name)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Info("dropped table", "table", name)
	return nil
}

// ListTables returns the schemas of all tables, ordered by name.
func (s *TableStore) ListTables(ctx context.Context) ([]core.TableInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, dimensions, created_at FROM `+s.catalog()+` ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []core.TableInfo
	for rows.Next() {
		var info core.TableInfo
		if err := rows.Scan(&info.Name, &info.Dimensions, &info.CreatedAt); err != nil {
			return nil, err
		}
		tables = append(tables, info)
	}
	return tables, rows.Err()
}

// Close closes the connection pool.
func (s *TableStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
