package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/membank/core"
	"github.com/poiesic/membank/storage"
)

// Table implements storage.Table for one session table.
type Table struct {
	db        *sql.DB
	qualified string
	info      core.TableInfo
}

var _ storage.Table = (*Table)(nil)

func newTable(db *sql.DB, qualified string, info core.TableInfo) *Table {
	return &Table{
		db:        db,
		qualified: qualified,
		info:      info,
	}
}

// Info returns the table schema.
func (t *Table) Info() core.TableInfo {
	return t.info
}

// AddRecords inserts the batch in one transaction with a prepared statement.
func (t *Table) AddRecords(ctx context.Context, records ...*core.Record) error {
	if len(records) == 0 {
		return nil
	}

	metadata := make([]string, len(records))
	for i, record := range records {
		if err := core.ValidateRecord(record, t.info.Dimensions); err != nil {
			return err
		}
		data, err := storage.MarshalMetadata(record.Metadata)
		if err != nil {
			return err
		}
		metadata[i] = string(data)
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO `+t.qualified+` (id, text, metadata, embedding) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i, record := range records {
		if _, err := stmt.ExecContext(ctx,
			record.ID, record.Text, metadata[i], pgvector.NewVector(record.Vector),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetRecord retrieves a single record by ID.
func (t *Table) GetRecord(ctx context.Context, id string) (*core.Record, error) {
	row := t.db.QueryRowContext(ctx,
		`SELECT id, text, metadata, embedding FROM `+t.qualified+` WHERE id = $1`, id)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return record, err
}

// Count returns the number of records in the table.
func (t *Table) Count(ctx context.Context) (int, error) {
	var count int
	err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+t.qualified).Scan(&count)
	return count, err
}

// ForEach pages through the table ordered by id.
func (t *Table) ForEach(ctx context.Context, batchSize int, fn func([]*core.Record) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("%w: batch size must be greater than 0", storage.ErrInvalidQuery)
	}

	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := t.page(ctx, after, batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		after = batch[len(batch)-1].ID
	}
}

func (t *Table) page(ctx context.Context, after string, limit int) ([]*core.Record, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, text, metadata, embedding FROM `+t.qualified+` WHERE id > $1 ORDER BY id ASC LIMIT $2`,
		after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*core.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpdateVectors replaces the vectors of existing records in one transaction.
func (t *Table) UpdateVectors(ctx context.Context, vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	for id, vector := range vectors {
		if t.info.Dimensions > 0 && len(vector) != t.info.Dimensions {
			return fmt.Errorf("%w: record %s: expected %d, got %d",
				core.ErrDimensionMismatch, id, t.info.Dimensions, len(vector))
		}
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `UPDATE `+t.qualified+` SET embedding = $2 WHERE id = $1`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for id, vector := range vectors {
		res, err := stmt.ExecContext(ctx, id, pgvector.NewVector(vector))
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			_ = tx.Rollback()
			return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
		}
	}
	return tx.Commit()
}

// FindSimilar orders by cosine distance and converts it to similarity.
func (t *Table) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be greater than 0", storage.ErrInvalidQuery)
	}

	rows, err := t.db.QueryContext(ctx,
		`SELECT id, text, metadata, embedding, 1 - (embedding <=> $1) AS similarity
		FROM `+t.qualified+`
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		pgvector.NewVector(vector), minSimilarity, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*core.SearchResult
	for rows.Next() {
		var (
			record   core.Record
			metadata []byte
			emb      pgvector.Vector
			score    float64
		)
		if err := rows.Scan(&record.ID, &record.Text, &metadata, &emb, &score); err != nil {
			return nil, err
		}
		if record.Metadata, err = storage.UnmarshalMetadata(metadata); err != nil {
			return nil, err
		}
		record.Vector = emb.Slice()
		results = append(results, &core.SearchResult{Record: &record, Score: float32(score)})
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*core.Record, error) {
	var (
		record   core.Record
		metadata []byte
		emb      pgvector.Vector
	)
	if err := row.Scan(&record.ID, &record.Text, &metadata, &emb); err != nil {
		return nil, err
	}
	var err error
	if record.Metadata, err = storage.UnmarshalMetadata(metadata); err != nil {
		return nil, err
	}
	record.Vector = emb.Slice()
	return &record, nil
}
