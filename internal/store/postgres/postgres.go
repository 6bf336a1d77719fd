package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"boutique/backoffice/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS backoffice_save_batches (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	status       TEXT NOT NULL,
	rows         JSONB NOT NULL DEFAULT '[]'::jsonb,
	out_of_stock JSONB NOT NULL DEFAULT '[]'::jsonb,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS backoffice_save_batches_created_at_idx
	ON backoffice_save_batches (created_at DESC);
`

type Journal struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Journal, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// EnsureSchema creates the journal table when it does not exist yet.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure journal schema: %w", err)
	}
	return nil
}

func (j *Journal) RecordBatch(ctx context.Context, batch store.BatchRecord) error {
	if err := batch.Validate(); err != nil {
		return err
	}
	rows, err := json.Marshal(nonNil(batch.Rows))
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	outOfStock, err := json.Marshal(batch.OutOfStock)
	if err != nil {
		return fmt.Errorf("encode out of stock: %w", err)
	}
	if batch.OutOfStock == nil {
		outOfStock = []byte("[]")
	}
	createdAt := batch.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO backoffice_save_batches (id, kind, status, rows, out_of_stock, error, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, batch.ID, batch.Kind, string(batch.Status), string(rows), string(outOfStock), batch.Error, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidBatch
		}
		return err
	}
	return nil
}

func (j *Journal) ListBatches(ctx context.Context, limit int) ([]store.BatchRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, kind, status, rows, out_of_stock, error, created_at
		FROM backoffice_save_batches
		ORDER BY created_at DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := make([]store.BatchRecord, 0, limit)
	for rows.Next() {
		var (
			b          store.BatchRecord
			status     string
			rowsRaw    []byte
			outOfStock []byte
		)
		if err := rows.Scan(&b.ID, &b.Kind, &status, &rowsRaw, &outOfStock, &b.Error, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Status = store.BatchStatus(status)
		if err := json.Unmarshal(rowsRaw, &b.Rows); err != nil {
			return nil, fmt.Errorf("decode rows of batch %s: %w", b.ID, err)
		}
		if err := json.Unmarshal(outOfStock, &b.OutOfStock); err != nil {
			return nil, fmt.Errorf("decode out of stock of batch %s: %w", b.ID, err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

func nonNil(rows []store.RowRecord) []store.RowRecord {
	if rows == nil {
		return []store.RowRecord{}
	}
	return rows
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
