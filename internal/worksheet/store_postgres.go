package worksheet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// Schema creates the worksheet and event tables when missing.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS worksheets (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		title      TEXT NOT NULL,
		source     TEXT NOT NULL DEFAULT '',
		mode       TEXT NOT NULL DEFAULT '',
		items      JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS worksheets_created_at_idx ON worksheets (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS events (
		id           BIGSERIAL PRIMARY KEY,
		worksheet_id UUID,
		event_type   TEXT NOT NULL,
		data         JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// PostgresStore is a PostgreSQL-backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed worksheet store. The tables
// in Schema must exist.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, w Worksheet) (string, error) {
	if err := w.Validate(); err != nil {
		return "", err
	}

	items, err := json.Marshal(w.Items)
	if err != nil {
		return "", fmt.Errorf("marshal items: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var id string
	err = s.pool.QueryRow(ctx,
		`INSERT INTO worksheets (title, source, mode, items)
		 VALUES ($1, $2, $3, $4::jsonb)
		 RETURNING id::text`,
		w.Title,
		w.Source,
		w.Mode,
		string(items),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert worksheet: %w", err)
	}
	return id, nil
}

// rowID parses a worksheet id; ids that are not UUIDs match no row.
func rowID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return uid, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Worksheet, error) {
	uid, err := rowID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx,
		`SELECT id::text, title, source, mode, items, created_at
		 FROM worksheets
		 WHERE id = $1`,
		uid.String(),
	)
	w, err := scanWorksheet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get worksheet: %w", err)
	}
	return w, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Worksheet, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, title, source, mode, items, created_at
		 FROM worksheets
		 ORDER BY created_at DESC, id
		 LIMIT $1`,
		lim,
	)
	if err != nil {
		return nil, fmt.Errorf("list worksheets: %w", err)
	}
	defer rows.Close()

	out := []Worksheet{}
	for rows.Next() {
		w, err := scanWorksheet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan worksheet: %w", err)
		}
		out = append(out, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate worksheets: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	uid, err := rowID(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx, `DELETE FROM worksheets WHERE id = $1`, uid.String())
	if err != nil {
		return fmt.Errorf("delete worksheet: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func scanWorksheet(row pgx.Row) (*Worksheet, error) {
	var (
		w     Worksheet
		items []byte
	)
	if err := row.Scan(&w.ID, &w.Title, &w.Source, &w.Mode, &items, &w.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &w.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return &w, nil
}
