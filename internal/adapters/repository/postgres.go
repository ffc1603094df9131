package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Default PostgreSQL settings.
const (
	defaultDocumentID = "default"
	defaultTable      = "gradebook_documents"
)

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores the encoded document as one row keyed by
// document id. The upsert replaces the row in a single statement, so a
// reader never observes a partial document.
type PostgresRepository struct {
	db         DB
	documentID string
	table      string
	closeFn    func()
}

// NewPostgresRepository wraps an existing connection or pool.
func NewPostgresRepository(db DB, opts ...PostgresOption) *PostgresRepository {
	r := &PostgresRepository{
		db:         db,
		documentID: defaultDocumentID,
		table:      defaultTable,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OpenPostgres connects a pool to dsn, verifies it and ensures the schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", ErrIO, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrIO, err)
	}
	r := NewPostgresRepository(pool, opts...)
	r.closeFn = pool.Close
	if err := r.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

// EnsureSchema creates the document table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			body       TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, r.ident()))
	if err != nil {
		return fmt.Errorf("%w: create schema: %w", ErrIO, err)
	}
	return nil
}

// Name implements Repository.
func (r *PostgresRepository) Name() string { return "postgres" }

// Load implements Repository.
func (r *PostgresRepository) Load(ctx context.Context) (Document, error) {
	var body string
	err := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT body FROM %s WHERE id = $1`, r.ident()),
		r.documentID,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("%w: load document %q: %w", ErrIO, r.documentID, err)
	}
	return Decode([]byte(body))
}

// Save implements Repository.
func (r *PostgresRepository) Save(ctx context.Context, doc Document) error {
	data, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrIO, err)
	}
	_, err = r.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, body, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`, r.ident()),
		r.documentID, string(data),
	)
	if err != nil {
		return fmt.Errorf("%w: save document %q: %w", ErrIO, r.documentID, err)
	}
	return nil
}

// Close implements Repository. The pool is closed only when the repository
// opened it.
func (r *PostgresRepository) Close() error {
	if r.closeFn != nil {
		r.closeFn()
	}
	return nil
}

func (r *PostgresRepository) ident() string {
	return pgx.Identifier{r.table}.Sanitize()
}

var _ Repository = (*PostgresRepository)(nil)
