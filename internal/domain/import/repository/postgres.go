package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// PgxPool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it, so the store can be unit-tested without a database.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a Store and TemplateStore backed by Postgres.
//
// Batch operations run inside one transaction, begun lazily on first use
// and closed by Commit, so a batch either lands entirely or not at all.
// Template operations run directly against the pool; templates are not
// part of any import batch.
type PostgresStore struct {
	db PgxPool
	tx pgx.Tx
}

// NewPostgresStore creates a store on top of an existing pool.
func NewPostgresStore(db PgxPool) *PostgresStore {
	return &PostgresStore{db: db}
}

// querier returns the open batch transaction, starting one if needed.
// Reads also go through the transaction so duplicate checks see rows
// queued earlier in the same batch.
func (s *PostgresStore) querier(ctx context.Context) (pgx.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin import batch: %w", err)
	}
	s.tx = tx
	return tx, nil
}

const findByFingerprintSQL = `
	SELECT id, date, amount::text, kind, currency_code, note, category_id, import_hash, created_at
	FROM transactions
	WHERE import_hash = $1`

// FindByFingerprint implements Store.
func (s *PostgresStore) FindByFingerprint(ctx context.Context, hash string) (*Transaction, error) {
	q, err := s.querier(ctx)
	if err != nil {
		return nil, err
	}

	var (
		tx     Transaction
		amount string
	)
	err = q.QueryRow(ctx, findByFingerprintSQL, hash).Scan(
		&tx.ID, &tx.Date, &amount, &tx.Kind, &tx.CurrencyCode,
		&tx.Note, &tx.CategoryID, &tx.ImportHash, &tx.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}

	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	return &tx, nil
}

const createTransactionSQL = `
	INSERT INTO transactions (id, date, amount, kind, currency_code, note, category_id, import_hash, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// CreateTransaction implements Store.
func (s *PostgresStore) CreateTransaction(ctx context.Context, tx *Transaction) error {
	q, err := s.querier(ctx)
	if err != nil {
		return err
	}
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err = q.Exec(ctx, createTransactionSQL,
		tx.ID, tx.Date, tx.Amount.String(), tx.Kind, tx.CurrencyCode,
		tx.Note, tx.CategoryID, tx.ImportHash, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ResolveOrCreateCategory implements Store.
func (s *PostgresStore) ResolveOrCreateCategory(ctx context.Context, name string) (*Category, error) {
	q, err := s.querier(ctx)
	if err != nil {
		return nil, err
	}

	var c Category
	err = q.QueryRow(ctx,
		`SELECT id, name FROM categories WHERE lower(name) = lower($1)`, name,
	).Scan(&c.ID, &c.Name)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lookup category: %w", err)
	}

	err = q.QueryRow(ctx,
		`INSERT INTO categories (id, name) VALUES ($1, $2) RETURNING id, name`,
		uuid.New(), name,
	).Scan(&c.ID, &c.Name)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &c, nil
}

// Commit implements Store. Committing with no open batch is a no-op.
func (s *PostgresStore) Commit(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit(ctx)
	s.tx = nil
	if err != nil {
		return fmt.Errorf("commit import batch: %w", err)
	}
	return nil
}

const templateColumns = `name, header_signature, date_format, delimiter, amount_mode, currency_fallback, mapping`

// TemplateBySignature implements TemplateStore.
func (s *PostgresStore) TemplateBySignature(ctx context.Context, signature string) (*Template, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM import_templates WHERE header_signature = $1`, signature)
	t, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup template: %w", err)
	}
	return t, nil
}

// SaveTemplate implements TemplateStore. Saving a template for a known
// signature replaces it.
func (s *PostgresStore) SaveTemplate(ctx context.Context, t *Template) error {
	mapping, err := json.Marshal(t.Mapping)
	if err != nil {
		return fmt.Errorf("encode template mapping: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO import_templates (name, header_signature, date_format, delimiter, amount_mode, currency_fallback, mapping)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (header_signature) DO UPDATE SET
			name = EXCLUDED.name,
			date_format = EXCLUDED.date_format,
			delimiter = EXCLUDED.delimiter,
			amount_mode = EXCLUDED.amount_mode,
			currency_fallback = EXCLUDED.currency_fallback,
			mapping = EXCLUDED.mapping`,
		t.Name, t.HeaderSignature, t.DateFormat, t.Delimiter, t.AmountMode, t.CurrencyFallback, mapping,
	)
	if err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

// ListTemplates implements TemplateStore.
func (s *PostgresStore) ListTemplates(ctx context.Context) ([]*Template, error) {
	rows, err := s.db.Query(ctx, `SELECT `+templateColumns+` FROM import_templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// DeleteTemplate implements TemplateStore.
func (s *PostgresStore) DeleteTemplate(ctx context.Context, name string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM import_templates WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

func scanTemplate(row pgx.Row) (*Template, error) {
	var (
		t       Template
		mapping []byte
	)
	if err := row.Scan(&t.Name, &t.HeaderSignature, &t.DateFormat, &t.Delimiter,
		&t.AmountMode, &t.CurrencyFallback, &mapping); err != nil {
		return nil, err
	}
	if len(mapping) > 0 {
		if err := json.Unmarshal(mapping, &t.Mapping); err != nil {
			return nil, fmt.Errorf("decode template mapping: %w", err)
		}
	}
	return &t, nil
}
