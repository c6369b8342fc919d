// Package repository defines the persistence contracts the import
// pipeline depends on, plus the record types they exchange. Any concrete
// store — Postgres, a JSON state file, or in-memory for tests — can
// satisfy them.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is a persisted transaction record. Amount is signed by
// Kind: expenses are negative, income positive. ImportHash is the stable
// fingerprint used solely for duplicate detection.
type Transaction struct {
	ID           uuid.UUID
	Date         time.Time
	Amount       decimal.Decimal
	Kind         string
	CurrencyCode string
	Note         *string
	CategoryID   *uuid.UUID
	ImportHash   string
	CreatedAt    time.Time
}

// Category is a named category. Names are case-insensitively unique
// within a store.
type Category struct {
	ID   uuid.UUID
	Name string
}

// Template is a saved field mapping plus the parse settings that go with
// it, keyed by the header signature of the files it applies to.
type Template struct {
	Name             string
	HeaderSignature  string
	DateFormat       string
	Delimiter        string
	AmountMode       string
	CurrencyFallback string
	Mapping          map[string]string
}

// Store is the transaction persistence contract consumed by the importer.
//
// The importer runs one batch against one Store: duplicate lookups and
// creates accumulate, then Commit persists the whole batch. Whether a
// failed Commit leaves partial state is governed by the store's own
// transactional guarantee; the importer never invents rollback semantics.
type Store interface {
	// FindByFingerprint returns the transaction carrying the given import
	// hash, or nil when none exists.
	FindByFingerprint(ctx context.Context, hash string) (*Transaction, error)
	// CreateTransaction queues a new transaction for the current batch.
	CreateTransaction(ctx context.Context, tx *Transaction) error
	// ResolveOrCreateCategory finds a category by case-insensitive name,
	// creating it when absent.
	ResolveOrCreateCategory(ctx context.Context, name string) (*Category, error)
	// Commit persists the batch.
	Commit(ctx context.Context) error
}

// TemplateStore persists saved mapping templates keyed by header
// signature.
type TemplateStore interface {
	TemplateBySignature(ctx context.Context, signature string) (*Template, error)
	SaveTemplate(ctx context.Context, t *Template) error
	ListTemplates(ctx context.Context) ([]*Template, error)
	DeleteTemplate(ctx context.Context, name string) error
}
