package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store and TemplateStore, used by tests and
// as the backing state for the file store. Commit is a no-op; everything
// is already in memory.
type MemoryStore struct {
	transactions  []*Transaction
	byFingerprint map[string]*Transaction
	categories    map[string]*Category // keyed by lowercased name
	templates     map[string]*Template // keyed by header signature
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byFingerprint: make(map[string]*Transaction),
		categories:    make(map[string]*Category),
		templates:     make(map[string]*Template),
	}
}

// FindByFingerprint implements Store.
func (s *MemoryStore) FindByFingerprint(_ context.Context, hash string) (*Transaction, error) {
	return s.byFingerprint[hash], nil
}

// CreateTransaction implements Store.
func (s *MemoryStore) CreateTransaction(_ context.Context, tx *Transaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	s.transactions = append(s.transactions, tx)
	if tx.ImportHash != "" {
		s.byFingerprint[tx.ImportHash] = tx
	}
	return nil
}

// ResolveOrCreateCategory implements Store.
func (s *MemoryStore) ResolveOrCreateCategory(_ context.Context, name string) (*Category, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if c, ok := s.categories[key]; ok {
		return c, nil
	}
	c := &Category{ID: uuid.New(), Name: strings.TrimSpace(name)}
	s.categories[key] = c
	return c, nil
}

// Commit implements Store.
func (s *MemoryStore) Commit(context.Context) error { return nil }

// Transactions returns all stored transactions.
func (s *MemoryStore) Transactions() []*Transaction { return s.transactions }

// Categories returns all stored categories.
func (s *MemoryStore) Categories() []*Category {
	out := make([]*Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	return out
}

// TemplateBySignature implements TemplateStore.
func (s *MemoryStore) TemplateBySignature(_ context.Context, signature string) (*Template, error) {
	return s.templates[signature], nil
}

// SaveTemplate implements TemplateStore.
func (s *MemoryStore) SaveTemplate(_ context.Context, t *Template) error {
	s.templates[t.HeaderSignature] = t
	return nil
}

// ListTemplates implements TemplateStore.
func (s *MemoryStore) ListTemplates(context.Context) ([]*Template, error) {
	out := make([]*Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	return out, nil
}

// DeleteTemplate implements TemplateStore.
func (s *MemoryStore) DeleteTemplate(_ context.Context, name string) error {
	for sig, t := range s.templates {
		if t.Name == name {
			delete(s.templates, sig)
		}
	}
	return nil
}
