package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// stateVersion is the current state file format version.
const stateVersion = 1

// fileState is the on-disk JSON layout of a FileStore.
type fileState struct {
	Version      int                  `json:"version"`
	UpdatedAt    time.Time            `json:"updatedAt"`
	Transactions []*storedTransaction `json:"transactions"`
	Categories   []*Category          `json:"categories"`
	Templates    map[string]*Template `json:"templates"`
}

// storedTransaction keeps decimals as strings so the file stays readable
// and round-trips exactly.
type storedTransaction struct {
	ID           uuid.UUID  `json:"id"`
	Date         time.Time  `json:"date"`
	Amount       string     `json:"amount"`
	Kind         string     `json:"kind"`
	CurrencyCode string     `json:"currencyCode"`
	Note         *string    `json:"note,omitempty"`
	CategoryID   *uuid.UUID `json:"categoryId,omitempty"`
	ImportHash   string     `json:"importHash"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// FileStore is a Store and TemplateStore backed by a single JSON state
// file. Mutations accumulate in memory; Commit writes the whole state
// atomically (write temp file, then rename), so a failed commit leaves
// the previous state intact.
type FileStore struct {
	path string
	mem  *MemoryStore
}

// OpenFileStore loads the state file at path, starting empty when the
// file does not exist yet.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, mem: NewMemoryStore()}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	if state.Version != stateVersion {
		return nil, fmt.Errorf("unsupported state file version %d", state.Version)
	}

	for _, st := range state.Transactions {
		amount, err := decimal.NewFromString(st.Amount)
		if err != nil {
			return nil, fmt.Errorf("parse stored amount %q: %w", st.Amount, err)
		}
		tx := &Transaction{
			ID:           st.ID,
			Date:         st.Date,
			Amount:       amount,
			Kind:         st.Kind,
			CurrencyCode: st.CurrencyCode,
			Note:         st.Note,
			CategoryID:   st.CategoryID,
			ImportHash:   st.ImportHash,
			CreatedAt:    st.CreatedAt,
		}
		s.mem.transactions = append(s.mem.transactions, tx)
		if tx.ImportHash != "" {
			s.mem.byFingerprint[tx.ImportHash] = tx
		}
	}
	for _, c := range state.Categories {
		s.mem.categories[strings.ToLower(c.Name)] = c
	}
	if state.Templates != nil {
		s.mem.templates = state.Templates
	}
	return s, nil
}

// FindByFingerprint implements Store.
func (s *FileStore) FindByFingerprint(ctx context.Context, hash string) (*Transaction, error) {
	return s.mem.FindByFingerprint(ctx, hash)
}

// CreateTransaction implements Store.
func (s *FileStore) CreateTransaction(ctx context.Context, tx *Transaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	return s.mem.CreateTransaction(ctx, tx)
}

// ResolveOrCreateCategory implements Store.
func (s *FileStore) ResolveOrCreateCategory(ctx context.Context, name string) (*Category, error) {
	return s.mem.ResolveOrCreateCategory(ctx, name)
}

// Commit writes the full state atomically.
func (s *FileStore) Commit(context.Context) error {
	state := fileState{
		Version:    stateVersion,
		UpdatedAt:  time.Now().UTC(),
		Categories: s.mem.Categories(),
		Templates:  s.mem.templates,
	}
	for _, tx := range s.mem.transactions {
		state.Transactions = append(state.Transactions, &storedTransaction{
			ID:           tx.ID,
			Date:         tx.Date,
			Amount:       tx.Amount.String(),
			Kind:         tx.Kind,
			CurrencyCode: tx.CurrencyCode,
			Note:         tx.Note,
			CategoryID:   tx.CategoryID,
			ImportHash:   tx.ImportHash,
			CreatedAt:    tx.CreatedAt,
		})
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// TemplateBySignature implements TemplateStore.
func (s *FileStore) TemplateBySignature(ctx context.Context, signature string) (*Template, error) {
	return s.mem.TemplateBySignature(ctx, signature)
}

// SaveTemplate implements TemplateStore. Templates are persisted
// immediately; they live independently of any import batch.
func (s *FileStore) SaveTemplate(ctx context.Context, t *Template) error {
	if err := s.mem.SaveTemplate(ctx, t); err != nil {
		return err
	}
	return s.Commit(ctx)
}

// ListTemplates implements TemplateStore.
func (s *FileStore) ListTemplates(ctx context.Context) ([]*Template, error) {
	return s.mem.ListTemplates(ctx)
}

// DeleteTemplate implements TemplateStore.
func (s *FileStore) DeleteTemplate(ctx context.Context, name string) error {
	if err := s.mem.DeleteTemplate(ctx, name); err != nil {
		return err
	}
	return s.Commit(ctx)
}

// Transactions returns all stored transactions.
func (s *FileStore) Transactions() []*Transaction { return s.mem.Transactions() }
