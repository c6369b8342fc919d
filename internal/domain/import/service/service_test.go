package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneta-app/moneta/internal/domain/import/mapper"
	"github.com/moneta-app/moneta/internal/domain/import/normalizer"
	"github.com/moneta-app/moneta/internal/domain/import/parser"
	"github.com/moneta-app/moneta/internal/domain/import/repository"
)

func newTestService(store repository.Store) *ImportService {
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const sampleCSV = "Date,Amount,Description\n" +
	"2025-01-15,-42.50,Coffee\n" +
	"2025-01-16,1000.00,Salary\n" +
	"not-a-date,10.00,Mystery\n"

func TestImport(t *testing.T) {
	ctx := context.Background()

	t.Run("counts imported and invalid rows", func(t *testing.T) {
		store := repository.NewMemoryStore()
		svc := newTestService(store)

		summary, err := svc.Import(ctx, []byte(sampleCSV), Options{})
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Imported)
		assert.Equal(t, 1, summary.Invalid)
		assert.Equal(t, 0, summary.Duplicate)

		require.Len(t, summary.Rejects, 1)
		assert.Equal(t, 4, summary.Rejects[0].Line)
		assert.Contains(t, summary.Rejects[0].Reason, "invalid date")
		assert.Contains(t, summary.Rejects[0].Raw, "not-a-date")

		txs := store.Transactions()
		require.Len(t, txs, 2)
		assert.Equal(t, "expense", txs[0].Kind)
		assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("-42.5")))
		require.NotNil(t, txs[0].Note)
		assert.Equal(t, "Coffee", *txs[0].Note)
		assert.Equal(t, "income", txs[1].Kind)
		assert.True(t, txs[1].Amount.Equal(decimal.RequireFromString("1000")))
	})

	t.Run("re-importing the same file only adds duplicates", func(t *testing.T) {
		store := repository.NewMemoryStore()
		svc := newTestService(store)

		_, err := svc.Import(ctx, []byte(sampleCSV), Options{})
		require.NoError(t, err)

		summary, err := svc.Import(ctx, []byte(sampleCSV), Options{})
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Imported)
		assert.Equal(t, 1, summary.Invalid)
		assert.Equal(t, 2, summary.Duplicate)
		assert.Len(t, store.Transactions(), 2)
	})

	t.Run("duplicate rows within one file import once", func(t *testing.T) {
		store := repository.NewMemoryStore()
		svc := newTestService(store)

		csv := "Date,Amount,Description\n" +
			"2025-01-15,-42.50,Coffee\n" +
			"2025-01-15,-42.50,Coffee\n"
		summary, err := svc.Import(ctx, []byte(csv), Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Imported)
		assert.Equal(t, 1, summary.Duplicate)
	})

	t.Run("detects semicolon files without hints", func(t *testing.T) {
		store := repository.NewMemoryStore()
		svc := newTestService(store)

		csv := "Date;Amount;Description\n" +
			"2025-02-01;-9.99;Snack\n"
		summary, err := svc.Import(ctx, []byte(csv), Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Imported)
	})

	t.Run("split debit and credit columns", func(t *testing.T) {
		store := repository.NewMemoryStore()
		svc := newTestService(store)

		csv := "Date,Debit,Credit,Memo\n" +
			"2025-03-01,12.00,,Lunch\n" +
			"2025-03-02,,250.00,Refund\n" +
			"2025-03-03,,,Empty\n"
		summary, err := svc.Import(ctx, []byte(csv), Options{})
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Imported)
		assert.Equal(t, 1, summary.Invalid)

		txs := store.Transactions()
		require.Len(t, txs, 2)
		assert.Equal(t, "expense", txs[0].Kind)
		assert.True(t, txs[0].Amount.IsNegative())
		assert.Equal(t, "income", txs[1].Kind)
	})

	t.Run("explicit mapping and date format", func(t *testing.T) {
		store := repository.NewMemoryStore()
		svc := newTestService(store)

		csv := "When,How Much\n" +
			"01/15/2025,-5.00\n"
		summary, err := svc.Import(ctx, []byte(csv), Options{
			DateFormat: "MM/dd/yyyy",
			Mapping: mapper.Mapping{
				mapper.FieldDate:   "When",
				mapper.FieldAmount: "How Much",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Imported)
	})

	t.Run("categories resolve once per name", func(t *testing.T) {
		store := repository.NewMemoryStore()
		svc := newTestService(store)

		csv := "Date,Amount,Category\n" +
			"2025-01-01,-1.00,Food\n" +
			"2025-01-02,-2.00,food\n" +
			"2025-01-03,-3.00,Travel\n"
		summary, err := svc.Import(ctx, []byte(csv), Options{})
		require.NoError(t, err)
		assert.Equal(t, 3, summary.Imported)
		assert.Len(t, store.Categories(), 2)

		for _, tx := range store.Transactions() {
			require.NotNil(t, tx.CategoryID)
		}
	})

	t.Run("currency fallback applies to blank cells", func(t *testing.T) {
		store := repository.NewMemoryStore()
		svc := newTestService(store)

		csv := "Date,Amount,Currency\n" +
			"2025-01-01,-1.00,eur\n" +
			"2025-01-02,-2.00,\n"
		summary, err := svc.Import(ctx, []byte(csv), Options{CurrencyFallback: "USD"})
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Imported)

		txs := store.Transactions()
		assert.Equal(t, "EUR", txs[0].CurrencyCode)
		assert.Equal(t, "USD", txs[1].CurrencyCode)
	})

	t.Run("unmappable headers abort the run", func(t *testing.T) {
		svc := newTestService(repository.NewMemoryStore())
		_, err := svc.Import(ctx, []byte("Foo,Bar\n1,2\n"), Options{})
		assert.ErrorIs(t, err, normalizer.ErrNotImportReady)
	})

	t.Run("empty input aborts the run", func(t *testing.T) {
		svc := newTestService(repository.NewMemoryStore())
		_, err := svc.Import(ctx, []byte("\n\n"), Options{})
		assert.ErrorIs(t, err, parser.ErrParseEmpty)
	})
}

func TestImport_StoreFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate check failure is fatal", func(t *testing.T) {
		store := &failingStore{MemoryStore: repository.NewMemoryStore(), failFind: true}
		svc := newTestService(store)
		_, err := svc.Import(ctx, []byte(sampleCSV), Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate check")
	})

	t.Run("commit failure is fatal", func(t *testing.T) {
		store := &failingStore{MemoryStore: repository.NewMemoryStore(), failCommit: true}
		svc := newTestService(store)
		_, err := svc.Import(ctx, []byte(sampleCSV), Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "commit batch")
	})
}

func TestImport_Templates(t *testing.T) {
	ctx := context.Background()

	t.Run("template matching the header signature drives the run", func(t *testing.T) {
		store := repository.NewMemoryStore()
		require.NoError(t, store.SaveTemplate(ctx, &repository.Template{
			Name:            "mybank",
			HeaderSignature: "How Much|When",
			DateFormat:      "dd/MM/yyyy",
			AmountMode:      "single",
			Mapping: map[string]string{
				"date":   "When",
				"amount": "How Much",
			},
		}))
		svc := newTestService(store).WithTemplateStore(store)

		csv := "When,How Much\n" +
			"15/01/2025,-5.00\n"
		summary, err := svc.Import(ctx, []byte(csv), Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Imported)
	})

	t.Run("explicit mapping overrides a matching template", func(t *testing.T) {
		store := repository.NewMemoryStore()
		require.NoError(t, store.SaveTemplate(ctx, &repository.Template{
			Name:            "wrong",
			HeaderSignature: "Amount|Date|Description",
			DateFormat:      "dd/MM/yyyy",
			Mapping:         map[string]string{"date": "Description", "amount": "Amount"},
		}))
		svc := newTestService(store).WithTemplateStore(store)

		summary, err := svc.Import(ctx, []byte(sampleCSV), Options{
			Mapping: mapper.Mapping{
				mapper.FieldDate:   "Date",
				mapper.FieldAmount: "Amount",
				mapper.FieldNote:   "Description",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Imported)
	})

	t.Run("save and reuse a template", func(t *testing.T) {
		store := repository.NewMemoryStore()
		svc := newTestService(store).WithTemplateStore(store)

		headers := []string{"When", "How Much"}
		err := svc.SaveTemplate(ctx, "mybank", headers, Options{
			DateFormat: "MM/dd/yyyy",
			Mapping: mapper.Mapping{
				mapper.FieldDate:   "When",
				mapper.FieldAmount: "How Much",
			},
		})
		require.NoError(t, err)

		tpl, err := store.TemplateBySignature(ctx, "How Much|When")
		require.NoError(t, err)
		require.NotNil(t, tpl)
		assert.Equal(t, "mybank", tpl.Name)
		assert.Equal(t, "single", tpl.AmountMode)

		csv := "When,How Much\n" +
			"01/15/2025,-5.00\n"
		summary, err := svc.Import(ctx, []byte(csv), Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Imported)
	})

	t.Run("saving an incomplete mapping fails", func(t *testing.T) {
		store := repository.NewMemoryStore()
		svc := newTestService(store).WithTemplateStore(store)
		err := svc.SaveTemplate(ctx, "broken", []string{"When"}, Options{
			Mapping: mapper.Mapping{mapper.FieldDate: "When"},
		})
		assert.ErrorIs(t, err, normalizer.ErrNotImportReady)
	})
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()

	t.Run("reports detected dialect and auto-mapping", func(t *testing.T) {
		svc := newTestService(repository.NewMemoryStore())
		analysis, err := svc.Analyze(ctx, []byte(sampleCSV), 0)
		require.NoError(t, err)

		assert.Equal(t, ',', analysis.Delimiter)
		assert.Equal(t, []string{"Date", "Amount", "Description"}, analysis.Headers)
		assert.Equal(t, "Amount|Date|Description", analysis.Signature)
		assert.Equal(t, 3, analysis.RowCount)
		assert.Len(t, analysis.Preview, 3)
		assert.Equal(t, "Date", analysis.Mapping[mapper.FieldDate])
		assert.Equal(t, "Amount", analysis.Mapping[mapper.FieldAmount])
		assert.Equal(t, "Description", analysis.Mapping[mapper.FieldNote])
		assert.Equal(t, mapper.AmountModeSingle, analysis.Mode)
		assert.Empty(t, analysis.TemplateName)
	})

	t.Run("prefers a saved template", func(t *testing.T) {
		store := repository.NewMemoryStore()
		require.NoError(t, store.SaveTemplate(ctx, &repository.Template{
			Name:            "mybank",
			HeaderSignature: "Amount|Date|Description",
			AmountMode:      "single",
			Mapping:         map[string]string{"date": "Date", "amount": "Amount"},
		}))
		svc := newTestService(store).WithTemplateStore(store)

		analysis, err := svc.Analyze(ctx, []byte(sampleCSV), 0)
		require.NoError(t, err)
		assert.Equal(t, "mybank", analysis.TemplateName)
		assert.Equal(t, "Date", analysis.Mapping[mapper.FieldDate])
	})
}

func TestFingerprint(t *testing.T) {
	base := &normalizer.ImportRow{
		Magnitude:    decimal.RequireFromString("42.5"),
		Kind:         normalizer.KindExpense,
		CurrencyCode: "USD",
		Note:         "Coffee",
	}

	t.Run("stable across runs", func(t *testing.T) {
		assert.Equal(t, Fingerprint(base), Fingerprint(base))
	})

	t.Run("magnitude rendering is scale-insensitive", func(t *testing.T) {
		other := *base
		other.Magnitude = decimal.RequireFromString("42.50")
		assert.Equal(t, Fingerprint(base), Fingerprint(&other))
	})

	t.Run("kind flips change the hash", func(t *testing.T) {
		other := *base
		other.Kind = normalizer.KindIncome
		assert.NotEqual(t, Fingerprint(base), Fingerprint(&other))
	})

	t.Run("category is excluded", func(t *testing.T) {
		other := *base
		other.CategoryName = "Food"
		assert.Equal(t, Fingerprint(base), Fingerprint(&other))
	})
}

// failingStore wraps MemoryStore to inject faults on selected operations.
type failingStore struct {
	*repository.MemoryStore
	failFind   bool
	failCommit bool
}

func (s *failingStore) FindByFingerprint(ctx context.Context, hash string) (*repository.Transaction, error) {
	if s.failFind {
		return nil, errors.New("store offline")
	}
	return s.MemoryStore.FindByFingerprint(ctx, hash)
}

func (s *failingStore) Commit(ctx context.Context) error {
	if s.failCommit {
		return errors.New("disk full")
	}
	return s.MemoryStore.Commit(ctx)
}
