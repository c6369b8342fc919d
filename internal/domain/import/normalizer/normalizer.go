// Package normalizer converts raw CSV rows into canonical import rows:
// parsed date, non-negative amount magnitude with an expense/income kind,
// normalized currency, and optional note/category.
package normalizer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moneta-app/moneta/internal/domain/import/mapper"
	"github.com/moneta-app/moneta/pkg/money"
)

// Kind is the direction of a transaction. Sign is carried solely by Kind;
// magnitudes are always non-negative.
type Kind string

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

// ImportRow is a normalized row ready for duplicate checking and
// persistence.
type ImportRow struct {
	Date         time.Time
	Magnitude    decimal.Decimal
	Kind         Kind
	CurrencyCode string
	Note         string
	CategoryName string
}

// Options configures row normalization.
type Options struct {
	// DateFormat is a token pattern such as "MM/dd/yyyy". Go reference
	// layouts are accepted as-is.
	DateFormat string
	// Mode selects single-amount or split debit/credit parsing.
	Mode mapper.AmountMode
	// CurrencyFallback is used when no currency column is mapped or the
	// cell is blank.
	CurrencyFallback string
}

// ErrNotImportReady indicates the mapping lacks the columns an import
// needs: a date plus either an amount or a debit/credit pair.
var ErrNotImportReady = errors.New("normalizer: mapping is not import-ready")

// expenseHints and incomeHints are scanned (as substrings) against a
// lowercased type cell. An explicit hint overrides the sign inferred from
// the amount text.
var (
	expenseHints = []string{"expense", "debit", "withdrawal", "dr", "charge", "purchase", "payment sent"}
	incomeHints  = []string{"income", "credit", "deposit", "cr", "refund", "payment received"}
)

// RowNormalizer normalizes rows of one file against a resolved mapping.
// Column indices are resolved once at construction.
type RowNormalizer struct {
	dateCol     int
	amountCol   int
	debitCol    int
	creditCol   int
	typeCol     int
	noteCol     int
	categoryCol int
	currencyCol int

	layout   string
	mode     mapper.AmountMode
	fallback string
}

// New builds a RowNormalizer for the given headers and mapping. Returns
// ErrNotImportReady when the mapping cannot drive an import.
func New(headers []string, m mapper.Mapping, opts Options) (*RowNormalizer, error) {
	if !m.ImportReady() {
		return nil, ErrNotImportReady
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		// First occurrence wins on duplicate header names.
		if _, ok := index[h]; !ok {
			index[h] = i
		}
	}
	col := func(f mapper.Field) int {
		if name := m[f]; name != "" {
			if i, ok := index[name]; ok {
				return i
			}
		}
		return -1
	}

	mode := opts.Mode
	if mode == "" {
		mode = m.Mode()
	}

	return &RowNormalizer{
		dateCol:     col(mapper.FieldDate),
		amountCol:   col(mapper.FieldAmount),
		debitCol:    col(mapper.FieldDebit),
		creditCol:   col(mapper.FieldCredit),
		typeCol:     col(mapper.FieldType),
		noteCol:     col(mapper.FieldNote),
		categoryCol: col(mapper.FieldCategory),
		currencyCol: col(mapper.FieldCurrency),
		layout:      DateLayout(opts.DateFormat),
		mode:        mode,
		fallback:    opts.CurrencyFallback,
	}, nil
}

// Normalize converts one raw row into an ImportRow, or returns an error
// describing why the row is invalid. Row errors are recoverable: the
// caller counts them and moves on.
func (n *RowNormalizer) Normalize(record []string) (*ImportRow, error) {
	dateStr := strings.TrimSpace(n.cell(record, n.dateCol))
	if dateStr == "" {
		return nil, fmt.Errorf("missing date")
	}
	date, err := time.Parse(n.layout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}

	var (
		magnitude decimal.Decimal
		kind      Kind
	)
	if n.mode == mapper.AmountModeSplit {
		magnitude, kind, err = n.normalizeSplit(record)
	} else {
		magnitude, kind, err = n.normalizeSingle(record)
	}
	if err != nil {
		return nil, err
	}

	row := &ImportRow{
		Date:         date,
		Magnitude:    magnitude,
		Kind:         kind,
		CurrencyCode: money.NormalizeCurrency(n.cell(record, n.currencyCol), n.fallback),
		Note:         n.cell(record, n.noteCol),
		CategoryName: strings.TrimSpace(n.cell(record, n.categoryCol)),
	}
	return row, nil
}

// normalizeSingle parses the amount column and infers the kind: type-text
// hints take precedence, then the numeric sign, with bare positive
// amounts defaulting to income.
func (n *RowNormalizer) normalizeSingle(record []string) (decimal.Decimal, Kind, error) {
	raw := n.cell(record, n.amountCol)
	magnitude, negative, err := money.ParseAmount(raw)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("invalid amount %q: %w", raw, err)
	}

	kind := KindIncome
	if negative {
		kind = KindExpense
	}
	if hinted, ok := kindFromType(n.cell(record, n.typeCol)); ok {
		kind = hinted
	}
	return magnitude, kind, nil
}

// normalizeSplit parses the debit and credit columns independently. A
// nonzero debit wins; rows with no signal on either side are invalid.
func (n *RowNormalizer) normalizeSplit(record []string) (decimal.Decimal, Kind, error) {
	debit := money.ParseMagnitude(n.cell(record, n.debitCol))
	if !debit.IsZero() {
		return debit, KindExpense, nil
	}
	credit := money.ParseMagnitude(n.cell(record, n.creditCol))
	if !credit.IsZero() {
		return credit, KindIncome, nil
	}
	return decimal.Zero, "", fmt.Errorf("no debit or credit value")
}

func (n *RowNormalizer) cell(record []string, col int) string {
	if col < 0 || col >= len(record) {
		return ""
	}
	return record[col]
}

func kindFromType(typeCell string) (Kind, bool) {
	t := strings.ToLower(strings.TrimSpace(typeCell))
	if t == "" {
		return "", false
	}
	for _, hint := range expenseHints {
		if strings.Contains(t, hint) {
			return KindExpense, true
		}
	}
	for _, hint := range incomeHints {
		if strings.Contains(t, hint) {
			return KindIncome, true
		}
	}
	return "", false
}

// layoutTokens converts conventional date-format tokens to Go reference
// layout fragments. Longer tokens are replaced first.
var layoutTokens = []struct{ token, layout string }{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MM", "01"},
	{"M", "1"},
	{"dd", "02"},
	{"d", "2"},
}

// DateLayout converts a token pattern like "MM/dd/yyyy" to a Go layout.
// Patterns already containing the Go reference year pass through, and an
// empty pattern defaults to ISO dates.
func DateLayout(pattern string) string {
	if pattern == "" {
		return "2006-01-02"
	}
	if strings.Contains(pattern, "2006") {
		return pattern
	}
	layout := pattern
	for _, t := range layoutTokens {
		layout = strings.ReplaceAll(layout, t.token, t.layout)
	}
	return layout
}
