// Package service orchestrates the import pipeline: parse, map, normalize,
// deduplicate, persist. One file is processed as one sequential pass
// against one store batch.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/moneta-app/moneta/internal/domain/import/mapper"
	"github.com/moneta-app/moneta/internal/domain/import/normalizer"
	"github.com/moneta-app/moneta/internal/domain/import/parser"
	"github.com/moneta-app/moneta/internal/domain/import/repository"
	"github.com/moneta-app/moneta/internal/domain/import/sniffer"
	"github.com/moneta-app/moneta/internal/metrics"
)

// Options configures one import run. Zero values mean "resolve it":
// delimiter is detected, the mapping comes from a saved template or
// auto-mapping, and the amount mode follows the mapping.
type Options struct {
	DateFormat       string
	Delimiter        rune
	Mode             mapper.AmountMode
	CurrencyFallback string
	Mapping          mapper.Mapping
}

// Summary is the user-visible result of a run: three counters plus the
// per-row reject detail for optional diagnostics.
type Summary struct {
	Imported  int
	Invalid   int
	Duplicate int
	Rejects   []Reject
}

// Reject records why a single row was skipped. The csv tags drive the
// optional rejects file written by the CLI.
type Reject struct {
	Line   int    `csv:"line"`
	Reason string `csv:"reason"`
	Raw    string `csv:"raw"`
}

// Analysis describes a file before import: what was detected and how it
// would be mapped.
type Analysis struct {
	Delimiter    rune
	Headers      []string
	Signature    string
	Mapping      mapper.Mapping
	Mode         mapper.AmountMode
	TemplateName string
	RowCount     int
	Preview      [][]string
}

// ImportService runs the import pipeline against a Store.
type ImportService struct {
	store     repository.Store
	templates repository.TemplateStore
	logger    *slog.Logger
}

// New creates an import service.
func New(store repository.Store, logger *slog.Logger) *ImportService {
	return &ImportService{store: store, logger: logger}
}

// WithTemplateStore enables saved-template lookup and persistence.
func (s *ImportService) WithTemplateStore(templates repository.TemplateStore) *ImportService {
	s.templates = templates
	return s
}

// Analyze parses a file and reports the detected dialect, headers and the
// mapping an import would use, without touching the store.
func (s *ImportService) Analyze(ctx context.Context, data []byte, delimiter rune) (*Analysis, error) {
	if delimiter == 0 {
		delimiter = sniffer.DetectDelimiter(string(sniffer.StripBOM(data)))
	}
	table, err := parser.Parse(data, delimiter)
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{
		Delimiter: delimiter,
		Headers:   table.Headers,
		Signature: sniffer.Signature(table.Headers),
		RowCount:  len(table.Rows),
		Preview:   table.Preview(5),
	}

	if tpl, err := s.lookupTemplate(ctx, analysis.Signature); err != nil {
		return nil, err
	} else if tpl != nil {
		analysis.Mapping = mappingFromTemplate(tpl)
		analysis.Mode = mapper.AmountMode(tpl.AmountMode)
		analysis.TemplateName = tpl.Name
	} else {
		analysis.Mapping = mapper.AutoMap(table.Headers)
		analysis.Mode = analysis.Mapping.Mode()
	}
	return analysis, nil
}

// Import runs the full pipeline over raw file bytes.
func (s *ImportService) Import(ctx context.Context, data []byte, opts Options) (*Summary, error) {
	table, err := parser.Parse(data, opts.Delimiter)
	if err != nil {
		metrics.FilesProcessed.WithLabelValues("failed").Inc()
		return nil, err
	}
	return s.ImportTable(ctx, table, opts)
}

// ImportExcel runs the pipeline over the first sheet of an xlsx workbook.
func (s *ImportService) ImportExcel(ctx context.Context, r io.Reader, opts Options) (*Summary, error) {
	table, err := parser.ParseExcel(r)
	if err != nil {
		metrics.FilesProcessed.WithLabelValues("failed").Inc()
		return nil, err
	}
	return s.ImportTable(ctx, table, opts)
}

// ImportTable runs mapping, normalization, deduplication and persistence
// over an already-parsed table. The store commit happens once at the end
// of the batch; a commit failure aborts the whole batch.
func (s *ImportService) ImportTable(ctx context.Context, table *parser.RawTable, opts Options) (*Summary, error) {
	opts, templateName, err := s.resolveOptions(ctx, table.Headers, opts)
	if err != nil {
		metrics.FilesProcessed.WithLabelValues("failed").Inc()
		return nil, err
	}

	norm, err := normalizer.New(table.Headers, opts.Mapping, normalizer.Options{
		DateFormat:       opts.DateFormat,
		Mode:             opts.Mode,
		CurrencyFallback: opts.CurrencyFallback,
	})
	if err != nil {
		metrics.FilesProcessed.WithLabelValues("failed").Inc()
		return nil, err
	}

	s.logger.Info("starting import",
		slog.Int("rows", len(table.Rows)),
		slog.String("template", templateName),
		slog.String("mode", string(opts.Mode)),
	)

	summary := &Summary{}
	categories := make(map[string]*repository.Category)

	for i, record := range table.Rows {
		line := i + 2 // 1-indexed, after the header row

		row, err := norm.Normalize(record)
		if err != nil {
			summary.Invalid++
			summary.Rejects = append(summary.Rejects, Reject{
				Line:   line,
				Reason: err.Error(),
				Raw:    strings.Join(record, ","),
			})
			continue
		}

		hash := Fingerprint(row)
		existing, err := s.store.FindByFingerprint(ctx, hash)
		if err != nil {
			metrics.FilesProcessed.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("duplicate check: %w", err)
		}
		if existing != nil {
			summary.Duplicate++
			continue
		}

		tx, err := s.buildTransaction(ctx, row, hash, categories)
		if err != nil {
			metrics.FilesProcessed.WithLabelValues("failed").Inc()
			return nil, err
		}
		if err := s.store.CreateTransaction(ctx, tx); err != nil {
			metrics.FilesProcessed.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("create transaction: %w", err)
		}
		summary.Imported++
	}

	if err := s.store.Commit(ctx); err != nil {
		metrics.FilesProcessed.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("commit batch: %w", err)
	}

	metrics.FilesProcessed.WithLabelValues("succeeded").Inc()
	metrics.RowsProcessed.WithLabelValues("imported").Add(float64(summary.Imported))
	metrics.RowsProcessed.WithLabelValues("invalid").Add(float64(summary.Invalid))
	metrics.RowsProcessed.WithLabelValues("duplicate").Add(float64(summary.Duplicate))

	s.logger.Info("import complete",
		slog.Int("imported", summary.Imported),
		slog.Int("invalid", summary.Invalid),
		slog.Int("duplicate", summary.Duplicate),
	)
	return summary, nil
}

// SaveTemplate persists the mapping and parse settings for files shaped
// like the given headers.
func (s *ImportService) SaveTemplate(ctx context.Context, name string, headers []string, opts Options) error {
	if s.templates == nil {
		return fmt.Errorf("no template store configured")
	}
	if !opts.Mapping.ImportReady() {
		return normalizer.ErrNotImportReady
	}

	mode := opts.Mode
	if mode == "" {
		mode = opts.Mapping.Mode()
	}
	mapping := make(map[string]string, len(opts.Mapping))
	for field, header := range opts.Mapping {
		mapping[string(field)] = header
	}

	delimiter := ","
	if opts.Delimiter != 0 {
		delimiter = string(opts.Delimiter)
	}

	return s.templates.SaveTemplate(ctx, &repository.Template{
		Name:             name,
		HeaderSignature:  sniffer.Signature(headers),
		DateFormat:       opts.DateFormat,
		Delimiter:        delimiter,
		AmountMode:       string(mode),
		CurrencyFallback: opts.CurrencyFallback,
		Mapping:          mapping,
	})
}

// Fingerprint derives the stable duplicate-detection hash for a
// normalized row: a SHA-256 digest over date (epoch seconds), magnitude,
// kind, currency and note joined with a fixed separator. Category is
// deliberately excluded so re-categorizing a transaction never causes a
// spurious duplicate on re-import.
func Fingerprint(row *normalizer.ImportRow) string {
	input := fmt.Sprintf("%d|%s|%s|%s|%s",
		row.Date.Unix(),
		row.Magnitude.StringFixed(2),
		row.Kind,
		row.CurrencyCode,
		row.Note,
	)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// resolveOptions fills in whatever the caller left unset: an explicit
// mapping wins, then a saved template matching the header signature, then
// auto-mapping.
func (s *ImportService) resolveOptions(ctx context.Context, headers []string, opts Options) (Options, string, error) {
	templateName := ""

	if opts.Mapping == nil {
		tpl, err := s.lookupTemplate(ctx, sniffer.Signature(headers))
		if err != nil {
			return opts, "", err
		}
		if tpl != nil {
			templateName = tpl.Name
			opts.Mapping = mappingFromTemplate(tpl)
			if opts.DateFormat == "" {
				opts.DateFormat = tpl.DateFormat
			}
			if opts.Mode == "" {
				opts.Mode = mapper.AmountMode(tpl.AmountMode)
			}
			if opts.CurrencyFallback == "" {
				opts.CurrencyFallback = tpl.CurrencyFallback
			}
		} else {
			opts.Mapping = mapper.AutoMap(headers)
		}
	}

	if opts.Mode == "" {
		opts.Mode = opts.Mapping.Mode()
	}
	return opts, templateName, nil
}

func (s *ImportService) lookupTemplate(ctx context.Context, signature string) (*repository.Template, error) {
	if s.templates == nil {
		return nil, nil
	}
	tpl, err := s.templates.TemplateBySignature(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("template lookup: %w", err)
	}
	return tpl, nil
}

// buildTransaction converts a normalized row into a persistable record,
// resolving the category through a per-run cache so repeated names hit
// the store once.
func (s *ImportService) buildTransaction(ctx context.Context, row *normalizer.ImportRow, hash string, categories map[string]*repository.Category) (*repository.Transaction, error) {
	tx := &repository.Transaction{
		Date:         row.Date,
		Amount:       row.Magnitude,
		Kind:         string(row.Kind),
		CurrencyCode: row.CurrencyCode,
		ImportHash:   hash,
	}
	if row.Kind == normalizer.KindExpense {
		tx.Amount = row.Magnitude.Neg()
	}
	if row.Note != "" {
		note := row.Note
		tx.Note = &note
	}

	if row.CategoryName != "" {
		key := strings.ToLower(row.CategoryName)
		category, ok := categories[key]
		if !ok {
			var err error
			category, err = s.store.ResolveOrCreateCategory(ctx, row.CategoryName)
			if err != nil {
				return nil, fmt.Errorf("resolve category %q: %w", row.CategoryName, err)
			}
			categories[key] = category
		}
		tx.CategoryID = &category.ID
	}
	return tx, nil
}

func mappingFromTemplate(tpl *repository.Template) mapper.Mapping {
	m := mapper.Mapping{}
	for field, header := range tpl.Mapping {
		m[mapper.Field(field)] = header
	}
	return m
}
