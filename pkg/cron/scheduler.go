// Package cron provides the scheduled watch-directory sweep using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/moneta-app/moneta/internal/domain/import/service"
)

// processedSuffix marks files a sweep has already imported. Renaming keeps
// the marker visible next to the original file and survives restarts.
const processedSuffix = ".imported"

// Scheduler periodically sweeps a directory for new bank exports and runs
// each one through the import pipeline.
type Scheduler struct {
	cron   *cron.Cron
	svc    *service.ImportService
	dir    string
	spec   string
	opts   service.Options
	logger *slog.Logger
}

// NewScheduler creates a directory-watching scheduler. spec is a standard
// 5-field cron expression.
func NewScheduler(svc *service.ImportService, dir, spec string, opts service.Options, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:   c,
		svc:    svc,
		dir:    dir,
		spec:   spec,
		opts:   opts,
		logger: logger,
	}
}

// Start begins the scheduled sweeps.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.sweep)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("watch scheduler started",
		slog.String("dir", s.dir),
		slog.String("schedule", s.spec),
	)
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("watch scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers a sweep immediately.
func (s *Scheduler) RunNow() {
	s.sweep()
}

// sweep imports every unprocessed export file in the watch directory.
func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("failed to read watch directory", slog.Any("error", err))
		return
	}

	imported := 0
	failed := 0

	for _, entry := range entries {
		if entry.IsDir() || !importable(entry.Name()) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())

		summary, err := s.importFile(ctx, path)
		if err != nil {
			s.logger.Warn("failed to import file",
				slog.String("file", entry.Name()),
				slog.Any("error", err),
			)
			failed++
			continue
		}

		if err := os.Rename(path, path+processedSuffix); err != nil {
			s.logger.Warn("failed to mark file processed",
				slog.String("file", entry.Name()),
				slog.Any("error", err),
			)
		}

		s.logger.Info("imported file",
			slog.String("file", entry.Name()),
			slog.Int("imported", summary.Imported),
			slog.Int("invalid", summary.Invalid),
			slog.Int("duplicate", summary.Duplicate),
		)
		imported++
	}

	if imported > 0 || failed > 0 {
		s.logger.Info("watch sweep completed",
			slog.Int("files_imported", imported),
			slog.Int("files_failed", failed),
		)
	}
}

func (s *Scheduler) importFile(ctx context.Context, path string) (*service.Summary, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return s.svc.ImportExcel(ctx, f, s.opts)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return s.svc.Import(ctx, data, s.opts)
}

func importable(name string) bool {
	if strings.HasSuffix(name, processedSuffix) {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", ".txt", ".xlsx":
		return true
	}
	return false
}
