// Package commands wires the CLI surface: import, analyze, templates and
// watch subcommands on a cobra root.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/moneta-app/moneta/internal/domain/import/mapper"
	"github.com/moneta-app/moneta/internal/domain/import/repository"
	"github.com/moneta-app/moneta/pkg/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "moneta",
		Short: "Import bank CSV exports into a personal budget",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("store", "", "persistence backend: file or postgres (default from MONETA_STORE)")
	rootCmd.PersistentFlags().String("store-path", "", "state file for the file backend (default from MONETA_STORE_PATH)")
	rootCmd.PersistentFlags().String("dsn", "", "Postgres connection string (default from POSTGRES_* variables)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newTemplatesCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// stores bundles the configured persistence backend. Close releases the
// underlying pool or file handle resources.
type stores struct {
	store     repository.Store
	templates repository.TemplateStore
	close     func()
}

// openStores resolves the backend from flags and environment configuration
// and opens it. Both built-in backends also implement TemplateStore.
func openStores(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*stores, error) {
	backend := cfg.Store.Backend
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		backend = v
	}

	switch backend {
	case "file":
		path := cfg.Store.Path
		if v, _ := cmd.Flags().GetString("store-path"); v != "" {
			path = v
		}
		fs, err := repository.OpenFileStore(path)
		if err != nil {
			return nil, fmt.Errorf("open store %s: %w", path, err)
		}
		return &stores{store: fs, templates: fs, close: func() {}}, nil

	case "postgres":
		dsn := cfg.Database.DSN()
		if v, _ := cmd.Flags().GetString("dsn"); v != "" {
			dsn = v
		}
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		ps := repository.NewPostgresStore(pool)
		return &stores{store: ps, templates: ps, close: pool.Close}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// parseDelimiter converts the --delimiter flag value to a rune. "tab" and
// "\t" both select the tab character; empty means auto-detect.
func parseDelimiter(v string) (rune, error) {
	switch v {
	case "":
		return 0, nil
	case "tab", "\\t", "\t":
		return '\t', nil
	}
	runes := []rune(v)
	if len(runes) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", v)
	}
	return runes[0], nil
}

// parseMappingFlags converts repeated --map field=Header values into a
// Mapping.
func parseMappingFlags(pairs []string) (mapper.Mapping, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	known := make(map[mapper.Field]bool, len(mapper.Fields))
	for _, f := range mapper.Fields {
		known[f] = true
	}

	m := mapper.Mapping{}
	for _, pair := range pairs {
		field, header, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --map value %q, expected field=Header", pair)
		}
		f := mapper.Field(strings.ToLower(strings.TrimSpace(field)))
		if !known[f] {
			return nil, fmt.Errorf("unknown field %q in --map", field)
		}
		m[f] = strings.TrimSpace(header)
	}
	return m, nil
}
