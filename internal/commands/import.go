package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"github.com/moneta-app/moneta/internal/domain/import/mapper"
	"github.com/moneta-app/moneta/internal/domain/import/parser"
	"github.com/moneta-app/moneta/internal/domain/import/service"
	"github.com/moneta-app/moneta/pkg/config"
)

func newImportCommand() *cobra.Command {
	var (
		dateFormat   string
		delimiter    string
		mode         string
		currency     string
		mapPairs     []string
		templateName string
		saveTemplate string
		rejectsPath  string
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a bank export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger(cmd)

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			st, err := openStores(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer st.close()

			opts := service.Options{
				DateFormat:       dateFormat,
				Mode:             mapper.AmountMode(mode),
				CurrencyFallback: currency,
			}
			opts.Delimiter, err = parseDelimiter(delimiter)
			if err != nil {
				return err
			}
			opts.Mapping, err = parseMappingFlags(mapPairs)
			if err != nil {
				return err
			}

			svc := service.New(st.store, logger).WithTemplateStore(st.templates)

			if templateName != "" {
				if err := applyNamedTemplate(cmd, st, templateName, &opts); err != nil {
					return err
				}
			}
			if opts.CurrencyFallback == "" {
				opts.CurrencyFallback = cfg.Import.CurrencyFallback
			}

			path := args[0]
			table, err := readTable(path, opts.Delimiter)
			if err != nil {
				return err
			}

			summary, err := svc.ImportTable(ctx, table, opts)
			if err != nil {
				return err
			}

			if saveTemplate != "" {
				saveOpts := opts
				if saveOpts.Mapping == nil {
					saveOpts.Mapping = mapper.AutoMap(table.Headers)
				}
				if err := svc.SaveTemplate(ctx, saveTemplate, table.Headers, saveOpts); err != nil {
					return fmt.Errorf("save template: %w", err)
				}
				fmt.Printf("Saved template %q\n", saveTemplate)
			}

			if rejectsPath != "" && len(summary.Rejects) > 0 {
				if err := writeRejects(rejectsPath, summary.Rejects); err != nil {
					return fmt.Errorf("write rejects: %w", err)
				}
			}

			fmt.Printf("Imported %d, invalid %d, duplicate %d\n",
				summary.Imported, summary.Invalid, summary.Duplicate)
			return nil
		},
	}

	cmd.Flags().StringVar(&dateFormat, "date-format", "", "date pattern, e.g. MM/dd/yyyy (default ISO)")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "field delimiter (default auto-detect)")
	cmd.Flags().StringVar(&mode, "mode", "", "amount mode: single or splitColumns (default from mapping)")
	cmd.Flags().StringVar(&currency, "currency", "", "fallback currency code (default from MONETA_CURRENCY)")
	cmd.Flags().StringArrayVar(&mapPairs, "map", nil, "column binding field=Header, repeatable")
	cmd.Flags().StringVar(&templateName, "template", "", "use a saved template by name")
	cmd.Flags().StringVar(&saveTemplate, "save-template", "", "save the effective mapping under this name")
	cmd.Flags().StringVar(&rejectsPath, "rejects", "", "write rejected rows to this CSV file")

	return cmd
}

// readTable parses a local export file, routing xlsx workbooks through the
// spreadsheet reader.
func readTable(path string, delimiter rune) (*parser.RawTable, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return parser.ParseExcel(f)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parser.Parse(data, delimiter)
}

// applyNamedTemplate loads a template by name and fills any options the
// user left unset.
func applyNamedTemplate(cmd *cobra.Command, st *stores, name string, opts *service.Options) error {
	templates, err := st.templates.ListTemplates(cmd.Context())
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}
	for _, tpl := range templates {
		if tpl.Name != name {
			continue
		}
		if opts.Mapping == nil {
			opts.Mapping = mapper.Mapping{}
			for field, header := range tpl.Mapping {
				opts.Mapping[mapper.Field(field)] = header
			}
		}
		if opts.DateFormat == "" {
			opts.DateFormat = tpl.DateFormat
		}
		if opts.Mode == "" {
			opts.Mode = mapper.AmountMode(tpl.AmountMode)
		}
		if opts.Delimiter == 0 && tpl.Delimiter != "" {
			opts.Delimiter = []rune(tpl.Delimiter)[0]
		}
		if opts.CurrencyFallback == "" {
			opts.CurrencyFallback = tpl.CurrencyFallback
		}
		return nil
	}
	return fmt.Errorf("template %q not found", name)
}

func writeRejects(path string, rejects []service.Reject) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.MarshalFile(&rejects, f)
}
