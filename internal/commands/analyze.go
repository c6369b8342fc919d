package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moneta-app/moneta/internal/domain/import/mapper"
	"github.com/moneta-app/moneta/internal/domain/import/service"
	"github.com/moneta-app/moneta/pkg/config"
)

func newAnalyzeCommand() *cobra.Command {
	var delimiter string

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Inspect a file and show how it would be imported",
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

			d, err := parseDelimiter(delimiter)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			svc := service.New(st.store, logger).WithTemplateStore(st.templates)
			analysis, err := svc.Analyze(ctx, data, d)
			if err != nil {
				return err
			}

			printAnalysis(analysis)
			return nil
		},
	}

	cmd.Flags().StringVar(&delimiter, "delimiter", "", "field delimiter (default auto-detect)")
	return cmd
}

func printAnalysis(a *service.Analysis) {
	fmt.Printf("Delimiter: %s\n", delimiterName(a.Delimiter))
	fmt.Printf("Headers:   %s\n", strings.Join(a.Headers, ", "))
	fmt.Printf("Rows:      %d\n", a.RowCount)
	if a.TemplateName != "" {
		fmt.Printf("Template:  %s\n", a.TemplateName)
	}
	fmt.Printf("Mode:      %s\n", a.Mode)

	fmt.Println("Mapping:")
	for _, field := range mapper.Fields {
		if header, ok := a.Mapping[field]; ok {
			fmt.Printf("  %-8s <- %s\n", field, header)
		}
	}
	if !a.Mapping.ImportReady() {
		fmt.Println("Mapping is incomplete: bind date plus amount or debit/credit with --map")
	}

	if len(a.Preview) > 0 {
		fmt.Println("Preview:")
		for _, row := range a.Preview {
			fmt.Printf("  %s\n", strings.Join(row, " | "))
		}
	}
}

func delimiterName(d rune) string {
	switch d {
	case '\t':
		return "tab"
	default:
		return string(d)
	}
}
