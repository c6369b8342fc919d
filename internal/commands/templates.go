package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moneta-app/moneta/pkg/config"
)

func newTemplatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage saved import templates",
	}
	cmd.AddCommand(newTemplatesListCommand())
	cmd.AddCommand(newTemplatesDeleteCommand())
	return cmd
}

func newTemplatesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			st, err := openStores(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer st.close()

			templates, err := st.templates.ListTemplates(ctx)
			if err != nil {
				return err
			}
			if len(templates) == 0 {
				fmt.Println("No templates saved")
				return nil
			}

			sort.Slice(templates, func(i, j int) bool {
				return templates[i].Name < templates[j].Name
			})
			for _, tpl := range templates {
				fields := make([]string, 0, len(tpl.Mapping))
				for field, header := range tpl.Mapping {
					fields = append(fields, field+"="+header)
				}
				sort.Strings(fields)
				fmt.Printf("%s\n  headers: %s\n  mapping: %s\n",
					tpl.Name, tpl.HeaderSignature, strings.Join(fields, ", "))
			}
			return nil
		},
	}
}

func newTemplatesDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			st, err := openStores(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer st.close()

			if err := st.templates.DeleteTemplate(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted template %q\n", args[0])
			return nil
		},
	}
}
