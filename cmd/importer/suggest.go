package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/contactimport/internal/core"
	"github.com/JonMunkholm/contactimport/internal/tabular"
)

func newSuggestCmd(env *cliEnv, root *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "suggest --file PATH",
		Short: "Show the suggested column mapping for a file",
		Long: `Show the suggested column mapping for a file without connecting to the
database. Use the output to decide which --map overrides a run needs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			table, err := tabular.Parse(filepath.Base(file), f)
			if err != nil {
				return err
			}
			mappings := core.NewMappingEngine(core.DefaultSuggestions()).Suggest(table.Headers)

			if root.jsonOutput {
				return outputJSON(env.stdout, mappings)
			}

			tw := tabwriter.NewWriter(env.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "COLUMN\tTARGET")
			for _, m := range mappings {
				fmt.Fprintf(tw, "%s\t%s\n", m.SourceColumn, m.Target)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV or XLSX file to inspect")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
