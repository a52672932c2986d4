package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/contactimport/internal/core"
	"github.com/JonMunkholm/contactimport/internal/tabular"
)

func newTemplateCmd(env *cliEnv) *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the contact import template",
		Long: `Write the contact import template with its example rows.

The file is written to contact_import_template.<format> unless --out is given.
Use --out - to write to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := tabular.Format(strings.ToLower(format))
			if f != tabular.FormatCSV && f != tabular.FormatXLSX {
				return fmt.Errorf("%w: %q", tabular.ErrUnsupportedFormat, format)
			}
			if out == "" {
				out = core.TemplateFileBase + "." + string(f)
			}

			if out == "-" {
				return writeTemplate(env.stdout, f)
			}

			file, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := writeTemplate(file, f); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Fprintf(env.stderr, "wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", string(tabular.FormatCSV), "Template format: csv or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path, or - for stdout")

	return cmd
}

func writeTemplate(w io.Writer, format tabular.Format) error {
	headers, records := core.Template()
	if format == tabular.FormatXLSX {
		return tabular.WriteXLSX(w, "Contacts", headers, records)
	}
	return tabular.WriteCSV(w, headers, records)
}
