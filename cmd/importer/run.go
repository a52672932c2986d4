package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/contactimport/internal/core"
)

type runOptions struct {
	file       string
	duplicates string
	mappings   []string
	dryRun     bool
}

// runOutput is the --json result of a run.
type runOutput struct {
	Session core.ImportSession     `json:"session"`
	Issues  []core.ValidationIssue `json:"issues"`
	Preview *core.PreviewResponse  `json:"preview,omitempty"`
	Report  *core.RunReport        `json:"report,omitempty"`
}

func newRunCmd(env *cliEnv, root *rootOptions) *cobra.Command {
	o := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run --file PATH",
		Short: "Import contacts from a CSV or XLSX file",
		Long: `Import contacts from a CSV or XLSX file.

Columns are mapped by header name. Override a suggestion with --map, once per
column, for example --map "Company=dsp_name" or --map "Internal ID=skip".
Use --dry-run to see what the import would do without writing anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			changes, err := parseMappings(o.mappings)
			if err != nil {
				return err
			}
			var policy core.DuplicatePolicy
			if o.duplicates != "" {
				if policy, err = core.ParseDuplicatePolicy(o.duplicates); err != nil {
					return err
				}
			}

			f, err := os.Open(o.file)
			if err != nil {
				return err
			}
			defer f.Close()

			svc, release, err := env.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			out, err := runImport(cmd.Context(), svc, filepath.Base(o.file), f, changes, policy, o.dryRun, env.stderr)
			if err != nil {
				return err
			}

			if root.jsonOutput {
				if err := outputJSON(env.stdout, out); err != nil {
					return err
				}
			} else {
				printRun(env.stdout, out)
			}

			if out.Report != nil {
				if failed := out.Report.Summary.Failed - out.Report.Summary.Duplicates; failed > 0 {
					return fmt.Errorf("%d rows failed to import", failed)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&o.file, "file", "f", "", "CSV or XLSX file to import")
	cmd.Flags().StringVar(&o.duplicates, "duplicates", "", "Duplicate email policy: skip, update or create (default from IMPORT_DUPLICATE_POLICY)")
	cmd.Flags().StringArrayVarP(&o.mappings, "map", "m", nil, `Column mapping override "Column=target" (repeatable)`)
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Preview the import without writing")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// runImport drives one session from upload to report. Progress lines go to
// progress.
func runImport(ctx context.Context, svc *core.Service, name string, r io.Reader, changes map[string]string, policy core.DuplicatePolicy, dryRun bool, progress io.Writer) (*runOutput, error) {
	sess, err := svc.StartImport(ctx, name, r)
	if err != nil {
		return nil, err
	}
	if len(changes) > 0 {
		if sess, err = svc.UpdateMapping(sess.ID, changes); err != nil {
			return nil, err
		}
	}

	prepared, err := svc.Prepare(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	out := &runOutput{Session: sess, Issues: prepared.Issues}

	if dryRun {
		if out.Preview, err = svc.Preview(ctx, sess.ID); err != nil {
			return nil, err
		}
		return out, nil
	}

	if err := svc.Run(ctx, sess.ID, policy); err != nil {
		return nil, err
	}
	updates, err := svc.SubscribeProgress(sess.ID)
	if err != nil {
		return nil, err
	}

	last := -1
	for done := false; !done; {
		select {
		case p, ok := <-updates:
			if !ok {
				done = true
				break
			}
			if pct := p.Percent(); pct != last {
				last = pct
				fmt.Fprintf(progress, "\rimporting %s: %3d%% (%d/%d)", name, pct, p.Processed, p.Total)
			}
		case <-ctx.Done():
			fmt.Fprintln(progress)
			return nil, ctx.Err()
		}
	}
	fmt.Fprintln(progress)

	if out.Report, err = svc.GetReport(sess.ID); err != nil {
		return nil, err
	}
	return out, nil
}

// parseMappings turns "Column=target" flags into UpdateMapping changes. The
// last '=' separates the target, so column names may contain '='.
func parseMappings(flags []string) (map[string]string, error) {
	changes := make(map[string]string, len(flags))
	for _, f := range flags {
		i := strings.LastIndex(f, "=")
		if i <= 0 || i == len(f)-1 {
			return nil, fmt.Errorf("invalid mapping %q: want Column=target", f)
		}
		column := strings.TrimSpace(f[:i])
		target, err := core.ParseTargetField(f[i+1:])
		if err != nil {
			return nil, err
		}
		changes[column] = string(target)
	}
	return changes, nil
}

func printRun(w io.Writer, out *runOutput) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "File:\t%s (%d rows)\n", out.Session.FileName, out.Session.RowCount)
	fmt.Fprintln(tw, "\nCOLUMN\tTARGET")
	for _, m := range out.Session.Mappings {
		fmt.Fprintf(tw, "%s\t%s\n", m.SourceColumn, m.Target)
	}
	tw.Flush()

	if len(out.Issues) > 0 {
		fmt.Fprintf(w, "\nIssues (%d):\n", len(out.Issues))
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ROW\tFIELD\tVALUE\tISSUE")
		for _, is := range out.Issues {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", is.Row, is.Field, is.Value, is.Issue)
		}
		tw.Flush()
	}

	if p := out.Preview; p != nil {
		s := p.Summary
		fmt.Fprintln(w, "\nDry run, nothing was written.")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "Contacts:\t%d\n", s.TotalRows)
		fmt.Fprintf(tw, "With contact info:\t%d\n", s.ValidContacts)
		fmt.Fprintf(tw, "Missing info:\t%d\n", s.MissingInfo)
		fmt.Fprintf(tw, "Likely duplicates:\t%d\n", s.Duplicates)
		fmt.Fprintf(tw, "Existing DSPs:\t%d\n", s.ExistingDSPs)
		fmt.Fprintf(tw, "New DSPs:\t%d\n", s.NewDSPs)
		tw.Flush()
		for _, d := range p.NewDSPs {
			fmt.Fprintf(w, "  new DSP %q (%s) rows %v\n", d.Name, d.Station, d.Rows)
		}
		for _, d := range p.PotentialDuplicates {
			fmt.Fprintf(w, "  row %d may duplicate %s (score %d: %s)\n", d.Row, d.ExistingID, d.MatchScore, strings.Join(d.MatchReasons, ", "))
		}
	}

	if r := out.Report; r != nil {
		s := r.Summary
		fmt.Fprintf(w, "\nImported %d of %d (%d failed, %d duplicates skipped) in %s\n",
			s.Succeeded, s.Attempted, s.Failed, s.Duplicates, r.Duration().Round(time.Millisecond))
		for _, res := range r.Results {
			if !res.Success {
				fmt.Fprintf(w, "  row %d: %s [%s]\n", res.Row, res.Error, res.Code)
			}
		}
	}
}
