package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"kpitracker/internal/domain/auth"
	"kpitracker/internal/domain/kpi"
)

func schemaCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create missing tables and seed default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready on %s backend\n", rt.app.Config.Backend())
			return nil
		},
	}
}

func importCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file.csv|file.xlsx]",
		Short: "Bulk import KPI entries from a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := auth.Operator(cmd.Context())
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			labels, err := rt.app.Settings.Labels(ctx)
			if err != nil {
				return err
			}
			rows, err := kpi.ParseFile(filepath.Base(args[0]), data, labels)
			if err != nil {
				return err
			}
			result, err := rt.app.Entries.BulkImport(ctx, rows)
			out := cmd.OutOrStdout()
			for _, w := range result.Warnings {
				fmt.Fprintf(out, "row %d %s %q: %s\n", w.Row, w.Column, w.Value, w.Message)
			}
			fmt.Fprintf(out, "imported %d of %d rows\n", result.Committed, len(rows))
			return err
		},
	}
}

func exportCommand(rt *runtime) *cobra.Command {
	var (
		format string
		out    string
		filter kpi.Filter
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export KPI entries as csv, xlsx or pdf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f, err := kpi.ParseExportFormat(format)
			if err != nil {
				return err
			}
			entries, err := rt.app.Entries.List(ctx, filter)
			if err != nil {
				return err
			}
			labels, err := rt.app.Settings.Labels(ctx)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			report := kpi.ExportReport{Filter: filter, Summary: kpi.Summarize(entries), Labels: labels, Generated: time.Now()}
			if err := kpi.Export(&buf, f, entries, report); err != nil {
				return err
			}
			if out == "" {
				out = f.FileName()
			}
			if out == "-" {
				_, err = io.Copy(cmd.OutOrStdout(), &buf)
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d entries to %s\n", len(entries), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Output format: csv, xlsx, pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path, - for stdout (default kpi_records.<format>)")
	cmd.Flags().StringVar(&filter.Department, "department", "", "Only this department")
	cmd.Flags().StringVar(&filter.Employee, "employee", "", "Only this employee")
	cmd.Flags().StringVar(&filter.NameContains, "name-contains", "", "Employee name substring")
	cmd.Flags().StringVar(&filter.From, "from", "", "Start date YYYY-MM-DD")
	cmd.Flags().StringVar(&filter.To, "to", "", "End date YYYY-MM-DD")
	return cmd
}

func adminSecretCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "admin-secret",
		Short: "Replace the shared admin secret, read as one line from stdin",
		Long: "Replace the shared admin secret. The secret is read from standard input\n" +
			"so it stays out of shell history and process listings:\n\n" +
			"  kpictl admin-secret < secret.txt",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.ErrOrStderr(), "New admin secret: ")
			secret, err := readSecret(cmd.InOrStdin())
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := rt.app.Settings.SetAdminSecret(auth.Operator(cmd.Context()), secret); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "admin secret updated")
			return nil
		},
	}
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("no secret on stdin")
	}
	return secret, nil
}

func employeesCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "employees",
		Short: "Manage the employee master",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List active employees",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				list, err := rt.app.Employees.ListActive(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tDEPARTMENT")
				for _, e := range list {
					fmt.Fprintf(tw, "%s\t%s\n", e.Name, e.Department)
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "add [name] [department]",
			Short: "Add an employee",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := rt.app.Employees.Add(auth.Operator(cmd.Context()), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", e.Name, e.Department)
				return nil
			},
		},
		&cobra.Command{
			Use:   "deactivate [name]",
			Short: "Mark an employee inactive",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := rt.app.Employees.Deactivate(auth.Operator(cmd.Context()), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deactivated %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}
