package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/iwvelando/sprint-budget/internal/budget"
	"github.com/iwvelando/sprint-budget/internal/csvio"
	"github.com/iwvelando/sprint-budget/internal/report"
	"github.com/iwvelando/sprint-budget/pkg/constants"
	"github.com/iwvelando/sprint-budget/pkg/output"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newProjectCmd(c *cli) *cobra.Command {
	f := &planFlags{}
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Print the cumulative spend projection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outputFormat, err := c.format()
			if err != nil {
				return err
			}
			plan, warnings, err := c.plan(cmd, f)
			if err != nil {
				return err
			}
			return c.writeProjection(cmd.OutOrStdout(), outputFormat, plan, warnings)
		},
	}
	f.register(cmd)
	return cmd
}

// writeProjection renders a plan in the selected output format.
func (c *cli) writeProjection(w io.Writer, outputFormat string, plan *budget.Plan, warnings []string) error {
	switch outputFormat {
	case constants.OutputFormatCSV:
		return output.CsvFormat(w, plan.Parameters, plan.Projection())
	default:
		return output.PrettyFormat(w, plan.Parameters, plan.Projection(), warnings)
	}
}

func newReconcileCmd(c *cli) *cobra.Command {
	f := &planFlags{}
	var out string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile the iteration ledger with the parameters and write it as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.noReconcile = false
			plan, _, err := c.plan(cmd, f)
			if err != nil {
				return err
			}
			return writeTo(cmd.OutOrStdout(), out, func(w io.Writer) error {
				return csvio.WriteIterations(w, plan.Ledger.Iterations())
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
	return cmd
}

func newCSVCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Export parameters, iterations or the projection as CSV",
	}

	exports := []struct {
		use   string
		short string
		write func(io.Writer, *budget.Plan) error
	}{
		{
			use:   "export-params",
			short: "Write the effective parameters as CSV",
			write: func(w io.Writer, plan *budget.Plan) error {
				return csvio.WriteParameters(w, plan.Parameters)
			},
		},
		{
			use:   "export-iterations",
			short: "Write the iteration ledger as CSV",
			write: func(w io.Writer, plan *budget.Plan) error {
				return csvio.WriteIterations(w, plan.Ledger.Iterations())
			},
		},
		{
			use:   "export-projection",
			short: "Write the projection table as CSV",
			write: func(w io.Writer, plan *budget.Plan) error {
				return csvio.WriteProjection(w, plan.Parameters, plan.Projection())
			},
		},
	}

	for _, export := range exports {
		f := &planFlags{}
		var out string
		sub := &cobra.Command{
			Use:   export.use,
			Short: export.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				plan, _, err := c.plan(cmd, f)
				if err != nil {
					return err
				}
				return writeTo(cmd.OutOrStdout(), out, func(w io.Writer) error {
					return export.write(w, plan)
				})
			},
		}
		f.register(sub)
		sub.Flags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
		cmd.AddCommand(sub)
	}
	return cmd
}

func newReportCmd(c *cli) *cobra.Command {
	f := &planFlags{}
	var out, title string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the projection as a PDF report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, _, err := c.plan(cmd, f)
			if err != nil {
				return err
			}

			owner := ""
			if gate, err := c.gate(); err == nil {
				owner = gate.OwnerID()
			}

			err = writeTo(cmd.OutOrStdout(), out, func(w io.Writer) error {
				return report.Render(w, plan.Parameters, plan.Projection(), report.Options{
					Title:         title,
					OwnerID:       owner,
					GeneratedAt:   time.Now(),
					VisibleSeries: plan.VisibleSeries,
				})
			})
			if err != nil {
				return fmt.Errorf("failed to render report: %w", err)
			}

			c.logger.Info("report written",
				zap.String("op", "main.report"),
				zap.String("path", out),
			)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "sprint-budget-report.pdf", "PDF file to write")
	cmd.Flags().StringVar(&title, "title", "", "report title")
	return cmd
}

// writeTo renders with write into memory and then copies the result to the
// file at path, or to stdout when path is empty. A failed render leaves no
// file behind.
func writeTo(stdout io.Writer, path string, write func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}
	if path == "" {
		_, err := buf.WriteTo(stdout)
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
