package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetcharge/app"
	"github.com/kilianp07/fleetcharge/pkg/export"
)

var (
	exportKind   string
	exportFormat string
	exportExact  bool
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the charging plan as records or slot assignments",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportKind, "kind", "records", "what to export: records or assignments")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv, json or yaml")
	exportCmd.Flags().BoolVar(&exportExact, "exact", false, "use the engine slot log instead of rebuilding slots from the matrix")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file, stdout when empty")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	if exportKind != "records" && exportKind != "assignments" {
		return fmt.Errorf("unknown export kind %q", exportKind)
	}
	return withPlanner(cmd, func(ctx context.Context, p *app.Planner) (err error) {
		run, err := p.Plan(ctx)
		if err != nil {
			return err
		}
		var w io.Writer = cmd.OutOrStdout()
		if exportOutput != "" {
			f, ferr := os.Create(exportOutput)
			if ferr != nil {
				return fmt.Errorf("create output: %w", ferr)
			}
			defer func() {
				if cerr := f.Close(); err == nil {
					err = cerr
				}
			}()
			w = f
		}
		if exportKind == "assignments" {
			return export.Assignments(w, format, run.Assignments(exportExact))
		}
		return export.Records(w, format, run.Records())
	})
}
