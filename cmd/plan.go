package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetcharge/app"
	"github.com/kilianp07/fleetcharge/core/report"
	"github.com/kilianp07/fleetcharge/pkg/export"
)

var planFormat string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute the charging plan of the configured fleet",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planFormat, "format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	return withPlanner(cmd, func(ctx context.Context, p *app.Planner) error {
		run, err := p.Plan(ctx)
		if err != nil {
			return err
		}
		for _, w := range run.Summary.Warnings {
			if _, err := fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w); err != nil {
				return err
			}
		}
		out := cmd.OutOrStdout()
		switch planFormat {
		case "table":
			_, err = fmt.Fprintln(out, summaryTable(run.ID, run.Summary))
			if err == nil {
				_, err = fmt.Fprintln(out, matrixTable(run.Result.Matrix()))
			}
			return err
		case "json":
			return export.WriteJSON(out, planDocument(run))
		case "yaml":
			return export.WriteYAML(out, planDocument(run))
		default:
			return fmt.Errorf("unknown output format %q", planFormat)
		}
	})
}

type planDoc struct {
	RunID       string                    `json:"run_id" yaml:"run_id"`
	Summary     report.Summary            `json:"summary" yaml:"summary"`
	Matrix      [][]float64               `json:"matrix" yaml:"matrix"`
	Assignments []report.AssignmentRecord `json:"assignments" yaml:"assignments"`
}

func planDocument(run *app.PlanRun) planDoc {
	return planDoc{
		RunID:       run.ID,
		Summary:     run.Summary,
		Matrix:      run.Result.Matrix(),
		Assignments: run.Assignments(true),
	}
}

func kwh(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func summaryTable(runID string, s report.Summary) *uitable.Table {
	t := uitable.New()
	t.AddRow("RUN", runID)
	t.AddRow("VEHICLES", s.Vehicles)
	t.AddRow("HOURS", s.Hours)
	t.AddRow("REQUIRED (kWh)", kwh(s.RequiredEnergy))
	t.AddRow("DELIVERED (kWh)", kwh(s.DeliveredEnergy))
	t.AddRow("UNMET (kWh)", kwh(s.UnmetEnergy))
	t.AddRow("UTILIZATION", kwh(s.Utilization))
	t.AddRow("COST", kwh(s.TotalCost))
	t.AddRow("WEEKLY COST", fmt.Sprintf("%s (%d days)", kwh(s.WeeklyCost), s.OperatingDays))
	if s.AverageCostPerUnit != nil {
		t.AddRow("COST PER kWh", strconv.FormatFloat(*s.AverageCostPerUnit, 'f', 4, 64))
	} else {
		t.AddRow("COST PER kWh", "n/a")
	}
	t.AddRow("WINDOW INSUFFICIENT", s.WindowInsufficient)
	return t
}

func matrixTable(m [][]float64) *uitable.Table {
	t := uitable.New()
	if len(m) == 0 {
		t.AddRow("no vehicles")
		return t
	}
	header := []interface{}{"VEHICLE"}
	for h := range m[0] {
		header = append(header, "H"+strconv.Itoa(h))
	}
	t.AddRow(header...)
	for v, row := range m {
		cells := []interface{}{v}
		for _, e := range row {
			cells = append(cells, kwh(e))
		}
		t.AddRow(cells...)
	}
	return t
}
