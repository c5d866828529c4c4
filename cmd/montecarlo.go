package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetcharge/app"
	"github.com/kilianp07/fleetcharge/core/montecarlo"
	"github.com/kilianp07/fleetcharge/pkg/export"
)

var (
	mcIterations int
	mcWorkers    int
	mcBins       int
	mcFormat     string
)

var monteCarloCmd = &cobra.Command{
	Use:   "montecarlo",
	Short: "Sample the fleet energy deficit over random initial charges",
	RunE:  runMonteCarlo,
}

func init() {
	monteCarloCmd.Flags().IntVar(&mcIterations, "iterations", 0, "number of draws, overrides the configuration")
	monteCarloCmd.Flags().IntVar(&mcWorkers, "workers", 0, "number of sampling goroutines, overrides the configuration")
	monteCarloCmd.Flags().IntVar(&mcBins, "bins", 10, "histogram bins for table output")
	monteCarloCmd.Flags().StringVar(&mcFormat, "format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(monteCarloCmd)
}

func runMonteCarlo(cmd *cobra.Command, _ []string) error {
	if mcIterations < 0 {
		return fmt.Errorf("iterations must not be negative")
	}
	return withPlanner(cmd, func(ctx context.Context, p *app.Planner) error {
		run, err := p.MonteCarlo(ctx, mcIterations, mcWorkers)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		switch mcFormat {
		case "table":
			_, err := fmt.Fprintln(out, statsTable(run.Stats))
			if err == nil && mcBins > 0 {
				_, err = fmt.Fprintln(out, histogramTable(run.Samples, mcBins))
			}
			return err
		case "json":
			return export.WriteJSON(out, run.Stats)
		case "yaml":
			return export.WriteYAML(out, run.Stats)
		default:
			return fmt.Errorf("unknown output format %q", mcFormat)
		}
	})
}

func statsTable(s montecarlo.Stats) *uitable.Table {
	t := uitable.New()
	t.AddRow("DRAWS", s.N)
	t.AddRow("MEAN (kWh)", kwh(s.Mean))
	t.AddRow("STD DEV (kWh)", kwh(s.StdDev))
	t.AddRow("MIN (kWh)", kwh(s.Min))
	t.AddRow("P5 (kWh)", kwh(s.P5))
	t.AddRow("P50 (kWh)", kwh(s.P50))
	t.AddRow("P95 (kWh)", kwh(s.P95))
	t.AddRow("MAX (kWh)", kwh(s.Max))
	return t
}

const histogramWidth = 40

func histogramTable(samples []float64, bins int) *uitable.Table {
	edges, counts := montecarlo.Histogram(samples, bins)
	t := uitable.New()
	var peak float64
	for _, c := range counts {
		peak = max(peak, c)
	}
	for i, c := range counts {
		bar := 0
		if peak > 0 {
			bar = int(c / peak * histogramWidth)
		}
		t.AddRow(fmt.Sprintf("[%s, %s)", kwh(edges[i]), kwh(edges[i+1])), int(c), strings.Repeat("#", bar))
	}
	return t
}
