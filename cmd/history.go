package cmd

import (
	"fmt"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetcharge/infra/history"
	"github.com/kilianp07/fleetcharge/pkg/export"
)

var (
	historyDB     string
	historySince  time.Duration
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List plans stored by the sqlite sink",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyDB, "db", "fleetcharge.db", "sqlite database written by the sqlite sink")
	historyCmd.Flags().DurationVar(&historySince, "since", 7*24*time.Hour, "how far back to look")
	historyCmd.Flags().StringVar(&historyFormat, "format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) (err error) {
	store, err := history.NewSQLiteStore(historyDB)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); err == nil {
			err = cerr
		}
	}()
	now := time.Now()
	plans, err := store.Plans(now.Add(-historySince), now)
	if err != nil {
		return fmt.Errorf("query plans: %w", err)
	}
	out := cmd.OutOrStdout()
	switch historyFormat {
	case "table":
		t := uitable.New()
		t.AddRow("RUN", "TIME", "MODE", "VEHICLES", "DELIVERED (kWh)", "UNMET (kWh)", "COST", "INSUFFICIENT")
		for _, p := range plans {
			t.AddRow(p.RunID, p.Time.Format(time.RFC3339), p.SlotMode, p.Vehicles,
				kwh(p.DeliveredEnergy), kwh(p.UnmetEnergy), kwh(p.TotalCost), p.WindowInsufficient)
		}
		_, err = fmt.Fprintln(out, t)
		return err
	case "json":
		return export.WriteJSON(out, plans)
	case "yaml":
		return export.WriteYAML(out, plans)
	default:
		return fmt.Errorf("unknown output format %q", historyFormat)
	}
}
