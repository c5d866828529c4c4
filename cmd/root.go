package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetcharge/app"
	"github.com/kilianp07/fleetcharge/config"
	"github.com/kilianp07/fleetcharge/infra/logger"
)

var (
	cfgPath     string
	stdinFormat string
)

var rootCmd = &cobra.Command{
	Use:           "fleetcharge",
	Short:         "Overnight charging planner for electric vehicle fleets",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&stdinFormat, "stdin", "", "read the configuration from stdin in the given format (yaml or json)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if stdinFormat != "" {
		cfg, err := config.DecodeScenario(cmd.InOrStdin(), stdinFormat)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// withPlanner loads the configuration, builds a Planner and closes it once
// fn returns.
func withPlanner(cmd *cobra.Command, fn func(ctx context.Context, p *app.Planner) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	p, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.New("main").Errorf("planner close: %v", err)
		}
	}()
	return fn(ctx, p)
}
