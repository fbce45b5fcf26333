package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/emptyOVO/mrkit-awards/batch"
	"github.com/spf13/cobra"
)

func newFlowCommand() *cobra.Command {
	var (
		configPath string
		checkOnly  bool
		benchmark  bool
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Run a job and its sink from a JSON flow config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadFlowConfig(configPath)
			if err != nil {
				return err
			}
			if err := batch.ValidateFlowConfig(cfg); err != nil {
				return err
			}
			if checkOnly {
				fmt.Fprintln(cmd.OutOrStdout(), "config check pass")
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if !benchmark {
				if err := batch.RunFlow(ctx, cfg); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "flow done")
				return nil
			}
			result, err := batch.RunFlowBenchmark(ctx, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transform=%s sink=%s total=%s\n", result.TransformDuration, result.SinkDuration, result.TotalDuration)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Flow config file path (JSON)")
	cmd.MarkFlagRequired("config")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Validate flow config schema only")
	cmd.Flags().BoolVar(&benchmark, "benchmark", false, "Report stage durations")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Hour, "Overall flow timeout")
	return cmd
}

func loadFlowConfig(path string) (batch.FlowConfig, error) {
	var cfg batch.FlowConfig
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
