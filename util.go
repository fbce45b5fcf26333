package mapreduce

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/emptyOVO/mrkit-awards/mrapps"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the awardmr command tree: map and reduce for
// streaming batch execution, run for a complete job on one machine.
func NewRootCommand() *cobra.Command {
	var logLevel string
	rootCmd := &cobra.Command{
		Use:   "awardmr",
		Short: "Reduce award exports to one row per contract",
		Long: `awardmr reduces award CSV exports to one row per (award_id_piid, parent_award_id).
The map and reduce commands read stdin and write stdout, so a job runs as

  awardmr map --job latest < awards.csv | LC_ALL=C sort | awardmr reduce --job latest`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(lvl)
			log.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", getenvDefault("AWARDMR_LOG_LEVEL", "info"), "Log level (trace|debug|info|warn|error)")

	rootCmd.AddCommand(newMapCommand(), newReduceCommand(), newRunCommand())
	return rootCmd
}

func jobFlag(cmd *cobra.Command, job *string) {
	cmd.Flags().StringVarP(job, "job", "j", getenvDefault("AWARDMR_JOB", ""), fmt.Sprintf("Job name (%s)", strings.Join(mrapps.Names(), "|")))
}

func newMapCommand() *cobra.Command {
	var job string
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Map CSV records from stdin to key-value lines on stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := mrapps.Lookup(job)
			if err != nil {
				return err
			}
			return StartMapper(commandContext(cmd), j, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	jobFlag(cmd, &job)
	return cmd
}

func newReduceCommand() *cobra.Command {
	var (
		job    string
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "reduce",
		Short: "Reduce key-sorted key-value lines from stdin to one line per key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := mrapps.Lookup(job)
			if err != nil {
				return err
			}
			return StartReducer(commandContext(cmd), j, cmd.InOrStdin(), cmd.OutOrStdout(), strict)
		},
	}
	jobFlag(cmd, &job)
	cmd.Flags().BoolVar(&strict, "strict", getenvBool("AWARDMR_STRICT", false), "Fail when the input is not sorted by key")
	return cmd
}

func newRunCommand() *cobra.Command {
	var (
		job        string
		files      []string
		nReducer   int64
		chunkLines int64
		inRAM      bool
		outputDir  string
		strict     bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run map, sort and reduce for a job on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := mrapps.Lookup(job)
			if err != nil {
				return err
			}
			inputs, err := ExpandInputs(files)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no input files matched %v", files)
			}
			res, err := RunLocal(commandContext(cmd), LocalConfig{
				Inputs:     inputs,
				Job:        j,
				Reducers:   int(nReducer),
				ChunkLines: int(chunkLines),
				InRAM:      inRAM,
				OutputDir:  outputDir,
				Strict:     strict,
			})
			if err != nil {
				return err
			}
			for _, out := range res.Outputs {
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return nil
		},
	}
	jobFlag(cmd, &job)
	cmd.Flags().StringSliceVarP(&files, "input", "i", []string{}, "Input files (globs allowed)")
	cmd.MarkFlagRequired("input")
	cmd.Flags().Int64VarP(&nReducer, "reduce", "r", int64(getenvInt("MR_REDUCERS", 1)), "Number of Reducers")
	cmd.Flags().Int64Var(&chunkLines, "chunk-lines", int64(getenvInt("MR_CHUNK_LINES", 100000)), "Lines buffered in memory, across all partitions, before spilling")
	cmd.Flags().BoolVarP(&inRAM, "inRAM", "m", getenvBool("MR_IN_RAM", false), "Whether write the intermediate file in RAM")
	cmd.Flags().StringVarP(&outputDir, "output", "o", getenvDefault("MR_OUTPUT_DIR", "output"), "Output directory")
	cmd.Flags().BoolVar(&strict, "strict", getenvBool("AWARDMR_STRICT", false), "Fail when a partition is not sorted by key")
	return cmd
}

// ExpandInputs resolves every glob to absolute file paths.
func ExpandInputs(patterns []string) ([]string, error) {
	var out []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				return nil, err
			}
			out = append(out, abs)
		}
	}
	return out, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func getenvDefault(name, d string) string {
	v := os.Getenv(name)
	if v == "" {
		return d
	}
	return v
}

func getenvInt(name string, d int) int {
	v := os.Getenv(name)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func getenvBool(name string, d bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return d
	}
	return b
}
