// Command trajgo builds, inspects, and runs trajectory model collections
// from the command line.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/trajgo"
	"github.com/hupe1980/trajgo/builder"
	"github.com/hupe1980/trajgo/modelfile"
	"github.com/hupe1980/trajgo/resource"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	verbose     bool
	epsilon     float64
	temperature float64
	topK        int
}

func (g *globalFlags) engine(extra ...trajgo.Option) (*trajgo.Engine, error) {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}

	optFns := []trajgo.Option{
		trajgo.WithLogLevel(level),
		trajgo.WithEpsilon(g.epsilon),
		trajgo.WithTemperature(g.temperature),
		trajgo.WithTopK(g.topK),
	}
	return trajgo.New(append(optFns, extra...)...)
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "trajgo",
		Short:         "Trajectory classification engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().Float64Var(&g.epsilon, "epsilon", 0, "nearest-neighbor approximation bound (0 = exact)")
	cmd.PersistentFlags().Float64Var(&g.temperature, "temperature", 1, "softmax temperature for distance-to-probability conversion")
	cmd.PersistentFlags().IntVar(&g.topK, "top-k", 1, "neighbors averaged per projected sample")

	cmd.AddCommand(newBuildCmd(g))
	cmd.AddCommand(newClassifyCmd(g))
	cmd.AddCommand(newModelsCmd(g))
	return cmd
}

func parseCompression(s string) (modelfile.Compression, error) {
	switch s {
	case "none":
		return modelfile.CompressionNone, nil
	case "zstd":
		return modelfile.CompressionZstd, nil
	case "lz4":
		return modelfile.CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, zstd, or lz4)", s)
	}
}

func newBuildCmd(g *globalFlags) *cobra.Command {
	var (
		output      string
		dim         int
		minPoints   int
		maxPoints   int
		windowSize  int
		compression string
		concurrency int64
	)

	cmd := &cobra.Command{
		Use:   "build <training-file>",
		Short: "Build a model collection from labeled training data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := parseCompression(compression)
			if err != nil {
				return err
			}

			eng, err := g.engine(
				trajgo.WithCompression(comp),
				trajgo.WithResourceConfig(resource.Config{MaxConcurrentBuilds: concurrency}),
			)
			if err != nil {
				return err
			}
			defer eng.Close()

			report, err := eng.BuildModels(cmd.Context(), args[0], builder.Config{
				Dim:        dim,
				MinPoints:  minPoints,
				MaxPoints:  maxPoints,
				WindowSize: windowSize,
				OutputPath: output,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d records -> %d models (%d labels skipped)\n",
				report.Records, len(report.Models), len(report.Skipped))
			for _, m := range report.Models {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-20s %d/%d points\n", m.Name, m.KeptPoints, m.TotalPoints)
			}
			for _, s := range report.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-20s skipped (%d points)\n", s.Label, s.Points)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "models.trj", "output model file")
	cmd.Flags().IntVar(&dim, "dim", 0, "feature vector dimensionality (required)")
	cmd.Flags().IntVar(&minPoints, "min-points", 1, "minimum points per label")
	cmd.Flags().IntVar(&maxPoints, "max-points", 0, "maximum points per model (0 = unlimited)")
	cmd.Flags().IntVar(&windowSize, "window-size", 5, "sample window length")
	cmd.Flags().StringVar(&compression, "compression", "none", "model file compression (none, zstd, lz4)")
	cmd.Flags().Int64Var(&concurrency, "concurrency", 0, "concurrent index builds (0 = default)")
	_ = cmd.MarkFlagRequired("dim")
	return cmd
}

func newClassifyCmd(g *globalFlags) *cobra.Command {
	var (
		models  string
		ioLimit int64
	)

	cmd := &cobra.Command{
		Use:   "classify <trajectory-file> <output-file>",
		Short: "Classify a recorded trajectory against a model collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := g.engine(
				trajgo.WithResourceConfig(resource.Config{IOLimitBytesPerSec: ioLimit}),
			)
			if err != nil {
				return err
			}
			defer eng.Close()

			result, err := eng.ClassifyTrajectoryFile(cmd.Context(), args[0], args[1], models)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d samples -> %d decisions\n", result.Samples, result.Steps)
			return nil
		},
	}

	cmd.Flags().StringVarP(&models, "models", "m", "models.trj", "model collection file")
	cmd.Flags().Int64Var(&ioLimit, "io-limit", 0, "input read limit in bytes per second (0 = unlimited)")
	return cmd
}

func newModelsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models <model-file>",
		Short: "Inspect a persisted model collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := g.engine()
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := eng.LoadModels(args[0]); err != nil {
				return err
			}
			defer eng.UnloadModels()

			fmt.Fprintf(cmd.OutOrStdout(), "models:     %d\n", eng.NumModels())
			fmt.Fprintf(cmd.OutOrStdout(), "windowSize: %d\n", eng.WindowSize())
			fmt.Fprintf(cmd.OutOrStdout(), "names:      %s\n", eng.ModelNames())
			return nil
		},
	}
	return cmd
}
