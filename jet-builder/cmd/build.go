package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"jet-tools/go/pkg/config"
	"jet-tools/go/pkg/logbowl"
	"jet-tools/go/pkg/pipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compiles, packages and archives the application.",
	Example: `  jet-builder build --main-class com.example.App --main-jar target/app-1.0.jar --dependency 'target/lib/*.jar'
  jet-builder build --project jet-project.yaml --archive-format tar.zst`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd.Context(), log, cmd.Flags(), configPath, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	config.RegisterFlags(buildCmd.Flags())
}

// runBuild loads the configuration, runs the pipeline and prints a summary.
func runBuild(ctx context.Context, log logbowl.Logger, flags *pflag.FlagSet, cfgFile string, out io.Writer) error {
	loader := config.New(log)
	if err := loader.BindFlags(flags); err != nil {
		return err
	}
	if err := loader.ReadFile(cfgFile); err != nil {
		return err
	}
	cfg, err := loader.Build()
	if err != nil {
		return err
	}
	log.Debug("config", "load", "success", "Build configuration resolved", "mainClass", cfg.MainClass, "mainJar", cfg.MainJar, "outputDir", cfg.OutputDir, "dependencies", len(cfg.Dependencies))

	res, err := pipeline.New(log).Run(ctx, cfg)
	printSummary(out, res, err)
	return err
}

func printSummary(out io.Writer, res *pipeline.Result, err error) {
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(out, "BUILD FAILED")
		if res != nil {
			fmt.Fprintf(out, "  reached:  %s\n", lastGood(res.Transitions))
		}
		fmt.Fprintf(out, "  error:    %v\n", err)
		if res != nil && res.BuildDir != "" {
			fmt.Fprintf(out, "  build:    %s (left for inspection)\n", res.BuildDir)
		}
		return
	}

	color.New(color.FgGreen, color.Bold).Fprintln(out, "BUILD SUCCESSFUL")
	fmt.Fprintf(out, "  package:  %s\n", res.PackageDir)
	if res.Executable != "" {
		fmt.Fprintf(out, "  binary:   %s\n", res.Executable)
	}
	if res.Archive != "" {
		fmt.Fprintf(out, "  archive:  %s\n", res.Archive)
	}
}

// lastGood returns the last state reached before the failure.
func lastGood(states []pipeline.State) pipeline.State {
	for i := len(states) - 1; i >= 0; i-- {
		if states[i] != pipeline.StateFailed {
			return states[i]
		}
	}
	return pipeline.StateInit
}
