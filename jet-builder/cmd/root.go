package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jet-tools/go/pkg/logbowl"
	"jet-tools/go/pkg/pipeline"
)

var (
	log        logbowl.Logger
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "jet-builder",
	Short: "Builds native executables from Java applications with Excelsior JET.",
	Long: `jet-builder stages an application jar and its dependencies, compiles them
with the Excelsior JET AOT compiler, packs the result into a self-contained
directory and optionally archives it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			os.Setenv(logbowl.LogLevelEnvVar, "DEBUG")
		}
		log = logbowl.Create("jet-builder")
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging.")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: jet-builder/config.yaml in the XDG config dirs).")
}

// Execute runs the CLI and exits non-zero on any failure. SIGINT and SIGTERM
// cancel the running build.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		// Build failures were already logged where they happened.
		if pipeline.KindOf(err) == pipeline.KindNone {
			if log.Logger != nil {
				log.Error("system", "stop", "error", "Failed to execute command", "error", err)
			} else {
				fmt.Fprintln(os.Stderr, "Error:", err)
			}
		}
		os.Exit(1)
	}
}
