package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"jet-tools/go/pkg/config"
	"jet-tools/go/pkg/toolchain"
)

var toolchainCmd = &cobra.Command{
	Use:   "toolchain",
	Short: "Shows which Excelsior JET installation a build would use.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := config.New(log)
		if err := loader.BindFlags(cmd.Flags()); err != nil {
			return err
		}
		if err := loader.ReadFile(configPath); err != nil {
			return err
		}
		override, err := loader.JetHome()
		if err != nil {
			return err
		}

		h, err := toolchain.NewLocator(log).Resolve(override)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "root:     %s\n", h.Root())
		fmt.Fprintf(out, "source:   %s\n", h.Source())
		fmt.Fprintf(out, "compiler: %s\n", h.CompilerPath())
		fmt.Fprintf(out, "packager: %s\n", h.PackagerPath())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolchainCmd)
	toolchainCmd.Flags().String(config.KeyJetHome, "", "Excelsior JET installation directory; disables JET_HOME and PATH lookup.")
}
