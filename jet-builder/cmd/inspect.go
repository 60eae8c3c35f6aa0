package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"jet-tools/go/pkg/archive"
)

var inspectExtractDir string

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive>",
	Short: "Lists the files of a built archive, optionally extracting them.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		entries, err := archive.List(path)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, e := range entries {
			fmt.Fprintf(out, "%s %10d  %s\n", e.Mode, e.Size, e.Name)
		}
		log.Info("archive", "verify", "success", "Archive listed", "path", path, "files", len(entries))

		if inspectExtractDir == "" {
			return nil
		}
		names, err := archive.Extract(path, inspectExtractDir)
		if err != nil {
			return err
		}
		log.Info("archive", "write", "success", "Archive extracted", "dest", inspectExtractDir, "files", len(names))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVarP(&inspectExtractDir, "extract", "x", "", "Directory to extract the archive into.")
}
