package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/larsmagnus/tfm/internal/archive"
	"github.com/larsmagnus/tfm/internal/config"
	"github.com/larsmagnus/tfm/internal/logging"
)

var (
	packOverwrite bool
	packYes       bool
)

var packCmd = &cobra.Command{
	Use:   "pack <archive> <source>...",
	Short: "Create an archive from files and directories",
	Long: `Creates an archive from the given sources. The format is taken
from the archive name: .tar, .tar.gz, .tgz and .zip are supported.

tfm pack backup.tar.gz docs/ notes.txt`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logging.Setup(cfg.LogPath(), verbosity, true)
		logger := logging.Component("pack")

		op, err := archive.NewCreateOperation(args[1:], args[0], logger)
		if err != nil {
			return err
		}

		policy := policyAsk
		if packOverwrite {
			policy = policyOverwrite
		}

		return runHeadless(op, cfg.Confirm.Pack, policy, packYes, logger)
	},
}

func init() {
	packCmd.Flags().BoolVar(&packOverwrite, "overwrite", false, "replace the archive if it exists")
	packCmd.Flags().BoolVarP(&packYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(packCmd)
}
