package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/larsmagnus/tfm/internal/config"
	"github.com/larsmagnus/tfm/internal/logging"
	"github.com/larsmagnus/tfm/internal/tui"
)

var (
	cfgFile   string
	verbosity int
)

var rootCmd = &cobra.Command{
	Use:   "tfm",
	Short: "Terminal file manager with cancellable background operations",
	Long: `tfm is a dual-pane terminal file manager. Copy, move, delete, pack
and unpack run as background tasks with progress, per-file conflict
resolution and cancellation.

Running 'tfm' without arguments launches the full-screen interface.
The pack and unpack subcommands run the same operations headless.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logging.Setup(cfg.LogPath(), verbosity, false)

		return tui.Run(cfg, logging.Component("tui"))
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/tfm/config.json)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v, -vv)")
}
