package cmd

import (
	"fmt"
	"os"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/larsmagnus/tfm/internal/archive"
	"github.com/larsmagnus/tfm/internal/config"
	"github.com/larsmagnus/tfm/internal/logging"
	"github.com/larsmagnus/tfm/internal/tui"
)

var (
	unpackDest      string
	unpackOverwrite bool
	unpackSkip      bool
	unpackYes       bool
)

var unpackCmd = &cobra.Command{
	Use:   "unpack <archive>",
	Short: "Extract an archive",
	Long: `Extracts an archive into the destination directory (default: the
current directory).

Supports fuzzy matching - if the argument names no existing archive, the
closest match in the current directory is offered.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := args[0]

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logging.Setup(cfg.LogPath(), verbosity, true)
		logger := logging.Component("unpack")

		path := query
		if _, err := os.Stat(path); err != nil {
			match, err := closestArchive(query)
			if err != nil {
				return err
			}

			result, err := tui.RunConfirm(fmt.Sprintf("Unpack '%s'?", match))
			if err != nil {
				return fmt.Errorf("prompt failed: %w", err)
			}
			if result.Aborted || !result.Confirmed {
				return fmt.Errorf("aborted")
			}
			path = match
		}

		op, err := archive.NewExtractOperation(path, unpackDest, logger)
		if err != nil {
			return err
		}

		policy := policyAsk
		switch {
		case unpackOverwrite:
			policy = policyOverwrite
		case unpackSkip:
			policy = policySkip
		}

		return runHeadless(op, cfg.Confirm.Unpack, policy, unpackYes, logger)
	},
}

// closestArchive fuzzy-matches query against the archives in the current
// directory.
func closestArchive(query string) (string, error) {
	entries, err := os.ReadDir(".")
	if err != nil {
		return "", fmt.Errorf("failed to list directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && archive.IsArchive(e.Name()) {
			names = append(names, e.Name())
		}
	}

	matches := fuzzy.Find(query, names)
	if len(matches) == 0 {
		return "", fmt.Errorf("no archive found matching: %s", query)
	}

	best := matches[0]
	if best.Score < -10 {
		return "", fmt.Errorf("no archive found matching: %s", query)
	}
	return best.Str, nil
}

func init() {
	unpackCmd.Flags().StringVarP(&unpackDest, "dest", "d", ".", "destination directory")
	unpackCmd.Flags().BoolVar(&unpackOverwrite, "overwrite", false, "replace existing files")
	unpackCmd.Flags().BoolVar(&unpackSkip, "skip", false, "skip existing files")
	unpackCmd.Flags().BoolVarP(&unpackYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(unpackCmd)
}
