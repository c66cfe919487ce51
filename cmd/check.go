package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/pagekit/internal/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration",
	Long: `Validate the configuration and report every problem with a hint.
Warnings are printed but do not fail the check.

Examples:
  pagekit check
  pagekit check --config site/.pagekit.yml`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Decode()
	if err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}

	result := config.ValidateConfigWithDetails(cfg, kindNames())
	out := cmd.OutOrStdout()
	if report := result.String(); report != "" {
		fmt.Fprint(out, report)
	}
	if !result.Valid {
		return fmt.Errorf("configuration has %d error(s)", len(result.Errors))
	}

	fmt.Fprintf(out, "Configuration OK: %d critical, %d secondary component(s)\n",
		len(cfg.Components.Critical), len(cfg.Components.Secondary))
	return nil
}
