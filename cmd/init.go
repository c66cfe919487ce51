package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/pagekit/internal/config"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Aliases: []string{"i"},
	Short:   "Write a default configuration file",
	Long: `Write the default configuration to .pagekit.yml, or to the file named by
--config. An existing file is kept unless --force is given.

Examples:
  pagekit init
  pagekit init --force
  pagekit init --config site/.pagekit.yml`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := config.DefaultFile
	if cfgFile != "" {
		path = cfgFile
	}

	if err := config.Default().WriteFile(path, initForce); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
