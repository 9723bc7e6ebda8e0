package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/proteusctl/packages/core/config"
)

var (
	forceInit  bool
	initFormat string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample proteusctl configuration",
	Long: `Write a sample configuration file in the current directory.

Credentials are left as ${PROTEUS_USERNAME} and ${PROTEUS_PASSWORD}
references so they can come from the environment or an --env-file.

Examples:
  proteusctl init
  proteusctl init --format json
  proteusctl init --force`,
	Args: usageArgs(cobra.NoArgs),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing file")
	initCmd.Flags().StringVar(&initFormat, "format", "yaml", "File format: yaml, json")
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	path, err := writeSampleConfig(cwd, initFormat, forceInit)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", path)
	fmt.Fprintf(cmd.OutOrStdout(), "\nEdit host and ipAddress, export PROTEUS_USERNAME and PROTEUS_PASSWORD,\n")
	fmt.Fprintf(cmd.OutOrStdout(), "then run 'proteusctl validate' and 'proteusctl delete-device'.\n")
	return nil
}

func writeSampleConfig(dir, format string, force bool) (string, error) {
	var name string
	switch format {
	case "yaml", "yml":
		name = ".proteusctl.yaml"
	case "json":
		name = ".proteusctl.json"
	default:
		return "", usageError(fmt.Errorf("unknown format %q (use yaml or json)", format))
	}

	path := filepath.Join(dir, name)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("file already exists: %s (use --force to overwrite)", path)
		}
	}

	if err := config.SampleConfig().SaveConfig(path); err != nil {
		return "", fmt.Errorf("failed to create config file: %w", err)
	}
	return path, nil
}
