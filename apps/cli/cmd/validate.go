package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/proteusctl/packages/core/config"
)

var validateConfigFlag string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a proteusctl configuration file",
	Long: `Check a configuration file against the schema and make sure it holds
everything a delete-device run needs, without contacting the appliance.
${VAR} references are expanded from the environment first.

Examples:
  proteusctl validate
  proteusctl validate --config lab.yaml`,
	Args: usageArgs(cobra.NoArgs),
	RunE: validateCommand,
}

func init() {
	validateCmd.Flags().StringVar(&validateConfigFlag, "config", getEnvString("PROTEUS_CONFIG", ""), "Path to config file (env: PROTEUS_CONFIG)")
}

func validateCommand(cmd *cobra.Command, args []string) error {
	if err := validateConfig(validateConfigFlag); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Invalid: %v\n", err)
		return configError(fmt.Errorf("validation failed"))
	}

	name := validateConfigFlag
	if name == "" {
		name = "configuration"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", name)
	return nil
}

func validateConfig(path string) error {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := newNotifyManager(cfg.Notify); err != nil {
		return err
	}
	return nil
}
