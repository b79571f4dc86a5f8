package cmd

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/singalong/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and manage singalong configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))

		if sources, _ := cmd.Flags().GetBool("sources"); sources {
			fmt.Fprintf(cmd.OutOrStdout(), "\n# sources\n")
			for _, k := range config.SettingKeys() {
				fmt.Fprintf(cmd.OutOrStdout(), "# %-28s %s\n", k, getInheritanceIndicator(cfg.Inheritance[k]))
			}
		}
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use [profile]",
	Short: "Set the active profile in the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.LoadWithProfile(cfgFile, args[0]); err != nil {
			return err
		}
		if err := config.UpdateActiveConfig(cfgFile, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Active profile set to %s\n", args[0])
		return nil
	},
}

func init() {
	configShowCmd.Flags().Bool("sources", false, "also print where each setting comes from")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configUseCmd)
}
