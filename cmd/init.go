package cmd

import (
	"github.com/spf13/cobra"

	"github.com/metapromptlabs/metaprompt/internal/config"
)

var initDefaults bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize metaprompt configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to pick a primary provider, safety level, and memory window, and writes a .metaprompt.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if initDefaults {
			return config.DefaultConfig().Save(cfgFile)
		}
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	initCmd.Flags().BoolVar(&initDefaults, "defaults", false, "write the default config without prompting")
	rootCmd.AddCommand(initCmd)
}
