// Package cli implements the trectl CLI commands.
package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	// Import dispatchers to register them via init()
	_ "github.com/davidthor/trectl/pkg/dispatch/local"
	_ "github.com/davidthor/trectl/pkg/dispatch/memory"
)

var (
	cfgFile string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "trectl",
	Short: "Operate a catalog of declarative deployment templates",
	Long: `trectl manages a catalog of workspace and shared-service templates
and runs the orchestration pipelines embedded in them.

When a resource changes lifecycle state (install, upgrade, uninstall),
its template's pipeline describes the corrective actions to apply to
other deployed resources - for example, scoping a shared firewall's
rule collection to a new workspace's address space.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.trectl/config.yaml)")
	rootCmd.PersistentFlags().String("dispatcher", "local", "Dispatcher type (local, memory)")
	rootCmd.PersistentFlags().String("resources", "", "Resource store path for the local dispatcher")
	rootCmd.PersistentFlags().String("catalog", ".", "Template catalog directory")

	// Bind to viper
	_ = viper.BindPFlag("dispatcher", rootCmd.PersistentFlags().Lookup("dispatcher"))
	_ = viper.BindPFlag("resources", rootCmd.PersistentFlags().Lookup("resources"))
	_ = viper.BindPFlag("catalog", rootCmd.PersistentFlags().Lookup("catalog"))
	viper.SetEnvPrefix("TRECTL")
	viper.AutomaticEnv()

	// Add subcommands
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newResourcesCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in home directory
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.trectl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	// Read config file if it exists
	_ = viper.ReadInConfig()
}
