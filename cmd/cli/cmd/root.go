package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "jtctl",
	Short: "jtctl is a command line tool for interacting with the jobtrack platform",
	Long: `jtctl is the command-line interface for the jobtrack workflow platform.

jobtrack tracks work items through tenant-specific stage pipelines: each
move is validated against the tenant's stage graph, authorized against the
caller's role, and recorded in an immutable audit log.

Common workflows:

  Provision a tenant:
    jtctl tenant create --name "Acme Plumbing" --manager-email ops@acme.test

  Move a job to another stage:
    jtctl move <job-id> --stage <stage-id> --notes "customer approved quote"

  Put a job on hold and resume it:
    jtctl move <job-id> --status on_hold
    jtctl move <job-id> --status active

  List the stages a tenant's jobs move through:
    jtctl stages

  Show a job's transition history:
    jtctl history <job-id>

  Backfill audit records for jobs created before auditing went live:
    jtctl backfill

Configuration:
  Set the API endpoint and credentials via environment variables or a config file:
    JOBTRACK_URL      API endpoint (default: http://localhost:6171)
    JOBTRACK_TOKEN    Tenant API key for authentication
    JOBTRACK_ACTOR    User ID to act as`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".jtctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".jtctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "JOBTRACK_VARNAME"
	viper.SetEnvPrefix("JOBTRACK")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.jtctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:6171", "jobtrack API URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "Tenant API key for authentication")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))

	rootCmd.PersistentFlags().StringP("actor", "a", "", "User ID to act as")
	viper.BindPFlag("actor", rootCmd.PersistentFlags().Lookup("actor"))
}
